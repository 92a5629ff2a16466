package integration

import (
	"time"

	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

// Integration names used for metrics, sequence groups and summaries.
const (
	SINValidation      = "sin_validation"
	MSFAA              = "msfaa"
	ECertFullTime      = "ecert_full_time"
	ECertPartTime      = "ecert_part_time"
	ECertFeedback      = "ecert_feedback"
	CRA                = "cra"
	Receipt            = "disbursement_receipt"
	FederalRestriction = "federal_restriction"
	LoanBalance        = "student_loan_balance"
)

// Standard envelope field names.
const (
	FieldOriginator  = "originator"
	FieldBatchNumber = "batch_number"
	FieldProcessDate = "process_date"
	FieldProcessTime = "process_time"
	FieldRecordCount = "record_count"
	FieldHashTotal   = "hash_total"
	FieldSIN         = "sin"
)

// StandardHeader is the header shared by most families: record type,
// originator, batch number and the production timestamp.
func StandardHeader(name, code string, width int) fixedwidth.Layout {
	return fixedwidth.NewLayout(name+".header", width,
		fixedwidth.RecordType(code),
		fixedwidth.Text(FieldOriginator, 4),
		fixedwidth.Number(FieldBatchNumber, 6),
		fixedwidth.Date(FieldProcessDate),
		fixedwidth.Time(FieldProcessTime),
	)
}

func StandardFooter(name, code string, width int) fixedwidth.Layout {
	return fixedwidth.NewLayout(name+".footer", width,
		fixedwidth.RecordType(code),
		fixedwidth.Text(FieldOriginator, 4),
		fixedwidth.Number(FieldRecordCount, 9),
		fixedwidth.Number(FieldHashTotal, 15),
	)
}

// StandardSpec wires a detail layout into the 100/200/999 envelope keyed on SIN.
func StandardSpec(name string, width int, detail fixedwidth.Layout, detailCodes ...string) fixedwidth.Spec {
	if len(detailCodes) == 0 {
		detailCodes = []string{"200"}
	}
	return fixedwidth.Spec{
		Name:          name,
		Header:        StandardHeader(name, "100", width),
		Detail:        detail,
		Footer:        StandardFooter(name, "999", width),
		HeaderCode:    "100",
		DetailCodes:   detailCodes,
		FooterCode:    "999",
		CountField:    FieldRecordCount,
		ChecksumField: FieldHashTotal,
		ChecksumKey:   FieldSIN,
	}
}

func StandardHeaderRow(originator string, batch int64, now time.Time) fixedwidth.Row {
	return fixedwidth.Row{
		FieldOriginator:  originator,
		FieldBatchNumber: batch,
		FieldProcessDate: now,
		FieldProcessTime: now,
	}
}
