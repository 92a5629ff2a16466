package receipt

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

const (
	width      = 300
	awardSlots = 10

	fieldFileDate = "file_date"
)

// Award is one award line confirmed by the funder.
type Award struct {
	Code   string
	Amount decimal.Decimal
}

// Receipt confirms the money one funder released for a document number.
type Receipt struct {
	SIN                          string
	FundingType                  disbursementdomain.FundingType
	DocumentNumber               int64
	FundingDate                  time.Time
	TotalEntitledDisbursedAmount decimal.Decimal
	TotalDisbursedAmount         decimal.Decimal
	StudentAmount                decimal.Decimal
	SchoolAmount                 decimal.Decimal
	Awards                       []Award
}

var Spec = fixedwidth.Spec{
	Name: "receipt",
	Header: fixedwidth.NewLayout("receipt.header", width,
		fixedwidth.RecordType("H"),
		fixedwidth.Date(fieldFileDate),
		fixedwidth.Number(integration.FieldBatchNumber, 6),
	),
	Detail: fixedwidth.NewLayout("receipt.detail", width, fixedwidth.Concat(
		[]fixedwidth.Field{
			fixedwidth.RecordType("D"),
			fixedwidth.Digits(integration.FieldSIN, 9),
			fixedwidth.Text("funding_type", 2),
			fixedwidth.Number("document_number", 9),
			fixedwidth.Date("funding_date"),
			fixedwidth.Amount("total_entitled_disbursed_amount", 9, 2),
			fixedwidth.Amount("total_disbursed_amount", 9, 2),
			fixedwidth.Amount("student_amount", 9, 2),
			fixedwidth.Amount("school_amount", 9, 2),
		},
		fixedwidth.Repeat(awardSlots,
			fixedwidth.Text("award_code", 4),
			fixedwidth.OptionalNumber("award_amount", 7),
		),
	)...),
	Footer: fixedwidth.NewLayout("receipt.trailer", width,
		fixedwidth.RecordType("T"),
		fixedwidth.Number(integration.FieldRecordCount, 9),
		fixedwidth.Number(integration.FieldHashTotal, 15),
	),
	HeaderCode:    "H",
	DetailCodes:   []string{"D"},
	FooterCode:    "T",
	CountField:    integration.FieldRecordCount,
	ChecksumField: integration.FieldHashTotal,
	ChecksumKey:   integration.FieldSIN,
}

func toRow(r Receipt) (fixedwidth.Row, error) {
	if len(r.Awards) > awardSlots {
		return nil, &fixedwidth.RecordError{
			Field: "award_code",
			Value: fmt.Sprint(len(r.Awards)),
			Err:   fmt.Errorf("%w: %d awards, %d slots", fixedwidth.ErrFieldOverflow, len(r.Awards), awardSlots),
		}
	}
	row := fixedwidth.Row{
		integration.FieldSIN:              r.SIN,
		"funding_type":                    string(r.FundingType),
		"document_number":                 r.DocumentNumber,
		"funding_date":                    r.FundingDate,
		"total_entitled_disbursed_amount": r.TotalEntitledDisbursedAmount,
		"total_disbursed_amount":          r.TotalDisbursedAmount,
		"student_amount":                  r.StudentAmount,
		"school_amount":                   r.SchoolAmount,
	}
	for i, award := range r.Awards {
		row[fixedwidth.IndexedName("award_code", i+1)] = award.Code
		row[fixedwidth.IndexedName("award_amount", i+1)] = award.Amount
	}
	return row, nil
}

// fromRow skips award slots without a code; their amount is blank.
func fromRow(row fixedwidth.Row) (Receipt, error) {
	r := Receipt{
		SIN:                          row.Text(integration.FieldSIN),
		FundingType:                  disbursementdomain.FundingType(row.Text("funding_type")),
		DocumentNumber:               row.Int("document_number"),
		FundingDate:                  row.Date("funding_date"),
		TotalEntitledDisbursedAmount: row.Amount("total_entitled_disbursed_amount"),
		TotalDisbursedAmount:         row.Amount("total_disbursed_amount"),
		StudentAmount:                row.Amount("student_amount"),
		SchoolAmount:                 row.Amount("school_amount"),
	}
	if r.FundingType != disbursementdomain.FundingTypeFederal && r.FundingType != disbursementdomain.FundingTypeProvincial {
		return Receipt{}, &fixedwidth.RecordError{
			Field: "funding_type",
			Value: string(r.FundingType),
			Err:   fmt.Errorf("%w: unknown funding type", fixedwidth.ErrInvalidField),
		}
	}
	for i := 1; i <= awardSlots; i++ {
		code := row.Text(fixedwidth.IndexedName("award_code", i))
		if code == "" {
			continue
		}
		r.Awards = append(r.Awards, Award{Code: code, Amount: row.Amount(fixedwidth.IndexedName("award_amount", i))})
	}
	return r, nil
}

// Decoded adds the header values every receipt of the file shares.
type Decoded struct {
	*fixedwidth.Decoded[Receipt]
	FileDate    time.Time
	BatchNumber int64
}

// Encode builds a receipt file the way the funder sends it.
func Encode(fileDate time.Time, batch int64, receipts []Receipt) (*fixedwidth.File, error) {
	header := fixedwidth.Row{
		fieldFileDate:                fileDate,
		integration.FieldBatchNumber: batch,
	}
	return fixedwidth.Encode(Spec, header, receipts, toRow)
}

func Decode(lines []string) (*Decoded, error) {
	decoded, err := fixedwidth.Decode(Spec, lines, fromRow)
	if err != nil {
		return nil, err
	}
	return &Decoded{
		Decoded:     decoded,
		FileDate:    decoded.Header.Date(fieldFileDate),
		BatchNumber: decoded.Header.Int(integration.FieldBatchNumber),
	}, nil
}
