package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/internal/integration/integrationtest"
	"github.com/smallbiznis/sims/internal/testutil"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receiptRow(documentNumber int64, fundingType disbursementdomain.FundingType) fixedwidth.Row {
	return fixedwidth.Row{
		integration.FieldSIN:              "046454286",
		"funding_type":                    string(fundingType),
		"document_number":                 documentNumber,
		"funding_date":                    integrationtest.Now,
		"total_entitled_disbursed_amount": decimal.RequireFromString("6000.00"),
		"total_disbursed_amount":          decimal.RequireFromString("6000.00"),
		"student_amount":                  decimal.RequireFromString("2250.50"),
		"school_amount":                   decimal.RequireFromString("3749.50"),
		"award_code_1":                    "CSLF",
		"award_amount_1":                  int64(5000),
		"award_code_2":                    "CSGP",
		"award_amount_2":                  int64(1000),
	}
}

func receiptFile(t *testing.T, rows ...fixedwidth.Row) *fixedwidth.File {
	t.Helper()
	file, err := Spec.Build(fixedwidth.Row{fieldFileDate: integrationtest.Now, integration.FieldBatchNumber: int64(12)}, rows)
	require.NoError(t, err)
	return file
}

func TestDecodeRejectsUnknownFundingType(t *testing.T) {
	file := receiptFile(t, receiptRow(1000001, disbursementdomain.FundingTypeFederal), receiptRow(1000001, "XX"))
	content, err := file.Bytes()
	require.NoError(t, err)

	decoded, err := Decode(fixedwidth.SplitLines(content))
	require.NoError(t, err)
	assert.Equal(t, int64(12), decoded.BatchNumber)
	assert.True(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC).Equal(decoded.FileDate))
	require.Len(t, decoded.Records, 1)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "funding_type", decoded.Errors[0].Field)

	r := decoded.Records[0].Value
	require.Len(t, r.Awards, 2)
	assert.Equal(t, "CSGP", r.Awards[1].Code)
	assert.True(t, decimal.NewFromInt(1000).Equal(r.Awards[1].Amount))
	assert.True(t, decimal.RequireFromString("2250.50").Equal(r.StudentAmount))
}

func TestProcessReceiptsStoresEachFunderOnce(t *testing.T) {
	h := integrationtest.New(t)
	student := h.Fixture.Student(t, "046454286")
	app := h.Fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.Fixture.Schedule(t, app, integrationtest.Now,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 5000),
	)
	require.NoError(t, h.DB.Model(schedule).Update("document_number", 1000001).Error)

	svc := NewService(Params{
		DB:            h.DB,
		Log:           zap.NewNop(),
		GenID:         h.GenID,
		Clock:         h.Clock,
		Runner:        h.Runner,
		Disbursements: h.Disbursements,
	})

	h.PutResponse(t, "TRCPT000001.DAT", receiptFile(t,
		receiptRow(1000001, disbursementdomain.FundingTypeFederal),
		receiptRow(1000001, disbursementdomain.FundingTypeProvincial),
		receiptRow(7777777, disbursementdomain.FundingTypeFederal),
	))
	h.PutResponse(t, "TRCPT000002.DAT", receiptFile(t,
		receiptRow(1000001, disbursementdomain.FundingTypeFederal),
	))

	result, err := svc.ProcessReceipts(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed())

	var receipts []disbursementdomain.Receipt
	require.NoError(t, h.DB.Preload("Values").
		Where("disbursement_schedule_id = ?", schedule.ID).
		Order("funding_type").
		Find(&receipts).Error)
	require.Len(t, receipts, 2)
	assert.Equal(t, disbursementdomain.FundingTypeProvincial, receipts[0].FundingType)
	assert.Equal(t, disbursementdomain.FundingTypeFederal, receipts[1].FundingType)
	assert.Equal(t, int64(12), receipts[1].FileSequence)
	assert.Len(t, receipts[1].Values, 2)
}
