package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertReceiptEqual(t *testing.T, want, got Receipt) {
	t.Helper()
	assert.Equal(t, want.SIN, got.SIN)
	assert.Equal(t, want.FundingType, got.FundingType)
	assert.Equal(t, want.DocumentNumber, got.DocumentNumber)
	assert.Equal(t, want.FundingDate, got.FundingDate)
	assert.True(t, want.TotalEntitledDisbursedAmount.Equal(got.TotalEntitledDisbursedAmount))
	assert.True(t, want.TotalDisbursedAmount.Equal(got.TotalDisbursedAmount))
	assert.True(t, want.StudentAmount.Equal(got.StudentAmount))
	assert.True(t, want.SchoolAmount.Equal(got.SchoolAmount))
	require.Len(t, got.Awards, len(want.Awards))
	for i := range want.Awards {
		assert.Equal(t, want.Awards[i].Code, got.Awards[i].Code)
		assert.True(t, want.Awards[i].Amount.Equal(got.Awards[i].Amount), "award %d amount %s != %s", i+1, want.Awards[i].Amount, got.Awards[i].Amount)
	}
}

func encodeLines(t *testing.T, receipts ...Receipt) []string {
	t.Helper()
	file, err := Encode(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), 12, receipts)
	require.NoError(t, err)
	content, err := file.Bytes()
	require.NoError(t, err)
	return fixedwidth.SplitLines(content)
}

func TestRoundTrip(t *testing.T) {
	receipts := []Receipt{
		{
			SIN: "046454286", FundingType: disbursementdomain.FundingTypeFederal, DocumentNumber: 1000001,
			FundingDate:                  time.Date(2024, 9, 6, 0, 0, 0, 0, time.UTC),
			TotalEntitledDisbursedAmount: decimal.RequireFromString("6000.00"),
			TotalDisbursedAmount:         decimal.RequireFromString("5800.00"),
			StudentAmount:                decimal.RequireFromString("2050.50"),
			SchoolAmount:                 decimal.RequireFromString("3749.50"),
			Awards: []Award{
				{Code: "CSLF", Amount: decimal.NewFromInt(4800)},
				{Code: "CSGP", Amount: decimal.NewFromInt(1000)},
			},
		},
		{
			SIN: "123456782", FundingType: disbursementdomain.FundingTypeProvincial, DocumentNumber: 1000002,
			FundingDate:                  time.Date(2024, 9, 7, 0, 0, 0, 0, time.UTC),
			TotalEntitledDisbursedAmount: decimal.RequireFromString("1500.00"),
			TotalDisbursedAmount:         decimal.RequireFromString("1500.00"),
			StudentAmount:                decimal.RequireFromString("1500.00"),
			SchoolAmount:                 decimal.Zero,
			Awards:                       []Award{{Code: "BCSL", Amount: decimal.NewFromInt(1500)}},
		},
	}

	decoded, err := Decode(encodeLines(t, receipts...))
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 2)
	for i, record := range decoded.Records {
		assertReceiptEqual(t, receipts[i], record.Value)
	}
	assert.Equal(t, int64(12), decoded.BatchNumber)
	assert.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), decoded.FileDate)
	assert.Equal(t, int64(2), decoded.Footer.Int(integration.FieldRecordCount))
	assert.Equal(t, int64(46454286+123456782), decoded.Footer.Int(integration.FieldHashTotal))
}

func TestBlankAwardSlotsDecodeAsNoAward(t *testing.T) {
	lines := encodeLines(t, Receipt{
		SIN: "046454286", FundingType: disbursementdomain.FundingTypeFederal, DocumentNumber: 1000001,
		FundingDate:                  time.Date(2024, 9, 6, 0, 0, 0, 0, time.UTC),
		TotalEntitledDisbursedAmount: decimal.NewFromInt(5000),
		TotalDisbursedAmount:         decimal.NewFromInt(5000),
		StudentAmount:                decimal.NewFromInt(5000),
		SchoolAmount:                 decimal.Zero,
		Awards:                       []Award{{Code: "CSLF", Amount: decimal.NewFromInt(5000)}},
	})
	require.Len(t, lines, 3)

	// slot one spans columns 65-76, every later slot is spaces
	detail := lines[1]
	assert.Equal(t, "CSLF0005000", detail[65:76])
	assert.Empty(t, strings.TrimSpace(detail[76:65+awardSlots*11]))

	decoded, err := Decode(lines)
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 1)
	awards := decoded.Records[0].Value.Awards
	require.Len(t, awards, 1)
	assert.Equal(t, "CSLF", awards[0].Code)
	assert.True(t, decimal.NewFromInt(5000).Equal(awards[0].Amount))
}

func TestEncodeRejectsTooManyAwards(t *testing.T) {
	awards := make([]Award, awardSlots+1)
	for i := range awards {
		awards[i] = Award{Code: "CSLF", Amount: decimal.NewFromInt(1)}
	}
	_, err := Encode(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), 1, []Receipt{{SIN: "046454286", FundingType: disbursementdomain.FundingTypeFederal, Awards: awards}})
	require.ErrorIs(t, err, fixedwidth.ErrFieldOverflow)
}
