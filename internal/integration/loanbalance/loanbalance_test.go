package loanbalance

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/internal/integration/integrationtest"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	balanceDate  = time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC)
	previousDate = time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	birthDate    = time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC)
)

func balanceFile(t *testing.T, rows ...fixedwidth.Row) *fixedwidth.File {
	t.Helper()
	file, err := Spec.Build(fixedwidth.Row{integration.FieldOriginator: "NSLS", fieldBalanceDate: balanceDate}, rows)
	require.NoError(t, err)
	return file
}

func balanceRow(sin string, born time.Time, amount string) fixedwidth.Row {
	return fixedwidth.Row{
		integration.FieldSIN: sin,
		"last_name":          "Doe",
		"birth_date":         born,
		"csl_balance":        decimal.RequireFromString(amount),
	}
}

func balances(t *testing.T, h *integrationtest.Harness, studentID int64) []studentdomain.StudentLoanBalance {
	t.Helper()
	var out []studentdomain.StudentLoanBalance
	require.NoError(t, h.DB.Where("student_id = ?", studentID).Order("balance_date").Find(&out).Error)
	return out
}

func TestProcessBalancesStoresAndZeroFills(t *testing.T) {
	h := integrationtest.New(t)
	reported := h.Fixture.Student(t, "046454286")
	missing := h.Fixture.Student(t, "123456782")
	require.NoError(t, h.DB.Create(&studentdomain.StudentLoanBalance{
		ID:          h.GenID.Generate().Int64(),
		StudentID:   missing.ID,
		CSLBalance:  decimal.NewFromInt(2000),
		BalanceDate: previousDate,
		CreatedAt:   integrationtest.Now,
	}).Error)

	svc := NewService(Params{
		DB:     h.DB,
		Log:    zap.NewNop(),
		GenID:  h.GenID,
		Clock:  h.Clock,
		Runner: h.Runner,
	})
	h.PutResponse(t, "TBALS000001.DAT", balanceFile(t,
		balanceRow("046454286", birthDate, "1500.25"),
		balanceRow("046454286", birthDate.AddDate(1, 0, 0), "99.00"),
		balanceRow("987654321", birthDate, "10.00"),
	))

	result, err := svc.ProcessBalances(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed())
	assert.False(t, h.Pending("TBALS000001.DAT"))

	got := balances(t, h, reported.ID)
	require.Len(t, got, 1)
	assert.True(t, decimal.RequireFromString("1500.25").Equal(got[0].CSLBalance))
	assert.True(t, balanceDate.Equal(got[0].BalanceDate.UTC()))

	zeroed := balances(t, h, missing.ID)
	require.Len(t, zeroed, 2)
	assert.True(t, zeroed[1].CSLBalance.IsZero())
	assert.True(t, balanceDate.Equal(zeroed[1].BalanceDate.UTC()))
}
