package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/overaward/domain"
	"github.com/smallbiznis/sims/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBalancesSumSignedEntriesPerCode(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(Params{Log: zap.NewNop(), GenID: testutil.NewNode(t), Clock: clock.NewFakeClock(time.Now())})
	ctx := context.Background()
	applicationID := int64(77)

	entries := []domain.DisbursementOveraward{
		{StudentID: 1, ValueCode: "CSLF", OverawardValue: decimal.NewFromInt(2500), OriginType: domain.OriginReassessmentOveraward},
		{StudentID: 1, ApplicationID: &applicationID, ValueCode: "CSLF", OverawardValue: decimal.NewFromInt(-2000), OriginType: domain.OriginAwardDeducted},
		{StudentID: 1, ValueCode: "BCSL", OverawardValue: decimal.RequireFromString("-150.50"), OriginType: domain.OriginManualRecord},
		{StudentID: 2, ValueCode: "CSLF", OverawardValue: decimal.NewFromInt(999), OriginType: domain.OriginLegacyOveraward},
	}
	for i := range entries {
		require.NoError(t, svc.AddEntry(ctx, db, &entries[i]))
	}

	balances, err := svc.Balances(ctx, db, 1)
	require.NoError(t, err)
	assert.True(t, balances.Get("CSLF").Equal(decimal.NewFromInt(500)))
	assert.True(t, balances.Get("BCSL").Equal(decimal.RequireFromString("-150.5")))
	assert.True(t, balances.Get("CSLP").IsZero())

	balances.Consume("CSLF", decimal.NewFromInt(500))
	assert.True(t, balances.Get("CSLF").IsZero())
}

func TestNetDeductedNetsCredits(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(Params{Log: zap.NewNop(), GenID: testutil.NewNode(t), Clock: clock.NewFakeClock(time.Now())})
	ctx := context.Background()
	applicationID := int64(10)

	net, err := svc.NetDeducted(ctx, db, applicationID, "CSLF")
	require.NoError(t, err)
	assert.True(t, net.IsZero())

	require.NoError(t, svc.AddEntry(ctx, db, &domain.DisbursementOveraward{
		StudentID: 1, ApplicationID: &applicationID, ValueCode: "CSLF",
		OverawardValue: decimal.NewFromInt(-1200), OriginType: domain.OriginAwardDeducted,
	}))
	require.NoError(t, svc.AddEntry(ctx, db, &domain.DisbursementOveraward{
		StudentID: 1, ApplicationID: &applicationID, ValueCode: "CSLF",
		OverawardValue: decimal.NewFromInt(200), OriginType: domain.OriginAwardCredited,
	}))
	require.NoError(t, svc.AddEntry(ctx, db, &domain.DisbursementOveraward{
		StudentID: 1, ApplicationID: &applicationID, ValueCode: "CSLF",
		OverawardValue: decimal.NewFromInt(5000), OriginType: domain.OriginReassessmentOveraward,
	}))

	net, err = svc.NetDeducted(ctx, db, applicationID, "CSLF")
	require.NoError(t, err)
	assert.True(t, net.Equal(decimal.NewFromInt(1000)), net.String())
}

func TestAddEntryRejectsZero(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewService(Params{Log: zap.NewNop(), GenID: testutil.NewNode(t), Clock: clock.NewFakeClock(time.Now())})

	err := svc.AddEntry(context.Background(), db, &domain.DisbursementOveraward{StudentID: 1, ValueCode: "CSLF"})
	assert.ErrorIs(t, err, domain.ErrInvalidEntry)
}
