package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	"github.com/smallbiznis/sims/internal/notification/domain"
	"github.com/smallbiznis/sims/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordBlockedDisbursementIsRateLimited(t *testing.T) {
	db := testutil.NewDB(t)
	fake := clock.NewFakeClock(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.DefaultECertConfig()
	cfg.BlockedNotification.MaxNotifications = 2
	cfg.BlockedNotification.MinInterval = 24 * time.Hour
	svc := NewService(Params{
		Log:    zap.NewNop(),
		GenID:  testutil.NewNode(t),
		Clock:  fake,
		Config: config.NewStaticECertConfigHolder(cfg),
	})
	ctx := context.Background()
	info := domain.BlockedDisbursement{StudentID: 1, DisbursementScheduleID: 42, ApplicationNumber: "2024000001", Reason: "msfaa_not_signed"}

	recorded, err := svc.RecordBlockedDisbursement(ctx, db, info)
	require.NoError(t, err)
	assert.True(t, recorded)

	fake.Advance(time.Hour)
	recorded, err = svc.RecordBlockedDisbursement(ctx, db, info)
	require.NoError(t, err)
	assert.False(t, recorded, "inside the minimum interval")

	fake.Advance(24 * time.Hour)
	recorded, err = svc.RecordBlockedDisbursement(ctx, db, info)
	require.NoError(t, err)
	assert.True(t, recorded)

	fake.Advance(48 * time.Hour)
	recorded, err = svc.RecordBlockedDisbursement(ctx, db, info)
	require.NoError(t, err)
	assert.False(t, recorded, "maximum reached")

	other := info
	other.DisbursementScheduleID = 43
	recorded, err = svc.RecordBlockedDisbursement(ctx, db, other)
	require.NoError(t, err)
	assert.True(t, recorded)

	var rows []domain.Notification
	require.NoError(t, db.Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, "msfaa_not_signed", rows[0].Payload["reason"])
}
