package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	"github.com/smallbiznis/sims/internal/notification/domain"
	"github.com/smallbiznis/sims/pkg/db/option"
	"github.com/smallbiznis/sims/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config *config.ECertConfigHolder
}

type Service struct {
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	config *config.ECertConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("notification.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		config: p.Config,
	}
}

func (s *Service) RecordBlockedDisbursement(ctx context.Context, tx *gorm.DB, info domain.BlockedDisbursement) (bool, error) {
	limits := s.config.Get().BlockedNotification
	now := s.clock.Now()

	scheduleID := info.DisbursementScheduleID
	store := repository.ProvideStore[domain.Notification](tx)
	filter := &domain.Notification{MessageType: domain.MessageECertBlocked, DisbursementScheduleID: &scheduleID}

	sent, err := store.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	if sent >= int64(limits.MaxNotifications) {
		return false, nil
	}

	last, err := store.FindOne(ctx, filter, option.WithOrder("created_at desc"))
	if err != nil {
		return false, err
	}
	if last != nil && now.Sub(last.CreatedAt) < limits.MinInterval {
		return false, nil
	}

	entry := domain.Notification{
		ID:                     s.genID.Generate().Int64(),
		MessageType:            domain.MessageECertBlocked,
		StudentID:              info.StudentID,
		DisbursementScheduleID: &scheduleID,
		Payload: datatypes.JSONMap{
			"application_number": info.ApplicationNumber,
			"intensity":          info.Intensity,
			"reason":             info.Reason,
		},
		CreatedAt: now,
	}
	if err := store.Create(ctx, &entry); err != nil {
		return false, err
	}

	s.log.Info("notification.ecert_blocked.queued",
		zap.Int64("student_id", info.StudentID),
		zap.Int64("disbursement_schedule_id", info.DisbursementScheduleID),
		zap.String("reason", info.Reason),
	)
	return true, nil
}
