package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/overaward/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("overaward.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

type balanceRow struct {
	ValueCode string
	Balance   decimal.Decimal
}

func (s *Service) Balances(ctx context.Context, tx *gorm.DB, studentID int64) (domain.Balances, error) {
	var rows []balanceRow
	err := tx.WithContext(ctx).Raw(
		`SELECT value_code, COALESCE(SUM(overaward_value), 0) AS balance
		 FROM disbursement_overawards
		 WHERE student_id = ?
		 GROUP BY value_code`,
		studentID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	balances := make(domain.Balances, len(rows))
	for _, row := range rows {
		balances[row.ValueCode] = row.Balance
	}
	return balances, nil
}

func (s *Service) NetDeducted(ctx context.Context, tx *gorm.DB, applicationID int64, code string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(overaward_value), 0)
		 FROM disbursement_overawards
		 WHERE application_id = ? AND value_code = ? AND origin_type IN ?`,
		applicationID, code, []domain.OriginType{domain.OriginAwardDeducted, domain.OriginAwardCredited},
	).Row().Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	// deductions are stored negative
	return total.Neg(), nil
}

func (s *Service) AddEntry(ctx context.Context, tx *gorm.DB, entry *domain.DisbursementOveraward) error {
	if entry == nil || strings.TrimSpace(entry.ValueCode) == "" || entry.OverawardValue.IsZero() {
		return domain.ErrInvalidEntry
	}

	now := s.clock.Now()
	if entry.ID == 0 {
		entry.ID = s.genID.Generate().Int64()
	}
	if entry.AddedDate.IsZero() {
		entry.AddedDate = now
	}
	entry.CreatedAt = now

	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.log.Debug("overaward.entry.added",
		zap.Int64("student_id", entry.StudentID),
		zap.String("value_code", entry.ValueCode),
		zap.String("origin", string(entry.OriginType)),
		zap.String("value", entry.OverawardValue.String()),
	)
	return nil
}
