package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/sims/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	allocateSQL = `INSERT INTO sequence_controls (sequence_name, sequence_number)
		VALUES (?, 1)
		ON CONFLICT (sequence_name)
		DO UPDATE SET sequence_number = sequence_controls.sequence_number + 1
		RETURNING sequence_number`

	allocateMySQL = `INSERT INTO sequence_controls (sequence_name, sequence_number)
		VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE sequence_number = LAST_INSERT_ID(sequence_number + 1)`
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("sequence.service"),
	}
}

func (s *Service) ConsumeNextSequence(ctx context.Context, group string, work func(ctx context.Context, seq int64) error) error {
	var seq int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := s.NextSequence(ctx, tx, group)
		if err != nil {
			return err
		}
		seq = next
		return nil
	})
	if err != nil {
		return fmt.Errorf("allocate %s: %w", group, err)
	}

	if err := work(ctx, seq); err != nil {
		s.log.Warn("sequence.consumed_without_use",
			zap.String("group", group),
			zap.Int64("sequence", seq),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) NextSequence(ctx context.Context, tx *gorm.DB, group string) (int64, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return 0, domain.ErrInvalidSequenceName
	}

	var seq int64
	if tx.Dialector.Name() == "mysql" {
		if err := tx.WithContext(ctx).Exec(allocateMySQL, group).Error; err != nil {
			return 0, err
		}
		if err := tx.WithContext(ctx).Raw("SELECT LAST_INSERT_ID()").Row().Scan(&seq); err != nil {
			return 0, err
		}
		return seq, nil
	}

	if err := tx.WithContext(ctx).Raw(allocateSQL, group).Row().Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
