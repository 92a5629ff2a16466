package fedrestriction

import (
	"context"
	"fmt"

	"github.com/smallbiznis/sims/internal/integration"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Runner       *integration.InboundRunner
	Restrictions restrictiondomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	runner       *integration.InboundRunner
	restrictions restrictiondomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("fedrestriction.service"),
		runner:       p.Runner,
		restrictions: p.Restrictions,
	}
}

// ProcessSnapshots applies each federal restriction file as the complete
// current set. Applied files are deleted.
func (s *Service) ProcessSnapshots(ctx context.Context, log *summary.Log) (integration.InboundResult, error) {
	spec := integration.InboundSpec{
		Integration: integration.FederalRestriction,
		Pattern:     integration.FederalRestrictionPattern,
		Disposal:    integration.DisposalDelete,
	}
	return s.runner.Process(ctx, spec, log, s.applySnapshot)
}

func (s *Service) applySnapshot(ctx context.Context, file integration.InboundFile) error {
	decoded, err := Decode(file.Lines)
	if err != nil {
		return err
	}
	integration.ReportRecords(integration.FederalRestriction, file.Log, len(decoded.Records), decoded.Errors)

	snapshot := make([]restrictiondomain.FederalRestriction, 0, len(decoded.Records))
	for _, record := range decoded.Records {
		snapshot = append(snapshot, record.Value)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result, err := s.restrictions.ReconcileFederal(ctx, tx, snapshot)
		if err != nil {
			return fmt.Errorf("reconcile federal restrictions: %w", err)
		}
		file.Log.Info("federal_restriction.snapshot.reconciled",
			zap.Int("imported", result.Imported),
			zap.Int("activated", result.Activated),
			zap.Int("resolved", result.Resolved),
		)
		if result.UnknownCodes > 0 || result.UnmatchedSINs > 0 {
			file.Log.Warn("federal_restriction.snapshot.not_applied",
				zap.Int("unknown_codes", result.UnknownCodes),
				zap.Int("unmatched_sins", result.UnmatchedSINs),
			)
		}
		return nil
	})
}
