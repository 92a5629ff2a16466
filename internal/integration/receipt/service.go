package receipt

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sims/internal/clock"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Runner        *integration.InboundRunner
	Disbursements disbursementdomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	runner        *integration.InboundRunner
	disbursements disbursementdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("receipt.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		runner:        p.Runner,
		disbursements: p.Disbursements,
	}
}

// ProcessReceipts stores the federal and provincial receipts of every
// receipt file. A funder confirms a document number at most once.
func (s *Service) ProcessReceipts(ctx context.Context, log *summary.Log) (integration.InboundResult, error) {
	spec := integration.InboundSpec{
		Integration: integration.Receipt,
		Pattern:     integration.ReceiptPattern,
		Disposal:    integration.DisposalArchive,
	}
	return s.runner.Process(ctx, spec, log, s.applyReceiptFile)
}

func (s *Service) toModel(scheduleID int64, r Receipt, decoded *Decoded) *disbursementdomain.Receipt {
	model := &disbursementdomain.Receipt{
		ID:                           s.genID.Generate().Int64(),
		DisbursementScheduleID:       scheduleID,
		FundingType:                  r.FundingType,
		BatchRunDate:                 decoded.FileDate,
		FileSequence:                 decoded.BatchNumber,
		FundingDate:                  r.FundingDate,
		TotalEntitledDisbursedAmount: r.TotalEntitledDisbursedAmount,
		TotalDisbursedAmount:         r.TotalDisbursedAmount,
		StudentAmount:                r.StudentAmount,
		SchoolAmount:                 r.SchoolAmount,
		CreatedAt:                    s.clock.Now(),
	}
	for _, award := range r.Awards {
		model.Values = append(model.Values, disbursementdomain.ReceiptValue{
			ID:          s.genID.Generate().Int64(),
			GrantType:   award.Code,
			GrantAmount: award.Amount,
		})
	}
	return model
}

func (s *Service) applyReceiptFile(ctx context.Context, file integration.InboundFile) error {
	decoded, err := Decode(file.Lines)
	if err != nil {
		return err
	}
	integration.ReportRecords(integration.Receipt, file.Log, len(decoded.Records), decoded.Errors)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored, duplicates int
		for _, record := range decoded.Records {
			r := record.Value
			schedule, err := s.disbursements.FindByDocumentNumber(ctx, tx, r.DocumentNumber)
			if errors.Is(err, disbursementdomain.ErrDocumentNotFound) {
				file.Log.Warn("receipt.document_not_found",
					zap.Int("line", record.Line),
					zap.Int64("document_number", r.DocumentNumber),
				)
				continue
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", record.Line, err)
			}

			inserted, err := s.disbursements.InsertReceipt(ctx, tx, s.toModel(schedule.ID, r, decoded))
			if err != nil {
				return fmt.Errorf("line %d: %w", record.Line, err)
			}
			if !inserted {
				duplicates++
				continue
			}
			stored++
		}
		file.Log.Info(fmt.Sprintf("%d receipts stored, %d already received", stored, duplicates))
		return nil
	})
}
