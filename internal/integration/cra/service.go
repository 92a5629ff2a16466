package cra

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	"github.com/smallbiznis/sims/internal/integration"
	sequencedomain "github.com/smallbiznis/sims/internal/sequence/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var sequenceGroup = sequencedomain.FileGroup("CRA_INCOME_VERIFICATION")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
	Transport integration.Transport
	Runner    *integration.InboundRunner
	Sequences sequencedomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	cfg       config.IntegrationConfig
	transport integration.Transport
	runner    *integration.InboundRunner
	sequences sequencedomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("cra.service"),
		clock:     p.Clock,
		cfg:       p.Config.Integration,
		transport: p.Transport,
		runner:    p.Runner,
		sequences: p.Sequences,
	}
}

type pendingRow struct {
	ID        int64
	SIN       string
	LastName  string
	FirstName string
	BirthDate time.Time
	TaxYear   int
}

func (s *Service) pending(ctx context.Context, tx *gorm.DB) ([]Request, error) {
	var rows []pendingRow
	err := tx.WithContext(ctx).Raw(
		`SELECT c.id, v.sin, st.last_name, st.first_name, st.birth_date, c.tax_year
		 FROM cra_income_verifications c
		 JOIN students st ON st.id = c.student_id
		 JOIN sin_validations v ON v.id = st.sin_validation_id
		 WHERE c.date_sent IS NULL
		 ORDER BY c.id`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	requests := make([]Request, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, Request{
			VerificationID: row.ID,
			SIN:            row.SIN,
			Surname:        row.LastName,
			GivenName:      row.FirstName,
			BirthDate:      row.BirthDate,
			TaxYear:        row.TaxYear,
		})
	}
	return requests, nil
}

// SendRequests uploads every income verification not sent yet.
func (s *Service) SendRequests(ctx context.Context, log *summary.Log) (integration.SendResult, error) {
	if log == nil {
		log = summary.New(s.log, integration.CRA)
	}
	var result integration.SendResult

	waiting, err := s.pending(ctx, s.db)
	if err != nil {
		return result, fmt.Errorf("pending income verifications: %w", err)
	}
	if len(waiting) == 0 {
		log.Info("cra.request.none_pending")
		return result, nil
	}

	err = s.sequences.ConsumeNextSequence(ctx, sequenceGroup, func(ctx context.Context, seq int64) error {
		name := integration.FileName(s.cfg.EnvironmentCode, integration.CodeCRARequest, seq, integration.CRASequenceWidth, "TXT")
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			requests, err := s.pending(ctx, tx)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			file, err := EncodeRequests(s.cfg.CRAProgramArea, s.cfg.CRAEnvironment, seq, now, requests)
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}

			ids := make([]int64, 0, len(requests))
			for _, r := range requests {
				ids = append(ids, r.VerificationID)
			}
			err = tx.WithContext(ctx).Exec(
				`UPDATE cra_income_verifications SET date_sent = ?, file_sent = ?, updated_at = ? WHERE id IN ?`,
				now, name, now, ids,
			).Error
			if err != nil {
				return err
			}

			remote, err := integration.Upload(ctx, s.transport, integration.CRA, name, file)
			if err != nil {
				return err
			}
			result = integration.SendResult{Name: name, RemotePath: remote, Records: len(requests)}
			return nil
		})
	})
	if err != nil {
		return integration.SendResult{}, err
	}

	log.Info(fmt.Sprintf("CRA file %s sent with %d records", result.Name, result.Records))
	return result, nil
}

// ProcessResponses stores the income reported for each verification.
func (s *Service) ProcessResponses(ctx context.Context, log *summary.Log) (integration.InboundResult, error) {
	spec := integration.InboundSpec{
		Integration: integration.CRA,
		Pattern:     integration.CRAResponsePattern,
		Disposal:    integration.DisposalArchive,
	}
	return s.runner.Process(ctx, spec, log, s.applyResponseFile)
}

func (s *Service) applyResponseFile(ctx context.Context, file integration.InboundFile) error {
	decoded, err := DecodeResponses(file.Lines)
	if err != nil {
		return err
	}
	integration.ReportRecords(integration.CRA, file.Log, len(decoded.Records), decoded.Errors)

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated := 0
		for _, record := range decoded.Records {
			r := record.Value
			res := tx.WithContext(ctx).Exec(
				`UPDATE cra_income_verifications
				 SET cra_reported_income = ?, match_status = ?, request_status = ?, inactive_code = ?,
				     date_received = ?, file_received = ?, updated_at = ?
				 WHERE id = ? AND tax_year = ?`,
				r.TotalIncome, r.MatchStatus, r.RequestStatus, r.InactiveCode,
				now, file.Name, now,
				r.VerificationID, r.TaxYear,
			)
			if res.Error != nil {
				return fmt.Errorf("line %d: %w", record.Line, res.Error)
			}
			if res.RowsAffected == 0 {
				file.Log.Warn("cra.response.unmatched",
					zap.Int("line", record.Line),
					zap.Int64("verification_id", r.VerificationID),
				)
				continue
			}
			updated++
		}
		file.Log.Info(fmt.Sprintf("%d income verifications updated", updated))
		return nil
	})
}
