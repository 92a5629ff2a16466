package sinvalidation

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

var sequenceGroup = sequencedomain.FileGroup("SIN_VALIDATION")

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
		log:       p.Log.Named("sinvalidation.service"),
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
	FirstName string
	LastName  string
	BirthDate time.Time
	Gender    string
}

func (s *Service) pending(ctx context.Context, tx *gorm.DB) ([]Request, error) {
	var rows []pendingRow
	err := tx.WithContext(ctx).Raw(
		`SELECT v.id, v.sin, st.first_name, st.last_name, st.birth_date, st.gender
		 FROM sin_validations v
		 JOIN students st ON st.id = v.student_id
		 WHERE v.date_sent IS NULL
		 ORDER BY v.id`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	requests := make([]Request, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, Request{
			ValidationID: row.ID,
			SIN:          row.SIN,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			BirthDate:    row.BirthDate,
			Gender:       row.Gender,
		})
	}
	return requests, nil
}

// SendRequests uploads every SIN validation not sent yet. The rows are marked
// sent in the same transaction as the upload.
func (s *Service) SendRequests(ctx context.Context, log *summary.Log) (integration.SendResult, error) {
	if log == nil {
		log = summary.New(s.log, integration.SINValidation)
	}
	var result integration.SendResult

	waiting, err := s.pending(ctx, s.db)
	if err != nil {
		return result, fmt.Errorf("pending sin validations: %w", err)
	}
	if len(waiting) == 0 {
		log.Info("sin_validation.request.none_pending")
		return result, nil
	}

	err = s.sequences.ConsumeNextSequence(ctx, sequenceGroup, func(ctx context.Context, seq int64) error {
		name := integration.FileName(s.cfg.EnvironmentCode, integration.CodeSINRequest, seq, integration.DefaultSequenceWidth, "DAT")
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			requests, err := s.pending(ctx, tx)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			file, err := EncodeRequests(s.cfg.Originator, seq, now, requests)
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}

			for _, r := range requests {
				err := tx.WithContext(ctx).Exec(
					`UPDATE sin_validations
					 SET date_sent = ?, file_sent = ?, given_name_sent = ?, surname_sent = ?,
					     birth_date_sent = ?, gender_sent = ?, updated_at = ?
					 WHERE id = ?`,
					now, name, r.FirstName, r.LastName, r.BirthDate, r.Gender, now, r.ValidationID,
				).Error
				if err != nil {
					return err
				}
			}

			remote, err := integration.Upload(ctx, s.transport, integration.SINValidation, name, file)
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

	log.Info(fmt.Sprintf("SIN validation file %s sent with %d records", result.Name, result.Records))
	return result, nil
}

// ProcessResponses applies every SIN validation response file.
func (s *Service) ProcessResponses(ctx context.Context, log *summary.Log) (integration.InboundResult, error) {
	spec := integration.InboundSpec{
		Integration: integration.SINValidation,
		Pattern:     integration.SINResponsePattern,
		Disposal:    integration.DisposalArchive,
	}
	return s.runner.Process(ctx, spec, log, s.applyResponseFile)
}

func (s *Service) applyResponseFile(ctx context.Context, file integration.InboundFile) error {
	decoded, err := DecodeResponses(file.Lines)
	if err != nil {
		return err
	}
	integration.ReportRecords(integration.SINValidation, file.Log, len(decoded.Records), decoded.Errors)

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated := 0
		for _, record := range decoded.Records {
			r := record.Value
			res := tx.WithContext(ctx).Exec(
				`UPDATE sin_validations
				 SET date_received = ?, file_received = ?, is_valid_sin = ?, sin_status = ?,
				     valid_sin_check = ?, valid_birth_date_check = ?, valid_last_name_check = ?,
				     valid_first_name_check = ?, valid_gender_check = ?, sin_expiry_date = ?, updated_at = ?
				 WHERE id = ? AND sin = ?`,
				now, file.Name, r.Valid(), r.SINStatus,
				r.ValidSINCheck, r.BirthDateCheck, r.LastNameCheck,
				r.FirstNameCheck, r.GenderCheck, r.SINExpiryDate, now,
				r.ValidationID, r.SIN,
			)
			if res.Error != nil {
				return fmt.Errorf("line %d: %w", record.Line, res.Error)
			}
			if res.RowsAffected == 0 {
				file.Log.Warn("sin_validation.response.unmatched",
					zap.Int("line", record.Line),
					zap.Int64("reference_index", r.ValidationID),
				)
				continue
			}
			updated++
		}
		file.Log.Info(fmt.Sprintf("%d SIN validations updated", updated))
		return nil
	})
}
