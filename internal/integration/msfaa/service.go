package msfaa

import (
	"context"
	"fmt"
	"time"

	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	"github.com/smallbiznis/sims/internal/integration"
	sequencedomain "github.com/smallbiznis/sims/internal/sequence/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
		log:       p.Log.Named("msfaa.service"),
		clock:     p.Clock,
		cfg:       p.Config.Integration,
		transport: p.Transport,
		runner:    p.Runner,
		sequences: p.Sequences,
	}
}

type pendingRow struct {
	ID              int64
	MSFAANumber     string
	SIN             string
	InstitutionCode string
	BirthDate       time.Time
	LastName        string
	FirstName       string
	Gender          string
	MaritalStatus   string
	StudentNumber   string
	AddressLine1    string
	AddressLine2    string
	City            string
	ProvinceState   string
	PostalCode      string
	Country         string
	Phone           string
	Email           string
}

func (s *Service) pending(ctx context.Context, tx *gorm.DB, intensity appdomain.OfferingIntensity) ([]pendingRow, error) {
	var rows []pendingRow
	err := tx.WithContext(ctx).Raw(
		`SELECT m.id, m.msfaa_number, v.sin,
			COALESCE(o.institution_code, '') AS institution_code,
			st.birth_date, st.last_name, st.first_name, st.gender, st.marital_status,
			COALESCE(a.student_number, '') AS student_number,
			st.address_line1, st.address_line2, st.city, st.province_state,
			st.postal_code, st.country, st.phone, st.email
		 FROM msfaa_numbers m
		 JOIN students st ON st.id = m.student_id
		 JOIN sin_validations v ON v.id = st.sin_validation_id
		 LEFT JOIN applications a ON a.id = m.reference_application_id
		 LEFT JOIN student_assessments sa ON sa.id = a.current_assessment_id
		 LEFT JOIN education_program_offerings o ON o.id = sa.offering_id
		 WHERE m.date_requested IS NULL
		   AND m.cancelled_date IS NULL
		   AND m.offering_intensity = ?
		 ORDER BY m.id`,
		intensity,
	).Scan(&rows).Error
	return rows, err
}

func toRequest(row pendingRow, intensity appdomain.OfferingIntensity) Request {
	return Request{
		MSFAANumber:       row.MSFAANumber,
		SIN:               row.SIN,
		InstitutionCode:   row.InstitutionCode,
		BirthDate:         row.BirthDate,
		LastName:          row.LastName,
		GivenName:         row.FirstName,
		Gender:            row.Gender,
		MaritalStatus:     row.MaritalStatus,
		StudentNumber:     row.StudentNumber,
		AddressLine1:      row.AddressLine1,
		AddressLine2:      row.AddressLine2,
		City:              row.City,
		Province:          row.ProvinceState,
		PostalCode:        row.PostalCode,
		Country:           row.Country,
		Phone:             row.Phone,
		Email:             row.Email,
		OfferingIntensity: intensity.Code(),
	}
}

func fileCode(intensity appdomain.OfferingIntensity) string {
	if intensity == appdomain.OfferingIntensityPartTime {
		return integration.CodeMSFAAPartTime
	}
	return integration.CodeMSFAAFullTime
}

// SendRequests uploads the agreement numbers of intensity that were never
// requested and stamps their request date.
func (s *Service) SendRequests(ctx context.Context, intensity appdomain.OfferingIntensity, log *summary.Log) (integration.SendResult, error) {
	if !intensity.Valid() {
		return integration.SendResult{}, appdomain.ErrInvalidIntensity
	}
	if log == nil {
		log = summary.New(s.log, integration.MSFAA)
	}
	var result integration.SendResult

	waiting, err := s.pending(ctx, s.db, intensity)
	if err != nil {
		return result, fmt.Errorf("pending msfaa: %w", err)
	}
	if len(waiting) == 0 {
		log.Info(fmt.Sprintf("no %s MSFAA requests to send", intensity))
		return result, nil
	}

	group := sequencedomain.FileGroup("MSFAA_" + intensity.Code())
	err = s.sequences.ConsumeNextSequence(ctx, group, func(ctx context.Context, seq int64) error {
		name := integration.FileName(s.cfg.EnvironmentCode, fileCode(intensity), seq, integration.DefaultSequenceWidth, "DAT")
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rows, err := s.pending(ctx, tx, intensity)
			if err != nil {
				return err
			}
			requests := make([]Request, 0, len(rows))
			ids := make([]int64, 0, len(rows))
			for _, row := range rows {
				requests = append(requests, toRequest(row, intensity))
				ids = append(ids, row.ID)
			}

			now := s.clock.Now()
			file, err := EncodeRequests(s.cfg.Originator, seq, now, requests)
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			err = tx.WithContext(ctx).Exec(
				`UPDATE msfaa_numbers SET date_requested = ?, updated_at = ? WHERE id IN ?`,
				now, now, ids,
			).Error
			if err != nil {
				return err
			}

			remote, err := integration.Upload(ctx, s.transport, integration.MSFAA, name, file)
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

	log.Info(fmt.Sprintf("MSFAA file %s sent with %d records", result.Name, result.Records))
	return result, nil
}

// ProcessResponses records signed and cancelled agreements.
func (s *Service) ProcessResponses(ctx context.Context, log *summary.Log) (integration.InboundResult, error) {
	spec := integration.InboundSpec{
		Integration: integration.MSFAA,
		Pattern:     integration.MSFAAResponsePattern,
		Disposal:    integration.DisposalArchive,
	}
	return s.runner.Process(ctx, spec, log, s.applyResponseFile)
}

func (s *Service) applyResponseFile(ctx context.Context, file integration.InboundFile) error {
	decoded, err := DecodeResponses(file.Lines)
	if err != nil {
		return err
	}
	integration.ReportRecords(integration.MSFAA, file.Log, len(decoded.Records), decoded.Errors)

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var signed, cancelled int
		for _, record := range decoded.Records {
			r := record.Value
			var res *gorm.DB
			if r.Cancelled() {
				res = tx.WithContext(ctx).Exec(
					`UPDATE msfaa_numbers
					 SET cancelled_date = ?, new_issuing_province = ?, updated_at = ?
					 WHERE msfaa_number = ?`,
					r.CancelledDate, r.NewIssuingProvince, now, r.MSFAANumber,
				)
			} else {
				res = tx.WithContext(ctx).Exec(
					`UPDATE msfaa_numbers
					 SET date_signed = ?, service_provider_received_date = ?, updated_at = ?
					 WHERE msfaa_number = ? AND cancelled_date IS NULL`,
					r.BorrowerSignedDate, r.ServiceProviderReceivedDate, now, r.MSFAANumber,
				)
			}
			if res.Error != nil {
				return fmt.Errorf("line %d: %w", record.Line, res.Error)
			}
			if res.RowsAffected == 0 {
				file.Log.Warn("msfaa.response.unmatched",
					zap.Int("line", record.Line),
					zap.String("msfaa_number", r.MSFAANumber),
				)
				continue
			}
			if r.Cancelled() {
				cancelled++
			} else {
				signed++
			}
		}
		file.Log.Info(fmt.Sprintf("%d MSFAA signed, %d cancelled", signed, cancelled))
		return nil
	})
}
