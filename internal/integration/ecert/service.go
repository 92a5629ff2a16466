package ecert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/integration"
	sequencedomain "github.com/smallbiznis/sims/internal/sequence/domain"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
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
	Config        config.Config
	Transport     integration.Transport
	Runner        *integration.InboundRunner
	Sequences     sequencedomain.Service
	Disbursements disbursementdomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	cfg           config.IntegrationConfig
	transport     integration.Transport
	runner        *integration.InboundRunner
	sequences     sequencedomain.Service
	disbursements disbursementdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("ecert.integration"),
		genID:         p.GenID,
		clock:         p.Clock,
		cfg:           p.Config.Integration,
		transport:     p.Transport,
		runner:        p.Runner,
		sequences:     p.Sequences,
		disbursements: p.Disbursements,
	}
}

func integrationName(intensity appdomain.OfferingIntensity) string {
	if intensity == appdomain.OfferingIntensityPartTime {
		return integration.ECertPartTime
	}
	return integration.ECertFullTime
}

func fileCode(intensity appdomain.OfferingIntensity) string {
	if intensity == appdomain.OfferingIntensityPartTime {
		return integration.CodeECertPartTime
	}
	return integration.CodeECertFullTime
}

type readyRow struct {
	ScheduleID                       int64
	DocumentNumber                   int64
	DisbursementDate                 time.Time
	NegotiatedExpiryDate             time.Time
	COEUpdatedAt                     *time.Time
	TuitionRemittanceEffectiveAmount decimal.Decimal
	ApplicationNumber                string
	StudentNumber                    string
	SIN                              string
	FirstName                        string
	LastName                         string
	BirthDate                        time.Time
	Gender                           string
	MaritalStatus                    string
	AddressLine1                     string
	AddressLine2                     string
	City                             string
	ProvinceState                    string
	PostalCode                       string
	Country                          string
	Phone                            string
	Email                            string
	DisabilityStatus                 studentdomain.DisabilityStatus
	InstitutionCode                  string
	StudyStartDate                   time.Time
	StudyEndDate                     time.Time
	WeeksOfStudy                     int
	FieldOfStudy                     int
	YearOfStudy                      int
	CompletionYears                  int
	CourseLoad                       int
}

func (s *Service) ready(ctx context.Context, tx *gorm.DB, intensity appdomain.OfferingIntensity) ([]readyRow, error) {
	var rows []readyRow
	err := tx.WithContext(ctx).Raw(
		`SELECT ds.id AS schedule_id, ds.document_number, ds.disbursement_date,
			ds.negotiated_expiry_date, ds.coe_updated_at, ds.tuition_remittance_effective_amount,
			a.application_number, a.student_number, v.sin,
			st.first_name, st.last_name, st.birth_date, st.gender, st.marital_status,
			st.address_line1, st.address_line2, st.city, st.province_state,
			st.postal_code, st.country, st.phone, st.email, st.disability_status,
			o.institution_code, o.study_start_date, o.study_end_date, o.weeks_of_study,
			o.field_of_study, o.year_of_study, o.completion_years, o.course_load
		 FROM disbursement_schedules ds
		 JOIN student_assessments sa ON sa.id = ds.student_assessment_id
		 JOIN applications a ON a.id = sa.application_id
		 JOIN education_program_offerings o ON o.id = sa.offering_id
		 JOIN students st ON st.id = a.student_id
		 JOIN sin_validations v ON v.id = st.sin_validation_id
		 WHERE ds.disbursement_schedule_status = ?
		   AND ds.document_number IS NOT NULL
		   AND o.intensity = ?
		 ORDER BY ds.document_number`,
		disbursementdomain.ScheduleStatusReadyToSend, intensity,
	).Scan(&rows).Error
	return rows, err
}

func wholeDollars(v *disbursementdomain.Value) int64 {
	if v == nil {
		return 0
	}
	return v.EffectiveAmount.Round(0).IntPart()
}

// grants lists the federal grants followed by the provincial total, in the
// order the awards were declared.
func grants(schedule *disbursementdomain.Schedule) []Grant {
	var out []Grant
	for _, v := range schedule.ValuesOfType(disbursementdomain.ValueTypeCanadaGrant, disbursementdomain.ValueTypeBCTotalGrant) {
		out = append(out, Grant{Code: v.ValueCode, Amount: wholeDollars(v)})
	}
	return out
}

func toRecord(row readyRow, schedule *disbursementdomain.Schedule, intensity appdomain.OfferingIntensity, now time.Time) Record {
	r := Record{
		SIN:                  row.SIN,
		ApplicationNumber:    row.ApplicationNumber,
		DocumentNumber:       row.DocumentNumber,
		DisbursementDate:     row.DisbursementDate,
		DocumentProducedDate: now,
		NegotiatedExpiryDate: row.NegotiatedExpiryDate,
		SchoolAmount:         row.TuitionRemittanceEffectiveAmount.Round(0).IntPart(),
		Grants:               grants(schedule),
		StudyStartDate:       row.StudyStartDate,
		StudyEndDate:         row.StudyEndDate,
		InstitutionCode:      row.InstitutionCode,
		WeeksOfStudy:         row.WeeksOfStudy,
		FieldOfStudy:         row.FieldOfStudy,
		YearOfStudy:          row.YearOfStudy,
		CompletionYears:      row.CompletionYears,
		CourseLoad:           row.CourseLoad,
		BirthDate:            row.BirthDate,
		LastName:             row.LastName,
		FirstName:            row.FirstName,
		AddressLine1:         row.AddressLine1,
		AddressLine2:         row.AddressLine2,
		City:                 row.City,
		Country:              row.Country,
		PostalCode:           row.PostalCode,
		ProvinceState:        row.ProvinceState,
		Gender:               row.Gender,
		MaritalStatus:        row.MaritalStatus,
		StudentNumber:        row.StudentNumber,
		Phone:                row.Phone,
		Email:                row.Email,
		PPD:                  row.DisabilityStatus.Eligible(),
	}
	if row.COEUpdatedAt != nil {
		r.EnrollmentConfirmationDate = *row.COEUpdatedAt
	}
	if intensity == appdomain.OfferingIntensityPartTime {
		r.FederalLoan = wholeDollars(schedule.ValueByCode(disbursementdomain.AwardCSLP))
	} else {
		r.FederalLoan = wholeDollars(schedule.ValueByCode(disbursementdomain.AwardCSLF))
		r.ProvincialLoan = wholeDollars(schedule.ValueByCode(disbursementdomain.AwardBCSL))
	}
	return r
}

func (s *Service) records(ctx context.Context, tx *gorm.DB, intensity appdomain.OfferingIntensity, now time.Time) ([]Record, []int64, error) {
	rows, err := s.ready(ctx, tx, intensity)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ScheduleID)
	}
	schedules, err := s.disbursements.FindByIDs(ctx, tx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int64]*disbursementdomain.Schedule, len(schedules))
	for _, schedule := range schedules {
		byID[schedule.ID] = schedule
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		schedule, ok := byID[row.ScheduleID]
		if !ok {
			return nil, nil, fmt.Errorf("schedule %d: %w", row.ScheduleID, disbursementdomain.ErrScheduleNotFound)
		}
		records = append(records, toRecord(row, schedule, intensity, now))
	}
	return records, ids, nil
}

func encode(intensity appdomain.OfferingIntensity, originator string, batch int64, now time.Time, records []Record) (*fixedwidth.File, error) {
	if intensity == appdomain.OfferingIntensityPartTime {
		return EncodePartTime(originator, batch, now, records)
	}
	return EncodeFullTime(originator, batch, now, records)
}

// SendECerts uploads every ready-to-send disbursement of intensity. The
// schedules only become sent when the upload succeeds.
func (s *Service) SendECerts(ctx context.Context, intensity appdomain.OfferingIntensity, log *summary.Log) (integration.SendResult, error) {
	if !intensity.Valid() {
		return integration.SendResult{}, appdomain.ErrInvalidIntensity
	}
	name := integrationName(intensity)
	if log == nil {
		log = summary.New(s.log, name)
	}
	var result integration.SendResult

	waiting, err := s.ready(ctx, s.db, intensity)
	if err != nil {
		return result, fmt.Errorf("ready disbursements: %w", err)
	}
	if len(waiting) == 0 {
		log.Info(fmt.Sprintf("no %s disbursements ready to send", intensity))
		return result, nil
	}

	group := sequencedomain.FileGroup("ECERT_" + intensity.Code() + "T")
	err = s.sequences.ConsumeNextSequence(ctx, group, func(ctx context.Context, seq int64) error {
		fileName := integration.FileName(s.cfg.EnvironmentCode, fileCode(intensity), seq, integration.DefaultSequenceWidth, "DAT")
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.clock.Now()
			records, ids, err := s.records(ctx, tx, intensity, now)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}
			file, err := encode(intensity, s.cfg.Originator, seq, now, records)
			if err != nil {
				return fmt.Errorf("encode %s: %w", fileName, err)
			}
			if err := s.disbursements.MarkSent(ctx, tx, ids, now); err != nil {
				return err
			}

			remote, err := integration.Upload(ctx, s.transport, name, fileName, file)
			if err != nil {
				return err
			}
			result = integration.SendResult{Name: fileName, RemotePath: remote, Records: len(records)}
			return nil
		})
	})
	if err != nil {
		return integration.SendResult{}, err
	}

	log.Info(fmt.Sprintf("E-Cert file %s sent with %d disbursements", result.Name, result.Records))
	return result, nil
}

// ProcessFeedback records the errors reported for sent E-Certs of intensity.
func (s *Service) ProcessFeedback(ctx context.Context, intensity appdomain.OfferingIntensity, log *summary.Log) (integration.InboundResult, error) {
	if !intensity.Valid() {
		return integration.InboundResult{}, appdomain.ErrInvalidIntensity
	}
	spec := integration.InboundSpec{
		Integration: integration.ECertFeedback,
		Pattern:     integration.ECertFullTimeFeedbackPattern,
		Disposal:    integration.DisposalArchive,
	}
	if intensity == appdomain.OfferingIntensityPartTime {
		spec.Pattern = integration.ECertPartTimeFeedbackPattern
	}
	return s.runner.Process(ctx, spec, log, s.applyFeedbackFile)
}

func (s *Service) applyFeedbackFile(ctx context.Context, file integration.InboundFile) error {
	decoded, err := DecodeFeedback(file.Lines)
	if err != nil {
		return err
	}
	integration.ReportRecords(integration.ECertFeedback, file.Log, len(decoded.Records), decoded.Errors)

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recorded := 0
		for _, record := range decoded.Records {
			f := record.Value
			schedule, err := s.disbursements.FindByDocumentNumber(ctx, tx, f.DocumentNumber)
			if errors.Is(err, disbursementdomain.ErrDocumentNotFound) {
				file.Log.Warn("ecert.feedback.document_not_found",
					zap.Int("line", record.Line),
					zap.Int64("document_number", f.DocumentNumber),
				)
				continue
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", record.Line, err)
			}
			for _, code := range f.ErrorCodes {
				inserted, err := s.disbursements.InsertFeedbackError(ctx, tx, &disbursementdomain.FeedbackError{
					ID:                     s.genID.Generate().Int64(),
					DisbursementScheduleID: schedule.ID,
					ErrorCode:              code,
					DateReceived:           now,
					CreatedAt:              now,
				})
				if err != nil {
					return fmt.Errorf("line %d: %w", record.Line, err)
				}
				if inserted {
					recorded++
				}
			}
		}
		file.Log.Info(fmt.Sprintf("%d E-Cert feedback errors recorded", recorded))
		return nil
	})
}
