package repository

import (
	"context"
	"time"

	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"gorm.io/gorm"
)

const maxInParams = 500

type repo struct {
	disbursements disbursementdomain.Repository
}

func Provide(disbursements disbursementdomain.Repository) domain.EligibilityRepository {
	return &repo{disbursements: disbursements}
}

type eligibleRow struct {
	ScheduleID        int64
	StudentID         int64
	ApplicationID     int64
	ApplicationNumber string
	StudentNumber     string
	AssessmentID      int64
	OfferingID        int64
	MSFAAID           int64
	SIN               string
	IsValidSIN        bool
}

// EligibleDisbursements returns pending schedules due by limitDate whose
// application, enrolment, SIN and MSFAA allow an E-Cert. Restrictions are
// resolved by the caller because bypasses are per application.
func (r *repo) EligibleDisbursements(ctx context.Context, db *gorm.DB, intensity appdomain.OfferingIntensity, limitDate time.Time) ([]*domain.StudentDisbursements, error) {
	if !intensity.Valid() {
		return nil, domain.ErrInvalidIntensity
	}

	var rows []eligibleRow
	err := db.WithContext(ctx).Raw(
		`SELECT ds.id AS schedule_id,
		        a.student_id AS student_id,
		        a.id AS application_id,
		        a.application_number AS application_number,
		        a.student_number AS student_number,
		        sa.id AS assessment_id,
		        sa.offering_id AS offering_id,
		        m.id AS msfaa_id,
		        sv.sin AS sin,
		        sv.is_valid_sin AS is_valid_sin
		 FROM disbursement_schedules ds
		 JOIN student_assessments sa ON sa.id = ds.student_assessment_id
		 JOIN applications a ON a.id = sa.application_id AND a.current_assessment_id = sa.id
		 JOIN education_program_offerings o ON o.id = sa.offering_id
		 JOIN students s ON s.id = a.student_id
		 JOIN sin_validations sv ON sv.id = s.sin_validation_id
		 JOIN msfaa_numbers m ON m.id = ds.msfaa_number_id
		 WHERE ds.date_sent IS NULL
		   AND ds.disbursement_schedule_status = ?
		   AND ds.coe_status = ?
		   AND ds.disbursement_date <= ?
		   AND a.status = ?
		   AND o.intensity = ?
		   AND sv.is_valid_sin = ?
		   AND m.date_signed IS NOT NULL
		   AND m.cancelled_date IS NULL
		 ORDER BY a.student_id ASC, ds.disbursement_date ASC, ds.id ASC`,
		disbursementdomain.ScheduleStatusPending,
		disbursementdomain.COEStatusCompleted,
		limitDate,
		appdomain.ApplicationStatusCompleted,
		intensity,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var scheduleIDs, studentIDs, offeringIDs, msfaaIDs []int64
	for _, row := range rows {
		scheduleIDs = append(scheduleIDs, row.ScheduleID)
		studentIDs = append(studentIDs, row.StudentID)
		offeringIDs = append(offeringIDs, row.OfferingID)
		msfaaIDs = append(msfaaIDs, row.MSFAAID)
	}

	schedules, err := r.disbursements.FindByIDs(ctx, db, scheduleIDs)
	if err != nil {
		return nil, err
	}
	students, err := findByIDs[studentdomain.Student](ctx, db, unique(studentIDs), func(s *studentdomain.Student) int64 { return s.ID })
	if err != nil {
		return nil, err
	}
	offerings, err := findByIDs[appdomain.Offering](ctx, db, unique(offeringIDs), func(o *appdomain.Offering) int64 { return o.ID })
	if err != nil {
		return nil, err
	}
	agreements, err := findByIDs[appdomain.MSFAANumber](ctx, db, unique(msfaaIDs), func(m *appdomain.MSFAANumber) int64 { return m.ID })
	if err != nil {
		return nil, err
	}
	scheduleByID := make(map[int64]*disbursementdomain.Schedule, len(schedules))
	for _, s := range schedules {
		scheduleByID[s.ID] = s
	}

	var (
		out     []*domain.StudentDisbursements
		current *domain.StudentDisbursements
	)
	for _, row := range rows {
		student, ok := students[row.StudentID]
		if !ok {
			return nil, domain.ErrStudentMissing
		}
		schedule, ok := scheduleByID[row.ScheduleID]
		if !ok {
			return nil, disbursementdomain.ErrScheduleNotFound
		}
		if current == nil || current.StudentID != row.StudentID {
			current = &domain.StudentDisbursements{StudentID: row.StudentID}
			out = append(out, current)
		}
		current.Disbursements = append(current.Disbursements, &domain.EligibleDisbursement{
			StudentID:         row.StudentID,
			ApplicationID:     row.ApplicationID,
			ApplicationNumber: row.ApplicationNumber,
			StudentNumber:     row.StudentNumber,
			AssessmentID:      row.AssessmentID,
			Intensity:         intensity,
			HasValidSIN:       row.IsValidSIN,
			SIN:               row.SIN,
			Student:           student,
			Offering:          offerings[row.OfferingID],
			MSFAA:             agreements[row.MSFAAID],
			Disbursement:      schedule,
		})
	}
	return out, nil
}

func findByIDs[T any](ctx context.Context, db *gorm.DB, ids []int64, key func(*T) int64) (map[int64]*T, error) {
	out := make(map[int64]*T, len(ids))
	for start := 0; start < len(ids); start += maxInParams {
		end := min(start+maxInParams, len(ids))
		var page []*T
		if err := db.WithContext(ctx).Where("id IN ?", ids[start:end]).Find(&page).Error; err != nil {
			return nil, err
		}
		for _, item := range page {
			out[key(item)] = item
		}
	}
	return out, nil
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
