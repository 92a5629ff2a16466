package service

import (
	"context"
	"errors"
	"strconv"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sims/internal/audit/domain"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/restriction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	sinLookupChunk        = 500
	federalResolutionNote = "Resolved by federal restriction snapshot."
	federalCreationNote   = "Added by federal restriction snapshot."
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Audit auditdomain.Service
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	audit auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("restriction.service"),
		genID: p.GenID,
		clock: p.Clock,
		audit: p.Audit,
	}
}

type activeRestrictionRow struct {
	StudentRestrictionID int64
	RestrictionID        int64
	Code                 string
	ActionTypes          datatypes.JSONSlice[domain.ActionType]
	EffectiveConditions  datatypes.JSONMap
}

func (s *Service) ActiveRestrictions(ctx context.Context, tx *gorm.DB, studentID int64) ([]domain.ActiveRestriction, error) {
	var rows []activeRestrictionRow
	err := tx.WithContext(ctx).Raw(
		`SELECT sr.id AS student_restriction_id, r.id AS restriction_id, r.code,
			r.action_types, r.effective_conditions
		 FROM student_restrictions sr
		 JOIN restrictions r ON r.id = sr.restriction_id
		 WHERE sr.student_id = ? AND sr.is_active = ?
		 ORDER BY sr.created_at, sr.id`,
		studentID, true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.ActiveRestriction, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ActiveRestriction{
			StudentRestrictionID: row.StudentRestrictionID,
			RestrictionID:        row.RestrictionID,
			Code:                 row.Code,
			ActionTypes:          []domain.ActionType(row.ActionTypes),
			EffectiveConditions:  map[string]any(row.EffectiveConditions),
		})
	}
	return out, nil
}

func (s *Service) ActiveBypasses(ctx context.Context, tx *gorm.DB, applicationID int64) ([]*domain.Bypass, error) {
	var bypasses []*domain.Bypass
	err := tx.WithContext(ctx).Raw(
		`SELECT b.id, b.student_restriction_id, r.code AS restriction_code,
			b.bypass_behavior AS behavior
		 FROM application_restriction_bypasses b
		 JOIN student_restrictions sr ON sr.id = b.student_restriction_id
		 JOIN restrictions r ON r.id = sr.restriction_id
		 WHERE b.application_id = ? AND b.is_active = ?
		 ORDER BY b.id`,
		applicationID, true,
	).Scan(&bypasses).Error
	if err != nil {
		return nil, err
	}
	return bypasses, nil
}

func (s *Service) CreateStudentRestriction(ctx context.Context, tx *gorm.DB, req domain.CreateRequest, bypasses []*domain.Bypass) (bool, error) {
	for _, b := range bypasses {
		if b.RestrictionCode == req.Code && b.Applies() {
			return false, nil
		}
	}

	var restriction domain.Restriction
	err := tx.WithContext(ctx).Where("code = ?", req.Code).First(&restriction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, domain.ErrRestrictionNotFound
	}
	if err != nil {
		return false, err
	}

	var existing int64
	err = tx.WithContext(ctx).Model(&domain.StudentRestriction{}).
		Where("student_id = ? AND restriction_id = ? AND is_active = ?", req.StudentID, restriction.ID, true).
		Count(&existing).Error
	if err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	now := s.clock.Now()
	entry := domain.StudentRestriction{
		ID:            s.genID.Generate().Int64(),
		StudentID:     req.StudentID,
		ApplicationID: req.ApplicationID,
		RestrictionID: restriction.ID,
		IsActive:      true,
		CreationNote:  req.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return false, err
	}

	s.log.Info("restriction.created",
		zap.Int64("student_id", req.StudentID),
		zap.String("code", req.Code),
		zap.Int64("student_restriction_id", entry.ID),
	)
	return true, nil
}

func (s *Service) DeactivateBypass(ctx context.Context, tx *gorm.DB, bypass *domain.Bypass, note string) error {
	now := s.clock.Now()
	result := tx.WithContext(ctx).Exec(
		`UPDATE application_restriction_bypasses
		 SET is_active = ?, removal_note = ?, removed_at = ?, updated_at = ?
		 WHERE id = ? AND is_active = ?`,
		false, note, now, now, bypass.ID, true,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrBypassNotFound
	}

	targetID := strconv.FormatInt(bypass.ID, 10)
	if err := s.audit.AuditLog(ctx, tx, "restriction_bypass.removed", "application_restriction_bypass", &targetID, map[string]any{
		"restriction_code": bypass.RestrictionCode,
		"behavior":         string(bypass.Behavior),
		"note":             note,
	}); err != nil {
		return err
	}

	bypass.Consumed = true
	return nil
}

type studentSIN struct {
	StudentID int64
	SIN       string
}

type activeFederal struct {
	ID            int64
	StudentID     int64
	RestrictionID int64
}

type restrictionKey struct {
	studentID     int64
	restrictionID int64
}

// ReconcileFederal replaces the stored snapshot and aligns the students'
// federal restrictions with it.
func (s *Service) ReconcileFederal(ctx context.Context, tx *gorm.DB, snapshot []domain.FederalRestriction) (domain.FederalReconcileResult, error) {
	var result domain.FederalReconcileResult
	now := s.clock.Now()

	if err := tx.WithContext(ctx).Exec("DELETE FROM federal_restrictions").Error; err != nil {
		return result, err
	}
	for i := range snapshot {
		snapshot[i].ID = s.genID.Generate().Int64()
		snapshot[i].CreatedAt = now
	}
	if len(snapshot) > 0 {
		if err := tx.WithContext(ctx).CreateInBatches(snapshot, sinLookupChunk).Error; err != nil {
			return result, err
		}
	}
	result.Imported = len(snapshot)

	var catalog []domain.Restriction
	if err := tx.WithContext(ctx).Where("restriction_type = ?", domain.RestrictionTypeFederal).Find(&catalog).Error; err != nil {
		return result, err
	}
	restrictionByCode := make(map[string]int64, len(catalog))
	for _, r := range catalog {
		restrictionByCode[r.Code] = r.ID
	}

	studentBySIN, err := s.studentsBySIN(ctx, tx, snapshot)
	if err != nil {
		return result, err
	}

	desired := map[restrictionKey]struct{}{}
	for _, row := range snapshot {
		restrictionID, ok := restrictionByCode[row.RestrictionCode]
		if !ok {
			result.UnknownCodes++
			continue
		}
		studentID, ok := studentBySIN[row.SIN]
		if !ok {
			result.UnmatchedSINs++
			continue
		}
		desired[restrictionKey{studentID: studentID, restrictionID: restrictionID}] = struct{}{}
	}

	var active []activeFederal
	err = tx.WithContext(ctx).Raw(
		`SELECT sr.id, sr.student_id, sr.restriction_id
		 FROM student_restrictions sr
		 JOIN restrictions r ON r.id = sr.restriction_id
		 WHERE r.restriction_type = ? AND sr.is_active = ?`,
		domain.RestrictionTypeFederal, true,
	).Scan(&active).Error
	if err != nil {
		return result, err
	}

	present := make(map[restrictionKey]struct{}, len(active))
	for _, a := range active {
		key := restrictionKey{studentID: a.StudentID, restrictionID: a.RestrictionID}
		present[key] = struct{}{}
		if _, keep := desired[key]; keep {
			continue
		}
		err := tx.WithContext(ctx).Exec(
			`UPDATE student_restrictions SET is_active = ?, resolution_note = ?, updated_at = ? WHERE id = ?`,
			false, federalResolutionNote, now, a.ID,
		).Error
		if err != nil {
			return result, err
		}
		result.Resolved++
	}

	for key := range desired {
		if _, ok := present[key]; ok {
			continue
		}
		entry := domain.StudentRestriction{
			ID:            s.genID.Generate().Int64(),
			StudentID:     key.studentID,
			RestrictionID: key.restrictionID,
			IsActive:      true,
			CreationNote:  federalCreationNote,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
			return result, err
		}
		result.Activated++
	}

	s.log.Info("restriction.federal.reconciled",
		zap.Int("imported", result.Imported),
		zap.Int("activated", result.Activated),
		zap.Int("resolved", result.Resolved),
		zap.Int("unknown_codes", result.UnknownCodes),
		zap.Int("unmatched_sins", result.UnmatchedSINs),
	)
	return result, nil
}

func (s *Service) studentsBySIN(ctx context.Context, tx *gorm.DB, snapshot []domain.FederalRestriction) (map[string]int64, error) {
	seen := map[string]struct{}{}
	sins := make([]string, 0, len(snapshot))
	for _, row := range snapshot {
		if _, ok := seen[row.SIN]; ok {
			continue
		}
		seen[row.SIN] = struct{}{}
		sins = append(sins, row.SIN)
	}

	out := make(map[string]int64, len(sins))
	for start := 0; start < len(sins); start += sinLookupChunk {
		end := min(start+sinLookupChunk, len(sins))
		var rows []studentSIN
		err := tx.WithContext(ctx).Raw(
			`SELECT s.id AS student_id, sv.sin
			 FROM students s
			 JOIN sin_validations sv ON sv.id = s.sin_validation_id
			 WHERE sv.sin IN ?`,
			sins[start:end],
		).Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.SIN] = row.StudentID
		}
	}
	return out, nil
}
