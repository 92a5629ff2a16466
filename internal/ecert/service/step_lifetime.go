package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	"github.com/smallbiznis/sims/pkg/money"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LifetimeMaximumStep trims the provincial loan to what is left of the
// student's lifetime maximum and flags the student with a BCLM restriction.
type LifetimeMaximumStep struct {
	restrictions restrictiondomain.Service
}

func NewLifetimeMaximumStep(restrictions restrictiondomain.Service) *LifetimeMaximumStep {
	return &LifetimeMaximumStep{restrictions: restrictions}
}

func (s *LifetimeMaximumStep) Name() string { return "lifetime_maximum" }

func (s *LifetimeMaximumStep) Execute(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log) (bool, error) {
	award := d.Disbursement.ValueByCode(disbursementdomain.AwardBCSL)
	if award == nil || !award.EffectiveAmount.IsPositive() {
		return true, nil
	}

	legacy, err := legacyBCSL(ctx, tx, d.StudentID)
	if err != nil {
		return false, err
	}
	disbursed, err := disbursedTotal(ctx, tx, d.StudentID, d.Disbursement.ID, disbursementdomain.AwardBCSL, time.Time{})
	if err != nil {
		return false, err
	}
	if legacy.Add(disbursed).Add(award.EffectiveAmount).LessThanOrEqual(d.MaxLifetimeBCLoanAmount) {
		return true, nil
	}

	allowed := money.NonNegative(d.MaxLifetimeBCLoanAmount.Sub(legacy).Sub(disbursed))
	removed := award.EffectiveAmount.Sub(allowed)
	award.EffectiveAmount = allowed
	award.RestrictionAmountSubtracted = award.RestrictionAmountSubtracted.Add(removed)

	applicationID := d.ApplicationID
	created, err := s.restrictions.CreateStudentRestriction(ctx, tx, restrictiondomain.CreateRequest{
		StudentID:     d.StudentID,
		ApplicationID: &applicationID,
		Code:          restrictiondomain.CodeBCLoanLifetimeMaximum,
		Note:          "BC loan lifetime maximum reached while calculating the E-Cert.",
	}, d.Bypasses)
	if err != nil {
		return false, fmt.Errorf("create lifetime maximum restriction: %w", err)
	}
	if created {
		items, err := s.restrictions.ActiveRestrictions(ctx, tx, d.StudentID)
		if err != nil {
			return false, err
		}
		d.Restrictions.Refresh(items)
	}
	if r := restrictiondomain.FirstByCode(d.Restrictions.Items(), restrictiondomain.CodeBCLoanLifetimeMaximum); r != nil {
		restrictionID := r.RestrictionID
		award.RestrictionSubtractedID = &restrictionID
	}

	log.Warn("ecert.lifetime.bc_loan_reduced",
		zap.String("legacy", legacy.String()),
		zap.String("disbursed", disbursed.String()),
		zap.String("removed", removed.String()),
		zap.String("effective", allowed.String()),
		zap.Bool("restriction_created", created),
	)
	return true, nil
}

// CSLPLifetimeGateStep stops a part-time disbursement whose federal loan would
// push the student's reported balance past the lifetime maximum.
type CSLPLifetimeGateStep struct {
	maximum decimal.Decimal
}

func NewCSLPLifetimeGateStep(maximum decimal.Decimal) *CSLPLifetimeGateStep {
	return &CSLPLifetimeGateStep{maximum: maximum}
}

func (s *CSLPLifetimeGateStep) Name() string { return "cslp_lifetime_gate" }

func (s *CSLPLifetimeGateStep) Execute(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log) (bool, error) {
	award := d.Disbursement.ValueByCode(disbursementdomain.AwardCSLP)
	if award == nil || !award.EffectiveAmount.IsPositive() {
		return true, nil
	}

	var latest struct {
		CSLBalance  decimal.Decimal
		BalanceDate time.Time
	}
	result := tx.WithContext(ctx).
		Table("student_loan_balances").
		Select("csl_balance, balance_date").
		Where("student_id = ?", d.StudentID).
		Order("balance_date desc").
		Limit(1).
		Scan(&latest)
	if result.Error != nil {
		return false, result.Error
	}

	pending, err := disbursedTotal(ctx, tx, d.StudentID, d.Disbursement.ID, disbursementdomain.AwardCSLP, latest.BalanceDate)
	if err != nil {
		return false, err
	}
	total := latest.CSLBalance.Add(pending).Add(award.EffectiveAmount)
	if total.LessThanOrEqual(s.maximum) {
		return true, nil
	}

	log.Warn("ecert.lifetime.cslp_maximum_exceeded",
		zap.String("balance", latest.CSLBalance.String()),
		zap.String("pending", pending.String()),
		zap.String("requested", award.EffectiveAmount.String()),
		zap.String("maximum", s.maximum.String()),
	)
	return d.Block(domain.ReasonCSLPLifetimeMaximum), nil
}

func legacyBCSL(ctx context.Context, tx *gorm.DB, studentID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_bcsl), 0) FROM legacy_loan_totals WHERE student_id = ?`,
		studentID,
	).Row().Scan(&total)
	return total, err
}

// disbursedTotal sums code across the student's other disbursements that are
// ready to send, or were sent after sentAfter.
func disbursedTotal(ctx context.Context, tx *gorm.DB, studentID, excludeScheduleID int64, code string, sentAfter time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(dv.effective_amount), 0)
		 FROM disbursement_values dv
		 JOIN disbursement_schedules ds ON ds.id = dv.disbursement_schedule_id
		 JOIN student_assessments sa ON sa.id = ds.student_assessment_id
		 JOIN applications a ON a.id = sa.application_id
		 WHERE a.student_id = ?
		   AND dv.value_code = ?
		   AND ds.id <> ?
		   AND (ds.disbursement_schedule_status = ?
		        OR (ds.disbursement_schedule_status = ? AND ds.date_sent > ?))`,
		studentID,
		code,
		excludeScheduleID,
		disbursementdomain.ScheduleStatusReadyToSend,
		disbursementdomain.ScheduleStatusSent,
		sentAfter.UTC(),
	).Row().Scan(&total)
	return total, err
}
