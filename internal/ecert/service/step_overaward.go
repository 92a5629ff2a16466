package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	overawarddomain "github.com/smallbiznis/sims/internal/overaward/domain"
	"github.com/smallbiznis/sims/pkg/money"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OverawardDeductionStep recovers what the student owes from loan awards and
// credits back earlier recoveries when the balance turned in their favour.
// Balances are shared across the student's disbursements so an amount that
// does not fit one award spills to the next.
type OverawardDeductionStep struct {
	overawards overawarddomain.Service
}

func NewOverawardDeductionStep(overawards overawarddomain.Service) *OverawardDeductionStep {
	return &OverawardDeductionStep{overawards: overawards}
}

func (s *OverawardDeductionStep) Name() string { return "overaward_deduction" }

func (s *OverawardDeductionStep) Execute(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log) (bool, error) {
	if d.Balances == nil {
		return true, nil
	}

	for _, award := range d.Disbursement.Values {
		if !award.ValueType.IsLoan() {
			continue
		}
		balance := d.Balances.Get(award.ValueCode)
		switch {
		case balance.IsPositive():
			if err := s.deduct(ctx, d, tx, log, award, balance); err != nil {
				return false, err
			}
		case balance.IsNegative():
			if err := s.credit(ctx, d, tx, log, award, balance.Neg()); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (s *OverawardDeductionStep) deduct(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log, award *disbursementdomain.Value, owed decimal.Decimal) error {
	code := award.ValueCode
	available := money.NonNegative(award.ValueAmount.
		Sub(award.DisbursedAmountSubtracted).
		Sub(award.OverawardAmountSubtracted))
	deducted := money.Min(owed, available)
	if !deducted.IsPositive() {
		return nil
	}

	award.OverawardAmountSubtracted = award.OverawardAmountSubtracted.Add(deducted)
	if err := s.overawards.AddEntry(ctx, tx, s.entry(d, code, deducted.Neg(), overawarddomain.OriginAwardDeducted)); err != nil {
		return fmt.Errorf("record deduction %s: %w", code, err)
	}
	d.Balances.Consume(code, deducted)

	log.Info(fmt.Sprintf("overaward deducted from %s", code),
		zap.String("value_code", code),
		zap.String("deducted", deducted.String()),
		zap.String("remaining_balance", d.Balances.Get(code).String()),
	)
	return nil
}

// credit never returns more than this award had subtracted nor more than the
// application's earlier disbursements recovered in total.
func (s *OverawardDeductionStep) credit(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log, award *disbursementdomain.Value, owedToStudent decimal.Decimal) error {
	code := award.ValueCode
	if !award.OverawardAmountSubtracted.IsPositive() {
		return nil
	}
	recovered, err := s.overawards.NetDeducted(ctx, tx, d.ApplicationID, code)
	if err != nil {
		return fmt.Errorf("net deducted %s: %w", code, err)
	}
	credited := money.Min(owedToStudent, award.OverawardAmountSubtracted, money.NonNegative(recovered))
	if !credited.IsPositive() {
		return nil
	}

	award.OverawardAmountSubtracted = award.OverawardAmountSubtracted.Sub(credited)
	if err := s.overawards.AddEntry(ctx, tx, s.entry(d, code, credited, overawarddomain.OriginAwardCredited)); err != nil {
		return fmt.Errorf("record credit %s: %w", code, err)
	}
	d.Balances.Consume(code, credited.Neg())

	log.Info(fmt.Sprintf("overaward credited to %s", code),
		zap.String("value_code", code),
		zap.String("credited", credited.String()),
	)
	return nil
}

func (s *OverawardDeductionStep) entry(d *domain.EligibleDisbursement, code string, value decimal.Decimal, origin overawarddomain.OriginType) *overawarddomain.DisbursementOveraward {
	applicationID := d.ApplicationID
	assessmentID := d.AssessmentID
	scheduleID := d.Disbursement.ID
	return &overawarddomain.DisbursementOveraward{
		StudentID:              d.StudentID,
		ApplicationID:          &applicationID,
		StudentAssessmentID:    &assessmentID,
		DisbursementScheduleID: &scheduleID,
		ValueCode:              code,
		OverawardValue:         value,
		OriginType:             origin,
	}
}
