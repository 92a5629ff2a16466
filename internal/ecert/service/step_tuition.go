package service

import (
	"context"

	"github.com/shopspring/decimal"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	"github.com/smallbiznis/sims/pkg/money"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TuitionRemittanceCapStep limits what goes straight to the institution to
// the offering costs not yet remitted for the assessment and to the awards
// actually paid by this disbursement.
type TuitionRemittanceCapStep struct{}

func (TuitionRemittanceCapStep) Name() string { return "tuition_remittance_cap" }

func (TuitionRemittanceCapStep) Execute(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log) (bool, error) {
	schedule := d.Disbursement
	requested := schedule.TuitionRemittanceRequestedAmount
	if !requested.IsPositive() {
		schedule.TuitionRemittanceEffectiveAmount = decimal.Zero
		return true, nil
	}

	var prior decimal.Decimal
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(tuition_remittance_effective_amount), 0)
		 FROM disbursement_schedules
		 WHERE student_assessment_id = ? AND id <> ? AND disbursement_schedule_status IN ?`,
		schedule.StudentAssessmentID,
		schedule.ID,
		[]disbursementdomain.ScheduleStatus{disbursementdomain.ScheduleStatusReadyToSend, disbursementdomain.ScheduleStatusSent},
	).Row().Scan(&prior)
	if err != nil {
		return false, err
	}

	var costs decimal.Decimal
	if d.Offering != nil {
		costs = d.Offering.TuitionCap()
	}
	var awards decimal.Decimal
	for _, award := range schedule.Values {
		if award.ValueType == disbursementdomain.ValueTypeBCTotalGrant {
			continue
		}
		awards = awards.Add(award.EffectiveAmount)
	}

	effective := money.Whole(money.Min(requested, money.NonNegative(costs.Sub(prior)), awards))
	schedule.TuitionRemittanceEffectiveAmount = effective
	if effective.LessThan(requested) {
		log.Warn("ecert.tuition_remittance.reduced",
			zap.String("requested", requested.String()),
			zap.String("effective", effective.String()),
			zap.String("prior_remittance", prior.String()),
		)
	}
	return true, nil
}
