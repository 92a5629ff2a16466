package service

import (
	"context"

	"github.com/smallbiznis/sims/internal/ecert/domain"
	"github.com/smallbiznis/sims/pkg/money"
	"github.com/smallbiznis/sims/pkg/summary"
	"gorm.io/gorm"
)

// EffectiveValueStep computes what each award pays after earlier
// disbursements and overaward recovery, in whole dollars.
type EffectiveValueStep struct{}

func (EffectiveValueStep) Name() string { return "effective_value" }

func (EffectiveValueStep) Execute(_ context.Context, d *domain.EligibleDisbursement, _ *gorm.DB, _ *summary.Log) (bool, error) {
	for _, award := range d.Disbursement.Values {
		award.EffectiveAmount = money.NonNegative(money.Whole(award.ValueAmount.
			Sub(award.DisbursedAmountSubtracted).
			Sub(award.OverawardAmountSubtracted)))
	}
	return true, nil
}
