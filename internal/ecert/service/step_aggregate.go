package service

import (
	"context"

	"github.com/shopspring/decimal"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"gorm.io/gorm"
)

// AggregateGrantStep adds the BCSG line carrying the total of the
// provincial grants, even when the total is zero.
type AggregateGrantStep struct{}

func (AggregateGrantStep) Name() string { return "aggregate_grant" }

func (AggregateGrantStep) Execute(_ context.Context, d *domain.EligibleDisbursement, _ *gorm.DB, _ *summary.Log) (bool, error) {
	total := decimal.Zero
	for _, code := range disbursementdomain.AggregatedGrantCodes {
		if award := d.Disbursement.ValueByCode(code); award != nil {
			total = total.Add(award.EffectiveAmount)
		}
	}

	if existing := d.Disbursement.ValueByCode(disbursementdomain.AwardBCSG); existing != nil {
		existing.ValueAmount = total
		existing.EffectiveAmount = total
		return true, nil
	}
	d.Disbursement.Values = append(d.Disbursement.Values, &disbursementdomain.Value{
		DisbursementScheduleID: d.Disbursement.ID,
		ValueType:              disbursementdomain.ValueTypeBCTotalGrant,
		ValueCode:              disbursementdomain.AwardBCSG,
		ValueAmount:            total,
		EffectiveAmount:        total,
	})
	return true, nil
}
