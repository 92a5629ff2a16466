package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RestrictionApplicationStep zeroes the award types a stop funding
// restriction covers for the disbursement's intensity.
type RestrictionApplicationStep struct{}

func (RestrictionApplicationStep) Name() string { return "restriction_application" }

func (RestrictionApplicationStep) Execute(_ context.Context, d *domain.EligibleDisbursement, _ *gorm.DB, log *summary.Log) (bool, error) {
	conditions := restrictiondomain.ConditionContext{}
	if d.Offering != nil {
		conditions.AviationCredentialType = d.Offering.AviationCredentialType
	}

	for _, restriction := range d.EffectiveRestrictions() {
		if !restrictiondomain.ConditionsSatisfied(restriction.EffectiveConditions, conditions) {
			continue
		}
		for _, action := range restrictiondomain.StopFundingActions(d.Intensity) {
			if !restriction.HasAction(action) {
				continue
			}
			for _, award := range d.Disbursement.ValuesOfType(restrictiondomain.AffectedValueTypes(action)...) {
				if !award.EffectiveAmount.IsPositive() {
					continue
				}
				restrictionID := restriction.RestrictionID
				award.RestrictionAmountSubtracted = award.EffectiveAmount
				award.RestrictionSubtractedID = &restrictionID
				award.EffectiveAmount = decimal.Zero

				log.Info(fmt.Sprintf("%s zeroed by restriction %s", award.ValueCode, restriction.Code),
					zap.String("value_code", award.ValueCode),
					zap.String("restriction_code", restriction.Code),
					zap.String("action", string(action)),
					zap.String("subtracted", award.RestrictionAmountSubtracted.String()),
				)
			}
		}
	}
	return true, nil
}
