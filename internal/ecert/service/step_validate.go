package service

import (
	"context"

	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ValidateStep re-checks the preconditions of an E-Cert against the state
// loaded for this run. Restriction amounts saved by an earlier run are
// cleared first so only restrictions active now can zero an award.
type ValidateStep struct{}

func (ValidateStep) Name() string { return "validate" }

func (ValidateStep) Execute(_ context.Context, d *domain.EligibleDisbursement, _ *gorm.DB, log *summary.Log) (bool, error) {
	for _, award := range d.Disbursement.Values {
		award.ClearRestriction()
	}

	if !d.HasValidSIN {
		log.Warn("ecert.validate.invalid_sin")
		return d.Block(domain.ReasonInvalidSIN), nil
	}
	if d.MSFAA == nil || d.MSFAA.DateSigned == nil {
		log.Warn("ecert.validate.msfaa_not_signed")
		return d.Block(domain.ReasonMSFAANotSigned), nil
	}
	if d.MSFAA.CancelledDate != nil {
		log.Warn("ecert.validate.msfaa_cancelled", zap.String("msfaa_number", d.MSFAA.MSFAANumber))
		return d.Block(domain.ReasonMSFAACancelled), nil
	}

	stop := restrictiondomain.FirstByActionType(d.EffectiveRestrictions(), restrictiondomain.StopDisbursementAction(d.Intensity))
	if stop != nil {
		log.Warn("ecert.validate.stop_disbursement_restriction", zap.String("restriction_code", stop.Code))
		return d.Block(domain.ReasonStopDisbursement), nil
	}

	if d.Student != nil && !d.Student.DisabilityStatus.Eligible() {
		for _, code := range disbursementdomain.DisabilityGrantCodes {
			award := d.Disbursement.ValueByCode(code)
			if award != nil && award.ValueAmount.IsPositive() {
				log.Warn("ecert.validate.disability_not_confirmed",
					zap.String("value_code", code),
					zap.String("disability_status", string(d.Student.DisabilityStatus)),
				)
				return d.Block(domain.ReasonDisabilityNotConfirmed), nil
			}
		}
	}
	return true, nil
}
