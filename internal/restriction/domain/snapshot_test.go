package domain

import (
	"testing"

	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRefreshIsVisibleToHolders(t *testing.T) {
	snapshot := NewSnapshot(nil)
	held := snapshot

	snapshot.Refresh([]ActiveRestriction{{StudentRestrictionID: 1, Code: CodeBCLoanLifetimeMaximum, ActionTypes: []ActionType{ActionStopFullTimeBCLoan}}})

	require.Len(t, held.Items(), 1)
	assert.NotNil(t, FirstByCode(held.Items(), CodeBCLoanLifetimeMaximum))
	assert.NotNil(t, FirstByActionType(held.Items(), StopFundingActions(appdomain.OfferingIntensityFullTime)...))
	assert.Nil(t, FirstByActionType(held.Items(), StopFundingActions(appdomain.OfferingIntensityPartTime)...))
}

func TestEffectiveHonoursSingleUseBypass(t *testing.T) {
	items := []ActiveRestriction{
		{StudentRestrictionID: 1, Code: "SSR"},
		{StudentRestrictionID: 2, Code: "B6A"},
	}
	single := &Bypass{StudentRestrictionID: 1, Behavior: BypassNextDisbursementOnly}
	bypasses := []*Bypass{single}

	effective := Effective(items, bypasses)
	require.Len(t, effective, 1)
	assert.Equal(t, "B6A", effective[0].Code)

	single.Consumed = true
	assert.Len(t, Effective(items, bypasses), 2)

	always := &Bypass{StudentRestrictionID: 2, Behavior: BypassAllDisbursements, Consumed: true}
	assert.True(t, always.Applies())
}

func TestAffectedValueTypes(t *testing.T) {
	assert.ElementsMatch(t,
		[]disbursementdomain.ValueType{disbursementdomain.ValueTypeBCLoan, disbursementdomain.ValueTypeBCGrant},
		AffectedValueTypes(ActionStopFullTimeBCFunding))
	assert.Equal(t, []disbursementdomain.ValueType{disbursementdomain.ValueTypeBCGrant}, AffectedValueTypes(ActionStopPartTimeBCFunding))
	assert.Nil(t, AffectedValueTypes(ActionStopFullTimeDisbursement))
}

func TestConditionsSatisfied(t *testing.T) {
	assert.True(t, ConditionsSatisfied(nil, ConditionContext{}))
	assert.True(t, ConditionsSatisfied(map[string]any{
		ConditionAviationCredentialTypes: []any{"instructorsRating", "commercialPilotTraining"},
	}, ConditionContext{AviationCredentialType: "instructorsRating"}))
	assert.False(t, ConditionsSatisfied(map[string]any{"unknown": true}, ConditionContext{}))
}
