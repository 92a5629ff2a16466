package domain

import (
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
)

// Snapshot holds a student's active restrictions. Steps share one pointer
// per student and Refresh swaps the contents so every holder sees updates.
type Snapshot struct {
	items []ActiveRestriction
}

func NewSnapshot(items []ActiveRestriction) *Snapshot {
	return &Snapshot{items: items}
}

func (s *Snapshot) Items() []ActiveRestriction {
	if s == nil {
		return nil
	}
	return s.items
}

func (s *Snapshot) Refresh(items []ActiveRestriction) {
	s.items = append(s.items[:0:0], items...)
}

// Effective drops restrictions suppressed by an applicable bypass.
func Effective(items []ActiveRestriction, bypasses []*Bypass) []ActiveRestriction {
	out := make([]ActiveRestriction, 0, len(items))
	for _, item := range items {
		if IsBypassed(item.StudentRestrictionID, bypasses) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func IsBypassed(studentRestrictionID int64, bypasses []*Bypass) bool {
	for _, b := range bypasses {
		if b.StudentRestrictionID == studentRestrictionID && b.Applies() {
			return true
		}
	}
	return false
}

func FirstByActionType(items []ActiveRestriction, actions ...ActionType) *ActiveRestriction {
	for i := range items {
		if items[i].HasAction(actions...) {
			return &items[i]
		}
	}
	return nil
}

func FirstByCode(items []ActiveRestriction, code string) *ActiveRestriction {
	for i := range items {
		if items[i].Code == code {
			return &items[i]
		}
	}
	return nil
}

// StopDisbursementAction blocks the whole disbursement for an intensity.
func StopDisbursementAction(intensity appdomain.OfferingIntensity) ActionType {
	if intensity == appdomain.OfferingIntensityPartTime {
		return ActionStopPartTimeDisbursement
	}
	return ActionStopFullTimeDisbursement
}

// StopFundingActions zero specific award types for an intensity.
func StopFundingActions(intensity appdomain.OfferingIntensity) []ActionType {
	if intensity == appdomain.OfferingIntensityPartTime {
		return []ActionType{ActionStopPartTimeBCFunding}
	}
	return []ActionType{ActionStopFullTimeBCFunding, ActionStopFullTimeBCLoan}
}

// AffectedValueTypes lists the award types a funding action zeroes.
func AffectedValueTypes(action ActionType) []disbursementdomain.ValueType {
	switch action {
	case ActionStopFullTimeBCFunding:
		return []disbursementdomain.ValueType{disbursementdomain.ValueTypeBCLoan, disbursementdomain.ValueTypeBCGrant}
	case ActionStopFullTimeBCLoan:
		return []disbursementdomain.ValueType{disbursementdomain.ValueTypeBCLoan}
	case ActionStopPartTimeBCFunding:
		return []disbursementdomain.ValueType{disbursementdomain.ValueTypeBCGrant}
	default:
		return nil
	}
}

// ConditionContext carries the facts effective conditions are checked against.
type ConditionContext struct {
	AviationCredentialType string
}

// ConditionsSatisfied is true when there are no conditions or every known
// condition matches. Unknown conditions never match.
func ConditionsSatisfied(conditions map[string]any, c ConditionContext) bool {
	for key, raw := range conditions {
		switch key {
		case ConditionAviationCredentialTypes:
			if !containsString(raw, c.AviationCredentialType) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func containsString(raw any, want string) bool {
	if want == "" {
		return false
	}
	switch values := raw.(type) {
	case []any:
		for _, v := range values {
			if s, ok := v.(string); ok && s == want {
				return true
			}
		}
	case []string:
		for _, s := range values {
			if s == want {
				return true
			}
		}
	case string:
		return values == want
	}
	return false
}
