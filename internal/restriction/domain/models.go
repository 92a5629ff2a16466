package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActionType string

const (
	ActionNoEffect                 ActionType = "no_effect"
	ActionStopFullTimeDisbursement ActionType = "stop_full_time_disbursement"
	ActionStopPartTimeDisbursement ActionType = "stop_part_time_disbursement"
	ActionStopFullTimeBCLoan       ActionType = "stop_full_time_bc_loan"
	ActionStopFullTimeBCFunding    ActionType = "stop_full_time_bc_funding"
	ActionStopPartTimeBCFunding    ActionType = "stop_part_time_bc_funding"
)

type RestrictionType string

const (
	RestrictionTypeProvincial  RestrictionType = "provincial"
	RestrictionTypeFederal     RestrictionType = "federal"
	RestrictionTypeInstitution RestrictionType = "institution"
)

type BypassBehavior string

const (
	BypassNextDisbursementOnly BypassBehavior = "next_disbursement_only"
	BypassAllDisbursements     BypassBehavior = "all_disbursements"
)

// Restriction codes created by the system itself.
const (
	CodeBCLoanLifetimeMaximum = "BCLM"
)

// ConditionAviationCredentialTypes limits a restriction to offerings of the listed credentials.
const ConditionAviationCredentialTypes = "aviation_credential_types"

// Restriction is a catalog entry.
type Restriction struct {
	ID                  int64                           `gorm:"primaryKey"`
	Code                string                          `gorm:"type:text;not null;uniqueIndex"`
	Description         string                          `gorm:"type:text;not null"`
	RestrictionType     RestrictionType                 `gorm:"type:text;not null"`
	ActionTypes         datatypes.JSONSlice[ActionType] `gorm:"type:json;not null"`
	EffectiveConditions datatypes.JSONMap               `gorm:"type:json"`
	CreatedAt           time.Time                       `gorm:"not null"`
}

func (Restriction) TableName() string { return "restrictions" }

// StudentRestriction assigns a catalog restriction to a student.
type StudentRestriction struct {
	ID             int64     `gorm:"primaryKey"`
	StudentID      int64     `gorm:"not null;index"`
	ApplicationID  *int64    `gorm:"index"`
	RestrictionID  int64     `gorm:"not null;index"`
	IsActive       bool      `gorm:"not null"`
	CreationNote   string    `gorm:"type:text"`
	ResolutionNote string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (StudentRestriction) TableName() string { return "student_restrictions" }

// ApplicationRestrictionBypass lets one application disburse despite a restriction.
type ApplicationRestrictionBypass struct {
	ID                   int64          `gorm:"primaryKey"`
	ApplicationID        int64          `gorm:"not null;index"`
	StudentRestrictionID int64          `gorm:"not null;index"`
	BypassBehavior       BypassBehavior `gorm:"type:text;not null"`
	IsActive             bool           `gorm:"not null"`
	CreationNote         string         `gorm:"type:text"`
	RemovalNote          string         `gorm:"type:text"`
	RemovedAt            *time.Time
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

func (ApplicationRestrictionBypass) TableName() string { return "application_restriction_bypasses" }

// FederalRestriction is one row of the latest federal restriction snapshot.
type FederalRestriction struct {
	ID              int64     `gorm:"primaryKey"`
	SIN             string    `gorm:"type:text;not null;index"`
	LastName        string    `gorm:"type:text"`
	GivenName       string    `gorm:"type:text"`
	BirthDate       time.Time `gorm:"not null"`
	RestrictionCode string    `gorm:"type:text;not null"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (FederalRestriction) TableName() string { return "federal_restrictions" }

// ActiveRestriction is the read model consumed by the E-Cert steps.
type ActiveRestriction struct {
	StudentRestrictionID int64
	RestrictionID        int64
	Code                 string
	ActionTypes          []ActionType
	EffectiveConditions  map[string]any
}

func (r ActiveRestriction) HasAction(actions ...ActionType) bool {
	for _, have := range r.ActionTypes {
		for _, want := range actions {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Bypass is an active bypass of a student restriction for one application.
// Consumed is set once a single use bypass has served a disbursement.
type Bypass struct {
	ID                   int64
	StudentRestrictionID int64
	RestrictionCode      string
	Behavior             BypassBehavior
	Consumed             bool
}

func (b *Bypass) SingleUse() bool {
	return b.Behavior == BypassNextDisbursementOnly
}

// Applies reports whether the bypass still suppresses its restriction.
func (b *Bypass) Applies() bool {
	return !(b.SingleUse() && b.Consumed)
}

// CreateRequest asks for a student restriction to be added unless it already applies.
type CreateRequest struct {
	StudentID     int64
	ApplicationID *int64
	Code          string
	Note          string
}

// FederalReconcileResult counts the effect of applying a federal snapshot.
type FederalReconcileResult struct {
	Imported      int
	Activated     int
	Resolved      int
	UnknownCodes  int
	UnmatchedSINs int
}

type Service interface {
	ActiveRestrictions(ctx context.Context, tx *gorm.DB, studentID int64) ([]ActiveRestriction, error)
	ActiveBypasses(ctx context.Context, tx *gorm.DB, applicationID int64) ([]*Bypass, error)
	// CreateStudentRestriction returns false when an active or bypassed
	// restriction with the same code already exists.
	CreateStudentRestriction(ctx context.Context, tx *gorm.DB, req CreateRequest, bypasses []*Bypass) (bool, error)
	DeactivateBypass(ctx context.Context, tx *gorm.DB, bypass *Bypass, note string) error
	ReconcileFederal(ctx context.Context, tx *gorm.DB, snapshot []FederalRestriction) (FederalReconcileResult, error)
}

var (
	ErrRestrictionNotFound = errors.New("restriction_not_found")
	ErrBypassNotFound      = errors.New("restriction_bypass_not_found")
)
