package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	overawarddomain "github.com/smallbiznis/sims/internal/overaward/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"gorm.io/gorm"
)

// EligibleDisbursement is the unit of work of one calculation run. The
// schedule, the restriction snapshot and the overaward balances are shared
// with the student's other disbursements of the same run.
type EligibleDisbursement struct {
	StudentID               int64
	ApplicationID           int64
	ApplicationNumber       string
	StudentNumber           string
	AssessmentID            int64
	Intensity               appdomain.OfferingIntensity
	HasValidSIN             bool
	SIN                     string
	MaxLifetimeBCLoanAmount decimal.Decimal

	Student  *studentdomain.Student
	Offering *appdomain.Offering
	MSFAA    *appdomain.MSFAANumber

	Disbursement *disbursementdomain.Schedule
	Restrictions *restrictiondomain.Snapshot
	Bypasses     []*restrictiondomain.Bypass
	Balances     overawarddomain.Balances

	// BlockReason is set by the step that stopped the disbursement.
	BlockReason string
}

// EffectiveRestrictions are the active restrictions no bypass suppresses.
func (d *EligibleDisbursement) EffectiveRestrictions() []restrictiondomain.ActiveRestriction {
	return restrictiondomain.Effective(d.Restrictions.Items(), d.Bypasses)
}

// Block records why the pipeline stops and returns false for the step result.
func (d *EligibleDisbursement) Block(reason string) bool {
	d.BlockReason = reason
	return false
}

// StudentDisbursements are processed strictly in order by one worker.
type StudentDisbursements struct {
	StudentID     int64
	Disbursements []*EligibleDisbursement
}

// Step is one stage of the calculation. Returning false stops the
// disbursement while keeping what earlier steps saved.
type Step interface {
	Name() string
	Execute(ctx context.Context, d *EligibleDisbursement, tx *gorm.DB, log *summary.Log) (bool, error)
}

type EligibilityRepository interface {
	EligibleDisbursements(ctx context.Context, db *gorm.DB, intensity appdomain.OfferingIntensity, limitDate time.Time) ([]*StudentDisbursements, error)
}

// Result counts disbursements by outcome for one run.
type Result struct {
	Students  int
	Processed int
	Blocked   int
	Failed    int
	Skipped   int
}

type Processor interface {
	Process(ctx context.Context, intensity appdomain.OfferingIntensity, log *summary.Log) (Result, error)
}

// Block reasons.
const (
	ReasonInvalidSIN             = "invalid_sin"
	ReasonMSFAANotSigned         = "msfaa_not_signed"
	ReasonMSFAACancelled         = "msfaa_cancelled"
	ReasonStopDisbursement       = "stop_disbursement_restriction"
	ReasonDisabilityNotConfirmed = "disability_not_confirmed"
	ReasonCSLPLifetimeMaximum    = "cslp_lifetime_maximum"
)

var (
	ErrInvalidIntensity = errors.New("invalid_offering_intensity")
	ErrStudentMissing   = errors.New("eligible_student_missing")
)
