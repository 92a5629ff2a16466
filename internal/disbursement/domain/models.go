package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type ScheduleStatus string

const (
	ScheduleStatusPending     ScheduleStatus = "pending"
	ScheduleStatusReadyToSend ScheduleStatus = "ready_to_send"
	ScheduleStatusSent        ScheduleStatus = "sent"
	ScheduleStatusCancelled   ScheduleStatus = "cancelled"
)

type COEStatus string

const (
	COEStatusRequired  COEStatus = "required"
	COEStatusCompleted COEStatus = "completed"
	COEStatusDeclined  COEStatus = "declined"
)

// ValueType groups award codes by funder and kind.
type ValueType string

const (
	ValueTypeCanadaLoan   ValueType = "canada_loan"
	ValueTypeBCLoan       ValueType = "bc_loan"
	ValueTypeCanadaGrant  ValueType = "canada_grant"
	ValueTypeBCGrant      ValueType = "bc_grant"
	ValueTypeBCTotalGrant ValueType = "bc_total_grant"
)

// IsLoan reports award types subject to overaward deduction.
func (t ValueType) IsLoan() bool {
	return t == ValueTypeCanadaLoan || t == ValueTypeBCLoan
}

const (
	AwardCSLF = "CSLF"
	AwardCSLP = "CSLP"
	AwardBCSL = "BCSL"
	AwardCSGP = "CSGP"
	AwardCSGD = "CSGD"
	AwardCSGF = "CSGF"
	AwardCSGT = "CSGT"
	AwardBCAG = "BCAG"
	AwardBGPD = "BGPD"
	AwardSBSD = "SBSD"
	AwardBCSG = "BCSG"
)

// AggregatedGrantCodes are summed into the synthetic BC total grant.
var AggregatedGrantCodes = []string{AwardBCAG, AwardBGPD, AwardSBSD}

// DisabilityGrantCodes require a confirmed disability status.
var DisabilityGrantCodes = []string{AwardCSGD, AwardBGPD}

type Schedule struct {
	ID                               int64           `gorm:"primaryKey"`
	StudentAssessmentID              int64           `gorm:"not null;index"`
	DocumentNumber                   *int64          `gorm:"uniqueIndex"`
	DisbursementDate                 time.Time       `gorm:"not null;index"`
	NegotiatedExpiryDate             time.Time       `gorm:"not null"`
	Status                           ScheduleStatus  `gorm:"column:disbursement_schedule_status;type:text;not null;index"`
	COEStatus                        COEStatus       `gorm:"column:coe_status;type:text;not null"`
	COEUpdatedAt                     *time.Time      `gorm:"column:coe_updated_at"`
	MSFAANumberID                    *int64          `gorm:"column:msfaa_number_id"`
	TuitionRemittanceRequestedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	TuitionRemittanceEffectiveAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	ReadyToSendDate                  *time.Time
	DateSent                         *time.Time
	Values                           []*Value  `gorm:"foreignKey:DisbursementScheduleID"`
	CreatedAt                        time.Time `gorm:"not null"`
	UpdatedAt                        time.Time `gorm:"not null"`
}

func (Schedule) TableName() string { return "disbursement_schedules" }

// ValueByCode returns the first award with code.
func (s *Schedule) ValueByCode(code string) *Value {
	for _, v := range s.Values {
		if v.ValueCode == code {
			return v
		}
	}
	return nil
}

// ValuesOfType returns the awards of the given types in declaration order.
func (s *Schedule) ValuesOfType(types ...ValueType) []*Value {
	var out []*Value
	for _, v := range s.Values {
		for _, t := range types {
			if v.ValueType == t {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// Value is one award line of a disbursement.
type Value struct {
	ID                          int64           `gorm:"primaryKey"`
	DisbursementScheduleID      int64           `gorm:"not null;index"`
	ValueType                   ValueType       `gorm:"type:text;not null"`
	ValueCode                   string          `gorm:"type:text;not null"`
	ValueAmount                 decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	DisbursedAmountSubtracted   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	OverawardAmountSubtracted   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	RestrictionAmountSubtracted decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	RestrictionSubtractedID     *int64
	EffectiveAmount             decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	CreatedAt                   time.Time       `gorm:"not null"`
	UpdatedAt                   time.Time       `gorm:"not null"`
}

func (Value) TableName() string { return "disbursement_values" }

// ClearRestriction forgets what a restriction removed in an earlier run.
func (v *Value) ClearRestriction() {
	v.RestrictionAmountSubtracted = decimal.Zero
	v.RestrictionSubtractedID = nil
}

// FeedbackError is an error code returned for a sent E-Cert.
type FeedbackError struct {
	ID                     int64     `gorm:"primaryKey"`
	DisbursementScheduleID int64     `gorm:"not null;uniqueIndex:ux_disbursement_feedback_errors_schedule_code,priority:1"`
	ErrorCode              string    `gorm:"type:text;not null;uniqueIndex:ux_disbursement_feedback_errors_schedule_code,priority:2"`
	DateReceived           time.Time `gorm:"not null"`
	CreatedAt              time.Time `gorm:"not null"`
}

func (FeedbackError) TableName() string { return "disbursement_feedback_errors" }

type FundingType string

const (
	FundingTypeFederal    FundingType = "FE"
	FundingTypeProvincial FundingType = "BC"
)

// Receipt confirms money released for a disbursement by one funder.
type Receipt struct {
	ID                           int64           `gorm:"primaryKey"`
	DisbursementScheduleID       int64           `gorm:"not null;uniqueIndex:ux_disbursement_receipts_schedule_funding,priority:1"`
	FundingType                  FundingType     `gorm:"type:text;not null;uniqueIndex:ux_disbursement_receipts_schedule_funding,priority:2"`
	BatchRunDate                 time.Time       `gorm:"not null"`
	FileSequence                 int64           `gorm:"not null"`
	FundingDate                  time.Time       `gorm:"not null"`
	TotalEntitledDisbursedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalDisbursedAmount         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	StudentAmount                decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	SchoolAmount                 decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Values                       []ReceiptValue  `gorm:"foreignKey:DisbursementReceiptID"`
	CreatedAt                    time.Time       `gorm:"not null"`
}

func (Receipt) TableName() string { return "disbursement_receipts" }

type ReceiptValue struct {
	ID                    int64           `gorm:"primaryKey"`
	DisbursementReceiptID int64           `gorm:"not null;index"`
	GrantType             string          `gorm:"type:text;not null"`
	GrantAmount           decimal.Decimal `gorm:"type:numeric(14,2);not null"`
}

func (ReceiptValue) TableName() string { return "disbursement_receipt_values" }

var (
	ErrScheduleNotFound = errors.New("disbursement_schedule_not_found")
	ErrDocumentNotFound = errors.New("document_number_not_found")
)
