package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OriginType string

const (
	OriginReassessmentOveraward OriginType = "reassessment_overaward"
	OriginAwardDeducted         OriginType = "award_deducted"
	OriginAwardCredited         OriginType = "award_credited"
	OriginManualRecord          OriginType = "manual_record"
	OriginLegacyOveraward       OriginType = "legacy_overaward"
)

// DisbursementOveraward is an append-only ledger entry. A positive value
// means the student owes the amount.
type DisbursementOveraward struct {
	ID                     int64           `gorm:"primaryKey"`
	StudentID              int64           `gorm:"not null;index"`
	ApplicationID          *int64          `gorm:"index"`
	StudentAssessmentID    *int64
	DisbursementScheduleID *int64          `gorm:"index"`
	ValueCode              string          `gorm:"type:text;not null"`
	OverawardValue         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	OriginType             OriginType      `gorm:"type:text;not null"`
	AddedDate              time.Time       `gorm:"not null"`
	CreatedAt              time.Time       `gorm:"not null"`
}

func (DisbursementOveraward) TableName() string { return "disbursement_overawards" }

// Balances maps award code to the student's signed balance.
type Balances map[string]decimal.Decimal

func (b Balances) Get(code string) decimal.Decimal {
	if v, ok := b[code]; ok {
		return v
	}
	return decimal.Zero
}

// Consume lowers a positive balance after part of it was recovered.
func (b Balances) Consume(code string, amount decimal.Decimal) {
	b[code] = b.Get(code).Sub(amount)
}

type Service interface {
	Balances(ctx context.Context, tx *gorm.DB, studentID int64) (Balances, error)
	// NetDeducted is what earlier disbursements of the application
	// recovered for code, less what was already credited back.
	NetDeducted(ctx context.Context, tx *gorm.DB, applicationID int64, code string) (decimal.Decimal, error)
	AddEntry(ctx context.Context, tx *gorm.DB, entry *DisbursementOveraward) error
}

var (
	ErrInvalidEntry = errors.New("invalid_overaward_entry")
)
