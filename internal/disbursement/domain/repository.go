package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository persists calculated disbursements and their partner outcomes.
type Repository interface {
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]*Schedule, error)
	FindByDocumentNumber(ctx context.Context, db *gorm.DB, documentNumber int64) (*Schedule, error)
	InsertValue(ctx context.Context, db *gorm.DB, value *Value) error
	UpdateValue(ctx context.Context, db *gorm.DB, value *Value) error
	// UpdateCalculation writes the schedule fields owned by the E-Cert calculation.
	UpdateCalculation(ctx context.Context, db *gorm.DB, schedule *Schedule) error
	MarkSent(ctx context.Context, db *gorm.DB, ids []int64, sentAt time.Time) error
	// InsertFeedbackError returns false when the code was already recorded.
	InsertFeedbackError(ctx context.Context, db *gorm.DB, entry *FeedbackError) (bool, error)
	// InsertReceipt returns false when the funder already confirmed the schedule.
	InsertReceipt(ctx context.Context, db *gorm.DB, receipt *Receipt) (bool, error)
}
