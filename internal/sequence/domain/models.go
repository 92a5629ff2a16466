package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// SequenceControl is the durable counter of one sequence group.
type SequenceControl struct {
	SequenceName   string `gorm:"primaryKey;type:text"`
	SequenceNumber int64  `gorm:"not null"`
}

func (SequenceControl) TableName() string { return "sequence_controls" }

// Service allocates collision free numbers per named group.
type Service interface {
	// ConsumeNextSequence commits the allocation before calling work, so a
	// failing work still burns the number.
	ConsumeNextSequence(ctx context.Context, group string, work func(ctx context.Context, seq int64) error) error
	// NextSequence allocates inside the caller's transaction.
	NextSequence(ctx context.Context, tx *gorm.DB, group string) (int64, error)
}

var ErrInvalidSequenceName = errors.New("invalid_sequence_name")

// WithGap offsets an allocated number to stay clear of numbers issued elsewhere.
func WithGap(seq, gap int64) int64 {
	return seq + gap
}

// Group names.
const (
	DocumentNumberGroup = "DISBURSEMENT_DOCUMENT_NUMBER"
)

// FileGroup names the per-integration file sequence, for example "ECERT_FT_SENT_FILE".
func FileGroup(integration string) string {
	return integration + "_SENT_FILE"
}
