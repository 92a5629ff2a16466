package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageECertBlocked MessageType = "ecert_disbursement_blocked"
)

// Notification is queued for an external delivery worker.
type Notification struct {
	ID                     int64             `gorm:"primaryKey"`
	MessageType            MessageType       `gorm:"type:text;not null;index:ix_notifications_type_schedule,priority:1"`
	StudentID              int64             `gorm:"not null;index"`
	DisbursementScheduleID *int64            `gorm:"index:ix_notifications_type_schedule,priority:2"`
	Payload                datatypes.JSONMap `gorm:"type:json"`
	DateSent               *time.Time
	CreatedAt              time.Time `gorm:"not null"`
}

func (Notification) TableName() string { return "notifications" }

// BlockedDisbursement describes why a disbursement could not be sent.
type BlockedDisbursement struct {
	StudentID              int64
	ApplicationNumber      string
	DisbursementScheduleID int64
	Intensity              string
	Reason                 string
}

type Service interface {
	// RecordBlockedDisbursement queues a notification unless the disbursement
	// already reached the maximum or the last one is too recent.
	RecordBlockedDisbursement(ctx context.Context, tx *gorm.DB, info BlockedDisbursement) (bool, error)
}
