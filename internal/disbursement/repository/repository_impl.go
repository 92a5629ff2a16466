package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxInParams keeps IN lists under the SQLite bind variable limit.
const maxInParams = 500

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByIDs(ctx context.Context, tx *gorm.DB, ids []int64) ([]*domain.Schedule, error) {
	out := make([]*domain.Schedule, 0, len(ids))
	for start := 0; start < len(ids); start += maxInParams {
		end := min(start+maxInParams, len(ids))
		var page []*domain.Schedule
		err := tx.WithContext(ctx).
			Preload("Values", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
			Where("id IN ?", ids[start:end]).
			Order("disbursement_date asc, id asc").
			Find(&page).Error
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
	}
	return out, nil
}

func (r *repo) FindByDocumentNumber(ctx context.Context, tx *gorm.DB, documentNumber int64) (*domain.Schedule, error) {
	var schedule domain.Schedule
	err := tx.WithContext(ctx).Where("document_number = ?", documentNumber).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *repo) InsertValue(ctx context.Context, tx *gorm.DB, value *domain.Value) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(value).Error
}

func (r *repo) UpdateValue(ctx context.Context, tx *gorm.DB, value *domain.Value) error {
	return tx.WithContext(ctx).Model(&domain.Value{}).
		Where("id = ?", value.ID).
		Updates(map[string]any{
			"value_amount":                  value.ValueAmount,
			"overaward_amount_subtracted":   value.OverawardAmountSubtracted,
			"restriction_amount_subtracted": value.RestrictionAmountSubtracted,
			"restriction_subtracted_id":     value.RestrictionSubtractedID,
			"effective_amount":              value.EffectiveAmount,
			"updated_at":                    value.UpdatedAt,
		}).Error
}

func (r *repo) UpdateCalculation(ctx context.Context, tx *gorm.DB, schedule *domain.Schedule) error {
	result := tx.WithContext(ctx).Model(&domain.Schedule{}).
		Where("id = ?", schedule.ID).
		Updates(map[string]any{
			"disbursement_schedule_status":        schedule.Status,
			"document_number":                     schedule.DocumentNumber,
			"ready_to_send_date":                  schedule.ReadyToSendDate,
			"tuition_remittance_effective_amount": schedule.TuitionRemittanceEffectiveAmount,
			"updated_at":                          schedule.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *repo) MarkSent(ctx context.Context, tx *gorm.DB, ids []int64, sentAt time.Time) error {
	for start := 0; start < len(ids); start += maxInParams {
		end := min(start+maxInParams, len(ids))
		err := tx.WithContext(ctx).Exec(
			`UPDATE disbursement_schedules
			 SET disbursement_schedule_status = ?, date_sent = ?, updated_at = ?
			 WHERE id IN ? AND disbursement_schedule_status = ?`,
			domain.ScheduleStatusSent, sentAt, sentAt, ids[start:end], domain.ScheduleStatusReadyToSend,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertFeedbackError(ctx context.Context, tx *gorm.DB, entry *domain.FeedbackError) (bool, error) {
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertReceipt(ctx context.Context, tx *gorm.DB, receipt *domain.Receipt) (bool, error) {
	var existing int64
	err := tx.WithContext(ctx).Model(&domain.Receipt{}).
		Where("disbursement_schedule_id = ? AND funding_type = ?", receipt.DisbursementScheduleID, receipt.FundingType).
		Count(&existing).Error
	if err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(receipt).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	for i := range receipt.Values {
		receipt.Values[i].DisbursementReceiptID = receipt.ID
	}
	if len(receipt.Values) > 0 {
		if err := tx.WithContext(ctx).Create(&receipt.Values).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}
