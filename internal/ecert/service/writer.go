package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sims/internal/clock"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"gorm.io/gorm"
)

// calculationWriter saves a schedule and every award line in the caller's
// transaction. New award lines get their id here.
type calculationWriter struct {
	repo  disbursementdomain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func (w *calculationWriter) Save(ctx context.Context, tx *gorm.DB, schedule *disbursementdomain.Schedule) error {
	now := w.clock.Now()
	for _, award := range schedule.Values {
		award.UpdatedAt = now
		if award.ID == 0 {
			award.ID = w.genID.Generate().Int64()
			award.DisbursementScheduleID = schedule.ID
			award.CreatedAt = now
			if err := w.repo.InsertValue(ctx, tx, award); err != nil {
				return err
			}
			continue
		}
		if err := w.repo.UpdateValue(ctx, tx, award); err != nil {
			return err
		}
	}
	schedule.UpdatedAt = now
	return w.repo.UpdateCalculation(ctx, tx, schedule)
}
