package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrMissingHandle = errors.New("seed_database_handle_required")

// SystemRestrictions are the restrictions the calculation pipeline adds on
// its own and therefore must exist before the first E-Cert run.
func SystemRestrictions() []restrictiondomain.Restriction {
	return []restrictiondomain.Restriction{
		{
			Code:            restrictiondomain.CodeBCLoanLifetimeMaximum,
			Description:     "BC lifetime maximum loan amount reached",
			RestrictionType: restrictiondomain.RestrictionTypeProvincial,
			ActionTypes: datatypes.JSONSlice[restrictiondomain.ActionType]{
				restrictiondomain.ActionStopFullTimeBCLoan,
			},
		},
	}
}

// EnsureSystemRestrictions inserts the missing system restrictions and
// leaves existing codes untouched.
func EnsureSystemRestrictions(ctx context.Context, db *gorm.DB, node *snowflake.Node) error {
	if db == nil || node == nil {
		return ErrMissingHandle
	}

	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range SystemRestrictions() {
			r.ID = node.Generate().Int64()
			r.CreatedAt = now
			err := tx.WithContext(ctx).
				Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
				Create(&r).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
