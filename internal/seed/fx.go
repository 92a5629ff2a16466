package seed

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(conn *gorm.DB, node *snowflake.Node) error {
		return EnsureSystemRestrictions(context.Background(), conn, node)
	}),
)
