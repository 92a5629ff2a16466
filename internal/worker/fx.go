// Package worker assembles the modules every SIMS process needs to run
// the file exchange and E-Cert jobs.
package worker

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sims/internal/audit"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	"github.com/smallbiznis/sims/internal/disbursement"
	"github.com/smallbiznis/sims/internal/ecert"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/internal/integration/cra"
	ecertfile "github.com/smallbiznis/sims/internal/integration/ecert"
	"github.com/smallbiznis/sims/internal/integration/fedrestriction"
	"github.com/smallbiznis/sims/internal/integration/loanbalance"
	"github.com/smallbiznis/sims/internal/integration/msfaa"
	"github.com/smallbiznis/sims/internal/integration/receipt"
	"github.com/smallbiznis/sims/internal/integration/sinvalidation"
	"github.com/smallbiznis/sims/internal/joblock"
	"github.com/smallbiznis/sims/internal/logger"
	"github.com/smallbiznis/sims/internal/notification"
	"github.com/smallbiznis/sims/internal/observability"
	"github.com/smallbiznis/sims/internal/overaward"
	"github.com/smallbiznis/sims/internal/restriction"
	"github.com/smallbiznis/sims/internal/scheduler"
	"github.com/smallbiznis/sims/internal/sequence"
	"github.com/smallbiznis/sims/pkg/db"
	"go.uber.org/fx"
)

// Infra is the configuration, logging, telemetry and database layer.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	observability.Module,
	fx.Provide(RegisterSnowflake),
	db.Module,
	clock.Module,
)

// Module wires every service the scheduler jobs call.
var Module = fx.Options(
	Infra,

	// calculation
	sequence.Module,
	audit.Module,
	disbursement.Module,
	restriction.Module,
	overaward.Module,
	notification.Module,
	ecert.Module,

	// file exchange
	integration.Module,
	sinvalidation.Module,
	msfaa.Module,
	ecertfile.Module,
	cra.Module,
	receipt.Module,
	fedrestriction.Module,
	loanbalance.Module,

	joblock.Module,
	scheduler.Module,
)

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
