package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/clock"
	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/smallbiznis/coursepay/internal/metricspush"
	"github.com/smallbiznis/coursepay/internal/observability"
	"github.com/smallbiznis/coursepay/internal/scheduler"
	"github.com/smallbiznis/coursepay/internal/server"
	"github.com/smallbiznis/coursepay/pkg/db"
	"go.uber.org/fx"
)

// Revalidation and claim recovery only. No HTTP listener.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.DomainModules,
		scheduler.Module,
		metricspush.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
