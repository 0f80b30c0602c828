package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coursepay/internal/clock"
	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/smallbiznis/coursepay/internal/migration"
	"github.com/smallbiznis/coursepay/internal/observability"
	"github.com/smallbiznis/coursepay/internal/scheduler"
	"github.com/smallbiznis/coursepay/internal/seed"
	"github.com/smallbiznis/coursepay/internal/server"
	"github.com/smallbiznis/coursepay/pkg/db"
	"go.uber.org/fx"
)

// Single binary: HTTP surface and revalidation worker in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		seed.Module,
		clock.Module,

		server.DomainModules,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
