package main

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/migration"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/observability"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/server"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and every portal domain module
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
