package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/complyscan/complyscan/internal/config"
	"github.com/complyscan/complyscan/internal/migration"
	"github.com/complyscan/complyscan/internal/observability"
	"github.com/complyscan/complyscan/internal/server"
	"github.com/complyscan/complyscan/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
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
