package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/givebridge/givebridge/internal/config"
	"github.com/givebridge/givebridge/internal/logger"
	"github.com/givebridge/givebridge/internal/migration"
	"github.com/givebridge/givebridge/internal/server"
	"github.com/givebridge/givebridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
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
