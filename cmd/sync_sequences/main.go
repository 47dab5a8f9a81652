package main

import (
	"log/slog"
	"os"

	"sportsreport-bot/internal/config"
	"sportsreport-bot/internal/database"
	"sportsreport-bot/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	db, err := database.InitGorm(cfg)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}

	logger.Info("syncing postgres sequences", "tables", database.SerialTables)
	if err := database.SyncSequences(db, database.SerialTables); err != nil {
		logger.Error("sync sequences", "error", err)
		os.Exit(1)
	}
	logger.Info("sequences synced")
}
