// Command migrate_data copies a sqlite database into the configured postgres
// database. It is safe to rerun: rows that already exist are skipped.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sportsreport-bot/internal/config"
	"sportsreport-bot/internal/database"
	"sportsreport-bot/internal/logging"
	"sportsreport-bot/internal/models"
)

const batchSize = 500

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	source := flag.String("from", cfg.DBPath, "sqlite database to copy from")
	flag.Parse()

	src, err := database.Open(sqlite.Open(*source), cfg.DBLogLevel)
	if err != nil {
		logger.Error("open sqlite", "path", *source, "error", err)
		os.Exit(1)
	}
	logger.Info("connected to sqlite", "path", *source)

	dst, err := database.Open(postgres.Open(cfg.PostgresDSN()), cfg.DBLogLevel)
	if err != nil {
		logger.Error("open postgres", "host", cfg.DBHost, "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(dst); err != nil {
		logger.Error("migrate postgres", "error", err)
		os.Exit(1)
	}

	steps := []struct {
		table string
		copy  func(src, dst *gorm.DB) (int, error)
	}{
		{"subscribers", copyTable[models.Subscriber]},
		{"drafts", copyTable[models.Draft]},
		{"messages", copyTable[models.Message]},
	}
	for _, step := range steps {
		n, err := step.copy(src, dst)
		if err != nil {
			logger.Error("copy table", "table", step.table, "error", err)
			os.Exit(1)
		}
		logger.Info("copied table", "table", step.table, "rows", n)
	}

	if err := database.SyncSequences(dst, database.SerialTables); err != nil {
		logger.Error("sync sequences", "error", err)
		os.Exit(1)
	}
	logger.Info("migration completed")
}

// copyTable streams every row of T from src into dst in batches.
func copyTable[T any](src, dst *gorm.DB) (int, error) {
	var (
		batch []T
		total int
	)
	err := src.Model(new(T)).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		res := dst.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
		if res.Error != nil {
			return fmt.Errorf("insert batch: %w", res.Error)
		}
		total += int(res.RowsAffected)
		return nil
	}).Error
	return total, err
}
