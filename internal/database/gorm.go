package database

import (
	"fmt"
	"log/slog"
	"strings"

	"sportsreport-bot/internal/config"
	"sportsreport-bot/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for DB_TYPE.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.DBType) {
	case "", "sqlite":
		return sqlite.Open(cfg.DBPath), nil
	case "postgres", "postgresql":
		return postgres.Open(cfg.PostgresDSN()), nil
	}
	return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.DBType)
}

// InitGorm connects to the configured database and migrates the schema.
func InitGorm(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := Open(dialector, cfg.DBLogLevel)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBType, err)
	}
	slog.Info("connected to database", "type", cfg.DBType)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	slog.Info("database migration completed")
	return db, nil
}

// Open opens a gorm handle. sqlite gets a single connection because it only
// allows one writer at a time.
func Open(dialector gorm.Dialector, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(LogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migration: %w", err)
	}
	return nil
}

// LogLevel maps DB_LOG_LEVEL to gorm's logger levels.
func LogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	}
	return logger.Warn
}
