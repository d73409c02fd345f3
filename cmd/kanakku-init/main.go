// Command kanakku-init initializes the configured data backend: it creates
// missing sheet tabs and migrates headers on Google Sheets, or applies the
// embedded SQLite schema migrations. Safe to run repeatedly.
package main

import (
	"context"
	"os"
	"time"

	"kanakku/internal/config"
	applog "kanakku/internal/log"
	"kanakku/internal/storage"
	gsheet "kanakku/internal/tabular/google"
	"kanakku/internal/tabular/sqlite"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentBackend)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch cfg.DataBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		if err := storage.Migrate(ctx, cli); err != nil {
			logger.Error("Sheet migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Sheets initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("SQLite migration failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("SQLite initialized", "path", cfg.SQLiteDBPath)
	default:
		logger.Info("Memory backend needs no initialization")
	}
}
