// ABOUTME: Applies the embedded database migrations
// ABOUTME: Usage: go run ./cmd/migrate -direction up|down

package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/markalston/flashdeck/backend/config"
	"github.com/markalston/flashdeck/backend/db"
	"github.com/markalston/flashdeck/backend/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := db.Migrate(cfg.DatabaseURL, *direction); err != nil {
		slog.Error("Migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	slog.Info("Migrations applied", "direction", *direction)
}
