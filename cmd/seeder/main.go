// cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/unclebandit/omnipost-backend/internal/config"
	"github.com/unclebandit/omnipost-backend/internal/db"
	"github.com/unclebandit/omnipost-backend/internal/logger"
)

func main() {
	log := logger.GetLogger("seeder")

	cfg, found, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if !found {
		log.Warn("no .env file found, relying on OS environment variables")
	}
	if !cfg.UsePostgres() {
		log.Fatal("DB_HOST is required for seeding")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.Info("schema applied")

	dir := "seed"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	// recipients before templates; campaign_recipients references recipients
	seedFiles, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.WithError(err).Fatal("invalid seed dir")
	}
	sort.Strings(seedFiles)

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.WithError(err).Fatalf("failed to read %s", file)
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.WithError(err).Fatalf("failed to execute %s", file)
		}
		log.WithField("file", file).Info("seeded")
	}

	log.WithField("files", len(seedFiles)).Info("database seeding completed")
}
