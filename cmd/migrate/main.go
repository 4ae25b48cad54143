package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/cartalks/backend/config"
	"github.com/cartalks/backend/internal/database"
	"github.com/cartalks/backend/internal/logger"
	"github.com/cartalks/backend/internal/messaging"
	"github.com/cartalks/backend/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|status|rebuild [conversationId]]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	switch command {
	case "up":
		zl.Info("running migrations")
		if err := database.RunMigrations(db.DB); err != nil {
			zl.Fatal("migration failed", zap.Error(err))
		}
		zl.Info("migrations completed successfully")

	case "status":
		showMigrationStatus(db.DB)

	case "rebuild":
		rebuild(db, zl, os.Args[2:])

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, status, rebuild")
		os.Exit(1)
	}
}

// rebuild recomputes conversation summaries from the message log, either
// for the given conversations or for all of them.
func rebuild(db *database.DB, zl *zap.Logger, keys []string) {
	ctx := context.Background()
	svc := messaging.NewService(
		repository.NewMessageRepository(db),
		repository.NewConversationRepository(db),
		nil,
		nil,
		zl,
	)

	if len(keys) == 0 {
		n, err := svc.RebuildAll(ctx)
		if err != nil {
			zl.Fatal("rebuild failed", zap.Int("rebuilt", n), zap.Error(err))
		}
		zl.Info("summaries rebuilt", zap.Int("count", n))
		return
	}

	for _, key := range keys {
		summary, err := svc.RebuildSummary(ctx, key)
		if err != nil {
			zl.Error("rebuild failed", zap.String("conversation_id", key), zap.Error(err))
			continue
		}
		zl.Info("summary rebuilt",
			zap.String("conversation_id", key),
			zap.Any("unread_counts", summary.UnreadCounts),
		)
	}
}

func showMigrationStatus(db *sql.DB) {
	rows, err := db.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		log.Printf("No migrations found or table doesn't exist: %v", err)
		return
	}
	defer rows.Close()

	applied := map[int]bool{}
	fmt.Println("\nApplied Migrations:")
	fmt.Println("-------------------")
	for rows.Next() {
		var version int
		var appliedAt string
		if err := rows.Scan(&version, &appliedAt); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}
		applied[version] = true
		fmt.Printf("Version %d - Applied at: %s\n", version, appliedAt)
	}

	for _, m := range database.Migrations {
		if !applied[m.Version] {
			fmt.Printf("Version %d - pending\n", m.Version)
		}
	}
}
