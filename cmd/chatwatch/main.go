// Command chatwatch follows one conversation from the terminal: it logs in,
// polls for new messages and prints them, marking received ones read.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cartalks/backend/config"
	"github.com/cartalks/backend/internal/client"
	"github.com/cartalks/backend/internal/logger"
	"github.com/cartalks/backend/internal/models"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "API base URL")
	plate := flag.String("plate", "", "your license plate")
	password := flag.String("password", os.Getenv("CARTALKS_PASSWORD"), "your password")
	other := flag.String("with", "", "license plate of the other participant")
	flag.Parse()

	if *plate == "" || *other == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*server, nil)
	if _, err := c.Login(ctx, *plate, *password); err != nil {
		zl.Fatal("login failed", zap.Error(err))
	}

	watcher, err := client.NewWatcher(c, *plate, *other, func(m models.Message) {
		body := models.ImagePlaceholder
		if m.Text != nil {
			body = *m.Text
		}
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), m.SenderID, body)
	})
	if err != nil {
		zl.Fatal("invalid participants", zap.Error(err))
	}

	poller := client.NewPoller(cfg.Poll.Interval, watcher.Fetch)
	poller.OnError(func(err error) {
		zl.Warn("fetch failed; retrying on next tick", zap.Error(err))
	})

	zl.Info("watching conversation",
		zap.String("conversation_id", watcher.ConversationID()),
		zap.Duration("interval", cfg.Poll.Interval),
	)
	poller.Start(ctx)

	<-ctx.Done()
	poller.Stop()
}
