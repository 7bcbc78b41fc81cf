package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"

	"github.com/pinielabera/thriftndrift-backend/internal/notifications"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/db"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore/gormstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/pubsub"
)

// The worker consumes moderation outcome events and fans them out as
// user notifications.
func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.PubSub.Enabled() {
		logg.Error(ctx, "moderation topic not configured", nil)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	docs, err := gormstore.New(dbClient)
	if err != nil {
		logg.Error(ctx, "failed to create document store", err)
		os.Exit(1)
	}

	svc, err := notifications.NewService(notifications.ServiceParams{Docs: docs, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	sub := pubsubClient.ModerationSubscription()
	logg.Info(logg.WithField(ctx, "subscription", cfg.PubSub.ModerationSubscription), "worker listening")

	err = sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if err := svc.HandleMessage(msgCtx, msg.Data); err != nil {
			logg.Error(msgCtx, "failed to handle moderation event", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		logg.Error(ctx, "subscription receive stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(context.Background(), "worker shutting down gracefully")
}
