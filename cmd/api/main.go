package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinielabera/thriftndrift-backend/api/controllers"
	"github.com/pinielabera/thriftndrift-backend/api/routes"
	"github.com/pinielabera/thriftndrift-backend/internal/admins"
	"github.com/pinielabera/thriftndrift-backend/internal/catalog"
	"github.com/pinielabera/thriftndrift-backend/internal/cities"
	"github.com/pinielabera/thriftndrift-backend/internal/cityrequests"
	"github.com/pinielabera/thriftndrift-backend/internal/favorites"
	"github.com/pinielabera/thriftndrift-backend/internal/finds"
	"github.com/pinielabera/thriftndrift-backend/internal/notifications"
	"github.com/pinielabera/thriftndrift-backend/internal/submissions"
	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/blobstore/gcs"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/db"
	"github.com/pinielabera/thriftndrift-backend/pkg/docstore/gormstore"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/metrics"
	"github.com/pinielabera/thriftndrift-backend/pkg/pubsub"
	"github.com/pinielabera/thriftndrift-backend/pkg/redis"
	"github.com/pinielabera/thriftndrift-backend/pkg/staticdata"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	if cfg.FeatureFlags.AutoMigrate {
		if err := docs.AutoMigrate(); err != nil {
			logg.Error(ctx, "failed to migrate document store", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var blobs blobstore.Store
	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	if cfg.GCS.BucketName != "" {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		blobs = gcsClient
		readiness["gcs"] = gcsClient
	} else {
		logg.Warn(ctx, "no gcs bucket configured, using in-memory blob store")
		blobs = blobstore.NewMemoryStore("")
	}

	static, err := staticdata.Load(ctx, logg)
	if err != nil {
		logg.Error(ctx, "failed to load static dataset", err)
		os.Exit(1)
	}

	var publisher submissions.EventPublisher
	if cfg.PubSub.Enabled() {
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
		publisher = submissions.NewPubSubPublisher(pubsubClient.ModerationPublisher())
		readiness["pubsub"] = pubsubClient
	}

	registry := prometheus.NewRegistry()
	catalogMetrics := metrics.NewCatalogMetrics(registry)
	submissionMetrics := metrics.NewSubmissionMetrics(registry)

	adminsService, err := admins.NewService(admins.ServiceParams{
		Docs:   docs,
		Cache:  redisClient,
		Config: cfg.Admin,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create admins service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Docs:    docs,
		Blobs:   blobs,
		Static:  static,
		Config:  cfg.Catalog,
		Logger:  logg,
		Metrics: catalogMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}
	defer catalogService.Close()

	if err := catalogService.SwitchRegion(ctx, cfg.Catalog.DefaultRegion); err != nil {
		logg.Error(ctx, "failed to load default region", err)
		os.Exit(1)
	}

	citiesService, err := cities.NewService(cities.ServiceParams{
		Catalog: catalogService,
		Static:  static,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cities service", err)
		os.Exit(1)
	}
	defer citiesService.Close()

	submissionsService, err := submissions.NewService(submissions.ServiceParams{
		Docs:      docs,
		Blobs:     blobs,
		Admins:    adminsService,
		Static:    static,
		Publisher: publisher,
		Config:    cfg.Submissions,
		Logger:    logg,
		Metrics:   submissionMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create submissions service", err)
		os.Exit(1)
	}

	favoritesService, err := favorites.NewService(favorites.ServiceParams{Docs: docs, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to create favorites service", err)
		os.Exit(1)
	}

	findsService, err := finds.NewService(finds.ServiceParams{Docs: docs, Blobs: blobs, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to create finds service", err)
		os.Exit(1)
	}

	cityRequestsService, err := cityrequests.NewService(cityrequests.ServiceParams{
		Docs:   docs,
		Admins: adminsService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create city requests service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.ServiceParams{Docs: docs, Logger: logg})
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		redisClient,
		readiness,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		routes.Services{
			Catalog:       catalogService,
			Cities:        citiesService,
			Submissions:   submissionsService,
			Admins:        adminsService,
			Favorites:     favoritesService,
			Finds:         findsService,
			CityRequests:  cityRequestsService,
			Notifications: notificationsService,
		},
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"region": cfg.Catalog.DefaultRegion,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(startCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(startCtx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(startCtx, "error shutting down server", err)
		}
	}
}
