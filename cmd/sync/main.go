package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"orbisync/config"
	"orbisync/internal/catalog"
	"orbisync/internal/database"
	"orbisync/internal/feed"
	"orbisync/internal/images"
	"orbisync/internal/stats"
	"orbisync/internal/syncer"
)

func main() {
	limit := flag.Int("limit", 0, "process at most this many listings (0 = all)")
	ref := flag.String("ref", "", "sync only the listing with this reference")
	noImages := flag.Bool("no-images", false, "skip image download and reconciliation")
	noTrack := flag.Bool("no-track", false, "skip per-field change recording")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// A missing .env file is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("Failed to load .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Feed.URL == "" {
		logger.Fatal("FEED_URL is required")
	}

	logger.WithField("path", cfg.Storage.DatabasePath).Info("Opening database")
	db, err := database.Open(cfg.Storage.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}

	logger.Info("Running database migrations")
	if err := database.MigrateSchema(db); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.Feed.TimeoutSeconds) * time.Second
	collector := stats.NewCollector()
	client := feed.NewClient(cfg.Feed.URL, cfg.Feed.APIKey, timeout, logger)
	resolver := catalog.NewResolver(db, logger)
	reconciler := images.NewReconciler(cfg.Storage.ImagesDir, timeout, collector, logger)

	downloadImages := cfg.Sync.DownloadImages && !*noImages
	trackChanges := cfg.Sync.TrackChanges && !*noTrack

	processor := syncer.NewProcessor(db, resolver, reconciler, collector, logger, downloadImages, trackChanges)
	driver := syncer.NewDriver(db, client, processor, reconciler, collector, logger)

	summary, err := driver.Run(ctx, syncer.Options{Limit: *limit, Ref: *ref})
	if err != nil {
		logger.WithError(err).Error("Sync run failed")
		os.Exit(1)
	}
	if summary.Errors > 0 {
		logger.WithField("errors", summary.Errors).Warn("Sync run completed with listing errors")
	}
}
