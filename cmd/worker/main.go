package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/bloglite/bloglite/internal/config"
	"github.com/bloglite/bloglite/internal/repository"
	"github.com/bloglite/bloglite/internal/services"
	"github.com/bloglite/bloglite/pkg/cache"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/queue"
)

// The worker runs one digest job and exits; schedule it with cron.
func main() {
	job := flag.String("job", "daily", "digest job to run: daily or monthly")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.NewLoggerWithLevel(cfg.Log.Level)
	logger.WithField("job", *job).Info("Starting bloglite digest worker...")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier services.Notifier
	if cfg.Kafka.Enabled {
		digestProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.DigestEmails)
		defer digestProducer.Close()
		notifier = services.NewQueueNotifier(digestProducer)
	} else {
		notifier = services.NewLogNotifier(logger)
	}

	// digests read straight from the store; the cache only satisfies the
	// feed service's dependencies
	aggregateCache := services.NewAggregateCache(cache.NewMemoryCache(), cfg.Cache.Prefix, cfg.Cache.TTL, logger)
	events := services.NewEventPublisher(queue.NopPublisher{}, "digest-worker", logger)

	store := repository.NewStore(db.DB)
	graphService := services.NewGraphService(store, aggregateCache, events, logger)
	engagementService := services.NewEngagementService(store, aggregateCache, events, logger)
	feedService := services.NewFeedService(store, graphService, engagementService, aggregateCache, logger)
	digestService := services.NewDigestService(store, feedService, notifier, cfg.Digest, logger)

	var report *services.DigestReport
	switch *job {
	case "daily":
		report, err = digestService.RunDailyDigest(ctx)
	case "monthly":
		report, err = digestService.RunMonthlyDigest(ctx)
	default:
		logger.WithField("job", *job).Fatal("Unknown digest job")
	}

	if report != nil {
		if werr := writeReport(os.Stdout, report); werr != nil {
			logger.WithError(werr).Error("Failed to print digest report")
		}
	}
	if err != nil {
		logger.WithError(err).Fatal("Digest job aborted")
	}

	logger.WithFields(logrus.Fields{
		"job":    *job,
		"sent":   report.Sent,
		"failed": len(report.Failures),
	}).Info("Worker exited")
}

// writeReport prints the report as indented JSON, one document per run.
func writeReport(w io.Writer, report *services.DigestReport) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode digest report: %w", err)
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write digest report: %w", err)
	}
	return nil
}
