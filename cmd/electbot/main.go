package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/electdata/electbot-go/internal/botconfig"
	"github.com/electdata/electbot-go/pkg/bots"
	"github.com/electdata/electbot-go/pkg/db"
	"github.com/electdata/electbot-go/pkg/db/models"
	"github.com/electdata/electbot-go/pkg/logging"
	"github.com/electdata/electbot-go/pkg/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Only log warning since .env is optional
		logrus.WithError(err).Warn("Error loading .env file")
	}

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(logging.NewColoredJSONFormatter())

	// Get log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithFields(logrus.Fields{
			"attempted_level": logLevel,
			"default_level":   "INFO",
		}).Warn("Invalid log level specified, defaulting to INFO")
	}

	// Create context cancelled by SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	}()

	// Initialize database
	database, err := db.SetupDatabase(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to set up database")
	}

	botStore := store.NewBotStore(database, log)

	// Load the canonical constituency roll on a fresh installation. The
	// pipeline itself never creates or deletes constituency rows.
	if path := os.Getenv("CONSTITUENCY_ROLL_FILE"); path != "" {
		if err := seedConstituencies(ctx, database, log, path); err != nil {
			log.WithError(err).Fatal("Failed to seed constituency roll")
		}
	}

	// Assemble the extraction pipeline
	registry, err := botconfig.ConfigurePipeline(botconfig.PipelineConfig{
		DB:     database,
		Logger: log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to configure pipeline")
	}

	executor := bots.NewRunExecutor(botStore, registry, log, failureAlert(log))
	dashboard := bots.NewDashboardAggregator(botStore, log)
	service := bots.NewService(botStore, executor, dashboard, log)

	// Repair state orphaned by a previous process before anything runs
	reconciler := bots.NewReconciler(botStore, log,
		envDuration("RECONCILE_LIVE_THRESHOLD", bots.DefaultLiveRunThreshold),
		envDuration("RECONCILE_MAX_RUN_DURATION", bots.DefaultMaxRunDuration),
	)
	if _, err := reconciler.Reconcile(ctx); err != nil {
		log.WithError(err).Fatal("Startup reconciliation failed")
	}

	// Provision default bots on an empty installation
	if _, err := service.SeedDefaults(ctx); err != nil {
		log.WithError(err).Fatal("Failed to seed default bots")
	}

	scheduler := bots.NewScheduler(botStore, executor, log,
		envDuration("SCHEDULER_TICK", bots.DefaultTickInterval))

	log.Info("electbot started")
	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Scheduler terminated unexpectedly")
	}
	log.Info("electbot stopped")
}

// failureAlert is the operational alert hook fired when a bot reaches its
// consecutive-failure threshold
func failureAlert(log *logrus.Logger) bots.AlertFunc {
	return func(bot *models.Bot, err error) {
		log.WithFields(logrus.Fields{
			"alert":                "bot_failure_threshold",
			"bot":                  bot.Name,
			"consecutive_failures": bot.ConsecutiveFailures,
			"error":                err,
		}).Error("Bot needs operator attention")
	}
}

// seedConstituencies loads a JSON constituency roll and inserts it when the
// table is empty
func seedConstituencies(ctx context.Context, database *gorm.DB, log *logrus.Logger, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var rows []models.Constituency
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}

	if err := store.NewConstituencyStore(database, log).SeedOnEmpty(ctx, rows); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file": path,
		"rows": len(rows),
	}).Info("Constituency roll ensured")
	return nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logrus.WithField(key, raw).Warn("Invalid duration in environment, using default")
		return fallback
	}
	return d
}
