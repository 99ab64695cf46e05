package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/compiq-monitor/internal/ai"
	"github.com/compiq-monitor/internal/analysis"
	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/monitor"
	"github.com/compiq-monitor/internal/news"
	"github.com/compiq-monitor/internal/notify"
	"github.com/compiq-monitor/internal/storage"
	"github.com/compiq-monitor/internal/storage/sqlite"
	"github.com/compiq-monitor/pkg/logger"
	"github.com/compiq-monitor/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "compiq-scheduler",
		Short: "Background scheduler for competitor monitoring",
		Long: `Runs scheduled page monitoring, news collection and analysis cycles.
This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting CompIQ Monitor Scheduler")

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Health endpoint for container orchestration
	go startHealthServer(cfg.Scheduler.HealthAddr)

	// Initialize rate limiter
	limiter := ratelimit.NewDefaultLimiter()

	// Assemble the pipeline
	aiClient := ai.NewClient(cfg.Anthropic, limiter, log)
	analyzer := ai.NewAnalyzer(aiClient, cfg.Company, log)
	insights := ai.NewInsightGenerator(aiClient, repo, cfg.Company, log)
	notifier := notify.New(cfg.Notifications, repo, log)

	fetchTimeout, err := time.ParseDuration(cfg.Monitor.FetchTimeout)
	if err != nil {
		fetchTimeout = 30 * time.Second
	}
	fetcher := monitor.NewFetcher(fetchTimeout, cfg.Monitor.UserAgent, cfg.Monitor.RespectRobotsTxt)
	mon := monitor.NewMonitor(repo, fetcher, limiter, log)
	collector := news.NewCollector(repo, cfg.News, limiter, log)
	orchestrator := analysis.NewOrchestrator(repo, analyzer, notifier, insights, cfg.Analysis, log)

	// Create cron scheduler
	c := cron.New(cron.WithLogger(cronLogger{log}))

	// Schedule monitoring cycle
	_, err = c.AddFunc(cfg.Scheduler.MonitorCron, func() {
		runMonitorCycle(mon, orchestrator, notifier)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule monitoring job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.MonitorCron).Msg("Monitoring job scheduled")

	// Schedule news collection cycle
	if cfg.News.Enabled {
		_, err = c.AddFunc(cfg.Scheduler.NewsCron, func() {
			runNewsCycle(collector, orchestrator)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule news job: %w", err)
		}
		log.Info().Str("cron", cfg.Scheduler.NewsCron).Msg("News job scheduled")
	}

	// Schedule daily digest
	_, err = c.AddFunc(cfg.Scheduler.DigestCron, runDailyDigest)
	if err != nil {
		return fmt.Errorf("failed to schedule digest job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.DigestCron).Msg("Digest job scheduled")

	if cfg.Scheduler.RunOnStart {
		go func() {
			runMonitorCycle(mon, orchestrator, notifier)
			if cfg.News.Enabled {
				runNewsCycle(collector, orchestrator)
			}
		}()
	}

	// Start scheduler
	c.Start()
	log.Info().Msg("Scheduler started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	c.Stop()

	return nil
}

// runMonitorCycle checks due sources, analyzes what changed and clears
// the notification backlog.
func runMonitorCycle(mon *monitor.Monitor, orchestrator *analysis.Orchestrator, notifier *notify.Notifier) {
	ctx := context.Background()
	log.Info().Msg("Running scheduled monitoring cycle")

	checkResult, err := mon.CheckAll(ctx, false)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled monitoring failed")
		return
	}

	analysisResult, err := orchestrator.ProcessPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled analysis failed")
		return
	}

	if _, err := notifier.SendPending(ctx); err != nil {
		log.Error().Err(err).Msg("Pending notification delivery failed")
	}

	log.Info().
		Int("sources_checked", checkResult.SourcesChecked).
		Int("changes_found", checkResult.ChangesFound).
		Int("alerts_created", analysisResult.AlertsCreated).
		Msg("Scheduled monitoring cycle completed")
}

// runNewsCycle collects fresh news and runs it through analysis
func runNewsCycle(collector *news.Collector, orchestrator *analysis.Orchestrator) {
	ctx := context.Background()
	log.Info().Msg("Running scheduled news cycle")

	collectResult, err := collector.CollectAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled news collection failed")
		return
	}

	analysisResult, err := orchestrator.ProcessPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled news analysis failed")
		return
	}

	log.Info().
		Int("items_stored", collectResult.ItemsStored).
		Int("alerts_created", analysisResult.AlertsCreated).
		Msg("Scheduled news cycle completed")
}

// runDailyDigest logs a 24h alert summary broken down by risk level
func runDailyDigest() {
	ctx := context.Background()
	since := time.Now().Add(-24 * time.Hour)

	alerts, err := repo.ListAlerts(ctx, storage.AlertFilter{
		DetectedAfter: &since,
		OrderBy:       "detected_at",
		OrderDesc:     true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Daily digest query failed")
		return
	}

	counts := make(map[models.RiskLevel]int)
	for _, alert := range alerts {
		counts[alert.RiskLevel]++
	}

	log.Info().
		Int("total", len(alerts)).
		Int("critical", counts[models.RiskCritical]).
		Int("high", counts[models.RiskHigh]).
		Int("medium", counts[models.RiskMedium]).
		Int("low", counts[models.RiskLow]+counts[models.RiskInfo]).
		Msg("Daily alert digest")
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer(addr string) {
	if addr == "" {
		addr = ":8090"
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("CompIQ Monitor Scheduler"))
	})

	log.Info().Str("addr", addr).Msg("Health check server starting")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
