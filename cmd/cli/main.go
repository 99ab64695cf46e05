package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

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
		Use:   "compiq",
		Short: "Competitor monitoring powered by AI",
		Long: `Tracks competitor web pages and news, detects meaningful changes
and turns them into risk-scored alerts with actionable insights.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(newsCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(notifyCmd())
	rootCmd.AddCommand(competitorsCmd())
	rootCmd.AddCommand(sourcesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// ============ INIT COMMAND ============

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a starter config and initialize the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Database was created and migrated by initializeApp
			fmt.Printf("Database ready at %s\n", cfg.Database.DSN)

			configPath := filepath.Join("configs", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				fmt.Printf("Config already exists at %s, leaving it untouched\n", configPath)
			} else {
				if err := os.MkdirAll("configs", 0o755); err != nil {
					return fmt.Errorf("failed to create configs directory: %w", err)
				}
				if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
					return fmt.Errorf("failed to write starter config: %w", err)
				}
				fmt.Printf("Starter config written to %s\n", configPath)
			}

			fmt.Println("\nNext steps:")
			fmt.Println("  1. Set COMPIQ_ANTHROPIC_API_KEY (or anthropic.api_key in the config)")
			fmt.Println("  2. Describe your own company under the 'company' section")
			fmt.Println("  3. compiq competitors add --name \"Acme Corp\" --website https://acme.example")
			fmt.Println("  4. compiq sources add --competitor-id 1 --url https://acme.example/pricing --type pricing_page")
			fmt.Println("  5. compiq monitor run")

			return nil
		},
	}
}

const starterConfig = `# CompIQ Monitor configuration.
# Every key can be overridden via COMPIQ_* environment variables,
# e.g. COMPIQ_ANTHROPIC_API_KEY, COMPIQ_DATABASE_DSN.

database:
  dsn: ./data/compiq.db

anthropic:
  api_key: ""
  model: claude-sonnet-4-20250514
  max_tokens: 4096
  temperature: 0.3

company:
  name: ""
  description: ""
  industry: ""
  products: []

monitor:
  default_check_interval: 24h
  fetch_timeout: 30s
  respect_robots_txt: true

news:
  enabled: true
  google_news: true
  lookback_days: 7
  fetch_full_content: false
  feeds: []
  # feeds:
  #   - name: TechCrunch
  #     url: https://techcrunch.com/feed/

analysis:
  relevance_threshold: 40
  news_batch_size: 25

notifications:
  enabled: false
  slack_webhook_url: ""
  teams_webhook_url: ""
  min_risk_level: high

scheduler:
  monitor_cron: "0 */6 * * *"
  news_cron: "30 */4 * * *"
  digest_cron: "0 8 * * *"
  run_on_start: false
  health_addr: ":8090"

logging:
  level: info
  format: console
`

// ============ MONITOR COMMANDS ============

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Page monitoring commands",
	}

	cmd.AddCommand(monitorRunCmd())
	return cmd
}

func monitorRunCmd() *cobra.Command {
	var force bool
	var sourceURL string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check monitored pages for changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			limiter := ratelimit.NewDefaultLimiter()
			fetcher := newFetcher()
			mon := monitor.NewMonitor(repo, fetcher, limiter, log)

			if sourceURL != "" {
				src, err := repo.GetSourceByURL(ctx, sourceURL)
				if err != nil {
					return fmt.Errorf("source not found for %s: %w", sourceURL, err)
				}

				snapshot, err := mon.CheckSource(ctx, src)
				if err != nil {
					return err
				}

				fmt.Printf("\n=== Check Result ===\n")
				fmt.Printf("Source:  [%d] %s\n", src.ID, src.URL)
				fmt.Printf("Changed: %v\n", snapshot.HasChanges)
				if snapshot.DiffSummary != "" {
					fmt.Printf("\n%s\n", snapshot.DiffSummary)
				}
				return nil
			}

			result, err := mon.CheckAll(ctx, force)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Monitoring Results ===\n")
			fmt.Printf("Sources Checked: %d\n", result.SourcesChecked)
			fmt.Printf("Sources Skipped: %d\n", result.SourcesSkipped)
			fmt.Printf("Changes Found:   %d\n", result.ChangesFound)
			fmt.Printf("Failures:        %d\n", result.Failures)

			if result.ChangesFound > 0 {
				fmt.Println("\nRun 'compiq analyze run' to turn the detected changes into alerts.")
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Check all sources regardless of their interval")
	cmd.Flags().StringVar(&sourceURL, "url", "", "Check a single source by URL")
	return cmd
}

// ============ NEWS COMMANDS ============

func newsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "news",
		Short: "News collection commands",
	}

	cmd.AddCommand(newsCollectCmd())
	return cmd
}

func newsCollectCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect competitor news from RSS and Google News",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			newsCfg := cfg.News
			if days > 0 {
				newsCfg.LookbackDays = days
			}

			limiter := ratelimit.NewDefaultLimiter()
			collector := news.NewCollector(repo, newsCfg, limiter, log)

			result, err := collector.CollectAll(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== News Collection Results ===\n")
			fmt.Printf("Feeds Polled:  %d\n", result.FeedsPolled)
			fmt.Printf("Items Seen:    %d\n", result.ItemsSeen)
			fmt.Printf("Items Stored:  %d\n", result.ItemsStored)
			fmt.Printf("Items Skipped: %d\n", result.ItemsSkipped)
			fmt.Printf("Duration:      %s\n", result.Duration)

			if len(result.Errors) > 0 {
				fmt.Printf("\nErrors:\n")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			if result.ItemsStored > 0 {
				fmt.Println("\nRun 'compiq analyze run' to score the collected items.")
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Override the news lookback window in days")
	return cmd
}

// ============ ANALYZE COMMANDS ============

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analysis commands",
	}

	cmd.AddCommand(analyzeRunCmd())
	return cmd
}

func analyzeRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze pending changes and news into alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			limiter := ratelimit.NewDefaultLimiter()
			aiClient := ai.NewClient(cfg.Anthropic, limiter, log)
			analyzer := ai.NewAnalyzer(aiClient, cfg.Company, log)
			insights := ai.NewInsightGenerator(aiClient, repo, cfg.Company, log)
			notifier := notify.New(cfg.Notifications, repo, log)

			orchestrator := analysis.NewOrchestrator(repo, analyzer, notifier, insights, cfg.Analysis, log)

			result, err := orchestrator.ProcessPending(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Analysis Results ===\n")
			fmt.Printf("Page Changes Processed: %d\n", result.PageChangesProcessed)
			fmt.Printf("News Items Processed:   %d\n", result.NewsProcessed)
			fmt.Printf("Alerts Created:         %d\n", result.AlertsCreated)
			fmt.Printf("Duration:               %s\n", result.Duration)

			if len(result.Errors) > 0 {
				fmt.Printf("\nErrors:\n")
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			if result.AlertsCreated > 0 {
				fmt.Println("\nRun 'compiq alerts list' to review the new alerts.")
			}

			return nil
		},
	}

	return cmd
}

// ============ ALERTS COMMANDS ============

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and triage alerts",
	}

	cmd.AddCommand(alertsListCmd())
	cmd.AddCommand(alertsShowCmd())
	cmd.AddCommand(alertsAcknowledgeCmd())
	cmd.AddCommand(alertsStartCmd())
	cmd.AddCommand(alertsResolveCmd())
	cmd.AddCommand(alertsDismissCmd())
	return cmd
}

func alertsListCmd() *cobra.Command {
	var status string
	var risk string
	var competitorID uint
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultAlertFilter()
			filter.Limit = limit

			if status != "" {
				s := models.AlertStatus(status)
				filter.Status = &s
			}

			if risk != "" {
				level, ok := models.LookupRiskLevel(risk)
				if !ok {
					return fmt.Errorf("unknown risk level %q (use info, low, medium, high or critical)", risk)
				}
				filter.MinRiskLevel = &level
			}

			if competitorID > 0 {
				filter.CompetitorID = &competitorID
			}

			alerts, err := repo.ListAlerts(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Alerts (%d) ===\n\n", len(alerts))
			for _, a := range alerts {
				competitorName := "N/A"
				if a.Competitor != nil {
					competitorName = a.Competitor.Name
				}

				fmt.Printf("[%d] %s (%d) | %s\n", a.ID, strings.ToUpper(string(a.RiskLevel)), a.RiskScore, a.Title)
				fmt.Printf("    Competitor: %s | Signal: %s | Status: %s\n", competitorName, a.SignalType, a.Status)
				fmt.Printf("    Detected: %s | Origin: %s\n", a.DetectedAt.Format(time.RFC1123), a.SourceType)
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (new, acknowledged, in_progress, resolved, dismissed)")
	cmd.Flags().StringVar(&risk, "min-risk", "", "Minimum risk level (info, low, medium, high, critical)")
	cmd.Flags().UintVar(&competitorID, "competitor-id", 0, "Filter by competitor")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum alerts to show")

	return cmd
}

func alertsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [alert-id]",
		Short: "Show one alert in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			alert, err := getAlertArg(ctx, args[0])
			if err != nil {
				return err
			}

			competitorName := "N/A"
			if alert.Competitor != nil {
				competitorName = alert.Competitor.Name
			}

			fmt.Printf("\n=== Alert %d ===\n", alert.ID)
			fmt.Printf("Title:      %s\n", alert.Title)
			fmt.Printf("Competitor: %s\n", competitorName)
			fmt.Printf("Risk:       %s (score %d, confidence %d)\n", alert.RiskLevel, alert.RiskScore, alert.ConfidenceScore)
			fmt.Printf("Signal:     %s\n", alert.SignalType)
			fmt.Printf("Status:     %s\n", alert.Status)
			fmt.Printf("Origin:     %s", alert.SourceType)
			if alert.SourceURL != "" {
				fmt.Printf(" (%s)", alert.SourceURL)
			}
			fmt.Println()
			fmt.Printf("Detected:   %s\n", alert.DetectedAt.Format(time.RFC1123))

			if alert.Summary != "" {
				fmt.Printf("\n--- Summary ---\n%s\n", alert.Summary)
			}
			if alert.RelevanceExplanation != "" {
				fmt.Printf("\n--- Why It Matters ---\n%s\n", alert.RelevanceExplanation)
			}
			if alert.DiffContent != "" {
				fmt.Printf("\n--- Detected Change ---\n%s\n", alert.DiffContent)
			}
			if len(alert.Assumptions) > 0 {
				fmt.Printf("\n--- Assumptions ---\n")
				for _, assumption := range alert.Assumptions {
					fmt.Printf("  - %s\n", assumption)
				}
			}
			if len(alert.RecommendedActions) > 0 {
				fmt.Printf("\n--- Recommended Actions ---\n")
				for _, action := range alert.RecommendedActions {
					fmt.Printf("  - [%s, %s priority] %s\n", action.Owner, action.Priority, action.Action)
				}
			}
			if alert.ResolutionNotes != "" {
				fmt.Printf("\n--- Resolution Notes ---\n%s\n", alert.ResolutionNotes)
			}

			insight, err := repo.GetInsightByAlertID(ctx, alert.ID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if insight != nil {
				fmt.Printf("\n=== Insight: %s ===\n", insight.Title)
				fmt.Printf("Impact %d | Urgency %d | Confidence %d\n", insight.ImpactScore, insight.UrgencyScore, insight.ConfidenceScore)
				if insight.ExecutiveSummary != "" {
					fmt.Printf("\n%s\n", insight.ExecutiveSummary)
				}
				printInsightSection("Sales", insight.SalesInsights)
				printInsightSection("Marketing", insight.MarketingInsights)
				printInsightSection("Product", insight.ProductInsights)
				printActionPhase("Immediate", insight.ImmediateActions)
				printActionPhase("Short Term", insight.ShortTermActions)
				printActionPhase("Long Term", insight.LongTermActions)
			}

			return nil
		},
	}

	return cmd
}

func alertsAcknowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acknowledge [alert-id]",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			alert, err := getAlertArg(ctx, args[0])
			if err != nil {
				return err
			}

			if err := alert.Acknowledge(time.Now()); err != nil {
				return err
			}
			if err := repo.UpdateAlert(ctx, alert); err != nil {
				return err
			}

			fmt.Printf("Alert %d acknowledged\n", alert.ID)
			return nil
		},
	}

	return cmd
}

func alertsStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [alert-id]",
		Short: "Mark an alert as being worked on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			alert, err := getAlertArg(ctx, args[0])
			if err != nil {
				return err
			}

			if err := alert.Start(); err != nil {
				return err
			}
			if err := repo.UpdateAlert(ctx, alert); err != nil {
				return err
			}

			fmt.Printf("Alert %d is now in progress\n", alert.ID)
			return nil
		},
	}

	return cmd
}

func alertsResolveCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve [alert-id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			alert, err := getAlertArg(ctx, args[0])
			if err != nil {
				return err
			}

			if err := alert.Resolve(time.Now(), notes); err != nil {
				return err
			}
			if err := repo.UpdateAlert(ctx, alert); err != nil {
				return err
			}

			fmt.Printf("Alert %d resolved\n", alert.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Resolution notes")
	return cmd
}

func alertsDismissCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dismiss [alert-id]",
		Short: "Dismiss an alert as not relevant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			alert, err := getAlertArg(ctx, args[0])
			if err != nil {
				return err
			}

			if err := alert.Dismiss(); err != nil {
				return err
			}
			if err := repo.UpdateAlert(ctx, alert); err != nil {
				return err
			}

			fmt.Printf("Alert %d dismissed\n", alert.ID)
			return nil
		},
	}

	return cmd
}

// ============ NOTIFY COMMANDS ============

func notifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification commands",
	}

	cmd.AddCommand(notifySendCmd())
	return cmd
}

func notifySendCmd() *cobra.Command {
	var minRisk string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Deliver pending alert notifications to webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			notifyCfg := cfg.Notifications
			if minRisk != "" {
				if _, ok := models.LookupRiskLevel(minRisk); !ok {
					return fmt.Errorf("unknown risk level %q (use info, low, medium, high or critical)", minRisk)
				}
				notifyCfg.MinRiskLevel = minRisk
			}

			notifier := notify.New(notifyCfg, repo, log)

			sent, err := notifier.SendPending(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Notifications sent: %d\n", sent)
			return nil
		},
	}

	cmd.Flags().StringVar(&minRisk, "min-risk", "", "Override the minimum risk level for this run")
	return cmd
}

// ============ COMPETITORS COMMANDS ============

func competitorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "competitors",
		Short: "Manage tracked competitors",
	}

	cmd.AddCommand(competitorsListCmd())
	cmd.AddCommand(competitorsAddCmd())
	cmd.AddCommand(competitorsRemoveCmd())
	return cmd
}

func competitorsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked competitors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			competitors, err := repo.ListCompetitors(ctx, !all)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Competitors (%d) ===\n\n", len(competitors))
			for _, c := range competitors {
				marker := ""
				if !c.IsActive {
					marker = " [inactive]"
				}
				fmt.Printf("[%d] %s%s\n", c.ID, c.Name, marker)
				if c.Website != "" {
					fmt.Printf("    Website: %s\n", c.Website)
				}
				if c.Description != "" {
					fmt.Printf("    %s\n", truncateStr(c.Description, 120))
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated competitors")
	return cmd
}

func competitorsAddCmd() *cobra.Command {
	var name string
	var website string
	var description string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a competitor to track",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			competitor := &models.Competitor{
				Name:        name,
				Website:     website,
				Description: description,
				IsActive:    true,
			}

			if err := repo.CreateCompetitor(ctx, competitor); err != nil {
				return fmt.Errorf("failed to add competitor: %w", err)
			}

			fmt.Printf("Competitor %d added: %s\n", competitor.ID, competitor.Name)
			fmt.Printf("Add pages to watch with 'compiq sources add --competitor-id %d --url <url>'\n", competitor.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Competitor name (required)")
	cmd.Flags().StringVar(&website, "website", "", "Competitor website")
	cmd.Flags().StringVar(&description, "description", "", "What this competitor does")
	cmd.MarkFlagRequired("name")

	return cmd
}

func competitorsRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove [competitor-id]",
		Short: "Stop tracking a competitor",
		Long: `Deactivates a competitor and all of its monitored sources.
History, snapshots and alerts are retained.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := parseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid competitor ID: %w", err)
			}

			competitor, err := repo.GetCompetitorByID(ctx, id)
			if err != nil {
				return fmt.Errorf("competitor not found: %w", err)
			}

			competitor.IsActive = false
			if err := repo.UpdateCompetitor(ctx, competitor); err != nil {
				return err
			}

			// Deactivate the competitor's sources so the monitor stops
			// polling them
			sources, err := repo.ListSources(ctx, storage.SourceFilter{CompetitorID: &competitor.ID})
			if err != nil {
				return err
			}
			deactivated := 0
			for _, src := range sources {
				if !src.IsActive {
					continue
				}
				src.IsActive = false
				if err := repo.UpdateSource(ctx, src); err != nil {
					return err
				}
				deactivated++
			}

			fmt.Printf("Competitor %d (%s) removed from monitoring, %d source(s) deactivated\n",
				competitor.ID, competitor.Name, deactivated)
			return nil
		},
	}

	return cmd
}

// ============ SOURCES COMMANDS ============

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage monitored pages",
	}

	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesAddCmd())
	cmd.AddCommand(sourcesRemoveCmd())
	return cmd
}

func sourcesListCmd() *cobra.Command {
	var competitorID uint
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.SourceFilter{}
			if competitorID > 0 {
				filter.CompetitorID = &competitorID
			}
			if !all {
				active := true
				filter.IsActive = &active
			}

			sources, err := repo.ListSources(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Sources (%d) ===\n\n", len(sources))
			for _, s := range sources {
				competitorName := "N/A"
				if s.Competitor != nil {
					competitorName = s.Competitor.Name
				}

				marker := ""
				if !s.IsActive {
					marker = " [inactive]"
				}
				fmt.Printf("[%d] %s%s\n", s.ID, s.URL, marker)
				fmt.Printf("    Competitor: %s | Type: %s | Every: %s\n", competitorName, s.PageType, s.CheckEvery())
				if s.LastCheckedAt != nil {
					fmt.Printf("    Last checked: %s\n", s.LastCheckedAt.Format(time.RFC1123))
				}
				if s.LastError != "" {
					fmt.Printf("    Last error (%d consecutive): %s\n", s.ConsecutiveErrors, truncateStr(s.LastError, 120))
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().UintVar(&competitorID, "competitor-id", 0, "Filter by competitor")
	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated sources")
	return cmd
}

func sourcesAddCmd() *cobra.Command {
	var competitorID uint
	var url string
	var name string
	var pageType string
	var interval string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a page to monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if _, err := repo.GetCompetitorByID(ctx, competitorID); err != nil {
				return fmt.Errorf("competitor %d not found: %w", competitorID, err)
			}

			if interval != "" {
				if _, err := time.ParseDuration(interval); err != nil {
					return fmt.Errorf("invalid check interval %q: %w", interval, err)
				}
			}

			source := &models.Source{
				CompetitorID:  competitorID,
				URL:           url,
				Name:          name,
				PageType:      pageType,
				CheckInterval: interval,
				IsActive:      true,
			}

			if err := repo.CreateSource(ctx, source); err != nil {
				return fmt.Errorf("failed to add source: %w", err)
			}

			fmt.Printf("Source %d added: %s\n", source.ID, source.URL)
			fmt.Printf("It will be checked every %s. Run 'compiq monitor run' to capture a baseline now.\n", source.CheckEvery())
			return nil
		},
	}

	cmd.Flags().UintVar(&competitorID, "competitor-id", 0, "Competitor this page belongs to (required)")
	cmd.Flags().StringVar(&url, "url", "", "Page URL to monitor (required)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable page name")
	cmd.Flags().StringVar(&pageType, "type", "", "Page type (product_page, pricing_page, news_page, docs)")
	cmd.Flags().StringVar(&interval, "interval", "", "Check interval, e.g. 6h or 24h")
	cmd.MarkFlagRequired("competitor-id")
	cmd.MarkFlagRequired("url")

	return cmd
}

func sourcesRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove [source-id]",
		Short: "Stop monitoring a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := parseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid source ID: %w", err)
			}

			source, err := repo.GetSourceByID(ctx, id)
			if err != nil {
				return fmt.Errorf("source not found: %w", err)
			}

			source.IsActive = false
			if err := repo.UpdateSource(ctx, source); err != nil {
				return err
			}

			fmt.Printf("Source %d (%s) deactivated, snapshots retained\n", source.ID, source.URL)
			return nil
		},
	}

	return cmd
}

// ============ HELPERS ============

func newFetcher() *monitor.Fetcher {
	fetchTimeout, err := time.ParseDuration(cfg.Monitor.FetchTimeout)
	if err != nil {
		fetchTimeout = 30 * time.Second
	}
	return monitor.NewFetcher(fetchTimeout, cfg.Monitor.UserAgent, cfg.Monitor.RespectRobotsTxt)
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func getAlertArg(ctx context.Context, arg string) (*models.Alert, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid alert ID: %w", err)
	}

	alert, err := repo.GetAlertByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("alert not found: %w", err)
	}
	return alert, nil
}

func printInsightSection(team string, section models.JSON) {
	if len(section) == 0 {
		return
	}

	fmt.Printf("\n--- %s ---\n", team)
	data, err := json.MarshalIndent(section, "", "  ")
	if err != nil {
		fmt.Printf("  %v\n", section)
		return
	}
	fmt.Println(string(data))
}

func printActionPhase(phase string, actions models.StringSlice) {
	if len(actions) == 0 {
		return
	}

	fmt.Printf("\n--- %s Actions ---\n", phase)
	for _, action := range actions {
		fmt.Printf("  - %s\n", action)
	}
}

// Helper function to truncate strings
func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
