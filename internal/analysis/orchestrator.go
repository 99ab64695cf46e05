package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/compiq-monitor/internal/ai"
	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage"
	"github.com/compiq-monitor/pkg/logger"
)

const (
	// A second alert for the same URL inside this window is noise, not
	// a new signal. Applies to news only; page changes are already
	// deduplicated per snapshot by the alert origin index.
	dedupWindow = 6 * time.Hour

	maxRawContentChars = 10000
	maxTitleChars      = 100
)

// Notifier delivers a freshly created alert to outbound channels and
// reports the per-channel outcome
type Notifier interface {
	Notify(ctx context.Context, alert *models.Alert) map[string]bool
}

// InsightSource produces the team briefing for an alert
type InsightSource interface {
	GenerateFromAlert(ctx context.Context, alert *models.Alert) (*models.Insight, error)
}

// Orchestrator turns pending signals into alerts: changed snapshots
// and unprocessed news go through analysis, relevant ones become
// alerts, and alert creation triggers notifications and insights.
type Orchestrator struct {
	repo     storage.Repository
	analyzer *ai.Analyzer
	notifier Notifier
	insights InsightSource
	cfg      config.AnalysisConfig
	log      *logger.Logger
}

// NewOrchestrator creates an orchestrator. notifier and insights may be
// nil, which disables the respective side effect.
func NewOrchestrator(
	repo storage.Repository,
	analyzer *ai.Analyzer,
	notifier Notifier,
	insights InsightSource,
	cfg config.AnalysisConfig,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		analyzer: analyzer,
		notifier: notifier,
		insights: insights,
		cfg:      cfg,
		log:      log.WithComponent("analysis"),
	}
}

// Result contains the results of one analysis cycle
type Result struct {
	PageChangesProcessed int
	NewsProcessed        int
	AlertsCreated        int
	Errors               []error
	Duration             time.Duration
}

// ProcessPending runs one analysis cycle over everything waiting:
// changed snapshots without alerts first, then unprocessed news. Safe
// to call concurrently and safe to rerun after a crash; the alert
// origin index makes creation idempotent.
func (o *Orchestrator) ProcessPending(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	result := &Result{}

	o.log.Info().Msg("Starting analysis cycle")

	if err := o.processSnapshots(ctx, result); err != nil {
		return result, err
	}
	if err := o.processNews(ctx, result); err != nil {
		return result, err
	}

	result.Duration = time.Since(startTime)

	o.log.Info().
		Int("page_changes", result.PageChangesProcessed).
		Int("news_items", result.NewsProcessed).
		Int("alerts_created", result.AlertsCreated).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Analysis cycle complete")

	return result, nil
}

func (o *Orchestrator) processSnapshots(ctx context.Context, result *Result) error {
	snapshots, err := o.repo.ListSnapshotsNeedingAlert(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots needing alerts: %w", err)
	}

	for _, snapshot := range snapshots {
		created, err := o.processSnapshot(ctx, snapshot)
		if err != nil {
			result.Errors = append(result.Errors, err)
			o.log.Warn().
				Err(err).
				Uint("snapshot_id", snapshot.ID).
				Msg("Snapshot analysis failed")
			continue
		}
		result.PageChangesProcessed++
		if created {
			result.AlertsCreated++
		}
	}
	return nil
}

func (o *Orchestrator) processSnapshot(ctx context.Context, snapshot *models.Snapshot) (bool, error) {
	if snapshot.Source == nil {
		return false, fmt.Errorf("snapshot %d has no source", snapshot.ID)
	}
	competitorName := "Unknown competitor"
	if snapshot.Source.Competitor != nil {
		competitorName = snapshot.Source.Competitor.Name
	}

	analysis := o.analyzer.AnalyzePageChange(ctx, snapshot, competitorName)

	alert := &models.Alert{
		CompetitorID:         snapshot.Source.CompetitorID,
		SourceType:           models.AlertSourcePageChange,
		SourceID:             &snapshot.ID,
		SourceURL:            snapshot.Source.URL,
		Title:                fmt.Sprintf("%s: %s Detected", competitorName, analysis.SignalType.Title()),
		Summary:              analysis.Summary,
		RawContent:           truncate(snapshot.ExtractedText, maxRawContentChars),
		DiffContent:          snapshot.DiffSummary,
		SignalType:           analysis.SignalType,
		RiskLevel:            analysis.RiskLevel,
		RiskScore:            analysis.RiskScore,
		ConfidenceScore:      analysis.ConfidenceScore,
		Analysis:             models.JSON{"degraded": analysis.Degraded},
		RelevanceExplanation: analysis.RelevanceExplanation,
		Assumptions:          models.StringSlice(analysis.Assumptions),
		RecommendedActions:   models.ActionList(analysis.RecommendedActions),
		PlaybookUsed:         "page_change_analysis",
	}

	created, err := o.repo.CreateAlertIfAbsent(ctx, alert)
	if err != nil {
		return false, fmt.Errorf("failed to create alert for snapshot %d: %w", snapshot.ID, err)
	}
	if !created {
		o.log.Debug().
			Uint("snapshot_id", snapshot.ID).
			Msg("Snapshot already has an alert")
		return false, nil
	}

	o.log.Info().
		Uint("alert_id", alert.ID).
		Str("competitor", competitorName).
		Str("risk_level", string(alert.RiskLevel)).
		Str("signal_type", string(alert.SignalType)).
		Msg("Alert created from page change")

	o.afterCreate(ctx, alert)
	return true, nil
}

func (o *Orchestrator) processNews(ctx context.Context, result *Result) error {
	items, err := o.repo.ListUnprocessedNews(ctx, o.cfg.NewsBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list unprocessed news: %w", err)
	}

	for _, item := range items {
		created, err := o.processNewsItem(ctx, item)
		if err != nil {
			result.Errors = append(result.Errors, err)
			o.log.Warn().
				Err(err).
				Uint("news_id", item.ID).
				Msg("News analysis failed")
			continue
		}
		result.NewsProcessed++
		if created {
			result.AlertsCreated++
		}
	}
	return nil
}

func (o *Orchestrator) processNewsItem(ctx context.Context, item *models.NewsItem) (bool, error) {
	// Same article re-collected from another feed inside the window is
	// a duplicate, not news.
	recent, err := o.repo.HasRecentAlert(ctx, item.URL, time.Now().Add(-dedupWindow))
	if err != nil {
		return false, fmt.Errorf("failed to check recent alerts for news %d: %w", item.ID, err)
	}
	if recent {
		item.IsProcessed = true
		if err := o.repo.UpdateNewsItem(ctx, item); err != nil {
			return false, fmt.Errorf("failed to mark news %d processed: %w", item.ID, err)
		}
		o.log.Debug().
			Uint("news_id", item.ID).
			Str("url", item.URL).
			Msg("News item already alerted recently")
		return false, nil
	}

	competitorName := "the industry"
	if item.Competitor != nil {
		competitorName = item.Competitor.Name
	}

	analysis := o.analyzer.AnalyzeNews(ctx, item, competitorName)
	relevant := analysis.RiskScore >= o.cfg.RelevanceThreshold

	created := false
	if relevant && item.CompetitorID != nil {
		content := item.Content
		if content == "" {
			content = item.Description
		}
		alert := &models.Alert{
			CompetitorID:         *item.CompetitorID,
			SourceType:           models.AlertSourceNews,
			SourceID:             &item.ID,
			SourceURL:            item.URL,
			Title:                fmt.Sprintf("%s: %s", competitorName, clipTitle(item.Title, maxTitleChars)),
			Summary:              analysis.Summary,
			RawContent:           truncate(content, maxRawContentChars),
			SignalType:           analysis.SignalType,
			RiskLevel:            analysis.RiskLevel,
			RiskScore:            analysis.RiskScore,
			ConfidenceScore:      analysis.ConfidenceScore,
			Analysis:             models.JSON{"degraded": analysis.Degraded},
			RelevanceExplanation: analysis.RelevanceExplanation,
			Assumptions:          models.StringSlice(analysis.Assumptions),
			RecommendedActions:   models.ActionList(analysis.RecommendedActions),
			PlaybookUsed:         "news_analysis",
		}

		created, err = o.repo.CreateAlertIfAbsent(ctx, alert)
		if err != nil {
			return false, fmt.Errorf("failed to create alert for news %d: %w", item.ID, err)
		}
		if created {
			o.log.Info().
				Uint("alert_id", alert.ID).
				Str("competitor", competitorName).
				Str("risk_level", string(alert.RiskLevel)).
				Msg("Alert created from news")
			o.afterCreate(ctx, alert)
		}
	} else if relevant {
		o.log.Info().
			Uint("news_id", item.ID).
			Str("title", item.Title).
			Msg("Relevant industry news has no competitor, skipping alert")
	}

	// Marked processed only after alert creation so a crash in between
	// replays the item into the idempotent creation path.
	item.IsProcessed = true
	item.IsRelevant = &relevant
	if err := o.repo.UpdateNewsItem(ctx, item); err != nil {
		return false, fmt.Errorf("failed to mark news %d processed: %w", item.ID, err)
	}

	return created, nil
}

// afterCreate runs the side effects of a newly created alert. Failures
// here never undo the alert.
func (o *Orchestrator) afterCreate(ctx context.Context, alert *models.Alert) {
	if o.notifier != nil {
		o.notifier.Notify(ctx, alert)
	}
	if o.insights != nil && alert.RiskLevel.AtLeast(models.RiskHigh) {
		if _, err := o.insights.GenerateFromAlert(ctx, alert); err != nil {
			o.log.Warn().
				Err(err).
				Uint("alert_id", alert.ID).
				Msg("Insight generation failed")
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func clipTitle(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
