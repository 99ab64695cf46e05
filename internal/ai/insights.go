package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"

	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage"
	"github.com/compiq-monitor/pkg/logger"
)

// insightResponse mirrors the JSON schema of the insight prompt
type insightResponse struct {
	Title             string                 `json:"title"`
	ExecutiveSummary  string                 `json:"executive_summary"`
	SalesInsights     map[string]interface{} `json:"sales_insights"`
	MarketingInsights map[string]interface{} `json:"marketing_insights"`
	ProductInsights   map[string]interface{} `json:"product_insights"`
	ImmediateActions  []string               `json:"immediate_actions"`
	ShortTermActions  []string               `json:"short_term_actions"`
	LongTermActions   []string               `json:"long_term_actions"`
	ImpactScore       float64                `json:"impact_score"`
	UrgencyScore      float64                `json:"urgency_score"`
	ConfidenceScore   float64                `json:"confidence_score"`
}

// InsightGenerator produces team briefings from alerts
type InsightGenerator struct {
	client  completer
	repo    storage.Repository
	company config.CompanyConfig
	log     *logger.Logger
}

// NewInsightGenerator creates an insight generator
func NewInsightGenerator(client completer, repo storage.Repository, company config.CompanyConfig, log *logger.Logger) *InsightGenerator {
	return &InsightGenerator{
		client:  client,
		repo:    repo,
		company: company,
		log:     log.WithComponent("insights"),
	}
}

// GenerateFromAlert produces and persists the briefing for an alert.
// Each alert gets at most one insight: a second call returns the
// existing row untouched.
func (g *InsightGenerator) GenerateFromAlert(ctx context.Context, alert *models.Alert) (*models.Insight, error) {
	existing, err := g.repo.GetInsightByAlertID(ctx, alert.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up existing insight: %w", err)
	}

	competitorName := g.competitorName(ctx, alert)

	userPrompt := fmt.Sprintf(InsightUserPrompt,
		competitorName,
		alert.Title,
		alert.SignalType.Title(),
		alert.RiskLevel,
		alert.Summary,
		renderActions(alert.RecommendedActions),
	)

	response, err := g.client.CompleteWithJSON(ctx, g.systemPrompt(), userPrompt)
	if err != nil {
		return nil, fmt.Errorf("insight generation failed: %w", err)
	}

	var parsed insightResponse
	if err := json.Unmarshal([]byte(extractJSONObject(response)), &parsed); err != nil {
		g.log.Error().
			Err(err).
			Str("response", response).
			Msg("Failed to parse insight response")
		return nil, fmt.Errorf("failed to parse insight response: %w", err)
	}

	title := parsed.Title
	if title == "" {
		title = alert.Title
	}

	insight := &models.Insight{
		AlertID:           &alert.ID,
		CompetitorID:      &alert.CompetitorID,
		Title:             title,
		ExecutiveSummary:  parsed.ExecutiveSummary,
		SalesInsights:     models.JSON(parsed.SalesInsights),
		MarketingInsights: models.JSON(parsed.MarketingInsights),
		ProductInsights:   models.JSON(parsed.ProductInsights),
		ImmediateActions:  models.StringSlice(parsed.ImmediateActions),
		ShortTermActions:  models.StringSlice(parsed.ShortTermActions),
		LongTermActions:   models.StringSlice(parsed.LongTermActions),
		ImpactScore:       models.ClampScore(int(math.Round(parsed.ImpactScore))),
		UrgencyScore:      models.ClampScore(int(math.Round(parsed.UrgencyScore))),
		ConfidenceScore:   models.ClampScore(int(math.Round(parsed.ConfidenceScore))),
	}

	if err := g.repo.CreateInsight(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to persist insight: %w", err)
	}

	g.log.Info().
		Uint("alert_id", alert.ID).
		Str("title", insight.Title).
		Msg("Insight generated")

	return insight, nil
}

func (g *InsightGenerator) competitorName(ctx context.Context, alert *models.Alert) string {
	if alert.Competitor != nil {
		return alert.Competitor.Name
	}
	competitor, err := g.repo.GetCompetitorByID(ctx, alert.CompetitorID)
	if err != nil {
		return "Unknown competitor"
	}
	return competitor.Name
}

func (g *InsightGenerator) systemPrompt() string {
	return fmt.Sprintf(InsightSystemPrompt,
		g.company.Name,
		g.company.Description,
		g.company.Industry,
		strings.Join(g.company.Products, ", "),
	)
}

func renderActions(actions models.ActionList) string {
	if len(actions) == 0 {
		return "none"
	}
	var sb strings.Builder
	for _, action := range actions {
		fmt.Fprintf(&sb, "- [%s, %s priority] %s\n", action.Owner, action.Priority, action.Action)
	}
	return strings.TrimRight(sb.String(), "\n")
}
