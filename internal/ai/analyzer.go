package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/pkg/logger"
)

// Content sent to the model is trimmed so one oversized page cannot
// consume the whole context window.
const maxPromptContentChars = 3000

// completer is the slice of Client the analyzer needs. Tests substitute
// a canned implementation.
type completer interface {
	CompleteWithJSON(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// AnalysisResult is the normalized outcome of analyzing one signal.
// Enum fields are always members of their closed sets and scores are
// always within 0-100, whatever the model returned.
type AnalysisResult struct {
	Summary              string
	SignalType           models.SignalType
	RiskLevel            models.RiskLevel
	RiskScore            int
	ConfidenceScore      int
	RelevanceExplanation string
	Assumptions          []string
	RecommendedActions   []models.Action

	// Degraded marks results produced without a usable model response.
	// The signal still surfaces as a medium-risk alert for manual review
	// rather than being dropped.
	Degraded bool
	Raw      string
}

// analysisResponse mirrors the JSON schema the prompts ask for. Scores
// are float64 because models sometimes return them fractional.
type analysisResponse struct {
	Summary              string   `json:"summary"`
	SignalType           string   `json:"signal_type"`
	RiskLevel            string   `json:"risk_level"`
	RiskScore            float64  `json:"risk_score"`
	ConfidenceScore      float64  `json:"confidence_score"`
	RelevanceExplanation string   `json:"relevance_explanation"`
	Assumptions          []string `json:"assumptions"`
	RecommendedActions   []struct {
		Action   string `json:"action"`
		Owner    string `json:"owner"`
		Priority string `json:"priority"`
	} `json:"recommended_actions"`
}

// Analyzer turns raw competitive signals into structured assessments
type Analyzer struct {
	client  completer
	company config.CompanyConfig
	log     *logger.Logger
}

// NewAnalyzer creates an analyzer that judges signals from the given
// company's perspective.
func NewAnalyzer(client completer, company config.CompanyConfig, log *logger.Logger) *Analyzer {
	return &Analyzer{
		client:  client,
		company: company,
		log:     log.WithComponent("analyzer"),
	}
}

// AnalyzePageChange assesses a changed page snapshot. It never returns
// an error: when the model is unreachable or responds with garbage the
// result is degraded, not absent.
func (a *Analyzer) AnalyzePageChange(ctx context.Context, snapshot *models.Snapshot, competitorName string) *AnalysisResult {
	pageType := ""
	url := ""
	if snapshot.Source != nil {
		pageType = snapshot.Source.PageType
		url = snapshot.Source.URL
	}

	changed := snapshot.DiffSummary
	if changed == "" {
		// First-ever diff on a source has no baseline summary, send the
		// extracted page instead.
		changed = "Full page content changed. Current content:\n" + truncate(snapshot.ExtractedText, maxPromptContentChars)
	}

	userPrompt := fmt.Sprintf(PageChangeAnalysisUserPrompt,
		competitorName,
		pageType,
		url,
		changed,
	)

	return a.analyze(ctx, userPrompt)
}

// AnalyzeNews assesses a collected news item. Like AnalyzePageChange it
// always produces a result.
func (a *Analyzer) AnalyzeNews(ctx context.Context, item *models.NewsItem, competitorName string) *AnalysisResult {
	published := "unknown"
	if item.PublishedAt != nil {
		published = item.PublishedAt.Format("2006-01-02")
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	userPrompt := fmt.Sprintf(NewsAnalysisUserPrompt,
		competitorName,
		item.Title,
		item.Source,
		published,
		truncate(content, maxPromptContentChars),
	)

	return a.analyze(ctx, userPrompt)
}

func (a *Analyzer) analyze(ctx context.Context, userPrompt string) *AnalysisResult {
	response, err := a.client.CompleteWithJSON(ctx, a.systemPrompt(), userPrompt)
	if err != nil {
		a.log.Warn().
			Err(err).
			Msg("Analysis request failed, producing degraded result")
		return degradedResult("Automatic analysis failed: "+err.Error(), "")
	}

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(extractJSONObject(response)), &parsed); err != nil {
		a.log.Warn().
			Err(err).
			Str("response", response).
			Msg("Failed to parse analysis response, producing degraded result")
		return degradedResult("Automatic analysis returned an unparseable response.", response)
	}

	result := &AnalysisResult{
		Summary:              parsed.Summary,
		SignalType:           models.ParseSignalType(parsed.SignalType),
		RiskLevel:            models.ParseRiskLevel(parsed.RiskLevel),
		RiskScore:            models.ClampScore(int(math.Round(parsed.RiskScore))),
		ConfidenceScore:      models.ClampScore(int(math.Round(parsed.ConfidenceScore))),
		RelevanceExplanation: parsed.RelevanceExplanation,
		Assumptions:          parsed.Assumptions,
		Raw:                  response,
	}
	for _, action := range parsed.RecommendedActions {
		result.RecommendedActions = append(result.RecommendedActions, models.Action{
			Action:   action.Action,
			Owner:    action.Owner,
			Priority: action.Priority,
		})
	}
	return result
}

func (a *Analyzer) systemPrompt() string {
	return fmt.Sprintf(AnalysisSystemPrompt,
		a.company.Name,
		a.company.Description,
		a.company.Industry,
		strings.Join(a.company.Products, ", "),
	)
}

func degradedResult(explanation, raw string) *AnalysisResult {
	return &AnalysisResult{
		Summary:              "Automatic analysis was unavailable for this signal.",
		SignalType:           models.SignalOther,
		RiskLevel:            models.RiskMedium,
		RiskScore:            50,
		ConfidenceScore:      0,
		RelevanceExplanation: explanation,
		RecommendedActions: []models.Action{
			{Action: "Review the source material manually", Owner: "product", Priority: "medium"},
		},
		Degraded: true,
		Raw:      raw,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
