package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/pkg/logger"
)

// stubCompleter returns a canned response and records the prompts it saw.
type stubCompleter struct {
	response string
	err      error

	systemPrompt string
	userPrompt   string
}

func (s *stubCompleter) CompleteWithJSON(_ context.Context, systemPrompt, userMessage string) (string, error) {
	s.systemPrompt = systemPrompt
	s.userPrompt = userMessage
	return s.response, s.err
}

func testCompany() config.CompanyConfig {
	return config.CompanyConfig{
		Name:        "Veritas Instruments",
		Description: "Industrial test and measurement tools",
		Industry:    "Test & Measurement",
		Products:    []string{"VX-100 multimeter", "VX-200 thermal camera"},
	}
}

func newTestAnalyzer(stub *stubCompleter) *Analyzer {
	return NewAnalyzer(stub, testCompany(), logger.New(logger.Config{Level: "error"}))
}

func changedSnapshot() *models.Snapshot {
	return &models.Snapshot{
		ID:          7,
		DiffSummary: "Added (1 lines):\n  + Starter plan: $59/month",
		Source: &models.Source{
			URL:      "https://acme.example/pricing",
			PageType: "pricing",
		},
	}
}

func TestAnalyzePageChangeParsesResponse(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{response: `{
		"summary": "Acme raised the starter plan price by ten dollars.",
		"signal_type": "pricing_change",
		"risk_level": "high",
		"risk_score": 72,
		"confidence_score": 88,
		"relevance_explanation": "Directly affects deals we compete for.",
		"assumptions": ["The change applies to all regions"],
		"recommended_actions": [
			{"action": "Update battlecards", "owner": "sales", "priority": "high"}
		]
	}`}

	result := newTestAnalyzer(stub).AnalyzePageChange(context.Background(), changedSnapshot(), "Acme Instruments")

	if result.Degraded {
		t.Fatal("well-formed response should not degrade")
	}
	if result.SignalType != models.SignalPricingChange {
		t.Fatalf("signal type = %s", result.SignalType)
	}
	if result.RiskLevel != models.RiskHigh {
		t.Fatalf("risk level = %s", result.RiskLevel)
	}
	if result.RiskScore != 72 || result.ConfidenceScore != 88 {
		t.Fatalf("scores = %d/%d", result.RiskScore, result.ConfidenceScore)
	}
	if len(result.RecommendedActions) != 1 || result.RecommendedActions[0].Owner != "sales" {
		t.Fatalf("actions = %+v", result.RecommendedActions)
	}
	if len(result.Assumptions) != 1 {
		t.Fatalf("assumptions = %+v", result.Assumptions)
	}

	// The prompt should carry the company context and the diff.
	if !strings.Contains(stub.systemPrompt, "Veritas Instruments") {
		t.Error("system prompt missing company name")
	}
	if !strings.Contains(stub.userPrompt, "$59/month") {
		t.Error("user prompt missing the diff summary")
	}
	if !strings.Contains(stub.userPrompt, "Acme Instruments") {
		t.Error("user prompt missing the competitor name")
	}
}

func TestAnalyzeCoercesOutOfRangeValues(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{response: `{
		"summary": "Something odd",
		"signal_type": "alien_invasion",
		"risk_level": "catastrophic",
		"risk_score": 150,
		"confidence_score": -5
	}`}

	result := newTestAnalyzer(stub).AnalyzePageChange(context.Background(), changedSnapshot(), "Acme")

	if result.SignalType != models.SignalOther {
		t.Fatalf("unknown signal type should coerce to other, got %s", result.SignalType)
	}
	if result.RiskLevel != models.RiskMedium {
		t.Fatalf("unknown risk level should coerce to medium, got %s", result.RiskLevel)
	}
	if result.RiskScore != 100 {
		t.Fatalf("risk score should clamp to 100, got %d", result.RiskScore)
	}
	if result.ConfidenceScore != 0 {
		t.Fatalf("confidence score should clamp to 0, got %d", result.ConfidenceScore)
	}
	if result.Degraded {
		t.Fatal("out-of-range values are coerced, not degraded")
	}
}

func TestAnalyzeStripsCodeFences(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{response: "Here is my assessment:\n```json\n" +
		`{"summary": "Fenced", "signal_type": "product_launch", "risk_level": "low", "risk_score": 20, "confidence_score": 60}` +
		"\n```\nLet me know if you need more."}

	result := newTestAnalyzer(stub).AnalyzePageChange(context.Background(), changedSnapshot(), "Acme")

	if result.Degraded {
		t.Fatal("fenced JSON should still parse")
	}
	if result.Summary != "Fenced" || result.SignalType != models.SignalProductLaunch {
		t.Fatalf("result = %+v", result)
	}
}

func TestAnalyzeDegradesOnUnparseableResponse(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{response: "I cannot answer in JSON today."}

	result := newTestAnalyzer(stub).AnalyzePageChange(context.Background(), changedSnapshot(), "Acme")

	if !result.Degraded {
		t.Fatal("unparseable response must degrade")
	}
	if result.RiskLevel != models.RiskMedium || result.ConfidenceScore != 0 {
		t.Fatalf("degraded defaults wrong: %+v", result)
	}
	if len(result.RecommendedActions) == 0 ||
		!strings.Contains(result.RecommendedActions[0].Action, "manually") {
		t.Fatalf("degraded result should ask for manual review: %+v", result.RecommendedActions)
	}
}

func TestAnalyzeDegradesOnRequestError(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{err: errors.New("api unreachable")}

	result := newTestAnalyzer(stub).AnalyzeNews(context.Background(), &models.NewsItem{Title: "Acme acquires Widget Co"}, "Acme")

	if !result.Degraded {
		t.Fatal("request errors must degrade, not vanish")
	}
	if !strings.Contains(result.RelevanceExplanation, "api unreachable") {
		t.Fatalf("degraded explanation should carry the cause: %q", result.RelevanceExplanation)
	}
}

func TestAnalyzeNewsPromptUsesDescriptionFallback(t *testing.T) {
	t.Parallel()

	stub := &stubCompleter{response: `{"summary": "ok", "signal_type": "other", "risk_level": "info", "risk_score": 10, "confidence_score": 50}`}
	item := &models.NewsItem{
		Title:       "Acme opens Berlin office",
		Description: "The company announced a new European headquarters.",
		Source:      "Example Wire",
	}

	newTestAnalyzer(stub).AnalyzeNews(context.Background(), item, "Acme")

	if !strings.Contains(stub.userPrompt, "European headquarters") {
		t.Fatal("description should feed the prompt when full content is absent")
	}
	if !strings.Contains(stub.userPrompt, "unknown") {
		t.Fatal("missing publication date should render as unknown")
	}
}
