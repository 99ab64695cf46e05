package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage"
	"github.com/compiq-monitor/pkg/logger"
)

const webhookTimeout = 10 * time.Second

// sendPendingBatch bounds one catch-up pass
const sendPendingBatch = 100

var riskColors = map[models.RiskLevel]string{
	models.RiskCritical: "#d00000",
	models.RiskHigh:     "#e85d04",
	models.RiskMedium:   "#ffba08",
	models.RiskLow:      "#999999",
	models.RiskInfo:     "#999999",
}

// Notifier pushes alerts to Slack and Teams incoming webhooks. Channels
// authenticate by webhook URL, an empty URL disables the channel.
type Notifier struct {
	cfg     config.NotificationsConfig
	repo    storage.Repository
	client  *http.Client
	minRisk models.RiskLevel
	log     *logger.Logger
}

// New creates a notifier from config
func New(cfg config.NotificationsConfig, repo storage.Repository, log *logger.Logger) *Notifier {
	return &Notifier{
		cfg:     cfg,
		repo:    repo,
		client:  &http.Client{Timeout: webhookTimeout},
		minRisk: models.ParseRiskLevel(cfg.MinRiskLevel),
		log:     log.WithComponent("notify"),
	}
}

// Notify delivers one alert to every configured channel, applying the
// risk gate, and records the delivery on the alert. The result maps
// each attempted channel to whether it accepted the message; a nil
// result means no channel was attempted.
func (n *Notifier) Notify(ctx context.Context, alert *models.Alert) map[string]bool {
	if !n.cfg.Enabled {
		return nil
	}
	if !alert.RiskLevel.AtLeast(n.minRisk) {
		n.log.Debug().
			Uint("alert_id", alert.ID).
			Str("risk_level", string(alert.RiskLevel)).
			Msg("Alert below notification risk gate")
		return nil
	}

	results := n.send(ctx, alert)
	succeeded := succeededChannels(results)
	if len(succeeded) == 0 {
		return results
	}

	alert.NotificationSent = true
	alert.NotificationChannels = strings.Join(succeeded, ",")
	if err := n.repo.UpdateAlert(ctx, alert); err != nil {
		n.log.Error().
			Err(err).
			Uint("alert_id", alert.ID).
			Msg("Failed to record notification delivery")
	}

	return results
}

// SendPending is the catch-up path: it notifies alerts that passed the
// risk gate but were never delivered, for example because a webhook was
// down when they were created. Terminal alerts are left alone.
func (n *Notifier) SendPending(ctx context.Context) (int, error) {
	if !n.cfg.Enabled {
		return 0, nil
	}

	notSent := false
	alerts, err := n.repo.ListAlerts(ctx, storage.AlertFilter{
		NotificationSent: &notSent,
		MinRiskLevel:     &n.minRisk,
		Limit:            sendPendingBatch,
		OrderBy:          "detected_at",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list unsent alerts: %w", err)
	}

	sent := 0
	for _, alert := range alerts {
		if alert.Status.Terminal() {
			continue
		}
		if len(succeededChannels(n.Notify(ctx, alert))) > 0 {
			sent++
		}
	}

	if sent > 0 {
		n.log.Info().Int("sent", sent).Msg("Delivered pending notifications")
	}
	return sent, nil
}

func (n *Notifier) send(ctx context.Context, alert *models.Alert) map[string]bool {
	results := make(map[string]bool)

	if n.cfg.SlackWebhookURL != "" {
		err := n.post(ctx, n.cfg.SlackWebhookURL, slackPayload(alert))
		results["slack"] = err == nil
		if err != nil {
			n.log.Warn().
				Err(err).
				Uint("alert_id", alert.ID).
				Msg("Slack delivery failed")
		}
	}

	if n.cfg.TeamsWebhookURL != "" {
		err := n.post(ctx, n.cfg.TeamsWebhookURL, teamsPayload(alert))
		results["teams"] = err == nil
		if err != nil {
			n.log.Warn().
				Err(err).
				Uint("alert_id", alert.ID).
				Msg("Teams delivery failed")
		}
	}

	if len(results) == 0 {
		return nil
	}
	return results
}

// succeededChannels filters delivery results down to accepted ones, in
// the stable slack-then-teams order used for the stored channel list.
func succeededChannels(results map[string]bool) []string {
	var channels []string
	for _, name := range []string{"slack", "teams"} {
		if results[name] {
			channels = append(channels, name)
		}
	}
	return channels
}

func (n *Notifier) post(ctx context.Context, webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook error: %s", resp.Status)
	}
	return nil
}

func riskColor(level models.RiskLevel) string {
	if color, ok := riskColors[level]; ok {
		return color
	}
	return riskColors[models.RiskMedium]
}

func riskLine(alert *models.Alert) string {
	return fmt.Sprintf("%s (%d/100)", alert.RiskLevel, alert.RiskScore)
}

func slackPayload(alert *models.Alert) map[string]interface{} {
	return map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color":      riskColor(alert.RiskLevel),
				"title":      alert.Title,
				"title_link": alert.SourceURL,
				"text":       alert.Summary,
				"fields": []map[string]interface{}{
					{"title": "Risk", "value": riskLine(alert), "short": true},
					{"title": "Signal", "value": alert.SignalType.Title(), "short": true},
				},
				"footer": "CompIQ Monitor",
			},
		},
	}
}

func teamsPayload(alert *models.Alert) map[string]interface{} {
	return map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": strings.TrimPrefix(riskColor(alert.RiskLevel), "#"),
		"summary":    alert.Title,
		"sections": []map[string]interface{}{
			{
				"activityTitle": alert.Title,
				"text":          alert.Summary,
				"facts": []map[string]interface{}{
					{"name": "Risk", "value": riskLine(alert)},
					{"name": "Signal", "value": alert.SignalType.Title()},
					{"name": "Source", "value": alert.SourceURL},
				},
			},
		},
	}
}
