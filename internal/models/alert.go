package models

import (
	"errors"
	"fmt"
	"time"
)

// SignalType classifies what kind of competitive move an alert describes
type SignalType string

const (
	SignalProductLaunch     SignalType = "product_launch"
	SignalPricingChange     SignalType = "pricing_change"
	SignalFeatureUpdate     SignalType = "feature_update"
	SignalPartnership       SignalType = "partnership"
	SignalAcquisition       SignalType = "acquisition"
	SignalLeadershipChange  SignalType = "leadership_change"
	SignalMarketingCampaign SignalType = "marketing_campaign"
	SignalCertification     SignalType = "certification"
	SignalExpansion         SignalType = "expansion"
	SignalRegulatory        SignalType = "regulatory"
	SignalOther             SignalType = "other"
)

var signalTypes = map[SignalType]bool{
	SignalProductLaunch:     true,
	SignalPricingChange:     true,
	SignalFeatureUpdate:     true,
	SignalPartnership:       true,
	SignalAcquisition:       true,
	SignalLeadershipChange:  true,
	SignalMarketingCampaign: true,
	SignalCertification:     true,
	SignalExpansion:         true,
	SignalRegulatory:        true,
	SignalOther:             true,
}

// ParseSignalType maps a free-form value from the analysis capability
// onto the closed set, coercing anything unknown to SignalOther.
func ParseSignalType(s string) SignalType {
	if signalTypes[SignalType(s)] {
		return SignalType(s)
	}
	return SignalOther
}

// Title returns the signal type formatted for alert headlines,
// e.g. "pricing_change" -> "Pricing Change".
func (s SignalType) Title() string {
	out := make([]byte, 0, len(s))
	upper := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			out = append(out, ' ')
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

// RiskLevel grades how threatening a detected signal is
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
	RiskInfo     RiskLevel = "info"
)

var riskPriority = map[RiskLevel]int{
	RiskCritical: 5,
	RiskHigh:     4,
	RiskMedium:   3,
	RiskLow:      2,
	RiskInfo:     1,
}

// ParseRiskLevel maps a free-form value from the analysis capability
// onto the closed set, coercing anything unknown to RiskMedium.
func ParseRiskLevel(s string) RiskLevel {
	if _, ok := riskPriority[RiskLevel(s)]; ok {
		return RiskLevel(s)
	}
	return RiskMedium
}

// LookupRiskLevel is the strict variant of ParseRiskLevel for operator
// input: unknown values are rejected instead of coerced.
func LookupRiskLevel(s string) (RiskLevel, bool) {
	_, ok := riskPriority[RiskLevel(s)]
	return RiskLevel(s), ok
}

// Priority returns the numeric rank of the level, higher is worse
func (r RiskLevel) Priority() int {
	return riskPriority[r]
}

// AtLeast reports whether r ranks at or above min
func (r RiskLevel) AtLeast(min RiskLevel) bool {
	return r.Priority() >= min.Priority()
}

// RiskLevelsAtOrAbove returns the levels ranking at or above min, for
// use in storage filters.
func RiskLevelsAtOrAbove(min RiskLevel) []RiskLevel {
	levels := make([]RiskLevel, 0, len(riskPriority))
	for level := range riskPriority {
		if level.AtLeast(min) {
			levels = append(levels, level)
		}
	}
	return levels
}

// AlertStatus tracks an alert through triage
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "new"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusInProgress   AlertStatus = "in_progress"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusDismissed    AlertStatus = "dismissed"
)

// Terminal reports whether the status permits no further transitions
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusDismissed
}

// AlertSource identifies which producer created an alert
type AlertSource string

const (
	AlertSourcePageChange AlertSource = "page_change"
	AlertSourceNews       AlertSource = "news"
	AlertSourceManual     AlertSource = "manual"
)

// ErrTerminalStatus is returned for transitions out of resolved/dismissed
var ErrTerminalStatus = errors.New("alert is in a terminal status")

// Alert is one unit of user-facing competitive intelligence
type Alert struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CompetitorID uint        `gorm:"index;not null" json:"competitor_id"`
	Competitor   *Competitor `gorm:"foreignKey:CompetitorID" json:"competitor,omitempty"`

	// Origin. SourceID points at the snapshot or news item the alert was
	// generated from; the composite unique index is what makes alert
	// creation race-safe. Manual alerts carry a nil SourceID, which the
	// index does not constrain.
	SourceType AlertSource `gorm:"uniqueIndex:idx_alerts_origin;not null" json:"source_type"`
	SourceID   *uint       `gorm:"uniqueIndex:idx_alerts_origin" json:"source_id"`
	SourceURL  string      `json:"source_url"`

	Title       string `gorm:"not null" json:"title"`
	Summary     string `gorm:"type:text" json:"summary"`
	RawContent  string `gorm:"type:text" json:"-"`
	DiffContent string `gorm:"type:text" json:"diff_content,omitempty"`

	SignalType      SignalType `gorm:"default:'other'" json:"signal_type"`
	RiskLevel       RiskLevel  `gorm:"default:'medium';index" json:"risk_level"`
	RiskScore       int        `json:"risk_score"`       // 0-100
	ConfidenceScore int        `json:"confidence_score"` // 0-100

	Analysis             JSON        `gorm:"type:json" json:"analysis"`
	RelevanceExplanation string      `gorm:"type:text" json:"relevance_explanation"`
	Assumptions          StringSlice `gorm:"type:json" json:"assumptions"`
	RecommendedActions   ActionList  `gorm:"type:json" json:"recommended_actions"`
	PlaybookUsed         string      `json:"playbook_used"`

	Status          AlertStatus `gorm:"default:'new';index" json:"status"`
	AssignedTo      string      `json:"assigned_to"`
	ResolutionNotes string      `gorm:"type:text" json:"resolution_notes"`

	DetectedAt     time.Time  `gorm:"autoCreateTime;index" json:"detected_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	ResolvedAt     *time.Time `json:"resolved_at"`

	NotificationSent     bool   `gorm:"default:false" json:"notification_sent"`
	NotificationChannels string `json:"notification_channels"` // comma-separated
}

// Acknowledge moves a new alert to acknowledged and records when.
// Re-acknowledging is a no-op so acknowledged_at keeps its first value.
func (a *Alert) Acknowledge(now time.Time) error {
	switch a.Status {
	case AlertStatusNew:
		a.Status = AlertStatusAcknowledged
		a.AcknowledgedAt = &now
		return nil
	case AlertStatusAcknowledged:
		return nil
	case AlertStatusResolved, AlertStatusDismissed:
		return ErrTerminalStatus
	default:
		return fmt.Errorf("cannot acknowledge alert in status %s", a.Status)
	}
}

// Start moves an acknowledged alert into in_progress
func (a *Alert) Start() error {
	switch a.Status {
	case AlertStatusAcknowledged:
		a.Status = AlertStatusInProgress
		return nil
	case AlertStatusInProgress:
		return nil
	case AlertStatusResolved, AlertStatusDismissed:
		return ErrTerminalStatus
	default:
		return fmt.Errorf("cannot start alert in status %s", a.Status)
	}
}

// Resolve closes an alert from any non-terminal status and records
// when. Resolving an already-resolved alert is a no-op.
func (a *Alert) Resolve(now time.Time, notes string) error {
	switch a.Status {
	case AlertStatusResolved:
		return nil
	case AlertStatusDismissed:
		return ErrTerminalStatus
	}
	a.Status = AlertStatusResolved
	a.ResolvedAt = &now
	if notes != "" {
		a.ResolutionNotes = notes
	}
	return nil
}

// Dismiss discards an alert from any non-terminal status
func (a *Alert) Dismiss() error {
	switch a.Status {
	case AlertStatusDismissed:
		return nil
	case AlertStatusResolved:
		return ErrTerminalStatus
	}
	a.Status = AlertStatusDismissed
	return nil
}
