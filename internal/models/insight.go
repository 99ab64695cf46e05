package models

import (
	"time"
)

// Insight is team-facing guidance generated from a high-risk alert or a
// relevant news item. At most one insight exists per alert.
type Insight struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	AlertID      *uint `gorm:"uniqueIndex" json:"alert_id"`
	NewsItemID   *uint `gorm:"index" json:"news_item_id"`
	CompetitorID *uint `gorm:"index" json:"competitor_id"`

	Title            string `gorm:"not null" json:"title"`
	ExecutiveSummary string `gorm:"type:text" json:"executive_summary"`

	// Per-team recommendations, free-form JSON from the model
	SalesInsights     JSON `gorm:"type:json" json:"sales_insights"`
	MarketingInsights JSON `gorm:"type:json" json:"marketing_insights"`
	ProductInsights   JSON `gorm:"type:json" json:"product_insights"`

	ImmediateActions StringSlice `gorm:"type:json" json:"immediate_actions"`
	ShortTermActions StringSlice `gorm:"type:json" json:"short_term_actions"`
	LongTermActions  StringSlice `gorm:"type:json" json:"long_term_actions"`

	ImpactScore     int `json:"impact_score"`     // 0-100
	UrgencyScore    int `json:"urgency_score"`    // 0-100
	ConfidenceScore int `json:"confidence_score"` // 0-100

	IsReviewed bool       `gorm:"default:false" json:"is_reviewed"`
	ReviewedBy string     `json:"reviewed_by"`
	ReviewedAt *time.Time `json:"reviewed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
