package models

import (
	"time"
)

// NewsItem is one collected article or mention. Created by the news
// collector, consumed exactly once by the analysis orchestrator.
type NewsItem struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CompetitorID *uint       `gorm:"index" json:"competitor_id"` // nil for general industry news
	Competitor   *Competitor `gorm:"foreignKey:CompetitorID" json:"competitor,omitempty"`

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Content     string `gorm:"type:text" json:"-"`
	URL         string `gorm:"index" json:"url"`
	Source      string `json:"source"`
	Author      string `json:"author"`

	PublishedAt *time.Time `json:"published_at"`
	CollectedAt time.Time  `gorm:"autoCreateTime" json:"collected_at"`

	IsProcessed bool  `gorm:"default:false;index" json:"is_processed"`
	IsRelevant  *bool `json:"is_relevant"` // nil until processed
}
