package models

import (
	"time"
)

// DefaultCheckInterval is used when a source has no parseable interval
const DefaultCheckInterval = 24 * time.Hour

// Source is a competitor URL polled for content changes, together with
// its polling state. The pipeline never deletes sources; deactivation
// is a flag flip.
type Source struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CompetitorID uint        `gorm:"index;not null" json:"competitor_id"`
	Competitor   *Competitor `gorm:"foreignKey:CompetitorID" json:"competitor,omitempty"`
	URL          string      `gorm:"not null" json:"url"`
	Name         string      `json:"name"`
	PageType     string      `json:"page_type"` // product_page, pricing_page, news_page, docs

	// Polling state, mutated only after a check attempt
	CheckInterval   string     `gorm:"default:'24h'" json:"check_interval"`
	LastCheckedAt   *time.Time `json:"last_checked_at"`
	LastContentHash string     `json:"last_content_hash"`
	LastContent     string     `gorm:"type:text" json:"-"`

	IsActive          bool   `gorm:"default:true" json:"is_active"`
	LastError         string `gorm:"type:text" json:"last_error"`
	ConsecutiveErrors int    `gorm:"default:0" json:"consecutive_errors"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CheckEvery returns the polling interval, falling back to the default
// when the stored value is unset or unparseable.
func (s *Source) CheckEvery() time.Duration {
	d, err := time.ParseDuration(s.CheckInterval)
	if err != nil || d <= 0 {
		return DefaultCheckInterval
	}
	return d
}

// IsDue reports whether the source should be checked at the given time.
// A source that has never been checked is always due.
func (s *Source) IsDue(now time.Time) bool {
	if s.LastCheckedAt == nil {
		return true
	}
	return !now.Before(s.LastCheckedAt.Add(s.CheckEvery()))
}

// RecordFailure notes a failed check. The attempt still counts against
// the interval so a broken site is retried on the normal schedule, not
// in a tight loop. Errors never deactivate a source automatically;
// consecutive_errors is surfaced for operators instead.
func (s *Source) RecordFailure(now time.Time, message string) {
	s.LastError = message
	s.ConsecutiveErrors++
	s.LastCheckedAt = &now
}

// RecordSuccess clears the error state after a successful fetch
func (s *Source) RecordSuccess(now time.Time) {
	s.LastError = ""
	s.ConsecutiveErrors = 0
	s.LastCheckedAt = &now
}
