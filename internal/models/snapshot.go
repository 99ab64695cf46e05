package models

import (
	"time"
)

// Snapshot is one captured observation of a monitored source. Rows are
// immutable once written; change state is derived by diffing against
// the source's baseline at capture time.
type Snapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SourceID      uint      `gorm:"index;not null" json:"source_id"`
	Source        *Source   `gorm:"foreignKey:SourceID" json:"source,omitempty"`
	ContentHash   string    `gorm:"not null" json:"content_hash"`
	Content       string    `gorm:"type:text" json:"-"`
	ExtractedText string    `gorm:"type:text" json:"-"`
	HasChanges    bool      `gorm:"default:false;index" json:"has_changes"`
	DiffSummary   string    `gorm:"type:text" json:"diff_summary"`
	CapturedAt    time.Time `gorm:"autoCreateTime" json:"captured_at"`
}
