package models

import (
	"strings"
	"time"
)

// Competitor is a company whose public surface we watch
type Competitor struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	LogoURL     string    `json:"logo_url"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SearchTerms returns the news search queries for this competitor: the
// full name, plus the leading word alone when the name has several and
// the word is distinctive enough (e.g. "Acme Instruments" also
// searches "Acme").
func (c *Competitor) SearchTerms() []string {
	terms := []string{c.Name}
	if words := strings.Fields(c.Name); len(words) > 1 && len(words[0]) > 3 {
		terms = append(terms, words[0])
	}
	return terms
}
