package storage

import (
	"context"
	"time"

	"github.com/compiq-monitor/internal/models"
)

// Repository defines the interface for data persistence
type Repository interface {
	// Competitor operations
	CreateCompetitor(ctx context.Context, competitor *models.Competitor) error
	GetCompetitorByID(ctx context.Context, id uint) (*models.Competitor, error)
	GetCompetitorByName(ctx context.Context, name string) (*models.Competitor, error)
	ListCompetitors(ctx context.Context, activeOnly bool) ([]*models.Competitor, error)
	UpdateCompetitor(ctx context.Context, competitor *models.Competitor) error

	// Source operations
	CreateSource(ctx context.Context, source *models.Source) error
	GetSourceByID(ctx context.Context, id uint) (*models.Source, error)
	GetSourceByURL(ctx context.Context, url string) (*models.Source, error)
	ListSources(ctx context.Context, filter SourceFilter) ([]*models.Source, error)
	ListActiveSources(ctx context.Context) ([]*models.Source, error)
	UpdateSource(ctx context.Context, source *models.Source) error

	// Snapshot operations. RecordCheck persists a snapshot together
	// with the updated polling state of its source in one unit of work
	// so the diff baseline always matches the latest snapshot.
	RecordCheck(ctx context.Context, source *models.Source, snapshot *models.Snapshot) error
	GetSnapshotByID(ctx context.Context, id uint) (*models.Snapshot, error)
	ListSnapshotsNeedingAlert(ctx context.Context) ([]*models.Snapshot, error)

	// News operations
	CreateNewsItem(ctx context.Context, item *models.NewsItem) error
	NewsItemExistsByURL(ctx context.Context, url string) (bool, error)
	ListNewsCollectedSince(ctx context.Context, since time.Time) ([]*models.NewsItem, error)
	ListUnprocessedNews(ctx context.Context, limit int) ([]*models.NewsItem, error)
	UpdateNewsItem(ctx context.Context, item *models.NewsItem) error

	// Alert operations. CreateAlertIfAbsent is the single race-safe
	// entry point for alert creation: at most one alert can exist per
	// (source_type, source_id), and a caller that loses the race gets
	// created=false with no error.
	CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error)
	GetAlertByID(ctx context.Context, id uint) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error)
	HasRecentAlert(ctx context.Context, sourceURL string, since time.Time) (bool, error)
	UpdateAlert(ctx context.Context, alert *models.Alert) error

	// Insight operations
	CreateInsight(ctx context.Context, insight *models.Insight) error
	GetInsightByAlertID(ctx context.Context, alertID uint) (*models.Insight, error)
	ListInsights(ctx context.Context, limit int) ([]*models.Insight, error)

	// Maintenance
	Close() error
	Migrate() error
}

// SourceFilter defines filtering options for monitored sources
type SourceFilter struct {
	CompetitorID *uint
	IsActive     *bool
	PageType     *string
	Limit        int
	Offset       int
}

// AlertFilter defines filtering options for alerts
type AlertFilter struct {
	Status           *models.AlertStatus
	RiskLevel        *models.RiskLevel
	MinRiskLevel     *models.RiskLevel
	CompetitorID     *uint
	SourceType       *models.AlertSource
	NotificationSent *bool
	DetectedAfter    *time.Time
	Limit            int
	Offset           int
	OrderBy          string // "detected_at", "risk_score"
	OrderDesc        bool
}

// DefaultAlertFilter returns a filter with sensible defaults
func DefaultAlertFilter() AlertFilter {
	return AlertFilter{
		Limit:     50,
		OrderBy:   "detected_at",
		OrderDesc: true,
	}
}
