package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer. One pooled connection serializes
	// overlapping orchestrator runs instead of surfacing busy errors.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Competitor{},
		&models.Source{},
		&models.Snapshot{},
		&models.NewsItem{},
		&models.Alert{},
		&models.Insight{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Competitor operations

func (r *Repository) CreateCompetitor(ctx context.Context, competitor *models.Competitor) error {
	return r.db.WithContext(ctx).Create(competitor).Error
}

func (r *Repository) GetCompetitorByID(ctx context.Context, id uint) (*models.Competitor, error) {
	var competitor models.Competitor
	if err := r.db.WithContext(ctx).First(&competitor, id).Error; err != nil {
		return nil, err
	}
	return &competitor, nil
}

func (r *Repository) GetCompetitorByName(ctx context.Context, name string) (*models.Competitor, error) {
	var competitor models.Competitor
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&competitor).Error; err != nil {
		return nil, err
	}
	return &competitor, nil
}

func (r *Repository) ListCompetitors(ctx context.Context, activeOnly bool) ([]*models.Competitor, error) {
	var competitors []*models.Competitor
	query := r.db.WithContext(ctx).Model(&models.Competitor{}).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&competitors).Error; err != nil {
		return nil, err
	}
	return competitors, nil
}

func (r *Repository) UpdateCompetitor(ctx context.Context, competitor *models.Competitor) error {
	return r.db.WithContext(ctx).Save(competitor).Error
}

// Source operations

func (r *Repository) CreateSource(ctx context.Context, source *models.Source) error {
	return r.db.WithContext(ctx).Create(source).Error
}

func (r *Repository) GetSourceByID(ctx context.Context, id uint) (*models.Source, error) {
	var source models.Source
	if err := r.db.WithContext(ctx).Preload("Competitor").First(&source, id).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

func (r *Repository) GetSourceByURL(ctx context.Context, url string) (*models.Source, error) {
	var source models.Source
	if err := r.db.WithContext(ctx).Preload("Competitor").Where("url = ?", url).First(&source).Error; err != nil {
		return nil, err
	}
	return &source, nil
}

func (r *Repository) ListSources(ctx context.Context, filter storage.SourceFilter) ([]*models.Source, error) {
	var sources []*models.Source
	query := r.db.WithContext(ctx).Model(&models.Source{}).Preload("Competitor")

	if filter.CompetitorID != nil {
		query = query.Where("competitor_id = ?", *filter.CompetitorID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.PageType != nil {
		query = query.Where("page_type = ?", *filter.PageType)
	}

	query = query.Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Repository) ListActiveSources(ctx context.Context) ([]*models.Source, error) {
	var sources []*models.Source
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Preload("Competitor").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Repository) UpdateSource(ctx context.Context, source *models.Source) error {
	return r.db.WithContext(ctx).Save(source).Error
}

// Snapshot operations

// RecordCheck persists a snapshot and the updated polling state of its
// source in one transaction, so the stored diff baseline can never
// drift from the newest snapshot.
func (r *Repository) RecordCheck(ctx context.Context, source *models.Source, snapshot *models.Snapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snapshot).Error; err != nil {
			return err
		}
		return tx.Save(source).Error
	})
}

func (r *Repository) GetSnapshotByID(ctx context.Context, id uint) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := r.db.WithContext(ctx).Preload("Source.Competitor").First(&snapshot, id).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListSnapshotsNeedingAlert finds changed snapshots that no alert
// references yet. Discovery is an anti-join over persisted state, not a
// claim flag, so an interrupted run leaves items rediscoverable.
func (r *Repository) ListSnapshotsNeedingAlert(ctx context.Context) ([]*models.Snapshot, error) {
	var snapshots []*models.Snapshot
	if err := r.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Select("snapshots.*").
		Joins("LEFT JOIN alerts ON alerts.source_type = ? AND alerts.source_id = snapshots.id",
			models.AlertSourcePageChange).
		Where("snapshots.has_changes = ? AND alerts.id IS NULL", true).
		Order("snapshots.id ASC").
		Preload("Source.Competitor").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// News operations

func (r *Repository) CreateNewsItem(ctx context.Context, item *models.NewsItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) NewsItemExistsByURL(ctx context.Context, url string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.NewsItem{}).
		Where("url = ?", url).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) ListNewsCollectedSince(ctx context.Context, since time.Time) ([]*models.NewsItem, error) {
	var items []*models.NewsItem
	if err := r.db.WithContext(ctx).
		Where("collected_at >= ?", since).
		Order("collected_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) ListUnprocessedNews(ctx context.Context, limit int) ([]*models.NewsItem, error) {
	var items []*models.NewsItem
	query := r.db.WithContext(ctx).
		Where("is_processed = ?", false).
		Order("collected_at ASC").
		Preload("Competitor")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository) UpdateNewsItem(ctx context.Context, item *models.NewsItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Alert operations

// CreateAlertIfAbsent inserts the alert unless one already exists for
// its (source_type, source_id). The check and the insert run in one
// transaction and the composite unique index backs them up, so a racing
// caller loses cleanly: created=false, no error, existing row wins.
func (r *Repository) CreateAlertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if alert.SourceID != nil {
			var count int64
			if err := tx.Model(&models.Alert{}).
				Where("source_type = ? AND source_id = ?", alert.SourceType, *alert.SourceID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return nil
			}
		}
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return created, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *Repository) GetAlertByID(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).Preload("Competitor").First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *Repository) ListAlerts(ctx context.Context, filter storage.AlertFilter) ([]*models.Alert, error) {
	var alerts []*models.Alert
	query := r.db.WithContext(ctx).Model(&models.Alert{}).Preload("Competitor")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.RiskLevel != nil {
		query = query.Where("risk_level = ?", *filter.RiskLevel)
	}
	if filter.MinRiskLevel != nil {
		query = query.Where("risk_level IN ?", models.RiskLevelsAtOrAbove(*filter.MinRiskLevel))
	}
	if filter.CompetitorID != nil {
		query = query.Where("competitor_id = ?", *filter.CompetitorID)
	}
	if filter.SourceType != nil {
		query = query.Where("source_type = ?", *filter.SourceType)
	}
	if filter.NotificationSent != nil {
		query = query.Where("notification_sent = ?", *filter.NotificationSent)
	}
	if filter.DetectedAfter != nil {
		query = query.Where("detected_at >= ?", *filter.DetectedAfter)
	}

	// Ordering
	orderCol := "detected_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// HasRecentAlert reports whether any alert references the URL at or
// after the cutoff. This backs the news dedup window.
func (r *Repository) HasRecentAlert(ctx context.Context, sourceURL string, since time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("source_url = ? AND detected_at >= ?", sourceURL, since).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) UpdateAlert(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

// Insight operations

func (r *Repository) CreateInsight(ctx context.Context, insight *models.Insight) error {
	return r.db.WithContext(ctx).Create(insight).Error
}

func (r *Repository) GetInsightByAlertID(ctx context.Context, alertID uint) (*models.Insight, error) {
	var insight models.Insight
	if err := r.db.WithContext(ctx).Where("alert_id = ?", alertID).First(&insight).Error; err != nil {
		return nil, err
	}
	return &insight, nil
}

func (r *Repository) ListInsights(ctx context.Context, limit int) ([]*models.Insight, error) {
	var insights []*models.Insight
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&insights).Error; err != nil {
		return nil, err
	}
	return insights, nil
}
