package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedSource(t *testing.T, repo *Repository) *models.Source {
	t.Helper()

	ctx := context.Background()
	competitor := &models.Competitor{Name: "Acme Instruments", Website: "https://acme.example"}
	if err := repo.CreateCompetitor(ctx, competitor); err != nil {
		t.Fatalf("create competitor: %v", err)
	}
	source := &models.Source{
		CompetitorID: competitor.ID,
		URL:          "https://acme.example/products",
		PageType:     "product_page",
	}
	if err := repo.CreateSource(ctx, source); err != nil {
		t.Fatalf("create source: %v", err)
	}
	return source
}

func recordSnapshot(t *testing.T, repo *Repository, source *models.Source, hasChanges bool) *models.Snapshot {
	t.Helper()

	snapshot := &models.Snapshot{
		SourceID:    source.ID,
		ContentHash: "abc123",
		HasChanges:  hasChanges,
	}
	if err := repo.RecordCheck(context.Background(), source, snapshot); err != nil {
		t.Fatalf("record check: %v", err)
	}
	return snapshot
}

func TestSnapshotAntiJoinDiscovery(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	source := seedSource(t, repo)

	recordSnapshot(t, repo, source, false)
	changed1 := recordSnapshot(t, repo, source, true)
	changed2 := recordSnapshot(t, repo, source, true)

	pending, err := repo.ListSnapshotsNeedingAlert(ctx)
	if err != nil {
		t.Fatalf("list snapshots needing alert: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending count = %d, want 2", len(pending))
	}
	if pending[0].Source == nil || pending[0].Source.Competitor == nil {
		t.Fatal("discovery should preload source and competitor")
	}

	// Alerting on one snapshot removes it from discovery but not the other.
	created, err := repo.CreateAlertIfAbsent(ctx, &models.Alert{
		CompetitorID: source.CompetitorID,
		SourceType:   models.AlertSourcePageChange,
		SourceID:     &changed1.ID,
		Title:        "Acme: Feature Update Detected",
	})
	if err != nil || !created {
		t.Fatalf("create alert: created=%v err=%v", created, err)
	}

	pending, err = repo.ListSnapshotsNeedingAlert(ctx)
	if err != nil {
		t.Fatalf("list snapshots needing alert: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != changed2.ID {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}

func TestCreateAlertIfAbsentUnderConcurrency(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	source := seedSource(t, repo)
	snapshot := recordSnapshot(t, repo, source, true)

	const racers = 8
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		createdWins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := repo.CreateAlertIfAbsent(ctx, &models.Alert{
				CompetitorID: source.CompetitorID,
				SourceType:   models.AlertSourcePageChange,
				SourceID:     &snapshot.ID,
				Title:        "Acme: Pricing Change Detected",
			})
			if err != nil {
				t.Errorf("create alert: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdWins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if createdWins != 1 {
		t.Fatalf("created wins = %d, want exactly 1", createdWins)
	}

	alerts, err := repo.ListAlerts(ctx, storage.DefaultAlertFilter())
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alert count = %d, want 1", len(alerts))
	}
}

func TestManualAlertsSkipOriginConstraint(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	source := seedSource(t, repo)

	for i := 0; i < 2; i++ {
		created, err := repo.CreateAlertIfAbsent(ctx, &models.Alert{
			CompetitorID: source.CompetitorID,
			SourceType:   models.AlertSourceManual,
			Title:        "Manual observation",
		})
		if err != nil {
			t.Fatalf("create manual alert: %v", err)
		}
		if !created {
			t.Fatal("manual alerts have no origin to collide on")
		}
	}
}

func TestHasRecentAlertWindow(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	source := seedSource(t, repo)

	now := time.Now()
	url := "https://news.example/acme-launch"

	old := recordSnapshot(t, repo, source, true)
	created, err := repo.CreateAlertIfAbsent(ctx, &models.Alert{
		CompetitorID: source.CompetitorID,
		SourceType:   models.AlertSourceNews,
		SourceID:     &old.ID,
		SourceURL:    url,
		Title:        "Acme: launch coverage",
		DetectedAt:   now.Add(-7 * time.Hour),
	})
	if err != nil || !created {
		t.Fatalf("create alert: created=%v err=%v", created, err)
	}

	recent, err := repo.HasRecentAlert(ctx, url, now.Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("has recent alert: %v", err)
	}
	if recent {
		t.Fatal("7h-old alert should fall outside a 6h window")
	}

	fresh := recordSnapshot(t, repo, source, true)
	created, err = repo.CreateAlertIfAbsent(ctx, &models.Alert{
		CompetitorID: source.CompetitorID,
		SourceType:   models.AlertSourceNews,
		SourceID:     &fresh.ID,
		SourceURL:    url,
		Title:        "Acme: launch coverage again",
		DetectedAt:   now.Add(-time.Hour),
	})
	if err != nil || !created {
		t.Fatalf("create alert: created=%v err=%v", created, err)
	}

	recent, err = repo.HasRecentAlert(ctx, url, now.Add(-6*time.Hour))
	if err != nil {
		t.Fatalf("has recent alert: %v", err)
	}
	if !recent {
		t.Fatal("1h-old alert should fall inside a 6h window")
	}
}

func TestUnprocessedNewsQueue(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	for i, title := range []string{"first", "second", "third"} {
		item := &models.NewsItem{Title: title, URL: "https://news.example/" + title}
		if i == 1 {
			item.IsProcessed = true
		}
		if err := repo.CreateNewsItem(ctx, item); err != nil {
			t.Fatalf("create news item: %v", err)
		}
	}

	items, err := repo.ListUnprocessedNews(ctx, 0)
	if err != nil {
		t.Fatalf("list unprocessed news: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("unprocessed count = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.IsProcessed {
			t.Fatalf("item %q is already processed", item.Title)
		}
	}

	limited, err := repo.ListUnprocessedNews(ctx, 1)
	if err != nil {
		t.Fatalf("list unprocessed news with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited count = %d, want 1", len(limited))
	}
}

func TestAlertMinRiskFilter(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	source := seedSource(t, repo)

	levels := []models.RiskLevel{models.RiskCritical, models.RiskHigh, models.RiskMedium, models.RiskLow}
	for _, level := range levels {
		snap := recordSnapshot(t, repo, source, true)
		created, err := repo.CreateAlertIfAbsent(ctx, &models.Alert{
			CompetitorID: source.CompetitorID,
			SourceType:   models.AlertSourcePageChange,
			SourceID:     &snap.ID,
			Title:        "alert " + string(level),
			RiskLevel:    level,
		})
		if err != nil || !created {
			t.Fatalf("create %s alert: created=%v err=%v", level, created, err)
		}
	}

	minHigh := models.RiskHigh
	filter := storage.DefaultAlertFilter()
	filter.MinRiskLevel = &minHigh

	alerts, err := repo.ListAlerts(ctx, filter)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("filtered count = %d, want 2", len(alerts))
	}
	for _, alert := range alerts {
		if !alert.RiskLevel.AtLeast(models.RiskHigh) {
			t.Fatalf("alert %q leaked through min-risk filter", alert.Title)
		}
	}
}

func TestInsightLookupByAlert(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	source := seedSource(t, repo)
	snap := recordSnapshot(t, repo, source, true)

	alert := &models.Alert{
		CompetitorID: source.CompetitorID,
		SourceType:   models.AlertSourcePageChange,
		SourceID:     &snap.ID,
		Title:        "Acme: Product Launch Detected",
	}
	if _, err := repo.CreateAlertIfAbsent(ctx, alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	if _, err := repo.GetInsightByAlertID(ctx, alert.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound before insight exists, got %v", err)
	}

	insight := &models.Insight{AlertID: &alert.ID, Title: "Launch response plan"}
	if err := repo.CreateInsight(ctx, insight); err != nil {
		t.Fatalf("create insight: %v", err)
	}

	got, err := repo.GetInsightByAlertID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get insight: %v", err)
	}
	if got.Title != "Launch response plan" {
		t.Fatalf("unexpected insight: %+v", got)
	}
}
