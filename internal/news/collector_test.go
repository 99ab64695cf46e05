package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage/sqlite"
	"github.com/compiq-monitor/pkg/logger"
)

type rssItem struct {
	title   string
	link    string
	desc    string
	pubDate time.Time
}

func buildRSS(items ...rssItem) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Example Wire</title>`)
	for _, item := range items {
		fmt.Fprintf(&sb, `<item><title>%s</title><link>%s</link><description><![CDATA[%s]]></description><pubDate>%s</pubDate></item>`,
			item.title, item.link, item.desc, item.pubDate.Format(time.RFC1123Z))
	}
	sb.WriteString(`</channel></rss>`)
	return sb.String()
}

func serveRSS(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestCollector(t *testing.T, cfg config.NewsConfig) (*Collector, *sqlite.Repository) {
	t.Helper()

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "news.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	collector := NewCollector(repo, cfg, nil, logger.New(logger.Config{Level: "error"}))
	return collector, repo
}

func seedCompetitor(t *testing.T, repo *sqlite.Repository, name string) *models.Competitor {
	t.Helper()
	competitor := &models.Competitor{Name: name}
	if err := repo.CreateCompetitor(context.Background(), competitor); err != nil {
		t.Fatalf("create competitor: %v", err)
	}
	return competitor
}

func TestCollectAllFiltersAndStores(t *testing.T) {
	t.Parallel()

	now := time.Now()
	feed := buildRSS(
		rssItem{
			title:   "Acme Instruments launches X200 analyzer",
			link:    "https://news.example/x200",
			desc:    "<p>Acme Instruments today announced the X200.</p>",
			pubDate: now.Add(-2 * time.Hour),
		},
		rssItem{
			// Same story syndicated with a padded headline.
			title:   "Acme Instruments launches the X200 analyzer today",
			link:    "https://syndicator.example/x200-copy",
			desc:    "Syndicated copy.",
			pubDate: now.Add(-1 * time.Hour),
		},
		rssItem{
			title:   "Acme Instruments share price hits new high",
			link:    "https://finance.example/acme",
			desc:    "Market recap.",
			pubDate: now.Add(-1 * time.Hour),
		},
		rssItem{
			title:   "Stale story from a different era",
			link:    "https://news.example/stale",
			desc:    "Too old to matter.",
			pubDate: now.AddDate(0, 0, -10),
		},
		rssItem{
			title:   "Measurement industry trends to watch",
			link:    "https://news.example/trends",
			desc:    "General industry piece.",
			pubDate: now.Add(-3 * time.Hour),
		},
	)
	server := serveRSS(t, feed)

	collector, repo := newTestCollector(t, config.NewsConfig{
		Feeds:        []config.NewsFeed{{Name: "Example Wire", URL: server.URL}},
		LookbackDays: 7,
	})
	ctx := context.Background()
	acme := seedCompetitor(t, repo, "Acme Instruments")

	result, err := collector.CollectAll(ctx)
	if err != nil {
		t.Fatalf("collect all: %v", err)
	}
	if result.FeedsPolled != 1 || result.ItemsSeen != 5 {
		t.Fatalf("result = %+v", result)
	}
	if result.ItemsStored != 2 {
		t.Fatalf("stored = %d, want 2 (launch + industry piece)", result.ItemsStored)
	}
	if result.ItemsSkipped != 3 {
		t.Fatalf("skipped = %d, want 3 (syndicated, market noise, stale)", result.ItemsSkipped)
	}

	items, err := repo.ListNewsCollectedSince(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list news: %v", err)
	}
	byURL := make(map[string]*models.NewsItem, len(items))
	for _, item := range items {
		byURL[item.URL] = item
	}

	launch := byURL["https://news.example/x200"]
	if launch == nil {
		t.Fatal("launch story not stored")
	}
	if launch.CompetitorID == nil || *launch.CompetitorID != acme.ID {
		t.Fatal("launch story should bind to the matched competitor")
	}
	if strings.Contains(launch.Description, "<p>") {
		t.Fatalf("description should be stripped of HTML: %q", launch.Description)
	}
	if launch.Source != "Example Wire" {
		t.Fatalf("source = %q", launch.Source)
	}
	if launch.PublishedAt == nil {
		t.Fatal("publication date not parsed")
	}

	trends := byURL["https://news.example/trends"]
	if trends == nil {
		t.Fatal("industry story not stored")
	}
	if trends.CompetitorID != nil {
		t.Fatal("industry story mentions no competitor and should stay unbound")
	}
}

func TestCollectAllSkipsKnownURLs(t *testing.T) {
	t.Parallel()

	now := time.Now()
	server := serveRSS(t, buildRSS(rssItem{
		title:   "Acme Instruments opens Berlin office",
		link:    "https://news.example/berlin",
		desc:    "Expansion news.",
		pubDate: now.Add(-1 * time.Hour),
	}))

	collector, repo := newTestCollector(t, config.NewsConfig{
		Feeds: []config.NewsFeed{{Name: "Example Wire", URL: server.URL}},
	})
	ctx := context.Background()
	seedCompetitor(t, repo, "Acme Instruments")

	first, err := collector.CollectAll(ctx)
	if err != nil {
		t.Fatalf("first collection: %v", err)
	}
	if first.ItemsStored != 1 {
		t.Fatalf("first run stored = %d", first.ItemsStored)
	}

	second, err := collector.CollectAll(ctx)
	if err != nil {
		t.Fatalf("second collection: %v", err)
	}
	if second.ItemsStored != 0 || second.ItemsSkipped != 1 {
		t.Fatalf("second run should skip the known URL: %+v", second)
	}
}

func TestGoogleNewsSearchPerCompetitor(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := strings.Trim(r.URL.Query().Get("q"), `"`)
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		body := buildRSS(rssItem{
			title:   "Coverage roundup for " + q,
			link:    "https://news.example/" + strings.ReplaceAll(q, " ", "-"),
			desc:    "Search result.",
			pubDate: time.Now().Add(-time.Hour),
		})
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	collector, repo := newTestCollector(t, config.NewsConfig{GoogleNews: true})
	collector.googleNewsBase = server.URL
	ctx := context.Background()
	acme := seedCompetitor(t, repo, "Acme Instruments")
	zenith := seedCompetitor(t, repo, "Zenith Labs")

	result, err := collector.CollectAll(ctx)
	if err != nil {
		t.Fatalf("collect all: %v", err)
	}
	if result.ItemsStored != 2 {
		t.Fatalf("stored = %d, want one per competitor", result.ItemsStored)
	}

	mu.Lock()
	got := append([]string(nil), queries...)
	mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("queries = %v", got)
	}
	for _, name := range []string{"Acme Instruments", "Zenith Labs"} {
		found := false
		for _, q := range got {
			if q == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("no search issued for %s in %v", name, got)
		}
	}

	items, err := repo.ListNewsCollectedSince(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list news: %v", err)
	}
	for _, item := range items {
		if item.CompetitorID == nil {
			t.Fatalf("search result not bound to its competitor: %q", item.Title)
		}
		if strings.Contains(item.Title, "Acme") && *item.CompetitorID != acme.ID {
			t.Fatal("Acme result bound to wrong competitor")
		}
		if strings.Contains(item.Title, "Zenith") && *item.CompetitorID != zenith.ID {
			t.Fatal("Zenith result bound to wrong competitor")
		}
	}
}

func TestCollectAllIsolatesFeedFailures(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(broken.Close)

	healthy := serveRSS(t, buildRSS(rssItem{
		title:   "Acme Instruments partners with Widget Co",
		link:    "https://news.example/partner",
		desc:    "Partnership news.",
		pubDate: time.Now().Add(-time.Hour),
	}))

	collector, repo := newTestCollector(t, config.NewsConfig{
		Feeds: []config.NewsFeed{
			{Name: "Broken Feed", URL: broken.URL},
			{Name: "Example Wire", URL: healthy.URL},
		},
	})
	ctx := context.Background()
	seedCompetitor(t, repo, "Acme Instruments")

	result, err := collector.CollectAll(ctx)
	if err != nil {
		t.Fatalf("collect all: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v", result.Errors)
	}
	if result.ItemsStored != 1 {
		t.Fatalf("healthy feed should still store: %+v", result)
	}
	if result.FeedsPolled != 1 {
		t.Fatalf("feeds polled = %d, want 1", result.FeedsPolled)
	}
}
