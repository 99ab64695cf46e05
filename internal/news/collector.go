package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/compiq-monitor/internal/config"
	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage"
	"github.com/compiq-monitor/pkg/logger"
	"github.com/compiq-monitor/pkg/ratelimit"
)

const (
	defaultGoogleNewsBase = "https://news.google.com/rss/search"

	// Two headlines sharing this fraction of their words are the same
	// story syndicated twice.
	titleOverlapThreshold = 0.8

	fullContentTimeout = 15 * time.Second

	maxTitleChars       = 500
	maxDescriptionChars = 2000
	maxContentChars     = 10000
	maxURLChars         = 1000
	maxSourceChars      = 255
)

// Market-recap phrasings that show up for any publicly traded
// competitor without carrying competitive signal. Matched against the
// headline only so acquisition and funding stories survive.
var marketNoisePhrases = []string{
	"share price",
	"stock price",
	"price target",
	"analyst rating",
	"52-week",
	"market cap",
	"dividend yield",
	"nyse:",
	"nasdaq:",
	"shares outstanding",
}

// Collector pulls competitor mentions from configured feeds and from
// Google News searches, deduplicates them and stores them for the
// analysis cycle.
type Collector struct {
	repo    storage.Repository
	cfg     config.NewsConfig
	parser  *gofeed.Parser
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger

	// Swapped out in tests so no request leaves the process.
	googleNewsBase string
}

// NewCollector creates a collector. The limiter paces feed requests and
// may be nil to disable pacing.
func NewCollector(repo storage.Repository, cfg config.NewsConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Collector {
	return &Collector{
		repo:           repo,
		cfg:            cfg,
		parser:         gofeed.NewParser(),
		limiter:        limiter,
		log:            log.WithComponent("news"),
		googleNewsBase: defaultGoogleNewsBase,
	}
}

// CollectResult contains the results of a collection run
type CollectResult struct {
	FeedsPolled  int
	ItemsSeen    int
	ItemsStored  int
	ItemsSkipped int
	Errors       []error
	Duration     time.Duration
}

// CollectAll polls every configured feed plus one Google News search
// per active competitor. One feed's failure never aborts the run.
func (c *Collector) CollectAll(ctx context.Context) (*CollectResult, error) {
	startTime := time.Now()
	result := &CollectResult{}

	competitors, err := c.repo.ListCompetitors(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}

	// Recent titles feed the syndication dedup across this run and the
	// lookback window.
	recentTitles, err := c.recentTitles(ctx)
	if err != nil {
		return nil, err
	}

	for _, feed := range c.cfg.Feeds {
		if err := c.collectFeed(ctx, feed.Name, feed.URL, competitors, nil, &recentTitles, result); err != nil {
			result.Errors = append(result.Errors, err)
			c.log.Warn().
				Err(err).
				Str("feed", feed.Name).
				Msg("Feed collection failed")
		}
	}

	if c.cfg.GoogleNews {
		for _, competitor := range competitors {
			searchURL := c.googleNewsURL(competitor.Name)
			if err := c.collectFeed(ctx, "Google News", searchURL, nil, competitor, &recentTitles, result); err != nil {
				result.Errors = append(result.Errors, err)
				c.log.Warn().
					Err(err).
					Str("competitor", competitor.Name).
					Msg("Google News collection failed")
			}
		}
	}

	result.Duration = time.Since(startTime)

	c.log.Info().
		Int("feeds", result.FeedsPolled).
		Int("seen", result.ItemsSeen).
		Int("stored", result.ItemsStored).
		Int("skipped", result.ItemsSkipped).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("News collection complete")

	return result, nil
}

// collectFeed polls one feed. bound pins every stored item to that
// competitor; with bound nil each item is matched against all
// competitors' search terms.
func (c *Collector) collectFeed(
	ctx context.Context,
	sourceName, feedURL string,
	competitors []*models.Competitor,
	bound *models.Competitor,
	recentTitles *[]string,
	result *CollectResult,
) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, ratelimit.LimiterFeeds); err != nil {
			return fmt.Errorf("feed pacing interrupted: %w", err)
		}
	}

	c.log.Debug().Str("url", feedURL).Msg("Fetching feed")

	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return fmt.Errorf("failed to parse feed %s: %w", sourceName, err)
	}
	result.FeedsPolled++

	cutoff := time.Now().AddDate(0, 0, -c.lookbackDays())

	for _, item := range feed.Items {
		result.ItemsSeen++

		if item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
			result.ItemsSkipped++
			continue
		}

		title := cleanText(item.Title)
		description := cleanText(item.Description)
		if title == "" || item.Link == "" {
			result.ItemsSkipped++
			continue
		}

		if isMarketNoise(title) {
			result.ItemsSkipped++
			c.log.Debug().Str("title", title).Msg("Skipping market-recap noise")
			continue
		}

		exists, err := c.repo.NewsItemExistsByURL(ctx, item.Link)
		if err != nil {
			return fmt.Errorf("failed to check news URL: %w", err)
		}
		if exists {
			result.ItemsSkipped++
			continue
		}

		if isSyndicated(title, *recentTitles) {
			result.ItemsSkipped++
			c.log.Debug().Str("title", title).Msg("Skipping syndicated duplicate")
			continue
		}

		competitor := bound
		if competitor == nil {
			competitor = matchCompetitor(competitors, title+" "+description)
		}

		content := ""
		if c.cfg.FetchFullContent {
			content = c.fetchFullContent(item.Link)
		}

		newsItem := &models.NewsItem{
			Title:       truncate(title, maxTitleChars),
			Description: truncate(description, maxDescriptionChars),
			Content:     truncate(content, maxContentChars),
			URL:         truncate(item.Link, maxURLChars),
			Source:      truncate(sourceName, maxSourceChars),
			PublishedAt: item.PublishedParsed,
		}
		if competitor != nil {
			newsItem.CompetitorID = &competitor.ID
		}
		if item.Author != nil {
			newsItem.Author = item.Author.Name
		}

		if err := c.repo.CreateNewsItem(ctx, newsItem); err != nil {
			return fmt.Errorf("failed to store news item: %w", err)
		}
		*recentTitles = append(*recentTitles, title)
		result.ItemsStored++
	}

	return nil
}

// recentTitles loads the titles stored inside the lookback window
func (c *Collector) recentTitles(ctx context.Context) ([]string, error) {
	since := time.Now().AddDate(0, 0, -c.lookbackDays())
	items, err := c.repo.ListNewsCollectedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent news: %w", err)
	}
	titles := make([]string, 0, len(items))
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	return titles, nil
}

func (c *Collector) lookbackDays() int {
	if c.cfg.LookbackDays > 0 {
		return c.cfg.LookbackDays
	}
	return 7
}

// googleNewsURL builds the RSS search URL for one competitor. The name
// is quoted so multi-word names match as a phrase.
func (c *Collector) googleNewsURL(competitorName string) string {
	query := url.QueryEscape(`"` + competitorName + `"`)
	return c.googleNewsBase + "?q=" + query + "&hl=en-US&gl=US&ceid=US:en"
}

// fetchFullContent pulls the article body through readability
// extraction. Failures fall back to the feed description silently, the
// item is still worth storing.
func (c *Collector) fetchFullContent(articleURL string) string {
	article, err := readability.FromURL(articleURL, fullContentTimeout)
	if err != nil {
		c.log.Debug().
			Err(err).
			Str("url", articleURL).
			Msg("Full content extraction failed")
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// matchCompetitor finds the first competitor whose search terms appear
// in the text
func matchCompetitor(competitors []*models.Competitor, text string) *models.Competitor {
	lower := strings.ToLower(text)
	for _, competitor := range competitors {
		for _, term := range competitor.SearchTerms() {
			if strings.Contains(lower, strings.ToLower(term)) {
				return competitor
			}
		}
	}
	return nil
}

// isSyndicated reports whether the title is a near-duplicate of a
// recently stored one.
func isSyndicated(title string, recent []string) bool {
	for _, other := range recent {
		if titleOverlap(title, other) >= titleOverlapThreshold {
			return true
		}
	}
	return false
}

// titleOverlap computes the fraction of words shared between two
// titles, relative to the shorter one.
func titleOverlap(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	common := 0
	for word := range wordsA {
		if wordsB[word] {
			common++
		}
	}

	smaller := len(wordsA)
	if len(wordsB) < smaller {
		smaller = len(wordsB)
	}
	return float64(common) / float64(smaller)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		set[word] = true
	}
	return set
}

func isMarketNoise(title string) bool {
	lower := strings.ToLower(title)
	for _, phrase := range marketNoisePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")
	text = strings.ReplaceAll(text, "<p>", "")

	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
		} else if r == '>' {
			inTag = false
		} else if !inTag {
			result.WriteRune(r)
		}
	}

	text = result.String()
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
