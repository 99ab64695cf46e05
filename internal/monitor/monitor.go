package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/compiq-monitor/internal/models"
	"github.com/compiq-monitor/internal/storage"
	"github.com/compiq-monitor/pkg/logger"
	"github.com/compiq-monitor/pkg/ratelimit"
)

// Stored page content is clipped so snapshot rows stay bounded. Hashes
// are computed over the full text before clipping.
const maxStoredChars = 50000

// Monitor drives the check cycle over monitored sources: fetch,
// extract, detect changes against the source baseline, persist.
type Monitor struct {
	repo    storage.Repository
	fetcher *Fetcher
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
	now     func() time.Time
}

// NewMonitor creates a monitor. The limiter paces fetches between
// sources and may be nil to disable pacing.
func NewMonitor(repo storage.Repository, fetcher *Fetcher, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Monitor {
	return &Monitor{
		repo:    repo,
		fetcher: fetcher,
		limiter: limiter,
		log:     log.WithComponent("monitor"),
		now:     time.Now,
	}
}

// CheckResult summarizes one monitoring cycle
type CheckResult struct {
	SourcesChecked int
	SourcesSkipped int
	ChangesFound   int
	Failures       int
}

// CheckAll checks every active source that is due; force overrides the
// interval. One source's failure is recorded on that source and never
// aborts the batch.
func (m *Monitor) CheckAll(ctx context.Context, force bool) (*CheckResult, error) {
	sources, err := m.repo.ListActiveSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}

	result := &CheckResult{}
	for _, src := range sources {
		if !force && !src.IsDue(m.now()) {
			result.SourcesSkipped++
			continue
		}

		if m.limiter != nil {
			if err := m.limiter.Wait(ctx, ratelimit.LimiterFetch); err != nil {
				return result, fmt.Errorf("fetch pacing interrupted: %w", err)
			}
		}

		snapshot, err := m.CheckSource(ctx, src)
		result.SourcesChecked++
		if err != nil {
			result.Failures++
			m.log.Warn().
				Err(err).
				Uint("source_id", src.ID).
				Str("url", src.URL).
				Msg("Source check failed")
			continue
		}
		if snapshot.HasChanges {
			result.ChangesFound++
		}
	}

	m.log.Info().
		Int("checked", result.SourcesChecked).
		Int("skipped", result.SourcesSkipped).
		Int("changed", result.ChangesFound).
		Int("failed", result.Failures).
		Msg("Monitoring cycle complete")

	return result, nil
}

// CheckSource fetches one source, runs change detection against its
// baseline and persists the snapshot together with the source's updated
// polling state. On fetch failure the error state is recorded and no
// snapshot is written.
func (m *Monitor) CheckSource(ctx context.Context, src *models.Source) (*models.Snapshot, error) {
	now := m.now()

	rawHTML, err := m.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		src.RecordFailure(now, err.Error())
		if updateErr := m.repo.UpdateSource(ctx, src); updateErr != nil {
			m.log.Error().
				Err(updateErr).
				Uint("source_id", src.ID).
				Msg("Failed to persist source error state")
		}
		return nil, err
	}
	src.RecordSuccess(now)

	text := ExtractText(rawHTML)
	newHash := Hash(text)

	snapshot := &models.Snapshot{
		SourceID:      src.ID,
		ContentHash:   newHash,
		Content:       clip(rawHTML, maxStoredChars),
		ExtractedText: clip(text, maxStoredChars),
	}

	// Empty text means extraction failed, not that the page is empty:
	// the cycle records an unchanged snapshot and keeps the baseline so
	// the next good fetch still diffs against the last real content.
	suppressed := text == ""
	if suppressed {
		m.log.Warn().
			Uint("source_id", src.ID).
			Str("url", src.URL).
			Msg("Extraction produced no text, change detection suppressed")
	}

	if !suppressed && HasChanged(src.LastContentHash, newHash) {
		snapshot.HasChanges = true
		if src.LastContent != "" {
			snapshot.DiffSummary = Summarize(Diff(src.LastContent, text))
		}
		m.log.Info().
			Uint("source_id", src.ID).
			Str("url", src.URL).
			Msg("Content change detected")
	}

	if !suppressed {
		src.LastContentHash = newHash
		src.LastContent = clip(text, maxStoredChars)
	}

	if err := m.repo.RecordCheck(ctx, src, snapshot); err != nil {
		return nil, fmt.Errorf("failed to record check: %w", err)
	}
	return snapshot, nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
