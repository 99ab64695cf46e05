package models

import (
	"testing"
	"time"
)

func TestSourceIsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	checkedAt := func(ago time.Duration) *time.Time {
		ts := now.Add(-ago)
		return &ts
	}

	tests := []struct {
		name          string
		lastCheckedAt *time.Time
		interval      string
		want          bool
	}{
		{"never checked", nil, "24h", true},
		{"checked 23h ago on 24h interval", checkedAt(23 * time.Hour), "24h", false},
		{"checked 25h ago on 24h interval", checkedAt(25 * time.Hour), "24h", true},
		{"checked exactly one interval ago", checkedAt(24 * time.Hour), "24h", true},
		{"short interval elapsed", checkedAt(90 * time.Minute), "1h", true},
	}

	for _, tt := range tests {
		src := &Source{LastCheckedAt: tt.lastCheckedAt, CheckInterval: tt.interval}
		if got := src.IsDue(now); got != tt.want {
			t.Errorf("%s: IsDue = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCheckEveryFallsBack(t *testing.T) {
	t.Parallel()

	src := &Source{CheckInterval: "soonish"}
	if got := src.CheckEvery(); got != DefaultCheckInterval {
		t.Fatalf("invalid interval should fall back to default, got %v", got)
	}

	src.CheckInterval = "-4h"
	if got := src.CheckEvery(); got != DefaultCheckInterval {
		t.Fatalf("negative interval should fall back to default, got %v", got)
	}

	src.CheckInterval = "6h"
	if got := src.CheckEvery(); got != 6*time.Hour {
		t.Fatalf("unexpected interval: %v", got)
	}
}

func TestRecordFailureKeepsRetrying(t *testing.T) {
	t.Parallel()

	now := time.Now()
	src := &Source{IsActive: true}

	for i := 0; i < 5; i++ {
		src.RecordFailure(now, "connection refused")
	}

	if src.ConsecutiveErrors != 5 {
		t.Fatalf("consecutive_errors = %d, want 5", src.ConsecutiveErrors)
	}
	if !src.IsActive {
		t.Fatal("failures must never deactivate a source")
	}
	if src.LastCheckedAt == nil {
		t.Fatal("a failed check still counts as a check")
	}

	src.RecordSuccess(now.Add(time.Minute))
	if src.ConsecutiveErrors != 0 || src.LastError != "" {
		t.Fatalf("success should clear error state, got %d %q", src.ConsecutiveErrors, src.LastError)
	}
}
