package monitor

import (
	"fmt"
	"strings"
	"testing"
)

func TestHashCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	a := Hash("Model X200\nPrecision measurement")
	b := Hash("  Model   X200 \t Precision\n\nmeasurement ")
	if a != b {
		t.Fatalf("hashes differ for whitespace-only variation: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("hash should be a zero-padded 64-bit hex digest, got %q", a)
	}

	if Hash("price: $499") == Hash("price: $498") {
		t.Fatal("distinct content should hash differently")
	}
}

func TestHasChanged(t *testing.T) {
	t.Parallel()

	if HasChanged("", Hash("anything")) {
		t.Fatal("first capture has no baseline to change from")
	}
	if HasChanged(Hash("same"), Hash("same")) {
		t.Fatal("equal hashes are not a change")
	}
	if !HasChanged(Hash("old"), Hash("new")) {
		t.Fatal("different hashes are a change")
	}
}

func TestDiffSummaryMinimalEdit(t *testing.T) {
	t.Parallel()

	old := "a\nb\nc"
	current := "a\nc\nd"

	summary := Summarize(Diff(old, current))

	if !strings.Contains(summary, "Added (1 lines):") {
		t.Fatalf("summary should report exactly one added line:\n%s", summary)
	}
	if !strings.Contains(summary, "Removed (1 lines):") {
		t.Fatalf("summary should report exactly one removed line:\n%s", summary)
	}
	if !strings.Contains(summary, "+ d") || !strings.Contains(summary, "- b") {
		t.Fatalf("summary should name the changed lines:\n%s", summary)
	}
}

func TestSummarizeCapsListedLines(t *testing.T) {
	t.Parallel()

	var oldLines, newLines []string
	for i := 0; i < 3; i++ {
		oldLines = append(oldLines, fmt.Sprintf("keep %d", i))
	}
	newLines = append(newLines, oldLines...)
	for i := 0; i < 14; i++ {
		newLines = append(newLines, fmt.Sprintf("new line %d", i))
	}

	summary := Summarize(Diff(strings.Join(oldLines, "\n"), strings.Join(newLines, "\n")))

	if !strings.Contains(summary, "Added (14 lines):") {
		t.Fatalf("summary should count all added lines:\n%s", summary)
	}
	if !strings.Contains(summary, "... and 4 more lines") {
		t.Fatalf("summary should cap the listing at ten lines:\n%s", summary)
	}
	if strings.Contains(summary, "new line 10") {
		t.Fatalf("lines past the cap should not be listed:\n%s", summary)
	}
}

func TestSummarizeClipsLongLines(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 150)
	summary := Summarize(Diff("short", "short\n"+long))

	if strings.Contains(summary, long) {
		t.Fatalf("long lines should be clipped:\n%s", summary)
	}
	if !strings.Contains(summary, strings.Repeat("x", 100)) {
		t.Fatalf("clipped line should keep its first hundred characters:\n%s", summary)
	}
}

func TestSummarizeEdgeCases(t *testing.T) {
	t.Parallel()

	if got := Summarize(""); got != "No changes detected" {
		t.Fatalf("empty diff: %q", got)
	}

	if got := Summarize(Diff("same\ntext", "same\ntext")); got != "No changes detected" {
		t.Fatalf("identical inputs: %q", got)
	}

	// A diff whose only content lines are blank reads as formatting noise.
	noise := "--- previous\n+++ current\n@@ -1,2 +1,2 @@\n-   \n+\t\n context"
	if got := Summarize(noise); got != "Minor formatting changes only" {
		t.Fatalf("blank-only diff: %q", got)
	}
}
