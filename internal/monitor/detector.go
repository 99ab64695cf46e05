package monitor

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	maxListedLines = 10
	maxLineLength  = 100
)

// Hash returns the change-detection digest of extracted text. All
// whitespace is collapsed first so formatting-only edits hash equal.
// Hashes compare by equality only; there is no similarity threshold.
func Hash(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}

// HasChanged compares hashes by pure equality; even a single-character
// difference counts. A source with no baseline has nothing to change
// from.
func HasChanged(previousHash, newHash string) bool {
	return previousHash != "" && previousHash != newHash
}

// Diff produces a line-based unified diff between the previous and
// current extracted text, with three lines of context.
func Diff(previous, current string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: "previous",
		ToFile:   "current",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

// Summarize renders a unified diff as a short human-readable report:
// added and removed lines listed separately, at most ten per direction
// with a "more lines" suffix, each listed line clipped to a hundred
// characters.
func Summarize(diff string) string {
	if strings.TrimSpace(diff) == "" {
		return "No changes detected"
	}

	var added, removed []string
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			if text := strings.TrimSpace(line[1:]); text != "" {
				added = append(added, text)
			}
		case strings.HasPrefix(line, "-"):
			if text := strings.TrimSpace(line[1:]); text != "" {
				removed = append(removed, text)
			}
		}
	}

	var parts []string
	if len(added) > 0 {
		parts = append(parts, renderDirection("Added", "+", added))
	}
	if len(removed) > 0 {
		parts = append(parts, renderDirection("Removed", "-", removed))
	}
	if len(parts) == 0 {
		return "Minor formatting changes only"
	}
	return strings.Join(parts, "\n\n")
}

func renderDirection(label, marker string, lines []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d lines):", label, len(lines))
	for i, line := range lines {
		if i == maxListedLines {
			fmt.Fprintf(&sb, "\n  ... and %d more lines", len(lines)-maxListedLines)
			break
		}
		fmt.Fprintf(&sb, "\n  %s %s", marker, clipLine(line))
	}
	return sb.String()
}

func clipLine(line string) string {
	runes := []rune(line)
	if len(runes) <= maxLineLength {
		return line
	}
	return string(runes[:maxLineLength])
}
