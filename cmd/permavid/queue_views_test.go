package main

import (
	"strings"
	"testing"

	"permavid/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"queued":       "Queued",
		"downloading":  "Downloading",
		"files_vc":     "Files Vc",
		"ENCODED":      "Encoded",
		"  completed ": "Completed",
		"":             "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatProvider(t *testing.T) {
	cases := map[string]string{
		"filemoon": "Filemoon",
		"files_vc": "Files.vc",
		"":         "-",
		"other":    "other",
	}
	for input, want := range cases {
		if got := formatProvider(input); got != want {
			t.Fatalf("formatProvider(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatProviderRef(t *testing.T) {
	if got := formatProviderRef(api.QueueItem{}); got != "-" {
		t.Fatalf("empty ref = %q", got)
	}
	if got := formatProviderRef(api.QueueItem{ProviderRef: "abc123"}); got != "abc123" {
		t.Fatalf("plain ref = %q", got)
	}
	item := api.QueueItem{ProviderRef: "abc123", EncodingProgress: 42}
	if got := formatProviderRef(item); got != "abc123 (42%)" {
		t.Fatalf("mid-encode ref = %q", got)
	}
	item.EncodingProgress = 100
	if got := formatProviderRef(item); got != "abc123" {
		t.Fatalf("finished ref = %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0c8e2f14-aaaa-bbbb-cccc-111122223333"); got != "0c8e2f14" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("short input = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("no-op truncate = %q", got)
	}
	got := truncate(strings.Repeat("x", 30), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated = %q", got)
	}
	// Multi-byte runes must not be split mid-sequence.
	got = truncate(strings.Repeat("é", 30), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("multibyte truncated = %q", got)
	}
}

func TestDisplayTitle(t *testing.T) {
	if got := displayTitle(api.QueueItem{Title: "A Video"}); got != "A Video" {
		t.Fatalf("title = %q", got)
	}
	if got := displayTitle(api.QueueItem{URL: "https://example.com/v"}); got != "https://example.com/v" {
		t.Fatalf("url fallback = %q", got)
	}
	if got := displayTitle(api.QueueItem{}); got != "Unknown" {
		t.Fatalf("empty fallback = %q", got)
	}
}

func TestSortByAddedDesc(t *testing.T) {
	items := []api.QueueItem{
		{ID: "a", AddedAt: "2026-01-02T10:00:00Z"},
		{ID: "b", AddedAt: "2026-01-02T12:00:00Z"},
		{ID: "c", AddedAt: "2026-01-02T11:00:00Z"},
	}
	sorted := sortByAddedDesc(items)
	if sorted[0].ID != "b" || sorted[1].ID != "c" || sorted[2].ID != "a" {
		t.Fatalf("unexpected order: %v", []string{sorted[0].ID, sorted[1].ID, sorted[2].ID})
	}
	// The input slice stays untouched.
	if items[0].ID != "a" {
		t.Fatalf("input mutated: %v", items[0].ID)
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2026-01-02T10:30:00.123456789Z"); got != "2026-01-02 10:30" {
		t.Fatalf("nano time = %q", got)
	}
	if got := formatDisplayTime("2026-01-02T10:30:00Z"); got != "2026-01-02 10:30" {
		t.Fatalf("rfc3339 time = %q", got)
	}
	if got := formatDisplayTime("not a timestamp"); got != "not a timestamp" {
		t.Fatalf("unparseable time = %q", got)
	}
}

func TestBuildQueueStatusRows(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"queued": 2, "failed": 1})
	if len(rows) != 2 {
		t.Fatalf("expected two rows, got %d", len(rows))
	}
	// Rows sort by raw status key.
	if rows[0][0] != "Failed" || rows[0][1] != "1" {
		t.Fatalf("first row = %v", rows[0])
	}
	if rows[1][0] != "Queued" || rows[1][1] != "2" {
		t.Fatalf("second row = %v", rows[1])
	}
	if rows := buildQueueStatusRows(nil); rows != nil {
		t.Fatalf("expected nil rows for empty stats, got %v", rows)
	}
}
