package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"permavid/internal/api"
)

const (
	shortIDLength   = 8
	titleColumnMax  = 48
	detailColumnMax = 40
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := sortByAddedDesc(items)

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			shortID(item.ID),
			truncate(displayTitle(item), titleColumnMax),
			formatStatusLabel(item.Status),
			formatDisplayTime(item.AddedAt),
			truncate(item.Message, detailColumnMax),
		})
	}
	return rows
}

func buildGalleryRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := sortByAddedDesc(items)

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			shortID(item.ID),
			truncate(displayTitle(item), titleColumnMax),
			formatStatusLabel(item.Status),
			formatProvider(item.Provider),
			formatProviderRef(item),
		})
	}
	return rows
}

func sortByAddedDesc(items []api.QueueItem) []api.QueueItem {
	sorted := make([]api.QueueItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		ti := parseQueueTime(sorted[i].AddedAt)
		tj := parseQueueTime(sorted[j].AddedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})
	return sorted
}

func displayTitle(item api.QueueItem) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	if source := strings.TrimSpace(item.URL); source != "" {
		return source
	}
	return "Unknown"
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatProvider(provider string) string {
	switch strings.TrimSpace(provider) {
	case "filemoon":
		return "Filemoon"
	case "files_vc":
		return "Files.vc"
	case "":
		return "-"
	default:
		return provider
	}
}

func formatProviderRef(item api.QueueItem) string {
	ref := strings.TrimSpace(item.ProviderRef)
	if ref == "" {
		return "-"
	}
	if item.EncodingProgress > 0 && item.EncodingProgress < 100 {
		return fmt.Sprintf("%s (%d%%)", ref, item.EncodingProgress)
	}
	return ref
}

func formatDisplayTime(value string) string {
	t := parseQueueTime(value)
	if t.IsZero() {
		return strings.TrimSpace(value)
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func parseQueueTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 1 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
