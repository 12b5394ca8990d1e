package services_test

import (
	"context"
	"testing"

	"permavid/internal/services"
)

func TestItemIDRoundTrip(t *testing.T) {
	ctx := services.WithItemID(context.Background(), "0f5d9c1e")
	id, ok := services.ItemIDFromContext(ctx)
	if !ok || id != "0f5d9c1e" {
		t.Fatalf("got (%q, %v), want (0f5d9c1e, true)", id, ok)
	}
}

func TestItemIDMissing(t *testing.T) {
	if _, ok := services.ItemIDFromContext(context.Background()); ok {
		t.Fatal("expected no item id on bare context")
	}
	ctx := services.WithItemID(context.Background(), "")
	if _, ok := services.ItemIDFromContext(ctx); ok {
		t.Fatal("empty id should not be stored")
	}
}

func TestStageRoundTrip(t *testing.T) {
	ctx := services.WithStage(context.Background(), "downloader")
	stage, ok := services.StageFromContext(ctx)
	if !ok || stage != "downloader" {
		t.Fatalf("got (%q, %v), want (downloader, true)", stage, ok)
	}
}
