package pdf

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/store"
)

type fakeFetcher struct {
	baseURL string
	objects map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, publicURL string) ([]byte, string, error) {
	data, ok := f.objects[publicURL]
	if !ok {
		return nil, "", errors.New("object not found")
	}
	return data, "image/png", nil
}

func (f *fakeFetcher) Owns(publicURL string) bool {
	return strings.HasPrefix(publicURL, f.baseURL)
}

func strPtr(s string) *string { return &s }

func TestRenderEmptyJournalFails(t *testing.T) {
	r := NewJournalRenderer(logger.NewNop(), &fakeFetcher{})

	var buf bytes.Buffer
	if err := r.Render(context.Background(), "Luna", nil, &buf); err == nil {
		t.Fatal("expected an error for zero dreams")
	}
}

func TestRenderProducesPDF(t *testing.T) {
	r := NewJournalRenderer(logger.NewNop(), &fakeFetcher{baseURL: "https://media.test/"})

	dreams := []store.Dream{
		{ID: "d1", Title: "Falling", DreamDate: "2024-01-01", Description: strPtr("Down through the clouds.")},
		{ID: "d2", Title: "Ocean city", DreamDate: "2024-01-05"},
	}

	var buf bytes.Buffer
	if err := r.Render(context.Background(), "Luna", dreams, &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("output does not look like a PDF")
	}
}

func TestRenderSkipsExternalImages(t *testing.T) {
	fetcher := &fakeFetcher{baseURL: "https://media.test/"}
	r := NewJournalRenderer(logger.NewNop(), fetcher)

	// External media must never be fetched; the page simply has no image.
	dreams := []store.Dream{
		{ID: "d1", Title: "Falling", DreamDate: "2024-01-01", MediaURL: strPtr("https://elsewhere.example/pic.png")},
	}

	var buf bytes.Buffer
	if err := r.Render(context.Background(), "Luna", dreams, &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected output")
	}
}

func TestTotalDays(t *testing.T) {
	dreams := []store.Dream{
		{DreamDate: "2024-01-05"},
		{DreamDate: "2024-01-01"},
		{DreamDate: "2024-01-03"},
	}
	if got := totalDays(dreams); got != 5 {
		t.Fatalf("totalDays = %d, want 5", got)
	}
	if got := totalDays(dreams[:1]); got != 1 {
		t.Fatalf("totalDays for one dream = %d, want 1", got)
	}
}
