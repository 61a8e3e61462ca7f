package media

import (
	"context"
	"testing"

	"github.com/dream-atlas/backend/internal/logger"
)

func TestExtractFirstFrameMissingBinary(t *testing.T) {
	f := NewFrameExtractor(logger.NewNop(), "definitely-not-a-real-binary-7f3a")

	if _, err := f.ExtractFirstFrame(context.Background(), "https://example.com/clip.mp4"); err == nil {
		t.Fatal("expected an error when ffmpeg is not installed")
	}
}
