package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dream-atlas/backend/internal/logger"
)

// FrameExtractor pulls a single representative still frame out of a video by
// shelling out to ffmpeg. Extraction is best-effort: the binary may be
// missing in some runtimes and callers are expected to continue without the
// frame.
type FrameExtractor struct {
	log        *logger.Logger
	ffmpegPath string
	timeout    time.Duration
}

func NewFrameExtractor(log *logger.Logger, ffmpegPath string) *FrameExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FrameExtractor{
		log:        log.With("service", "FrameExtractor"),
		ffmpegPath: ffmpegPath,
		timeout:    2 * time.Minute,
	}
}

// ExtractFirstFrame returns the first frame of the video at videoURL as JPEG
// bytes. ffmpeg reads the URL directly; the frame goes through a temp file
// because ffmpeg's image2 muxer wants a seekable output.
func (f *FrameExtractor) ExtractFirstFrame(ctx context.Context, videoURL string) ([]byte, error) {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	outPath := filepath.Join(os.TempDir(), fmt.Sprintf("frame-%s.jpg", uuid.NewString()))
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-i", videoURL,
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w (output: %.300s)", err, string(out))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced an empty frame")
	}
	f.log.Debug("extracted first frame", "url", videoURL, "bytes", len(data))
	return data, nil
}
