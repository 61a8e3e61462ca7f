package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/dream-atlas/backend/internal/logger"
)

// Kind is the result of classifying a media reference.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// probeLen covers the longest signature we match: RIFF....AVI_ needs 12
// bytes, an ftyp brand needs 12, EBML needs 4.
const probeLen = 13

// Classifier decides whether a media reference is a video or an image without
// trusting the file extension. Extensions are a fast path only; otherwise the
// first bytes of the resource are fetched and matched against known container
// signatures.
type Classifier struct {
	log        *logger.Logger
	httpClient *http.Client
}

func NewClassifier(log *logger.Logger, httpClient *http.Client) *Classifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Classifier{
		log:        log.With("service", "Classifier"),
		httpClient: httpClient,
	}
}

// Classify inspects a stored or external media reference. When the byte probe
// cannot be performed the result is KindUnknown; callers must treat that
// conservatively and keep the reference out of vision input.
func (c *Classifier) Classify(ctx context.Context, mediaRef string) Kind {
	if HasVideoExtension(mediaRef) {
		return KindVideo
	}

	head, err := c.probe(ctx, mediaRef)
	if err != nil {
		c.log.Warn("byte probe failed, classifying as unknown", "ref", mediaRef, "error", err)
		return KindUnknown
	}
	return SniffBytes(head)
}

func (c *Classifier) probe(ctx context.Context, mediaRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeLen-1))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("probe request returned status %d", resp.StatusCode)
	}

	head := make([]byte, probeLen)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read probe bytes: %w", err)
	}
	return head[:n], nil
}

// mp4Brands are the ISO-BMFF major brands treated as MP4-family video.
var mp4Brands = []string{"isom", "iso2", "mp41", "mp42", "avc1", "M4V ", "qt  "}

// SniffBytes matches the leading bytes of a resource against known container
// signatures. It never guesses: anything unmatched is KindUnknown.
func SniffBytes(head []byte) Kind {
	// ISO-BMFF: <size:4>"ftyp"<brand:4>
	if len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) {
		brand := string(head[8:12])
		for _, b := range mp4Brands {
			if brand == b {
				return KindVideo
			}
		}
		// Unlisted brand, still an ISO media file.
		return KindVideo
	}

	// EBML header (WebM / Matroska)
	if len(head) >= 4 && bytes.Equal(head[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		return KindVideo
	}

	if len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) {
		switch string(head[8:12]) {
		case "AVI ":
			return KindVideo
		case "WEBP":
			return KindImage
		}
	}

	if len(head) >= 3 && bytes.Equal(head[:3], []byte{0xFF, 0xD8, 0xFF}) {
		return KindImage // JPEG
	}
	if len(head) >= 4 && bytes.Equal(head[:4], []byte{0x89, 'P', 'N', 'G'}) {
		return KindImage
	}
	if len(head) >= 4 && bytes.Equal(head[:4], []byte("GIF8")) {
		return KindImage
	}

	return KindUnknown
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".avi":  true,
	".mov":  true,
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func refExtension(mediaRef string) string {
	ref := mediaRef
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.ToLower(path.Ext(ref))
}

func HasVideoExtension(mediaRef string) bool {
	return videoExtensions[refExtension(mediaRef)]
}

func HasImageExtension(mediaRef string) bool {
	return imageExtensions[refExtension(mediaRef)]
}
