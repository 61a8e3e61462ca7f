package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/storage"
	"github.com/dream-atlas/backend/internal/store"
)

// MediaClassifier and FrameSource let tests substitute the probe-based
// classifier and the ffmpeg extractor.
type MediaClassifier interface {
	Classify(ctx context.Context, mediaRef string) Kind
}

type FrameSource interface {
	ExtractFirstFrame(ctx context.Context, videoURL string) ([]byte, error)
}

type dreamMediaStore interface {
	UpdateDreamMediaURL(dreamID, mediaURL string) error
	UpdateDreamThumbnailURL(dreamID, thumbnailURL string) error
}

// Normalizer turns a dream's possibly-untrusted or video media reference into
// a trusted, vision-model-safe image address hosted by the application's own
// store. Results are cached on the dream row (thumbnail_url for video frames,
// a rewritten media_url for re-hosted external images).
type Normalizer struct {
	log        *logger.Logger
	classifier MediaClassifier
	frames     FrameSource
	objects    storage.ObjectStore
	dreams     dreamMediaStore
	httpClient *http.Client
}

func NewNormalizer(log *logger.Logger, classifier MediaClassifier, frames FrameSource, objects storage.ObjectStore, dreams dreamMediaStore, httpClient *http.Client) *Normalizer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Normalizer{
		log:        log.With("service", "Normalizer"),
		classifier: classifier,
		frames:     frames,
		objects:    objects,
		dreams:     dreams,
		httpClient: httpClient,
	}
}

// Normalize returns a trusted image address for the dream's media, or
// ok=false when the dream has no usable media. Failures are absorbed here so
// one bad item never aborts a batch; the caller simply gets fewer images.
//
// A set thumbnail_url is returned unconditionally without re-validating it
// against the current media_url.
func (n *Normalizer) Normalize(ctx context.Context, dream *store.Dream) (string, bool) {
	if dream == nil || dream.MediaURL == nil || strings.TrimSpace(*dream.MediaURL) == "" {
		return "", false
	}
	if dream.ThumbnailURL != nil && *dream.ThumbnailURL != "" {
		return *dream.ThumbnailURL, true
	}

	mediaURL := *dream.MediaURL
	kind := n.classifier.Classify(ctx, mediaURL)

	if kind == KindVideo {
		return n.normalizeVideo(ctx, dream, mediaURL)
	}

	if n.objects.Owns(mediaURL) {
		if kind == KindImage {
			return mediaURL, true
		}
		// Owned but not a recognized image: keep it out of vision input.
		n.log.Warn("owned media not classified as image, excluding", "dream_id", dream.ID, "kind", kind.String())
		return "", false
	}

	if kind == KindImage || (kind == KindUnknown && HasImageExtension(mediaURL)) {
		storedURL, err := n.importExternalImage(ctx, dream.UserID, mediaURL)
		if err != nil {
			n.log.Warn("external image import failed, excluding", "dream_id", dream.ID, "error", err)
			return "", false
		}
		if err := n.dreams.UpdateDreamMediaURL(dream.ID, storedURL); err != nil {
			n.log.Warn("failed to persist re-hosted media_url", "dream_id", dream.ID, "error", err)
		} else {
			dream.MediaURL = &storedURL
		}
		return storedURL, true
	}

	n.log.Debug("media excluded from vision input", "dream_id", dream.ID, "kind", kind.String())
	return "", false
}

func (n *Normalizer) normalizeVideo(ctx context.Context, dream *store.Dream, videoURL string) (string, bool) {
	frame, err := n.frames.ExtractFirstFrame(ctx, videoURL)
	if err != nil {
		n.log.Warn("frame extraction failed, excluding", "dream_id", dream.ID, "error", err)
		return "", false
	}

	key := fmt.Sprintf("%d/frames/%s.jpg", dream.UserID, uuid.NewString())
	thumbURL, err := n.objects.Upload(ctx, key, "image/jpeg", frame)
	if err != nil {
		n.log.Warn("frame upload failed, excluding", "dream_id", dream.ID, "error", err)
		return "", false
	}

	if err := n.dreams.UpdateDreamThumbnailURL(dream.ID, thumbURL); err != nil {
		// The frame is stored and usable for this request even if the cache
		// write failed.
		n.log.Warn("failed to persist thumbnail_url", "dream_id", dream.ID, "error", err)
	} else {
		dream.ThumbnailURL = &thumbURL
	}
	return thumbURL, true
}

// ImportExternalImage re-hosts an external image into the application's own
// store under the owner's namespace and returns the stored address. Already
// owned addresses are returned unchanged. Unlike Normalize, errors propagate
// so direct callers (the import endpoint) can report them.
func (n *Normalizer) ImportExternalImage(ctx context.Context, userID int64, imageURL string) (string, error) {
	if n.objects.Owns(imageURL) {
		return imageURL, nil
	}
	return n.importExternalImage(ctx, userID, imageURL)
}

func (n *Normalizer) importExternalImage(ctx context.Context, userID int64, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build fetch request: %w", err)
	}
	// Browser-like headers reduce the chance of the origin CDN blocking
	// server-side fetches.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image URL returned an empty body")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	ext := extensionForContentType(contentType)

	key := fmt.Sprintf("%d/%s.%s", userID, uuid.NewString(), ext)
	storedURL, err := n.objects.Upload(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return storedURL, nil
}

func extensionForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "gif"):
		return "gif"
	default:
		return "jpg"
	}
}
