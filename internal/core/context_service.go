package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/storage"
	"github.com/dream-atlas/backend/internal/store"
)

// Truncation lengths bound the prompt: compact lines in multi-dream windows,
// longer ones when a single dream (or a text-only fallback) carries the whole
// request.
const (
	windowDescLimit   = 200
	textOnlyDescLimit = 400
)

type ContextImage struct {
	DreamTitle string
	DreamDate  string
	Format     string // genai image format, e.g. "jpeg"
	Data       []byte
}

// Context is the assembled text + image bundle for one language-model
// request.
type Context struct {
	PeriodStart string
	PeriodEnd   string
	Dreams      []store.Dream
	Images      []ContextImage
}

// DreamLines renders one compact line per dream, oldest first.
func (c *Context) DreamLines(maxDescLen int) []string {
	lines := make([]string, 0, len(c.Dreams))
	for _, d := range c.Dreams {
		desc := "(no description)"
		if d.Description != nil && strings.TrimSpace(*d.Description) != "" {
			desc = truncate(*d.Description, maxDescLen)
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", d.DreamDate, d.Title, desc))
	}
	return lines
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

type contextDreamStore interface {
	GetDreamByID(dreamID string) (*store.Dream, error)
	GetDreamsInWindow(userID int64, from, to string) ([]store.Dream, error)
}

type mediaNormalizer interface {
	Normalize(ctx context.Context, dream *store.Dream) (string, bool)
}

// ContextService loads dream records for a caller and pairs them with their
// normalized media, producing the Context an interpretation request is built
// from.
type ContextService struct {
	log        *logger.Logger
	dreams     contextDreamStore
	normalizer mediaNormalizer
	objects    storage.ObjectStore
}

func NewContextService(log *logger.Logger, dreams contextDreamStore, normalizer mediaNormalizer, objects storage.ObjectStore) *ContextService {
	return &ContextService{
		log:        log.With("service", "ContextService"),
		dreams:     dreams,
		normalizer: normalizer,
		objects:    objects,
	}
}

// AssembleSingle builds a context for one dream. Assembling AI context is an
// owner-only action; public visibility does not grant it.
func (s *ContextService) AssembleSingle(ctx context.Context, dreamID string, viewerID int64) (*Context, error) {
	dream, err := s.dreams.GetDreamByID(dreamID)
	if err != nil {
		return nil, &UpstreamError{Op: "load dream", Err: err}
	}
	if dream == nil {
		return nil, ErrNotFound
	}
	if dream.UserID != viewerID {
		return nil, ErrForbidden
	}

	c := &Context{Dreams: []store.Dream{*dream}}
	s.attachImage(ctx, c, &c.Dreams[0])
	return c, nil
}

// AssembleWindow builds a context over the owner's dreams with dream_date in
// [from, to] inclusive, oldest first. A window with zero dreams is an
// EmptyResultError; callers that can work with an empty window (chat) handle
// that themselves.
func (s *ContextService) AssembleWindow(ctx context.Context, ownerID int64, from, to string) (*Context, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}

	dreams, err := s.dreams.GetDreamsInWindow(ownerID, from, to)
	if err != nil {
		return nil, &UpstreamError{Op: "load dreams in window", Err: err}
	}
	if len(dreams) == 0 {
		return nil, &EmptyResultError{Msg: "No dreams found in this period"}
	}

	c := &Context{PeriodStart: from, PeriodEnd: to, Dreams: dreams}
	for i := range c.Dreams {
		s.attachImage(ctx, c, &c.Dreams[i])
	}
	return c, nil
}

// attachImage adds one labeled image for the dream when its media normalizes
// to a trusted address. Per-item failures degrade to a context with fewer
// images, never to a failed request.
func (s *ContextService) attachImage(ctx context.Context, c *Context, dream *store.Dream) {
	url, ok := s.normalizer.Normalize(ctx, dream)
	if !ok {
		return
	}

	data, contentType, err := s.objects.Fetch(ctx, url)
	if err != nil {
		s.log.Warn("failed to fetch normalized media, excluding", "dream_id", dream.ID, "error", err)
		return
	}

	c.Images = append(c.Images, ContextImage{
		DreamTitle: dream.Title,
		DreamDate:  dream.DreamDate,
		Format:     imageFormat(contentType, url),
		Data:       data,
	})
}

func imageFormat(contentType, url string) string {
	src := strings.ToLower(contentType)
	if src == "" {
		src = strings.ToLower(url)
	}
	switch {
	case strings.Contains(src, "png"):
		return "png"
	case strings.Contains(src, "webp"):
		return "webp"
	case strings.Contains(src, "gif"):
		return "gif"
	default:
		return "jpeg"
	}
}

func validatePeriod(from, to string) error {
	if from == "" || to == "" {
		return validationErrorf("`from` and `to` (YYYY-MM-DD) are required")
	}
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return validationErrorf("invalid `from` date %q, expected YYYY-MM-DD", from)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return validationErrorf("invalid `to` date %q, expected YYYY-MM-DD", to)
	}
	if end.Before(start) {
		return validationErrorf("`to` date is before `from` date")
	}
	return nil
}
