package core

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/store"
)

type interpretationStore interface {
	ReplaceInterpretation(dreamID, text string) (*store.Interpretation, error)
	InsertAggregateSummary(userID int64, periodStart, periodEnd, text string) (*store.AggregateSummary, error)
	GetLatestAggregateSummary(userID int64, periodStart, periodEnd string) (*store.AggregateSummary, error)
}

type contextAssembler interface {
	AssembleSingle(ctx context.Context, dreamID string, viewerID int64) (*Context, error)
	AssembleWindow(ctx context.Context, ownerID int64, from, to string) (*Context, error)
}

// InterpretService turns an assembled context into persisted interpretation
// text. When the context carries images it tries a vision request first and
// falls back to an equivalent text-only prompt if the model rejects the
// media; any other failure surfaces immediately.
type InterpretService struct {
	log       *logger.Logger
	llm       Completer
	records   interpretationStore
	assembler contextAssembler
}

func NewInterpretService(log *logger.Logger, llm Completer, records interpretationStore, assembler contextAssembler) *InterpretService {
	return &InterpretService{
		log:       log.With("service", "InterpretService"),
		llm:       llm,
		records:   records,
		assembler: assembler,
	}
}

// attempt is one strategy in the ordered fallback chain.
type attempt struct {
	name    string
	system  string
	history []*genai.Content
	parts   []genai.Part
}

// completeWithFallback tries each attempt in order. Only a media-attributable
// model error advances the chain; auth, rate-limit and network failures stop
// it immediately. A successful call with empty content is a failure, not an
// empty success.
func (s *InterpretService) completeWithFallback(ctx context.Context, attempts []attempt) (string, error) {
	for i, a := range attempts {
		text, err := s.llm.Complete(ctx, a.system, a.history, a.parts)
		if err != nil {
			if i < len(attempts)-1 && isMediaError(err) {
				s.log.Warn("model rejected media, trying next strategy", "attempt", a.name, "error", err)
				continue
			}
			return "", &UpstreamError{Op: "llm completion (" + a.name + ")", Err: err}
		}

		text = stripCodeFences(text)
		if strings.TrimSpace(text) == "" {
			return "", &EmptyResultError{Msg: "model returned no usable content"}
		}
		return text, nil
	}
	return "", &EmptyResultError{Msg: "no completion strategies available"}
}

// GenerateDreamSummary builds a per-dream interpretation and replaces any
// existing row for that dream.
func (s *InterpretService) GenerateDreamSummary(ctx context.Context, viewerID int64, dreamID string) (*store.Interpretation, error) {
	if strings.TrimSpace(dreamID) == "" {
		return nil, validationErrorf("dreamId is required")
	}

	c, err := s.assembler.AssembleSingle(ctx, dreamID, viewerID)
	if err != nil {
		return nil, err
	}

	prompt := buildSummaryPrompt(c.Dreams[0])
	attempts := []attempt{}
	if len(c.Images) > 0 {
		attempts = append(attempts, attempt{
			name:   "vision",
			system: summarySystemInstruction,
			parts:  append([]genai.Part{genai.Text(prompt)}, imageParts(c)...),
		})
	}
	attempts = append(attempts, attempt{
		name:   "text-only",
		system: summarySystemInstruction,
		parts:  []genai.Part{genai.Text(prompt)},
	})

	text, err := s.completeWithFallback(ctx, attempts)
	if err != nil {
		return nil, err
	}

	interp, err := s.records.ReplaceInterpretation(dreamID, text)
	if err != nil {
		return nil, &UpstreamError{Op: "store interpretation", Err: err}
	}
	return interp, nil
}

// GenerateAggregateSummary builds a theme summary over [from, to] and appends
// a new summary row. A window with zero dreams fails before any model call.
func (s *InterpretService) GenerateAggregateSummary(ctx context.Context, ownerID int64, from, to string) (*store.AggregateSummary, error) {
	c, err := s.assembler.AssembleWindow(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}

	attempts := []attempt{}
	if len(c.Images) > 0 {
		visionPrompt := buildAggregatePrompt(c, windowDescLimit, true)
		attempts = append(attempts, attempt{
			name:   "vision",
			system: aggregateVisionSystemInstruction,
			parts:  append([]genai.Part{genai.Text(visionPrompt)}, imageParts(c)...),
		})
	}
	textPrompt := buildAggregatePrompt(c, textOnlyDescLimit, false)
	attempts = append(attempts, attempt{
		name:   "text-only",
		system: aggregateSystemInstruction,
		parts:  []genai.Part{genai.Text(textPrompt)},
	})

	text, err := s.completeWithFallback(ctx, attempts)
	if err != nil {
		return nil, err
	}

	summary, err := s.records.InsertAggregateSummary(ownerID, from, to, text)
	if err != nil {
		return nil, &UpstreamError{Op: "store aggregate summary", Err: err}
	}
	return summary, nil
}

// LoadAggregateSummary returns the current summary for the period, or nil if
// none has been generated. Read-only.
func (s *InterpretService) LoadAggregateSummary(ctx context.Context, ownerID int64, from, to string) (*store.AggregateSummary, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}
	summary, err := s.records.GetLatestAggregateSummary(ownerID, from, to)
	if err != nil {
		return nil, &UpstreamError{Op: "load aggregate summary", Err: err}
	}
	return summary, nil
}

// isMediaError reports whether a model failure is attributable to the media
// itself (unsupported or rejected image input) rather than auth, rate limits
// or the network.
func isMediaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unsupported", "image", "media", "mime type"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// stripCodeFences defensively removes leading/trailing markdown fences the
// model sometimes wraps its HTML fragment in despite instructions.
func stripCodeFences(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```html")
		t = strings.TrimPrefix(t, "```HTML")
		t = strings.TrimPrefix(t, "```")
		t = strings.TrimLeft(t, "\r\n")
	}
	if strings.HasSuffix(t, "```") {
		t = strings.TrimSuffix(t, "```")
		t = strings.TrimRight(t, "\r\n \t")
	}
	return strings.TrimSpace(t)
}
