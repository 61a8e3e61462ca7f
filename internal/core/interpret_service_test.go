package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/store"
)

// fakeCompleter scripts one response (or error) per call, in order.
type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
	systems   []string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemInstruction string, history []*genai.Content, parts []genai.Part) (string, error) {
	i := f.calls
	f.calls++
	f.systems = append(f.systems, systemInstruction)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var text string
	if i < len(f.responses) {
		text = f.responses[i]
	}
	return text, err
}

type fakeRecords struct {
	interpretations map[string]string
	summaries       []store.AggregateSummary
	latest          *store.AggregateSummary
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{interpretations: map[string]string{}}
}

func (f *fakeRecords) ReplaceInterpretation(dreamID, text string) (*store.Interpretation, error) {
	f.interpretations[dreamID] = text
	return &store.Interpretation{ID: "i1", DreamID: dreamID, Text: text}, nil
}

func (f *fakeRecords) InsertAggregateSummary(userID int64, periodStart, periodEnd, text string) (*store.AggregateSummary, error) {
	summary := store.AggregateSummary{ID: "s1", UserID: userID, PeriodStart: periodStart, PeriodEnd: periodEnd, Text: text}
	f.summaries = append(f.summaries, summary)
	return &summary, nil
}

func (f *fakeRecords) GetLatestAggregateSummary(userID int64, periodStart, periodEnd string) (*store.AggregateSummary, error) {
	return f.latest, nil
}

type fakeAssembler struct {
	single *Context
	window *Context
	err    error
}

func (f *fakeAssembler) AssembleSingle(ctx context.Context, dreamID string, viewerID int64) (*Context, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.single, nil
}

func (f *fakeAssembler) AssembleWindow(ctx context.Context, ownerID int64, from, to string) (*Context, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.window, nil
}

func singleContext(withImage bool) *Context {
	c := &Context{Dreams: []store.Dream{{ID: "d1", UserID: 7, Title: "Falling", DreamDate: "2024-01-01"}}}
	if withImage {
		c.Images = []ContextImage{{DreamTitle: "Falling", DreamDate: "2024-01-01", Format: "jpeg", Data: []byte("img")}}
	}
	return c
}

func windowContext(withImage bool) *Context {
	c := &Context{PeriodStart: "2024-01-01", PeriodEnd: "2024-01-07", Dreams: testWindowDreams()}
	if withImage {
		c.Images = []ContextImage{{DreamTitle: "Falling", DreamDate: "2024-01-01", Format: "png", Data: []byte("img")}}
	}
	return c
}

func TestGenerateDreamSummaryStoresResult(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"<h3>What this dream is circling around</h3>"}}
	records := newFakeRecords()
	svc := NewInterpretService(logger.NewNop(), llm, records, &fakeAssembler{single: singleContext(false)})

	interp, err := svc.GenerateDreamSummary(context.Background(), 7, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interp.Text != "<h3>What this dream is circling around</h3>" {
		t.Fatalf("unexpected stored text %q", interp.Text)
	}
	if records.interpretations["d1"] != interp.Text {
		t.Fatal("interpretation not persisted")
	}
	if llm.calls != 1 {
		t.Fatalf("model called %d times, want 1", llm.calls)
	}
}

func TestGenerateDreamSummaryRequiresID(t *testing.T) {
	svc := NewInterpretService(logger.NewNop(), &fakeCompleter{}, newFakeRecords(), &fakeAssembler{})

	var validationErr *ValidationError
	if _, err := svc.GenerateDreamSummary(context.Background(), 7, "  "); !errors.As(err, &validationErr) {
		t.Fatalf("got %v, want a validation error", err)
	}
}

func TestGenerateDreamSummaryVisionFallback(t *testing.T) {
	llm := &fakeCompleter{
		errs:      []error{errors.New("400: unsupported image mime type"), nil},
		responses: []string{"", "<p>text-only result</p>"},
	}
	records := newFakeRecords()
	svc := NewInterpretService(logger.NewNop(), llm, records, &fakeAssembler{single: singleContext(true)})

	interp, err := svc.GenerateDreamSummary(context.Background(), 7, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 2 {
		t.Fatalf("model called %d times, want vision then text-only", llm.calls)
	}
	if interp.Text != "<p>text-only result</p>" {
		t.Fatalf("unexpected stored text %q", interp.Text)
	}
}

func TestGenerateDreamSummaryNonMediaErrorStops(t *testing.T) {
	llm := &fakeCompleter{errs: []error{errors.New("429: rate limit exceeded")}}
	records := newFakeRecords()
	svc := NewInterpretService(logger.NewNop(), llm, records, &fakeAssembler{single: singleContext(true)})

	_, err := svc.GenerateDreamSummary(context.Background(), 7, "d1")
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("got %v, want UpstreamError", err)
	}
	if llm.calls != 1 {
		t.Fatalf("model called %d times, want no fallback for a non-media error", llm.calls)
	}
	if len(records.interpretations) != 0 {
		t.Fatal("nothing must be persisted on failure")
	}
}

func TestGenerateDreamSummaryEmptyResponse(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"   "}}
	records := newFakeRecords()
	svc := NewInterpretService(logger.NewNop(), llm, records, &fakeAssembler{single: singleContext(false)})

	_, err := svc.GenerateDreamSummary(context.Background(), 7, "d1")
	var emptyErr *EmptyResultError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("got %v, want EmptyResultError", err)
	}
	if len(records.interpretations) != 0 {
		t.Fatal("an empty response must not be persisted")
	}
}

func TestGenerateAggregateSummaryUsesVisionFirst(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"<h3>Themes</h3>"}}
	records := newFakeRecords()
	svc := NewInterpretService(logger.NewNop(), llm, records, &fakeAssembler{window: windowContext(true)})

	summary, err := svc.GenerateAggregateSummary(context.Background(), 7, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 1 || llm.systems[0] != aggregateVisionSystemInstruction {
		t.Fatalf("expected one vision call, got %d calls with system %q", llm.calls, llm.systems[0])
	}
	if len(records.summaries) != 1 || summary.Text != "<h3>Themes</h3>" {
		t.Fatalf("summary not persisted: %+v", records.summaries)
	}
}

func TestGenerateAggregateSummaryTextOnlyWithoutImages(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"<h3>Themes</h3>"}}
	svc := NewInterpretService(logger.NewNop(), llm, newFakeRecords(), &fakeAssembler{window: windowContext(false)})

	if _, err := svc.GenerateAggregateSummary(context.Background(), 7, "2024-01-01", "2024-01-07"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 1 || llm.systems[0] != aggregateSystemInstruction {
		t.Fatalf("expected a single text-only call, got %d with system %q", llm.calls, llm.systems[0])
	}
}

func TestGenerateAggregateSummaryEmptyWindow(t *testing.T) {
	records := newFakeRecords()
	assembler := &fakeAssembler{err: &EmptyResultError{Msg: "No dreams found in this period"}}
	llm := &fakeCompleter{}
	svc := NewInterpretService(logger.NewNop(), llm, records, assembler)

	_, err := svc.GenerateAggregateSummary(context.Background(), 7, "2024-01-01", "2024-01-07")
	var emptyErr *EmptyResultError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("got %v, want EmptyResultError", err)
	}
	if llm.calls != 0 {
		t.Fatal("the model must not be called for an empty window")
	}
	if len(records.summaries) != 0 {
		t.Fatal("no summary row may be written for an empty window")
	}
}

func TestLoadAggregateSummary(t *testing.T) {
	records := newFakeRecords()
	svc := NewInterpretService(logger.NewNop(), &fakeCompleter{}, records, &fakeAssembler{})

	summary, err := svc.LoadAggregateSummary(context.Background(), 7, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != nil {
		t.Fatal("expected nil when nothing is stored")
	}

	records.latest = &store.AggregateSummary{ID: "s1", Text: "<p>stored</p>"}
	summary, err = svc.LoadAggregateSummary(context.Background(), 7, "2024-01-01", "2024-01-07")
	if err != nil || summary == nil || summary.Text != "<p>stored</p>" {
		t.Fatalf("got (%+v, %v), want the stored summary", summary, err)
	}

	var validationErr *ValidationError
	if _, err := svc.LoadAggregateSummary(context.Background(), 7, "bad", "2024-01-07"); !errors.As(err, &validationErr) {
		t.Fatalf("got %v, want a validation error", err)
	}
}

func TestIsMediaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("400: unsupported image mime type"), true},
		{errors.New("failed to process media input"), true},
		{errors.New("invalid MIME type for part"), true},
		{errors.New("429: quota exceeded"), false},
		{errors.New("401: invalid api key"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := isMediaError(tc.err); got != tc.want {
			t.Fatalf("isMediaError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"```html\n<p>hi</p>\n```", "<p>hi</p>"},
		{"```\n<p>hi</p>\n```", "<p>hi</p>"},
		{"<p>plain</p>", "<p>plain</p>"},
		{"  <p>padded</p>  ", "<p>padded</p>"},
		{"```html\n<p>no trailing fence</p>", "<p>no trailing fence</p>"},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Fatalf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildSummaryPromptTruncates(t *testing.T) {
	long := strings.Repeat("x", textOnlyDescLimit+100)
	dream := store.Dream{Title: "Falling", DreamDate: "2024-01-01", Description: &long}

	prompt := buildSummaryPrompt(dream)
	if strings.Contains(prompt, strings.Repeat("x", textOnlyDescLimit+1)) {
		t.Fatalf("description not truncated to %d runes", textOnlyDescLimit)
	}
	if !strings.Contains(prompt, "Dream title: Falling") {
		t.Fatal("prompt missing the dream title")
	}
}
