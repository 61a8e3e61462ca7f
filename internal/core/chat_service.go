package core

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/store"
)

type chatStore interface {
	CreateChatSession(userID int64, periodStart, periodEnd string) (*store.ChatSession, error)
	GetChatSession(sessionID string, userID int64) (*store.ChatSession, error)
	GetLatestChatSession(userID int64, periodStart, periodEnd string) (*store.ChatSession, error)
	AppendChatMessage(sessionID, role, content string) (*store.ChatMessage, error)
	GetMessagesBySessionID(sessionID string) ([]store.ChatMessage, error)
}

// ChatService maps a (user, period) to at most one active conversation and
// replays prior turns as history on every request. A session's period is
// fixed at creation; callers cannot retarget an existing session to a new
// window.
type ChatService struct {
	log       *logger.Logger
	records   chatStore
	assembler contextAssembler
	requester *InterpretService
}

func NewChatService(log *logger.Logger, records chatStore, assembler contextAssembler, requester *InterpretService) *ChatService {
	return &ChatService{
		log:       log.With("service", "ChatService"),
		records:   records,
		assembler: assembler,
		requester: requester,
	}
}

type ChatRequest struct {
	SessionID *string
	From      *string
	To        *string
	Message   string
}

type ChatResult struct {
	SessionID        string
	AssistantMessage string
}

// Chat resolves or creates the session, assembles the period's dream context,
// asks the model for the next turn and appends the (user, assistant) pair to
// the session log. Nothing is written if the model call fails.
func (s *ChatService) Chat(ctx context.Context, userID int64, req ChatRequest) (*ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, validationErrorf("message is required")
	}

	session, err := s.resolveSession(userID, req)
	if err != nil {
		return nil, err
	}

	c, err := s.assembler.AssembleWindow(ctx, userID, session.PeriodStart, session.PeriodEnd)
	if err != nil {
		var empty *EmptyResultError
		if !errors.As(err, &empty) {
			return nil, err
		}
		// Chat over an empty window is allowed; the model just has no dream
		// list to lean on.
		c = &Context{PeriodStart: session.PeriodStart, PeriodEnd: session.PeriodEnd}
	}

	prior, err := s.records.GetMessagesBySessionID(session.ID)
	if err != nil {
		return nil, &UpstreamError{Op: "load chat history", Err: err}
	}

	assistantText, err := s.requester.completeWithFallback(ctx, s.buildAttempts(c, prior, message))
	if err != nil {
		return nil, err
	}

	if _, err := s.records.AppendChatMessage(session.ID, "user", message); err != nil {
		return nil, &UpstreamError{Op: "store user message", Err: err}
	}
	if _, err := s.records.AppendChatMessage(session.ID, "assistant", assistantText); err != nil {
		return nil, &UpstreamError{Op: "store assistant message", Err: err}
	}

	return &ChatResult{SessionID: session.ID, AssistantMessage: assistantText}, nil
}

func (s *ChatService) resolveSession(userID int64, req ChatRequest) (*store.ChatSession, error) {
	if req.SessionID != nil && strings.TrimSpace(*req.SessionID) != "" {
		session, err := s.records.GetChatSession(*req.SessionID, userID)
		if err != nil {
			return nil, &UpstreamError{Op: "load chat session", Err: err}
		}
		if session == nil {
			return nil, ErrNotFound
		}
		return session, nil
	}

	if req.From == nil || req.To == nil {
		return nil, validationErrorf("`from` and `to` (YYYY-MM-DD) are required for a new chat")
	}
	if err := validatePeriod(*req.From, *req.To); err != nil {
		return nil, err
	}

	session, err := s.records.CreateChatSession(userID, *req.From, *req.To)
	if err != nil {
		return nil, &UpstreamError{Op: "create chat session", Err: err}
	}
	return session, nil
}

// buildAttempts produces the ordered strategy list: a vision turn when the
// window has images, then the equivalent text-only turn. Prior messages are
// replayed in chronological order in both.
func (s *ChatService) buildAttempts(c *Context, prior []store.ChatMessage, message string) []attempt {
	contextText := buildChatContextText(c, windowDescLimit)

	history := []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text(contextText)}},
	}
	for _, m := range prior {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	question := "Here is my new message or question about these dreams:\n\n" + message

	attempts := []attempt{}
	if len(c.Images) > 0 {
		visionParts := []genai.Part{genai.Text(contextText)}
		visionParts = append(visionParts, imageParts(c)...)
		visionParts = append(visionParts, genai.Text(question))
		attempts = append(attempts, attempt{
			name:    "vision",
			system:  chatVisionSystemInstruction,
			history: history,
			parts:   visionParts,
		})
	}
	attempts = append(attempts, attempt{
		name:    "text-only",
		system:  chatSystemInstruction,
		history: history,
		parts:   []genai.Part{genai.Text(contextText + "\n\n" + question)},
	})
	return attempts
}

// LoadHistory returns the most recently created session for the period with
// its ordered messages, or nil when no session exists. It never creates a
// session.
func (s *ChatService) LoadHistory(ctx context.Context, userID int64, from, to string) (*store.ChatSession, []store.ChatMessage, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, nil, err
	}

	session, err := s.records.GetLatestChatSession(userID, from, to)
	if err != nil {
		return nil, nil, &UpstreamError{Op: "load chat session", Err: err}
	}
	if session == nil {
		return nil, nil, nil
	}

	messages, err := s.records.GetMessagesBySessionID(session.ID)
	if err != nil {
		return nil, nil, &UpstreamError{Op: "load chat messages", Err: err}
	}
	return session, messages, nil
}
