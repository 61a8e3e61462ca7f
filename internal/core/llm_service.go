package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dream-atlas/backend/internal/logger"
)

const defaultChatModelName = "gemini-1.5-flash-latest"

// Completer is the chat-completion boundary the interpretation and chat
// services depend on, so tests can substitute a fake model.
type Completer interface {
	Complete(ctx context.Context, systemInstruction string, history []*genai.Content, parts []genai.Part) (string, error)
}

type LLMService struct {
	log       *logger.Logger
	client    *genai.Client
	modelName string
}

func NewLLMService(ctx context.Context, lg *logger.Logger, apiKey string) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		log:       lg.With("service", "LLMService"),
		client:    client,
		modelName: defaultChatModelName,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

// Complete sends one turn to the model. parts may interleave text and image
// data; history carries prior conversation turns in order. An empty string
// return with nil error means the model produced no usable text.
func (s *LLMService) Complete(ctx context.Context, systemInstruction string, history []*genai.Content, parts []genai.Part) (string, error) {
	model := s.client.GenerativeModel(s.modelName)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	temp := float32(0.7)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: &temp,
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no content parts for completion")
	}

	var resp *genai.GenerateContentResponse
	var err error
	if len(history) > 0 {
		chatSession := model.StartChat()
		chatSession.History = history
		resp, err = chatSession.SendMessage(ctx, parts...)
	} else {
		resp, err = model.GenerateContent(ctx, parts...)
	}
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.log.Warn("gemini response had no candidates or parts")
		return "", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.log.Warn("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}
	return responseText.String(), nil
}
