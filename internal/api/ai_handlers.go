package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dream-atlas/backend/internal/core"
)

type PeriodRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type DreamSummaryRequest struct {
	DreamID string `json:"dreamId"`
}

func (h *APIHandler) DreamSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req DreamSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	interp, err := h.interpret.GenerateDreamSummary(r.Context(), userID, req.DreamID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   interp.Text,
		"createdAt": interp.CreatedAt,
	})
}

func (h *APIHandler) AggregateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req PeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	summary, err := h.interpret.GenerateAggregateSummary(r.Context(), userID, req.From, req.To)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   summary.Text,
		"createdAt": summary.CreatedAt,
	})
}

// AggregateLoadHandler is the read-only companion to AggregateSummaryHandler;
// a period with no stored summary yields {"summary": null}, not an error.
func (h *APIHandler) AggregateLoadHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req PeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	summary, err := h.interpret.LoadAggregateSummary(r.Context(), userID, req.From, req.To)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusOK, map[string]any{"summary": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   summary.Text,
		"createdAt": summary.CreatedAt,
	})
}

type ChatHandlerRequest struct {
	SessionID *string `json:"sessionId,omitempty"`
	From      *string `json:"from,omitempty"`
	To        *string `json:"to,omitempty"`
	Message   string  `json:"message"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req ChatHandlerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.chat.Chat(r.Context(), userID, core.ChatRequest{
		SessionID: req.SessionID,
		From:      req.From,
		To:        req.To,
		Message:   req.Message,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId":        result.SessionID,
		"assistantMessage": result.AssistantMessage,
	})
}

type chatMessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *APIHandler) ChatLoadHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req PeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	session, messages, err := h.chat.LoadHistory(r.Context(), userID, req.From, req.To)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sessionId": nil, "messages": []chatMessageResponse{}})
		return
	}

	out := make([]chatMessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessageResponse{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": session.ID, "messages": out})
}
