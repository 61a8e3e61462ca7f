package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dream-atlas/backend/internal/auth"
	"github.com/dream-atlas/backend/internal/core"
	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/media"
	"github.com/dream-atlas/backend/internal/pdf"
	"github.com/dream-atlas/backend/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

type APIHandler struct {
	log        *logger.Logger
	store      *store.SQLiteStore
	interpret  *core.InterpretService
	chat       *core.ChatService
	normalizer *media.Normalizer
	journal    *pdf.JournalRenderer
}

func NewAPIHandler(log *logger.Logger, st *store.SQLiteStore, interpret *core.InterpretService, chat *core.ChatService, normalizer *media.Normalizer, journal *pdf.JournalRenderer) *APIHandler {
	return &APIHandler{
		log:        log.With("component", "api"),
		store:      st,
		interpret:  interpret,
		chat:       chat,
		normalizer: normalizer,
		journal:    journal,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the core failure taxonomy onto HTTP statuses.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *core.ValidationError
	var emptyErr *core.EmptyResultError
	var upstreamErr *core.UpstreamError

	switch {
	case errors.Is(err, core.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, core.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Msg)
	case errors.As(err, &emptyErr):
		writeError(w, http.StatusBadRequest, emptyErr.Msg)
	case errors.As(err, &upstreamErr):
		h.log.Error("upstream failure", "op", upstreamErr.Op, "error", upstreamErr.Err)
		writeError(w, http.StatusInternalServerError, upstreamErr.Error())
	default:
		h.log.Error("unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "Unexpected error")
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		username, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := h.store.GetUserByUsername(username)
		if err != nil {
			h.log.Error("failed to resolve user identity", "username", username, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to process user identity")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	existing, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		h.log.Error("failed to check existing user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Username is already taken")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.log.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.store.CreateUser(req.Username, hashedPassword)
	if err != nil {
		h.log.Error("failed to create user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		h.log.Error("failed to get user for login", "username", req.Username, "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateJWT(user.Username)
	if err != nil {
		h.log.Error("failed to generate token", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *APIHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	profile, err := h.store.GetProfileByUserID(userID)
	if err != nil || profile == nil {
		h.log.Error("failed to get profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type ProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	IsPublic    bool    `json:"is_public"`
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.store.UpdateProfile(userID, req.DisplayName, req.Bio, req.IsPublic); err != nil {
		h.log.Error("failed to update profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	profile, err := h.store.GetProfileByUserID(userID)
	if err != nil || profile == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type DreamRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DreamDate   string  `json:"dream_date"`
	Visibility  string  `json:"visibility"`
	MediaURL    *string `json:"media_url,omitempty"`
}

func (req *DreamRequest) validate() string {
	if strings.TrimSpace(req.Title) == "" {
		return "title is required"
	}
	if _, err := time.Parse("2006-01-02", req.DreamDate); err != nil {
		return "dream_date must be YYYY-MM-DD"
	}
	if req.Visibility == "" {
		req.Visibility = store.VisibilityPrivate
	}
	switch req.Visibility {
	case store.VisibilityPrivate, store.VisibilityUnlisted, store.VisibilityPublic:
	default:
		return "visibility must be private, unlisted or public"
	}
	return ""
}

func (h *APIHandler) CreateDreamHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req DreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	dream, err := h.store.CreateDream(userID, req.Title, req.Description, req.DreamDate, req.Visibility, req.MediaURL)
	if err != nil {
		h.log.Error("failed to create dream", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create dream")
		return
	}
	writeJSON(w, http.StatusCreated, dream)
}

func (h *APIHandler) ListDreamsHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	dreams, err := h.store.GetDreamsByUserID(userID)
	if err != nil {
		h.log.Error("failed to list dreams", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list dreams")
		return
	}
	if dreams == nil {
		dreams = []store.Dream{}
	}
	writeJSON(w, http.StatusOK, dreams)
}

func (h *APIHandler) GetDreamHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	dreamID := chi.URLParam(r, "dreamID")

	dream, err := h.store.GetDreamByID(dreamID)
	if err != nil {
		h.log.Error("failed to get dream", "dream_id", dreamID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get dream")
		return
	}
	if dream == nil || dream.UserID != userID {
		writeError(w, http.StatusNotFound, "Dream not found")
		return
	}
	writeJSON(w, http.StatusOK, dream)
}

func (h *APIHandler) UpdateDreamHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	dreamID := chi.URLParam(r, "dreamID")

	var req DreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.UpdateDream(dreamID, userID, req.Title, req.Description, req.DreamDate, req.Visibility); err != nil {
		writeError(w, http.StatusNotFound, "Dream not found")
		return
	}

	dream, err := h.store.GetDreamByID(dreamID)
	if err != nil || dream == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload dream")
		return
	}
	writeJSON(w, http.StatusOK, dream)
}

func (h *APIHandler) DeleteDreamHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	dreamID := chi.URLParam(r, "dreamID")

	if err := h.store.DeleteDream(dreamID, userID); err != nil {
		writeError(w, http.StatusNotFound, "Dream not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDreamBySlugHandler serves the public dream page lookup. Private dreams
// are indistinguishable from missing ones.
func (h *APIHandler) GetDreamBySlugHandler(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	dream, err := h.store.GetDreamBySlug(slug)
	if err != nil {
		h.log.Error("failed to get dream by slug", "slug", slug, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get dream")
		return
	}
	if dream == nil || dream.Visibility == store.VisibilityPrivate {
		writeError(w, http.StatusNotFound, "Dream not found")
		return
	}
	writeJSON(w, http.StatusOK, dream)
}

func (h *APIHandler) PublicProfileDreamsHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	dreams, err := h.store.GetPublicDreamsByUsername(username)
	if err != nil {
		h.log.Error("failed to list public dreams", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list dreams")
		return
	}
	if dreams == nil {
		dreams = []store.Dream{}
	}
	writeJSON(w, http.StatusOK, dreams)
}

type ImportImageRequest struct {
	ImageURL string `json:"imageUrl"`
}

func (h *APIHandler) ImportImageHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	var req ImportImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		writeError(w, http.StatusBadRequest, "imageUrl is required")
		return
	}

	storedURL, err := h.normalizer.ImportExternalImage(r.Context(), userID, req.ImageURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not import image: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"storedUrl": storedURL})
}

func (h *APIHandler) ExportPDFHandler(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)

	dreams, err := h.store.GetDreamsByUserID(userID)
	if err != nil {
		h.log.Error("failed to load dreams for export", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load dreams")
		return
	}
	if len(dreams) == 0 {
		writeError(w, http.StatusBadRequest, "No dreams found to export")
		return
	}

	userName := ""
	if profile, err := h.store.GetProfileByUserID(userID); err == nil && profile != nil && profile.DisplayName != nil {
		userName = *profile.DisplayName
	}
	if userName == "" {
		if user, err := h.store.GetUserByID(userID); err == nil && user != nil {
			userName = user.Username
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="dream-journal-`+time.Now().Format("2006-01-02")+`.pdf"`)
	if err := h.journal.Render(r.Context(), userName, dreams, w); err != nil {
		h.log.Error("failed to render journal PDF", "user_id", userID, "error", err)
	}
}
