package store

import "time"

const (
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
	VisibilityPublic   = "public"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

type Profile struct {
	UserID      int64   `json:"user_id"`
	DisplayName *string `json:"display_name"` // Nullable
	Bio         *string `json:"bio"`          // Nullable
	IsPublic    bool    `json:"is_public"`
}

type Dream struct {
	ID           string    `json:"id"` // UUID
	UserID       int64     `json:"user_id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Description  *string   `json:"description"` // Nullable
	DreamDate    string    `json:"dream_date"`  // YYYY-MM-DD
	Visibility   string    `json:"visibility"`
	MediaURL     *string   `json:"media_url"`     // May point at external, untrusted hosts
	ThumbnailURL *string   `json:"thumbnail_url"` // Always application-owned once set
	CreatedAt    time.Time `json:"created_at"`
}

// Interpretation is the per-dream AI summary. At most one row exists per
// dream; regenerating replaces the previous row.
type Interpretation struct {
	ID        string    `json:"id"`
	DreamID   string    `json:"dream_id"`
	Text      string    `json:"text"` // HTML fragment
	CreatedAt time.Time `json:"created_at"`
}

// AggregateSummary is a theme summary over a date window. Rows accumulate;
// the newest one for an (owner, period) is the current one.
type AggregateSummary struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	PeriodStart string    `json:"period_start"` // YYYY-MM-DD
	PeriodEnd   string    `json:"period_end"`   // YYYY-MM-DD
	Text        string    `json:"text"`         // HTML fragment
	CreatedAt   time.Time `json:"created_at"`
}

type ChatSession struct {
	ID          string    `json:"id"` // UUID
	UserID      int64     `json:"user_id"`
	PeriodStart string    `json:"period_start"` // Immutable after creation
	PeriodEnd   string    `json:"period_end"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"` // UUID
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
