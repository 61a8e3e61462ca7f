package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *SQLiteStore) CreateChatSession(userID int64, periodStart, periodEnd string) (*ChatSession, error) {
	session := &ChatSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.Exec("INSERT INTO chat_sessions (id, user_id, period_start, period_end, created_at) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.UserID, session.PeriodStart, session.PeriodEnd, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat session: %w", err)
	}
	return session, nil
}

// GetChatSession resolves a session by id, scoped to its owner.
func (s *SQLiteStore) GetChatSession(sessionID string, userID int64) (*ChatSession, error) {
	var session ChatSession
	err := s.db.QueryRow("SELECT id, user_id, period_start, period_end, created_at FROM chat_sessions WHERE id = ? AND user_id = ?", sessionID, userID).
		Scan(&session.ID, &session.UserID, &session.PeriodStart, &session.PeriodEnd, &session.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

// GetLatestChatSession resolves the active session for an (owner, period):
// newest created_at, rowid breaking exact ties.
func (s *SQLiteStore) GetLatestChatSession(userID int64, periodStart, periodEnd string) (*ChatSession, error) {
	var session ChatSession
	err := s.db.QueryRow(`
        SELECT id, user_id, period_start, period_end, created_at
        FROM chat_sessions
        WHERE user_id = ? AND period_start = ? AND period_end = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT 1
    `, userID, periodStart, periodEnd).
		Scan(&session.ID, &session.UserID, &session.PeriodStart, &session.PeriodEnd, &session.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest chat session: %w", err)
	}
	return &session, nil
}

// AppendChatMessage appends to a session's message log. The log is
// append-only; callers rely on insertion order being preserved.
func (s *SQLiteStore) AppendChatMessage(sessionID, role, content string) (*ChatMessage, error) {
	msg := &ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	_, err := s.db.Exec("INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat message: %w", err)
	}
	return msg, nil
}

// GetMessagesBySessionID returns the session's messages in creation order.
// rowid breaks created_at ties so a (user, assistant) pair written in the
// same instant still reads back in append order.
func (s *SQLiteStore) GetMessagesBySessionID(sessionID string) ([]ChatMessage, error) {
	rows, err := s.db.Query("SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
