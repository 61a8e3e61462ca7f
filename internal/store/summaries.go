package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interpretation methods

// ReplaceInterpretation deletes any prior interpretation for the dream and
// inserts the new one. Last write wins; no history is kept.
func (s *SQLiteStore) ReplaceInterpretation(dreamID, text string) (*Interpretation, error) {
	if _, err := s.db.Exec("DELETE FROM interpretations WHERE dream_id = ?", dreamID); err != nil {
		return nil, fmt.Errorf("failed to delete prior interpretation: %w", err)
	}

	interp := &Interpretation{
		ID:        uuid.NewString(),
		DreamID:   dreamID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	_, err := s.db.Exec("INSERT INTO interpretations (id, dream_id, text, created_at) VALUES (?, ?, ?, ?)",
		interp.ID, interp.DreamID, interp.Text, interp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert interpretation: %w", err)
	}
	return interp, nil
}

func (s *SQLiteStore) GetInterpretationByDreamID(dreamID string) (*Interpretation, error) {
	var interp Interpretation
	err := s.db.QueryRow("SELECT id, dream_id, text, created_at FROM interpretations WHERE dream_id = ?", dreamID).
		Scan(&interp.ID, &interp.DreamID, &interp.Text, &interp.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get interpretation: %w", err)
	}
	return &interp, nil
}

func (s *SQLiteStore) CountInterpretationsByDreamID(dreamID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM interpretations WHERE dream_id = ?", dreamID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count interpretations: %w", err)
	}
	return count, nil
}

// Aggregate summary methods

// InsertAggregateSummary appends a new summary row. Older rows for the same
// period are kept; GetLatestAggregateSummary defines which one is current.
func (s *SQLiteStore) InsertAggregateSummary(userID int64, periodStart, periodEnd, text string) (*AggregateSummary, error) {
	summary := &AggregateSummary{
		ID:          uuid.NewString(),
		UserID:      userID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Text:        text,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.Exec("INSERT INTO aggregate_summaries (id, user_id, period_start, period_end, text, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		summary.ID, summary.UserID, summary.PeriodStart, summary.PeriodEnd, summary.Text, summary.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert aggregate summary: %w", err)
	}
	return summary, nil
}

// GetLatestAggregateSummary resolves the current summary for an
// (owner, period): newest created_at, rowid breaking exact ties.
func (s *SQLiteStore) GetLatestAggregateSummary(userID int64, periodStart, periodEnd string) (*AggregateSummary, error) {
	var summary AggregateSummary
	err := s.db.QueryRow(`
        SELECT id, user_id, period_start, period_end, text, created_at
        FROM aggregate_summaries
        WHERE user_id = ? AND period_start = ? AND period_end = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT 1
    `, userID, periodStart, periodEnd).
		Scan(&summary.ID, &summary.UserID, &summary.PeriodStart, &summary.PeriodEnd, &summary.Text, &summary.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest aggregate summary: %w", err)
	}
	return &summary, nil
}
