package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	if slug == "" {
		slug = "dream"
	}
	// Suffix keeps slugs unique without a retry loop.
	return slug + "-" + uuid.NewString()[:8]
}

func (s *SQLiteStore) CreateDream(userID int64, title string, description *string, dreamDate, visibility string, mediaURL *string) (*Dream, error) {
	dream := &Dream{
		ID:          uuid.NewString(),
		UserID:      userID,
		Slug:        slugify(title),
		Title:       title,
		Description: description,
		DreamDate:   dreamDate,
		Visibility:  visibility,
		MediaURL:    mediaURL,
		CreatedAt:   time.Now(),
	}

	stmt, err := s.db.Prepare("INSERT INTO dreams (id, user_id, slug, title, description, dream_date, visibility, media_url, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dream insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(dream.ID, dream.UserID, dream.Slug, dream.Title, dream.Description, dream.DreamDate, dream.Visibility, dream.MediaURL, dream.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute dream insert: %w", err)
	}
	return dream, nil
}

const dreamColumns = "id, user_id, slug, title, description, dream_date, visibility, media_url, thumbnail_url, created_at"

func scanDream(row interface{ Scan(...any) error }) (*Dream, error) {
	var dream Dream
	var description, mediaURL, thumbnailURL sql.NullString
	err := row.Scan(&dream.ID, &dream.UserID, &dream.Slug, &dream.Title, &description, &dream.DreamDate, &dream.Visibility, &mediaURL, &thumbnailURL, &dream.CreatedAt)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		dream.Description = &description.String
	}
	if mediaURL.Valid {
		dream.MediaURL = &mediaURL.String
	}
	if thumbnailURL.Valid {
		dream.ThumbnailURL = &thumbnailURL.String
	}
	return &dream, nil
}

func (s *SQLiteStore) GetDreamByID(dreamID string) (*Dream, error) {
	row := s.db.QueryRow("SELECT "+dreamColumns+" FROM dreams WHERE id = ?", dreamID)
	dream, err := scanDream(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get dream: %w", err)
	}
	return dream, nil
}

func (s *SQLiteStore) GetDreamBySlug(slug string) (*Dream, error) {
	row := s.db.QueryRow("SELECT "+dreamColumns+" FROM dreams WHERE slug = ?", slug)
	dream, err := scanDream(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dream by slug: %w", err)
	}
	return dream, nil
}

func (s *SQLiteStore) queryDreams(query string, args ...any) ([]Dream, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dreams: %w", err)
	}
	defer rows.Close()

	var dreams []Dream
	for rows.Next() {
		dream, err := scanDream(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dream row: %w", err)
		}
		dreams = append(dreams, *dream)
	}
	return dreams, rows.Err()
}

func (s *SQLiteStore) GetDreamsByUserID(userID int64) ([]Dream, error) {
	return s.queryDreams("SELECT "+dreamColumns+" FROM dreams WHERE user_id = ? ORDER BY dream_date DESC, created_at DESC", userID)
}

// GetDreamsInWindow returns the owner's dreams with dream_date in
// [from, to] inclusive, oldest first.
func (s *SQLiteStore) GetDreamsInWindow(userID int64, from, to string) ([]Dream, error) {
	return s.queryDreams("SELECT "+dreamColumns+" FROM dreams WHERE user_id = ? AND dream_date >= ? AND dream_date <= ? ORDER BY dream_date ASC, created_at ASC", userID, from, to)
}

// GetPublicDreamsByUsername returns public dreams for a user whose profile is
// public. The profile gate means a private profile exposes nothing even if
// individual dreams are marked public.
func (s *SQLiteStore) GetPublicDreamsByUsername(username string) ([]Dream, error) {
	query := `
        SELECT d.id, d.user_id, d.slug, d.title, d.description, d.dream_date, d.visibility, d.media_url, d.thumbnail_url, d.created_at
        FROM dreams d
        JOIN users u ON u.id = d.user_id
        JOIN profiles p ON p.user_id = u.id
        WHERE u.username = ? AND p.is_public = TRUE AND d.visibility = 'public'
        ORDER BY d.dream_date DESC, d.created_at DESC
    `
	return s.queryDreams(query, username)
}

func (s *SQLiteStore) UpdateDream(dreamID string, userID int64, title string, description *string, dreamDate, visibility string) error {
	stmt, err := s.db.Prepare("UPDATE dreams SET title = ?, description = ?, dream_date = ?, visibility = ? WHERE id = ? AND user_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare dream update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(title, description, dreamDate, visibility, dreamID, userID)
	if err != nil {
		return fmt.Errorf("failed to execute dream update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("dream not found or not owned by user, not updated")
	}
	return nil
}

// UpdateDreamMediaURL rewrites media_url, used when an external reference has
// been re-hosted so future calls take the already-owned path.
func (s *SQLiteStore) UpdateDreamMediaURL(dreamID, mediaURL string) error {
	_, err := s.db.Exec("UPDATE dreams SET media_url = ? WHERE id = ?", mediaURL, dreamID)
	if err != nil {
		return fmt.Errorf("failed to update dream media_url: %w", err)
	}
	return nil
}

// UpdateDreamThumbnailURL persists the cached still frame for a video dream.
func (s *SQLiteStore) UpdateDreamThumbnailURL(dreamID, thumbnailURL string) error {
	_, err := s.db.Exec("UPDATE dreams SET thumbnail_url = ? WHERE id = ?", thumbnailURL, dreamID)
	if err != nil {
		return fmt.Errorf("failed to update dream thumbnail_url: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteDream(dreamID string, userID int64) error {
	res, err := s.db.Exec("DELETE FROM dreams WHERE id = ? AND user_id = ?", dreamID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete dream: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("dream not found or not owned by user, not deleted")
	}
	_, err = s.db.Exec("DELETE FROM interpretations WHERE dream_id = ?", dreamID)
	if err != nil {
		return fmt.Errorf("failed to delete dream interpretations: %w", err)
	}
	return nil
}
