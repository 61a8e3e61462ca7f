package store

import (
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateUser(t *testing.T, s *SQLiteStore, username string) *User {
	t.Helper()
	user, err := s.CreateUser(username, "hash")
	if err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}

func mustCreateDream(t *testing.T, s *SQLiteStore, userID int64, title, date, visibility string) *Dream {
	t.Helper()
	dream, err := s.CreateDream(userID, title, nil, date, visibility, nil)
	if err != nil {
		t.Fatalf("failed to create dream %q: %v", title, err)
	}
	return dream
}

func TestCreateUserAlsoCreatesProfile(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")

	profile, err := s.GetProfileByUserID(user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile == nil {
		t.Fatal("expected a profile row for a new user")
	}
	if profile.IsPublic {
		t.Fatal("new profiles must start private")
	}
}

func TestGetUserByUsernameMissing(t *testing.T) {
	s := newTestStore(t)

	user, err := s.GetUserByUsername("nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Fatal("expected nil for a missing user")
	}
}

func TestCreateDreamSlug(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")

	dream := mustCreateDream(t, s, user.ID, "Falling Through Clouds!", "2024-01-01", VisibilityPrivate)
	if !strings.HasPrefix(dream.Slug, "falling-through-clouds-") {
		t.Fatalf("unexpected slug %q", dream.Slug)
	}

	loaded, err := s.GetDreamBySlug(dream.Slug)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded == nil || loaded.ID != dream.ID {
		t.Fatal("slug lookup did not return the created dream")
	}
}

func TestGetDreamsInWindow(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")
	other := mustCreateUser(t, s, "sol")

	mustCreateDream(t, s, user.ID, "Before", "2023-12-31", VisibilityPrivate)
	d1 := mustCreateDream(t, s, user.ID, "Falling", "2024-01-01", VisibilityPrivate)
	d2 := mustCreateDream(t, s, user.ID, "Ocean city", "2024-01-05", VisibilityPrivate)
	d3 := mustCreateDream(t, s, user.ID, "Edge day", "2024-01-07", VisibilityPrivate)
	mustCreateDream(t, s, user.ID, "After", "2024-01-08", VisibilityPrivate)
	mustCreateDream(t, s, other.ID, "Not mine", "2024-01-03", VisibilityPrivate)

	dreams, err := s.GetDreamsInWindow(user.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dreams) != 3 {
		t.Fatalf("got %d dreams, want 3", len(dreams))
	}
	// Bounds are inclusive and results come oldest first.
	for i, want := range []string{d1.ID, d2.ID, d3.ID} {
		if dreams[i].ID != want {
			t.Fatalf("dreams[%d] = %q, want %q", i, dreams[i].Title, want)
		}
	}
}

func TestGetPublicDreamsByUsernameRequiresPublicProfile(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")
	mustCreateDream(t, s, user.ID, "Shared", "2024-01-01", VisibilityPublic)
	mustCreateDream(t, s, user.ID, "Hidden", "2024-01-02", VisibilityPrivate)

	dreams, err := s.GetPublicDreamsByUsername("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dreams) != 0 {
		t.Fatal("a private profile must expose nothing")
	}

	if err := s.UpdateProfile(user.ID, nil, nil, true); err != nil {
		t.Fatalf("failed to update profile: %v", err)
	}
	dreams, err = s.GetPublicDreamsByUsername("luna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dreams) != 1 || dreams[0].Title != "Shared" {
		t.Fatalf("got %d dreams, want only the public one", len(dreams))
	}
}

func TestUpdateDreamScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")
	intruder := mustCreateUser(t, s, "sol")
	dream := mustCreateDream(t, s, user.ID, "Original", "2024-01-01", VisibilityPrivate)

	if err := s.UpdateDream(dream.ID, intruder.ID, "Hijacked", nil, "2024-01-01", VisibilityPrivate); err == nil {
		t.Fatal("expected an error updating someone else's dream")
	}
	if err := s.UpdateDream(dream.ID, user.ID, "Renamed", nil, "2024-01-02", VisibilityUnlisted); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}

	loaded, _ := s.GetDreamByID(dream.ID)
	if loaded.Title != "Renamed" || loaded.Visibility != VisibilityUnlisted {
		t.Fatalf("update not applied: %+v", loaded)
	}
}

func TestDeleteDreamRemovesInterpretation(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")
	dream := mustCreateDream(t, s, user.ID, "Doomed", "2024-01-01", VisibilityPrivate)

	if _, err := s.ReplaceInterpretation(dream.ID, "<p>gone soon</p>"); err != nil {
		t.Fatalf("failed to store interpretation: %v", err)
	}
	if err := s.DeleteDream(dream.ID, user.ID); err != nil {
		t.Fatalf("failed to delete dream: %v", err)
	}

	count, err := s.CountInterpretationsByDreamID(dream.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("interpretation rows left behind: %d", count)
	}
}

func TestReplaceInterpretationKeepsOneRow(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")
	dream := mustCreateDream(t, s, user.ID, "Falling", "2024-01-01", VisibilityPrivate)

	if _, err := s.ReplaceInterpretation(dream.ID, "<p>first</p>"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := s.ReplaceInterpretation(dream.ID, "<p>second</p>"); err != nil {
		t.Fatalf("second insert failed: %v", err)
	}

	count, err := s.CountInterpretationsByDreamID(dream.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d interpretation rows, want exactly 1", count)
	}

	interp, err := s.GetInterpretationByDreamID(dream.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if interp.Text != "<p>second</p>" {
		t.Fatalf("got %q, want the replacement text", interp.Text)
	}
}

func TestAggregateSummariesAccumulate(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")

	if _, err := s.InsertAggregateSummary(user.ID, "2024-01-01", "2024-01-07", "<p>old</p>"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := s.InsertAggregateSummary(user.ID, "2024-01-01", "2024-01-07", "<p>new</p>"); err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	// A different period must not shadow this one.
	if _, err := s.InsertAggregateSummary(user.ID, "2024-02-01", "2024-02-07", "<p>other</p>"); err != nil {
		t.Fatalf("third insert failed: %v", err)
	}

	latest, err := s.GetLatestAggregateSummary(user.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil || latest.Text != "<p>new</p>" {
		t.Fatalf("got %+v, want the most recent summary for the period", latest)
	}
}

func TestGetLatestAggregateSummaryMissing(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")

	latest, err := s.GetLatestAggregateSummary(user.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Fatal("expected nil for a period with no summaries")
	}
}

func TestChatSessionScoping(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")
	other := mustCreateUser(t, s, "sol")

	session, err := s.CreateChatSession(user.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	got, err := s.GetChatSession(session.ID, other.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("a session must not resolve for a different user")
	}

	got, err = s.GetChatSession(session.ID, user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.PeriodStart != "2024-01-01" {
		t.Fatalf("owner lookup failed: %+v", got)
	}
}

func TestGetLatestChatSession(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")

	if _, err := s.CreateChatSession(user.ID, "2024-01-01", "2024-01-07"); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	second, err := s.CreateChatSession(user.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if _, err := s.CreateChatSession(user.ID, "2024-02-01", "2024-02-07"); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	latest, err := s.GetLatestChatSession(user.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatal("expected the most recently created session for the period")
	}

	missing, err := s.GetLatestChatSession(user.ID, "2025-01-01", "2025-01-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for a period with no sessions")
	}
}

func TestChatMessagesReplayInOrder(t *testing.T) {
	s := newTestStore(t)
	user := mustCreateUser(t, s, "luna")
	session, err := s.CreateChatSession(user.ID, "2024-01-01", "2024-01-07")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	turns := []struct{ role, content string }{
		{"user", "What does the ocean mean?"},
		{"assistant", "Often depth and the unknown."},
		{"user", "And the falling?"},
		{"assistant", "A loss of control, perhaps."},
	}
	for _, turn := range turns {
		if _, err := s.AppendChatMessage(session.ID, turn.role, turn.content); err != nil {
			t.Fatalf("failed to append message: %v", err)
		}
	}

	messages, err := s.GetMessagesBySessionID(session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != len(turns) {
		t.Fatalf("got %d messages, want %d", len(messages), len(turns))
	}
	for i, turn := range turns {
		if messages[i].Role != turn.role || messages[i].Content != turn.content {
			t.Fatalf("messages[%d] = %s %q, want %s %q", i, messages[i].Role, messages[i].Content, turn.role, turn.content)
		}
	}
}
