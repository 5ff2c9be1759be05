package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a Clock pinned to a settable instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func newTestManager(t *testing.T, now time.Time) (*TokenManager, *fakeClock) {
	t.Helper()
	clock := newFakeClock(now)
	return NewManager(NewMemoryStore(), clock), clock
}

func TestIssueSimple(t *testing.T) {
	manager, _ := newTestManager(t, monday)
	ctx := context.Background()

	tok, err := manager.IssueSimple(ctx, "nas", "/media/report.pdf", "report.pdf", time.Hour)
	require.NoError(t, err)
	assert.Len(t, tok.ID, 64)
	assert.Equal(t, "nas", tok.ServerID)
	assert.Equal(t, monday, tok.CreatedAt)
	assert.Equal(t, monday.Add(time.Hour), tok.Policy.ExpiresAt)
}

func TestIssueSimple_Invalid(t *testing.T) {
	manager, _ := newTestManager(t, monday)
	ctx := context.Background()

	_, err := manager.IssueSimple(ctx, "nas", "/media/report.pdf", "report.pdf", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = manager.IssueSimple(ctx, "", "/media/report.pdf", "report.pdf", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = manager.IssueSimple(ctx, "nas", "", "report.pdf", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCheckAccess_SimpleLifetime(t *testing.T) {
	manager, clock := newTestManager(t, monday)
	ctx := context.Background()

	tok, err := manager.IssueSimple(ctx, "nas", "/media/report.pdf", "report.pdf", time.Hour)
	require.NoError(t, err)

	// Allowed throughout [t0, t0+duration)
	for _, offset := range []time.Duration{0, time.Minute, 59 * time.Minute} {
		clock.Set(monday.Add(offset))
		_, decision, err := manager.CheckAccess(ctx, tok.ID)
		require.NoError(t, err)
		assert.Equal(t, DecisionAllowed, decision, "offset %s", offset)
	}

	// Expired from t0+duration on, even before any sweep
	for _, offset := range []time.Duration{time.Hour, 2 * time.Hour} {
		clock.Set(monday.Add(offset))
		_, decision, err := manager.CheckAccess(ctx, tok.ID)
		require.NoError(t, err)
		assert.Equal(t, DecisionExpired, decision, "offset %s", offset)
	}
}

func TestCheckAccess_ScheduledWindow(t *testing.T) {
	manager, clock := newTestManager(t, monday.Add(-24*time.Hour))
	ctx := context.Background()

	tok, err := manager.IssueScheduled(ctx, "nas", "/media/report.pdf", "report.pdf",
		[]time.Weekday{time.Monday},
		ClockTime(9*60), ClockTime(17*60),
		monday.AddDate(0, 0, 30))
	require.NoError(t, err)

	// Monday 10:00, inside the window
	clock.Set(monday)
	_, decision, err := manager.CheckAccess(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionAllowed, decision)

	// Tuesday 12:00, wrong day
	clock.Set(tuesday)
	_, decision, err = manager.CheckAccess(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionOutsideWindow, decision)

	// Past the expiry date, even on an allowed Monday inside the window
	clock.Set(monday.AddDate(0, 0, 35))
	_, decision, err = manager.CheckAccess(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionExpired, decision)
}

func TestCheckAccess_NotFound(t *testing.T) {
	manager, _ := newTestManager(t, monday)

	_, _, err := manager.CheckAccess(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke(t *testing.T) {
	manager, _ := newTestManager(t, monday)
	ctx := context.Background()

	tok, err := manager.IssueSimple(ctx, "nas", "/media/report.pdf", "report.pdf", time.Hour)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, tok.ID))

	_, _, err = manager.CheckAccess(ctx, tok.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Revoking again is NotFound, not fatal
	assert.ErrorIs(t, manager.Revoke(ctx, tok.ID), ErrNotFound)
}

func TestList_AfterRevokingMiddle(t *testing.T) {
	manager, clock := newTestManager(t, monday)
	ctx := context.Background()

	first, err := manager.IssueSimple(ctx, "nas", "/a", "a", time.Hour)
	require.NoError(t, err)
	clock.Set(monday.Add(time.Second))
	middle, err := manager.IssueSimple(ctx, "nas", "/b", "b", time.Hour)
	require.NoError(t, err)
	clock.Set(monday.Add(2 * time.Second))
	third, err := manager.IssueSimple(ctx, "nas", "/c", "c", time.Hour)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, middle.ID))

	tokens, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	ids := map[string]bool{tokens[0].ID: true, tokens[1].ID: true}
	assert.True(t, ids[first.ID])
	assert.True(t, ids[third.ID])
}

func TestDeleteExpired(t *testing.T) {
	manager, clock := newTestManager(t, monday)
	ctx := context.Background()

	short, err := manager.IssueSimple(ctx, "nas", "/a", "a", time.Minute)
	require.NoError(t, err)
	long, err := manager.IssueSimple(ctx, "nas", "/b", "b", time.Hour)
	require.NoError(t, err)

	clock.Set(monday.Add(5 * time.Minute))
	removed, err := manager.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = manager.Get(ctx, short.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = manager.Get(ctx, long.ID)
	assert.NoError(t, err)
}

func TestIssue_ConcurrentUniqueness(t *testing.T) {
	manager, _ := newTestManager(t, monday)
	ctx := context.Background()

	const n = 100
	ids := make(chan string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tok, err := manager.IssueSimple(ctx, "nas", "/media/report.pdf", "report.pdf", time.Hour)
			assert.NoError(t, err)
			if tok != nil {
				ids <- tok.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate token id issued")
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

// collidingStore forces duplicate-id failures to exercise the retry bound.
type collidingStore struct {
	*MemoryStore
}

func (s *collidingStore) Insert(ctx context.Context, tok *Token) error {
	return ErrDuplicateID
}

func TestIssue_GenerationExhausted(t *testing.T) {
	manager := NewManager(&collidingStore{NewMemoryStore()}, newFakeClock(monday))

	_, err := manager.IssueSimple(context.Background(), "nas", "/a", "a", time.Hour)
	assert.ErrorIs(t, err, ErrGenerationExhausted)
}

// recordingChecker is an ExistenceChecker with canned answers.
type recordingChecker struct {
	exists bool
	calls  int
}

func (c *recordingChecker) Exists(ctx context.Context, serverID, path string) (bool, error) {
	c.calls++
	return c.exists, nil
}

func TestIssue_ExistenceCheck(t *testing.T) {
	manager, _ := newTestManager(t, monday)
	ctx := context.Background()

	checker := &recordingChecker{exists: false}
	manager.SetExistenceChecker(checker)

	_, err := manager.IssueSimple(ctx, "nas", "/missing", "missing", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 1, checker.calls)

	// A failed issuance leaves no partial token behind
	tokens, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tokens)

	checker.exists = true
	_, err = manager.IssueSimple(ctx, "nas", "/present", "present", time.Hour)
	assert.NoError(t, err)
}
