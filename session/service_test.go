package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/bilim/testutils"
)

type trackerFixture struct {
	tracker *Tracker
	manager *Manager
	clock   *testutils.Clock
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()

	db := testutils.SetupTestDB(t, Models()...)
	manager := newTestManager()
	manager.Lifetime = time.Hour
	clock := testutils.NewClock(testutils.Epoch)

	tracker := NewTracker(db, manager, nil)
	tracker.SetClock(clock.Now)
	return &trackerFixture{tracker: tracker, manager: manager, clock: clock}
}

// store saves a live session under token so revocation has something to delete.
func (f *trackerFixture) store(t *testing.T, userID uint, token string) {
	t.Helper()
	require.NoError(t, f.manager.Store.Commit(token, []byte("data"), time.Now().Add(time.Hour)))
	require.NoError(t, f.tracker.TrackSession(context.Background(), userID, token, "203.0.113.7", "Firefox"))
}

func (f *trackerFixture) stored(t *testing.T, token string) bool {
	t.Helper()
	_, found, err := f.manager.Store.Find(token)
	require.NoError(t, err)
	return found
}

func TestTracker_TrackAndList(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t)

	f.store(t, 1, "first")
	f.clock.Advance(time.Minute)
	f.store(t, 1, "second")
	f.store(t, 2, "someone-else")

	sessions, err := f.tracker.GetUserSessions(ctx, 1, "first")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "second", sessions[0].Token)
	assert.False(t, sessions[0].Current)
	assert.True(t, sessions[1].Current)
	assert.Equal(t, "203.0.113.7", sessions[1].IPAddress)
	assert.Equal(t, testutils.Epoch.Add(time.Hour), sessions[1].ExpiresAt.UTC())

	f.clock.Advance(time.Hour)
	sessions, err = f.tracker.GetUserSessions(ctx, 1, "first")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "second", sessions[0].Token)
}

func TestTracker_UpdateLastUsed(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t)
	f.store(t, 1, "first")
	f.clock.Advance(10 * time.Minute)
	f.store(t, 1, "second")

	f.clock.Advance(time.Minute)
	require.NoError(t, f.tracker.UpdateLastUsed(ctx, "first"))

	sessions, err := f.tracker.GetUserSessions(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "first", sessions[0].Token)
	assert.Equal(t, testutils.Epoch.Add(11*time.Minute), sessions[0].LastUsed.UTC())
}

func TestTracker_RevokeSession(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t)
	f.store(t, 1, "mine")
	f.store(t, 2, "theirs")

	sessions, err := f.tracker.GetUserSessions(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	assert.ErrorIs(t, f.tracker.RevokeSession(ctx, 1, sessions[0].ID), ErrSessionNotFound)
	assert.True(t, f.stored(t, "theirs"))

	require.NoError(t, f.tracker.RevokeSession(ctx, 2, sessions[0].ID))
	assert.False(t, f.stored(t, "theirs"))
	assert.True(t, f.stored(t, "mine"))

	sessions, err = f.tracker.GetUserSessions(ctx, 2, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestTracker_RevokeAllOtherSessions(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t)
	f.store(t, 1, "current")
	f.store(t, 1, "laptop")
	f.store(t, 1, "phone")
	f.store(t, 2, "neighbour")

	require.NoError(t, f.tracker.RevokeAllOtherSessions(ctx, 1, "current"))

	assert.True(t, f.stored(t, "current"))
	assert.False(t, f.stored(t, "laptop"))
	assert.False(t, f.stored(t, "phone"))
	assert.True(t, f.stored(t, "neighbour"))

	sessions, err := f.tracker.GetUserSessions(ctx, 1, "current")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Current)

	require.NoError(t, f.tracker.RevokeAll(ctx, 1))
	assert.False(t, f.stored(t, "current"))
	sessions, err = f.tracker.GetUserSessions(ctx, 1, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestTracker_RemoveAndCleanup(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t)
	f.store(t, 1, "old")
	f.clock.Advance(30 * time.Minute)
	f.store(t, 1, "new")

	require.NoError(t, f.tracker.RemoveSessionByToken(ctx, "missing"))

	f.clock.Advance(45 * time.Minute)
	removed, err := f.tracker.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, f.tracker.RemoveSessionByToken(ctx, "new"))
	sessions, err := f.tracker.GetUserSessions(ctx, 1, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestTracker_NilSafe(t *testing.T) {
	var tracker *Tracker
	ctx := context.Background()

	assert.NoError(t, tracker.TrackSession(ctx, 1, "token", "", ""))
	assert.NoError(t, tracker.UpdateLastUsed(ctx, "token"))
	assert.NoError(t, tracker.RevokeAllOtherSessions(ctx, 1, "token"))
	assert.NoError(t, tracker.RevokeAll(ctx, 1))
	assert.NoError(t, tracker.RemoveSessionByToken(ctx, "token"))
}
