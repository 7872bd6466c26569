package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionFixture(t *testing.T) (*memStore, *SessionManager, *stepClock, TimetableSlot) {
	t.Helper()
	store := newMemStore()
	clk := &stepClock{now: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)}
	slot, err := store.InsertSlot(context.Background(), TimetableSlot{
		MappingID: "map-1", DayOfWeek: 1, StartMinute: 540, EndMinute: 600,
	})
	require.NoError(t, err)
	return store, NewSessionManager(store, clk), clk, slot
}

func TestOpenSession(t *testing.T) {
	_, mgr, clk, slot := sessionFixture(t)
	ctx := context.Background()

	session, err := mgr.Open(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, session.SlotID)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), session.SessionDate)
	assert.False(t, session.Locked)
	assert.False(t, session.IsArchived)

	_, err = mgr.Open(ctx, slot.ID)
	assert.ErrorIs(t, err, ErrDuplicateSession, "second open same day")

	clk.Advance(24 * time.Hour)
	_, err = mgr.Open(ctx, slot.ID)
	assert.NoError(t, err, "next day opens fresh")
}

func TestOpenSessionUnknownSlot(t *testing.T) {
	_, mgr, _, _ := sessionFixture(t)
	_, err := mgr.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestOpenSessionAfterArchiveSucceeds(t *testing.T) {
	store, mgr, _, slot := sessionFixture(t)
	ctx := context.Background()

	session, err := mgr.Open(ctx, slot.ID)
	require.NoError(t, err)

	_, err = mgr.Open(ctx, slot.ID)
	require.ErrorIs(t, err, ErrDuplicateSession)

	// Archival frees the (slot, date) pair for a new session.
	store.archive(session.ID)
	_, err = mgr.Open(ctx, slot.ID)
	assert.NoError(t, err)
}

func TestLockSessionIdempotent(t *testing.T) {
	store, mgr, _, slot := sessionFixture(t)
	ctx := context.Background()

	session, err := mgr.Open(ctx, slot.ID)
	require.NoError(t, err)

	require.NoError(t, mgr.Lock(ctx, session.ID))
	require.NoError(t, mgr.Lock(ctx, session.ID), "relock is a no-op")

	got, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.Locked)

	assert.ErrorIs(t, mgr.Lock(ctx, "nope"), ErrSessionNotFound)
}

func TestArchiveOlderThan(t *testing.T) {
	store, mgr, clk, slot := sessionFixture(t)
	ctx := context.Background()

	old, err := mgr.Open(ctx, slot.ID)
	require.NoError(t, err)

	clk.Advance(40 * 24 * time.Hour)
	fresh, err := mgr.Open(ctx, slot.ID)
	require.NoError(t, err)

	n, err := mgr.ArchiveOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	gotOld, _ := store.GetSession(ctx, old.ID)
	gotFresh, _ := store.GetSession(ctx, fresh.ID)
	assert.True(t, gotOld.IsArchived)
	assert.False(t, gotFresh.IsArchived)
}
