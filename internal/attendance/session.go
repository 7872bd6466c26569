package attendance

import (
	"context"
	"fmt"
	"time"

	"classtrack/internal/clock"
	"classtrack/internal/metrics"
)

// SessionStore is the session persistence surface the manager needs.
// InsertSession must enforce at-most-one non-archived session per
// (slot, date) with a storage-level unique constraint and return
// ErrDuplicateSession when it trips; the manager's existence check alone
// cannot close the race between two concurrent opens.
type SessionStore interface {
	GetSlot(ctx context.Context, slotID string) (*TimetableSlot, error)
	ActiveSession(ctx context.Context, slotID string, date time.Time) (*AttendanceSession, error)
	InsertSession(ctx context.Context, session AttendanceSession) (AttendanceSession, error)
	GetSession(ctx context.Context, sessionID string) (*AttendanceSession, error)
	SetSessionLocked(ctx context.Context, sessionID string) error
	ArchiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionManager opens and locks per-day attendance sessions. Archival is
// an administrative action driven by the worker's cron job, never by the
// request path.
type SessionManager struct {
	store SessionStore
	clock clock.Clock
}

// NewSessionManager creates a manager over the given store and clock.
func NewSessionManager(store SessionStore, clk clock.Clock) *SessionManager {
	return &SessionManager{store: store, clock: clk}
}

// Open creates today's session for a slot. Today is the server-local
// calendar date from the injected clock.
func (m *SessionManager) Open(ctx context.Context, slotID string) (AttendanceSession, error) {
	slot, err := m.store.GetSlot(ctx, slotID)
	if err != nil {
		return AttendanceSession{}, fmt.Errorf("fetch slot: %w", err)
	}
	if slot == nil {
		return AttendanceSession{}, ErrSlotNotFound
	}

	today := clock.Today(m.clock)
	existing, err := m.store.ActiveSession(ctx, slotID, today)
	if err != nil {
		return AttendanceSession{}, fmt.Errorf("check session: %w", err)
	}
	if existing != nil {
		metrics.DuplicateSessions.Inc()
		return AttendanceSession{}, ErrDuplicateSession
	}

	created, err := m.store.InsertSession(ctx, AttendanceSession{
		SlotID:      slotID,
		SessionDate: today,
	})
	if err != nil {
		return AttendanceSession{}, err
	}
	metrics.SessionsOpened.Inc()
	return created, nil
}

// Lock marks a session locked. Locking an already-locked session is a
// no-op, not an error.
func (m *SessionManager) Lock(ctx context.Context, sessionID string) error {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetch session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Locked {
		return nil
	}
	return m.store.SetSessionLocked(ctx, sessionID)
}

// ArchiveOlderThan archives every session dated before the cutoff age.
// Archived sessions disappear from every live query; the transition is
// terminal.
func (m *SessionManager) ArchiveOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := clock.Today(m.clock).Add(-age)
	return m.store.ArchiveSessionsBefore(ctx, cutoff)
}
