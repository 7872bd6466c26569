package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classtrack/internal/clock"
	"classtrack/internal/metrics"
)

// DefaultEditReason is stored when an editor gives no reason.
const DefaultEditReason = "No reason provided"

// AbuseCandidate is a heavily-edited record surfaced for administrative
// review. Nothing is auto-locked off the back of this signal.
type AbuseCandidate struct {
	Record      AttendanceRecord `json:"record"`
	StudentName string           `json:"student_name"`
	SessionDate time.Time        `json:"session_date"`
}

// RecordStore is the record persistence surface the ledger needs.
// InsertRecord must use an insert-if-absent primitive on
// (session_id, student_id) and report created=false when it loses the
// race; UpdateRecordWithAudit must commit the record mutation and audit
// entry in one transaction, guarded optimistically on the edit count it
// read, and return ErrConcurrentEdit when another editor got there first.
type RecordStore interface {
	GetSession(ctx context.Context, sessionID string) (*AttendanceSession, error)
	GetRecord(ctx context.Context, sessionID, studentID string) (*AttendanceRecord, error)
	InsertRecord(ctx context.Context, record AttendanceRecord) (AttendanceRecord, bool, error)
	UpdateRecordWithAudit(ctx context.Context, record AttendanceRecord, newStatus Status, markedAt time.Time, audit AuditEntry) (AttendanceRecord, error)
	ListAbuseCandidates(ctx context.Context, editCountAbove int) ([]AbuseCandidate, error)
	AuditTrail(ctx context.Context, recordID string) ([]AuditEntry, error)
}

// Ledger is the sole writer of attendance records and their audit trail.
type Ledger struct {
	store          RecordStore
	clock          clock.Clock
	window         time.Duration
	abuseThreshold int
}

// NewLedger creates a ledger. window is the rolling correction window;
// abuseThreshold is the edit count above which a record becomes an abuse
// candidate.
func NewLedger(store RecordStore, clk clock.Clock, window time.Duration, abuseThreshold int) *Ledger {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if abuseThreshold <= 0 {
		abuseThreshold = 3
	}
	return &Ledger{store: store, clock: clk, window: window, abuseThreshold: abuseThreshold}
}

// Mark creates or corrects a student's record in a session. The first mark
// creates the record with edit count 0 and no audit entry; later marks take
// the edit path. Returns the resulting record and whether it was created.
func (l *Ledger) Mark(ctx context.Context, sessionID, studentID string, status Status, editorID, reason string) (AttendanceRecord, bool, error) {
	if !status.Valid() {
		return AttendanceRecord{}, false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return AttendanceRecord{}, false, fmt.Errorf("fetch session: %w", err)
	}
	if session == nil {
		return AttendanceRecord{}, false, ErrSessionNotFound
	}
	if session.Locked || session.IsArchived {
		return AttendanceRecord{}, false, ErrSessionLocked
	}

	record, err := l.store.GetRecord(ctx, sessionID, studentID)
	if err != nil {
		return AttendanceRecord{}, false, fmt.Errorf("fetch record: %w", err)
	}

	if record == nil {
		created, inserted, err := l.store.InsertRecord(ctx, AttendanceRecord{
			SessionID: sessionID,
			StudentID: studentID,
			Status:    status,
			MarkedAt:  l.clock.Now(),
		})
		if err != nil {
			return AttendanceRecord{}, false, fmt.Errorf("insert record: %w", err)
		}
		if inserted {
			metrics.RecordsMarked.Inc()
			return created, true, nil
		}
		// Lost the insert race to a concurrent first mark: the correct
		// move is to re-fetch and take the edit path, not error out.
		record, err = l.store.GetRecord(ctx, sessionID, studentID)
		if err != nil {
			return AttendanceRecord{}, false, fmt.Errorf("refetch record: %w", err)
		}
		if record == nil {
			return AttendanceRecord{}, false, ErrRecordNotFound
		}
	}

	return l.edit(ctx, *record, status, editorID, reason)
}

// edit applies one correction under the rolling window. The window is
// measured from the record's MOST RECENT mutation, not its creation, so a
// chain of edits each inside 10 minutes of the previous one stays open
// indefinitely. That sliding behavior is deliberate; do not replace it with
// a fixed window anchored at creation.
func (l *Ledger) edit(ctx context.Context, record AttendanceRecord, status Status, editorID, reason string) (AttendanceRecord, bool, error) {
	now := l.clock.Now()
	if now.Sub(record.MarkedAt) > l.window {
		metrics.ExpiredEdits.Inc()
		return AttendanceRecord{}, false, ErrEditWindowExpired
	}
	if reason == "" {
		reason = DefaultEditReason
	}

	updated, err := l.store.UpdateRecordWithAudit(ctx, record, status, now, AuditEntry{
		RecordID:  record.ID,
		OldStatus: record.Status,
		NewStatus: status,
		EditedBy:  editorID,
		Reason:    reason,
		CreatedAt: now,
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentEdit) {
			return AttendanceRecord{}, false, err
		}
		return AttendanceRecord{}, false, fmt.Errorf("update record: %w", err)
	}
	metrics.RecordsEdited.Inc()
	return updated, false, nil
}

// AbuseCandidates lists records whose edit count exceeds the configured
// threshold. Read-only; review and any follow-up are manual.
func (l *Ledger) AbuseCandidates(ctx context.Context) ([]AbuseCandidate, error) {
	return l.store.ListAbuseCandidates(ctx, l.abuseThreshold)
}

// AuditTrail returns the append-only mutation history of a record, oldest
// first. Initial creation never appears; audit covers edits only.
func (l *Ledger) AuditTrail(ctx context.Context, recordID string) ([]AuditEntry, error) {
	return l.store.AuditTrail(ctx, recordID)
}
