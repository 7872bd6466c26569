package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists the engine's state in Postgres. It implements every
// store interface the services accept. The uniqueness constraints the
// services rely on (one non-archived session per slot and date, one record
// per session and student, one unlock per student and achievement) live in
// the schema, not here; see store.Schema.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo over an open connection pool.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ---- ScheduleStore ----

// SlotsForMappingDay returns every slot under a mapping on one weekday.
func (r *Repository) SlotsForMappingDay(ctx context.Context, mappingID string, dayOfWeek int) ([]TimetableSlot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mapping_id, day_of_week, start_minute, end_minute
		FROM timetable_slots
		WHERE mapping_id = $1 AND day_of_week = $2
		ORDER BY start_minute
	`, mappingID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []TimetableSlot
	for rows.Next() {
		var s TimetableSlot
		if err := rows.Scan(&s.ID, &s.MappingID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// InsertSlot writes a validated slot.
func (r *Repository) InsertSlot(ctx context.Context, slot TimetableSlot) (TimetableSlot, error) {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timetable_slots (id, mapping_id, day_of_week, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
	`, slot.ID, slot.MappingID, slot.DayOfWeek, slot.StartMinute, slot.EndMinute)
	if err != nil {
		return TimetableSlot{}, err
	}
	return slot, nil
}

// DeleteSlot removes a slot by id.
func (r *Repository) DeleteSlot(ctx context.Context, slotID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timetable_slots WHERE id = $1`, slotID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// GetSlot returns a slot by id, nil when absent.
func (r *Repository) GetSlot(ctx context.Context, slotID string) (*TimetableSlot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, mapping_id, day_of_week, start_minute, end_minute
		FROM timetable_slots WHERE id = $1
	`, slotID)
	var s TimetableSlot
	if err := row.Scan(&s.ID, &s.MappingID, &s.DayOfWeek, &s.StartMinute, &s.EndMinute); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ---- SessionStore ----

// ActiveSession returns the non-archived session for (slot, date), nil when
// absent.
func (r *Repository) ActiveSession(ctx context.Context, slotID string, date time.Time) (*AttendanceSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, slot_id, session_date, locked, is_archived
		FROM attendance_sessions
		WHERE slot_id = $1 AND session_date = $2 AND NOT is_archived
	`, slotID, date)
	return scanSession(row)
}

// InsertSession writes a new open session. The partial unique index on
// (slot_id, session_date) WHERE NOT is_archived closes the race between the
// manager's existence check and this insert; a violation surfaces as
// ErrDuplicateSession.
func (r *Repository) InsertSession(ctx context.Context, session AttendanceSession) (AttendanceSession, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, slot_id, session_date, locked, is_archived)
		VALUES ($1, $2, $3, FALSE, FALSE)
	`, session.ID, session.SlotID, session.SessionDate)
	if err != nil {
		if isUniqueViolation(err) {
			return AttendanceSession{}, ErrDuplicateSession
		}
		return AttendanceSession{}, err
	}
	return session, nil
}

// GetSession returns a session by id, nil when absent.
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*AttendanceSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, slot_id, session_date, locked, is_archived
		FROM attendance_sessions WHERE id = $1
	`, sessionID)
	return scanSession(row)
}

// SetSessionLocked flips locked on. There is no way back.
func (r *Repository) SetSessionLocked(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions SET locked = TRUE WHERE id = $1
	`, sessionID)
	return err
}

// ArchiveSessionsBefore archives every live session dated before the cutoff
// and returns how many it touched.
func (r *Repository) ArchiveSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions SET is_archived = TRUE
		WHERE session_date < $1 AND NOT is_archived
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*AttendanceSession, error) {
	var s AttendanceSession
	if err := row.Scan(&s.ID, &s.SlotID, &s.SessionDate, &s.Locked, &s.IsArchived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ---- RecordStore ----

// GetRecord returns the record for (session, student), nil when absent.
func (r *Repository) GetRecord(ctx context.Context, sessionID, studentID string) (*AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, status, edit_count, marked_at
		FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	var rec AttendanceRecord
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.Status, &rec.EditCount, &rec.MarkedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRecord writes a first mark. Insert-if-absent on
// (session_id, student_id); created reports whether this call won.
func (r *Repository) InsertRecord(ctx context.Context, record AttendanceRecord) (AttendanceRecord, bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, status, edit_count, marked_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, record.ID, record.SessionID, record.StudentID, record.Status, record.MarkedAt)
	if err != nil {
		return AttendanceRecord{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AttendanceRecord{}, false, err
	}
	if n == 0 {
		return AttendanceRecord{}, false, nil
	}
	return record, true, nil
}

// UpdateRecordWithAudit commits one correction and its audit entry in a
// single transaction. The update is guarded on the edit count the caller
// read; losing that race yields ErrConcurrentEdit and nothing commits.
func (r *Repository) UpdateRecordWithAudit(ctx context.Context, record AttendanceRecord, newStatus Status, markedAt time.Time, audit AuditEntry) (AttendanceRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return AttendanceRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = $1, marked_at = $2, edit_count = edit_count + 1
		WHERE id = $3 AND edit_count = $4
	`, newStatus, markedAt, record.ID, record.EditCount)
	if err != nil {
		return AttendanceRecord{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return AttendanceRecord{}, err
	}
	if n == 0 {
		return AttendanceRecord{}, ErrConcurrentEdit
	}

	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_audit_logs (id, record_id, old_status, new_status, edited_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, audit.ID, record.ID, audit.OldStatus, newStatus, audit.EditedBy, audit.Reason, audit.CreatedAt); err != nil {
		return AttendanceRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return AttendanceRecord{}, err
	}

	record.Status = newStatus
	record.MarkedAt = markedAt
	record.EditCount++
	return record, nil
}

// ListAbuseCandidates returns live records edited more than the threshold.
func (r *Repository) ListAbuseCandidates(ctx context.Context, editCountAbove int) ([]AbuseCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ar.id, ar.session_id, ar.student_id, ar.status, ar.edit_count, ar.marked_at,
		       st.name, sess.session_date
		FROM attendance_records ar
		JOIN attendance_sessions sess ON sess.id = ar.session_id AND NOT sess.is_archived
		JOIN students st ON st.id = ar.student_id
		WHERE ar.edit_count > $1
		ORDER BY ar.edit_count DESC, ar.marked_at DESC
	`, editCountAbove)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AbuseCandidate
	for rows.Next() {
		var c AbuseCandidate
		if err := rows.Scan(&c.Record.ID, &c.Record.SessionID, &c.Record.StudentID, &c.Record.Status,
			&c.Record.EditCount, &c.Record.MarkedAt, &c.StudentName, &c.SessionDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AuditTrail returns a record's mutation history, oldest first.
func (r *Repository) AuditTrail(ctx context.Context, recordID string) ([]AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, record_id, old_status, new_status, edited_by, reason, created_at
		FROM attendance_audit_logs
		WHERE record_id = $1
		ORDER BY created_at
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.OldStatus, &e.NewStatus, &e.EditedBy, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var (
	_ ScheduleStore = (*Repository)(nil)
	_ SessionStore  = (*Repository)(nil)
	_ RecordStore   = (*Repository)(nil)
)
