package attendance

import "errors"

// Engine errors. Callers match with errors.Is; the HTTP layer owns the
// mapping to status codes and user-facing text.
var (
	// ErrScheduleConflict means a candidate slot overlaps an existing slot
	// under the same mapping and day.
	ErrScheduleConflict = errors.New("slot conflicts with an existing slot")

	// ErrDuplicateSession means a non-archived session already exists for
	// the slot on the requested date.
	ErrDuplicateSession = errors.New("session already open for slot and date")

	// ErrSessionNotFound means the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionLocked means the session is locked or archived and its
	// records can no longer be mutated.
	ErrSessionLocked = errors.New("session is locked")

	// ErrEditWindowExpired means the edit arrived after the rolling
	// correction window measured from the record's last mutation.
	ErrEditWindowExpired = errors.New("edit window expired")

	// ErrRecordNotFound means an edit referenced a record that does not
	// exist. Not expected through the mark-or-edit path, kept defensively.
	ErrRecordNotFound = errors.New("attendance record not found")

	// ErrSlotNotFound means the referenced timetable slot does not exist.
	ErrSlotNotFound = errors.New("timetable slot not found")

	// ErrInvalidSlot means the candidate slot failed basic validation
	// (day out of range, start not before end).
	ErrInvalidSlot = errors.New("invalid slot definition")

	// ErrInvalidStatus means a mark carried a status outside the supported
	// set.
	ErrInvalidStatus = errors.New("unsupported attendance status")

	// ErrInvalidCriteria means an achievement carries a malformed or
	// unrecognized criteria descriptor. Evaluation logs and skips it;
	// this error never propagates out of Evaluate.
	ErrInvalidCriteria = errors.New("invalid achievement criteria")

	// ErrConcurrentEdit means an optimistic update lost a race with another
	// editor. Callers should re-read and retry the edit.
	ErrConcurrentEdit = errors.New("record modified concurrently")
)
