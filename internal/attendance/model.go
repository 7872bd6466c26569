// Package attendance implements the attendance lifecycle engine: timetable
// slot validation, per-day session management, the record ledger with its
// rolling edit window and audit trail, ledger-derived statistics, and the
// achievement evaluator.
package attendance

import "time"

// Status is a student's presence outcome within a session.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid reports whether the status is a supported value.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Mapping associates one faculty member, one subject, and one class. Slots
// attach to mappings; mappings are created by the administrative CRUD layer
// and are read-only here.
type Mapping struct {
	ID        string
	FacultyID string
	SubjectID string
	ClassID   string
}

// TimetableSlot is a recurring weekly interval under a mapping. Times are
// minutes from midnight; a slot never crosses midnight. Slots are
// delete-and-recreate, never updated in place.
type TimetableSlot struct {
	ID          string
	MappingID   string
	DayOfWeek   int // 0=Sunday .. 6=Saturday
	StartMinute int
	EndMinute   int
}

// AttendanceSession is one calendar-date instantiation of attendance-taking
// for a slot. Lifecycle: open -> locked -> archived, one-directional.
type AttendanceSession struct {
	ID          string
	SlotID      string
	SessionDate time.Time // calendar date, midnight local
	Locked      bool
	IsArchived  bool
}

// AttendanceRecord is one student's outcome within a session. MarkedAt moves
// to the time of the most recent mutation; EditCount counts mutations after
// the initial mark.
type AttendanceRecord struct {
	ID        string
	SessionID string
	StudentID string
	Status    Status
	EditCount int
	MarkedAt  time.Time
}

// AuditEntry records one post-creation mutation of a record. Append-only.
type AuditEntry struct {
	ID        string
	RecordID  string
	OldStatus Status
	NewStatus Status
	EditedBy  string
	Reason    string
	CreatedAt time.Time
}

// Achievement is an administrator-defined gamification rule. Immutable at
// runtime; Criteria is the declarative unlock condition.
type Achievement struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Criteria    Criteria
}

// SubjectStats is one subject's attendance summary for a student.
type SubjectStats struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Total       int     `json:"total_sessions"`
	Attended    int     `json:"attended_sessions"`
	Percentage  float64 `json:"percentage"`
}

// LeaderboardEntry is one student's row in a class leaderboard. Ranks are
// strictly positional; ties in percentage do not share a rank.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Attended   int     `json:"attended"`
	Total      int     `json:"total_classes"`
	Percentage float64 `json:"percentage"`
}

// Defaulter is a student whose overall percentage sits below the defaulter
// threshold.
type Defaulter struct {
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// Student is the roster view of a student consumed read-only from the CRUD
// layer.
type Student struct {
	ID      string
	Name    string
	ClassID string
	Active  bool
}

// AchievementStatus is one achievement's evaluation outcome for a student.
type AchievementStatus struct {
	Achievement  Achievement `json:"achievement"`
	Unlocked     bool        `json:"unlocked"`
	JustUnlocked bool        `json:"just_unlocked"`
}

// percentage computes round(attended/total*100) with the 0-total convention
// used everywhere in the engine: no sessions means 0 percent.
func percentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(int(float64(attended)/float64(total)*100 + 0.5))
}
