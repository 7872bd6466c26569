package attendance

import (
	"context"
	"encoding/json"
	"time"
)

// Read-side queries for the aggregation engine and the achievement
// evaluator. Roster tables (students, subjects, mappings) belong to the
// CRUD layer; this repository only ever reads them.

// SubjectTotals returns per-subject session and present counts for a
// student, across every mapping of the student's class. Archived sessions
// never count.
func (r *Repository) SubjectTotals(ctx context.Context, studentID string) ([]SubjectStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sub.id, sub.name,
		       COUNT(DISTINCT sess.id) AS total,
		       COUNT(DISTINCT ar.id)   AS attended
		FROM students st
		JOIN mappings m  ON m.class_id = st.class_id
		JOIN subjects sub ON sub.id = m.subject_id
		LEFT JOIN timetable_slots ts ON ts.mapping_id = m.id
		LEFT JOIN attendance_sessions sess ON sess.slot_id = ts.id AND NOT sess.is_archived
		LEFT JOIN attendance_records ar ON ar.session_id = sess.id
		     AND ar.student_id = st.id AND ar.status = 'present'
		WHERE st.id = $1
		GROUP BY sub.id, sub.name
		ORDER BY sub.name
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubjectStats
	for rows.Next() {
		var s SubjectStats
		if err := rows.Scan(&s.SubjectID, &s.SubjectName, &s.Total, &s.Attended); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClassStudents returns the active roster of a class, name order.
func (r *Repository) ClassStudents(ctx context.Context, classID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, class_id, active
		FROM students
		WHERE class_id = $1 AND active
		ORDER BY name
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.ClassID, &s.Active); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClassSessionCount counts distinct non-archived sessions under a class's
// mappings. This is the shared denominator for every student in the class.
func (r *Repository) ClassSessionCount(ctx context.Context, classID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT sess.id)
		FROM attendance_sessions sess
		JOIN timetable_slots ts ON ts.id = sess.slot_id
		JOIN mappings m ON m.id = ts.mapping_id
		WHERE m.class_id = $1 AND NOT sess.is_archived
	`, classID).Scan(&n)
	return n, err
}

// ClassPresentCounts maps student id to distinct present count across the
// class's live sessions. Students with no present records are absent from
// the map.
func (r *Repository) ClassPresentCounts(ctx context.Context, classID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ar.student_id, COUNT(DISTINCT ar.id)
		FROM attendance_records ar
		JOIN attendance_sessions sess ON sess.id = ar.session_id AND NOT sess.is_archived
		JOIN timetable_slots ts ON ts.id = sess.slot_id
		JOIN mappings m ON m.id = ts.mapping_id
		WHERE m.class_id = $1 AND ar.status = 'present'
		GROUP BY ar.student_id
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// AbsenceCountSince counts a student's absent records marked at or after
// the given instant, live sessions only.
func (r *Repository) AbsenceCountSince(ctx context.Context, studentID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM attendance_records ar
		JOIN attendance_sessions sess ON sess.id = ar.session_id AND NOT sess.is_archived
		WHERE ar.student_id = $1 AND ar.status = 'absent' AND ar.marked_at >= $2
	`, studentID, since).Scan(&n)
	return n, err
}

// PresentTotal counts a student's present records across live sessions.
func (r *Repository) PresentTotal(ctx context.Context, studentID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM attendance_records ar
		JOIN attendance_sessions sess ON sess.id = ar.session_id AND NOT sess.is_archived
		WHERE ar.student_id = $1 AND ar.status = 'present'
	`, studentID).Scan(&n)
	return n, err
}

// ---- AchievementStore ----

// ListAchievements returns every defined achievement. A row whose criteria
// JSON fails to decode still comes back, carrying a zero Criteria that the
// evaluator's validation rejects and skips with a warning.
func (r *Repository) ListAchievements(ctx context.Context) ([]Achievement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, icon, criteria
		FROM achievements
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Achievement
	for rows.Next() {
		var a Achievement
		var raw []byte
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Icon, &raw); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(raw, &a.Criteria)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UnlockedSet returns the ids of achievements the student has unlocked.
func (r *Repository) UnlockedSet(ctx context.Context, studentID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT achievement_id FROM student_achievements WHERE student_id = $1
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}

// InsertUnlock records an unlock idempotently. inserted reports whether
// this call created the row; a duplicate is a quiet no-op.
func (r *Repository) InsertUnlock(ctx context.Context, studentID, achievementID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO student_achievements (student_id, achievement_id, unlocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (student_id, achievement_id) DO NOTHING
	`, studentID, achievementID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var (
	_ StatsStore       = (*Repository)(nil)
	_ AchievementStore = (*Repository)(nil)
)
