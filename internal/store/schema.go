package store

// Schema is the engine's storage contract. Three constraints here are load
// bearing and the services assume them rather than re-check them:
//
//   - uq_sessions_slot_date: at most one NON-ARCHIVED session per slot and
//     date, closing the check-then-create race in session open.
//   - attendance_records (session_id, student_id) UNIQUE: one record per
//     student per session; first-mark inserts use ON CONFLICT DO NOTHING.
//   - student_achievements primary key: unlock inserts are idempotent.
//
// Roster tables (students, faculty, classes, subjects, mappings) are owned
// by the surrounding CRUD system; they are created here so a fresh database
// works end to end, but this service only reads them.
const Schema = `
CREATE TABLE IF NOT EXISTS classes (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(100) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS subjects (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(100) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS faculty (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(100) NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(100) NOT NULL,
    class_id UUID NOT NULL REFERENCES classes(id),
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id) WHERE active;

CREATE TABLE IF NOT EXISTS mappings (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    faculty_id UUID NOT NULL REFERENCES faculty(id),
    subject_id UUID NOT NULL REFERENCES subjects(id),
    class_id UUID NOT NULL REFERENCES classes(id),
    UNIQUE (faculty_id, subject_id, class_id)
);

CREATE TABLE IF NOT EXISTS timetable_slots (
    id UUID PRIMARY KEY,
    mapping_id UUID NOT NULL REFERENCES mappings(id) ON DELETE CASCADE,
    day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
    start_minute SMALLINT NOT NULL CHECK (start_minute >= 0),
    end_minute SMALLINT NOT NULL CHECK (end_minute <= 1440),
    CHECK (start_minute < end_minute)
);

CREATE INDEX IF NOT EXISTS idx_slots_mapping_day ON timetable_slots(mapping_id, day_of_week);

CREATE TABLE IF NOT EXISTS attendance_sessions (
    id UUID PRIMARY KEY,
    slot_id UUID NOT NULL REFERENCES timetable_slots(id),
    session_date DATE NOT NULL,
    locked BOOLEAN NOT NULL DEFAULT FALSE,
    is_archived BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_slot_date
    ON attendance_sessions(slot_id, session_date)
    WHERE NOT is_archived;

CREATE INDEX IF NOT EXISTS idx_sessions_date ON attendance_sessions(session_date) WHERE NOT is_archived;

CREATE TABLE IF NOT EXISTS attendance_records (
    id UUID PRIMARY KEY,
    session_id UUID NOT NULL REFERENCES attendance_sessions(id),
    student_id UUID NOT NULL REFERENCES students(id),
    status VARCHAR(10) NOT NULL CHECK (status IN ('present', 'absent')),
    edit_count INTEGER NOT NULL DEFAULT 0 CHECK (edit_count >= 0),
    marked_at TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (session_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_records_student ON attendance_records(student_id);
CREATE INDEX IF NOT EXISTS idx_records_edit_count ON attendance_records(edit_count) WHERE edit_count > 0;

CREATE TABLE IF NOT EXISTS attendance_audit_logs (
    id UUID PRIMARY KEY,
    record_id UUID NOT NULL REFERENCES attendance_records(id),
    old_status VARCHAR(10) NOT NULL,
    new_status VARCHAR(10) NOT NULL,
    edited_by UUID NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_record ON attendance_audit_logs(record_id, created_at);

CREATE TABLE IF NOT EXISTS achievements (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(100) NOT NULL DEFAULT '',
    criteria JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS student_achievements (
    student_id UUID NOT NULL REFERENCES students(id),
    achievement_id UUID NOT NULL REFERENCES achievements(id),
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (student_id, achievement_id)
);
`
