package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// In-memory stores mirroring the repository's storage-contract semantics:
// the partial-unique session index, the record insert-if-absent, the
// optimistic edit guard, and the idempotent unlock insert.

type memStore struct {
	mu       sync.Mutex
	seq      int
	slots    map[string]TimetableSlot
	sessions map[string]*AttendanceSession
	records  map[string]*AttendanceRecord // key: sessionID|studentID
	audits   []AuditEntry
	students map[string]Student
}

func newMemStore() *memStore {
	return &memStore{
		slots:    make(map[string]TimetableSlot),
		sessions: make(map[string]*AttendanceSession),
		records:  make(map[string]*AttendanceRecord),
		students: make(map[string]Student),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func recordKey(sessionID, studentID string) string {
	return sessionID + "|" + studentID
}

// ---- ScheduleStore ----

func (m *memStore) SlotsForMappingDay(_ context.Context, mappingID string, dayOfWeek int) ([]TimetableSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TimetableSlot
	for _, s := range m.slots {
		if s.MappingID == mappingID && s.DayOfWeek == dayOfWeek {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) InsertSlot(_ context.Context, slot TimetableSlot) (TimetableSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot.ID == "" {
		slot.ID = m.nextID("slot")
	}
	m.slots[slot.ID] = slot
	return slot, nil
}

func (m *memStore) DeleteSlot(_ context.Context, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slotID]; !ok {
		return ErrSlotNotFound
	}
	delete(m.slots, slotID)
	return nil
}

func (m *memStore) GetSlot(_ context.Context, slotID string) (*TimetableSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[slotID]; ok {
		return &s, nil
	}
	return nil, nil
}

// ---- SessionStore ----

func (m *memStore) ActiveSession(_ context.Context, slotID string, date time.Time) (*AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked(slotID, date), nil
}

func (m *memStore) activeLocked(slotID string, date time.Time) *AttendanceSession {
	for _, s := range m.sessions {
		if s.SlotID == slotID && s.SessionDate.Equal(date) && !s.IsArchived {
			copied := *s
			return &copied
		}
	}
	return nil
}

func (m *memStore) InsertSession(_ context.Context, session AttendanceSession) (AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeLocked(session.SlotID, session.SessionDate) != nil {
		return AttendanceSession{}, ErrDuplicateSession
	}
	if session.ID == "" {
		session.ID = m.nextID("sess")
	}
	stored := session
	m.sessions[session.ID] = &stored
	return session, nil
}

func (m *memStore) GetSession(_ context.Context, sessionID string) (*AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (m *memStore) SetSessionLocked(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Locked = true
	}
	return nil
}

func (m *memStore) ArchiveSessionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if !s.IsArchived && s.SessionDate.Before(cutoff) {
			s.IsArchived = true
			n++
		}
	}
	return n, nil
}

// archive flips one session for tests that model the administrative action
// directly.
func (m *memStore) archive(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.IsArchived = true
	}
}

// ---- RecordStore ----

func (m *memStore) GetRecord(_ context.Context, sessionID, studentID string) (*AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[recordKey(sessionID, studentID)]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (m *memStore) InsertRecord(_ context.Context, record AttendanceRecord) (AttendanceRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(record.SessionID, record.StudentID)
	if _, ok := m.records[key]; ok {
		return AttendanceRecord{}, false, nil
	}
	if record.ID == "" {
		record.ID = m.nextID("rec")
	}
	stored := record
	m.records[key] = &stored
	return record, true, nil
}

func (m *memStore) UpdateRecordWithAudit(_ context.Context, record AttendanceRecord, newStatus Status, markedAt time.Time, audit AuditEntry) (AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[recordKey(record.SessionID, record.StudentID)]
	if !ok {
		return AttendanceRecord{}, ErrRecordNotFound
	}
	if stored.EditCount != record.EditCount {
		return AttendanceRecord{}, ErrConcurrentEdit
	}
	stored.Status = newStatus
	stored.MarkedAt = markedAt
	stored.EditCount++
	if audit.ID == "" {
		audit.ID = m.nextID("audit")
	}
	audit.RecordID = stored.ID
	m.audits = append(m.audits, audit)
	return *stored, nil
}

func (m *memStore) ListAbuseCandidates(_ context.Context, editCountAbove int) ([]AbuseCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AbuseCandidate
	for _, r := range m.records {
		if r.EditCount <= editCountAbove {
			continue
		}
		sess := m.sessions[r.SessionID]
		if sess == nil || sess.IsArchived {
			continue
		}
		out = append(out, AbuseCandidate{
			Record:      *r,
			StudentName: m.students[r.StudentID].Name,
			SessionDate: sess.SessionDate,
		})
	}
	return out, nil
}

func (m *memStore) AuditTrail(_ context.Context, recordID string) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEntry
	for _, e := range m.audits {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

var (
	_ ScheduleStore = (*memStore)(nil)
	_ SessionStore  = (*memStore)(nil)
	_ RecordStore   = (*memStore)(nil)
)

// statsMem backs the aggregation engine and evaluator with canned data.
type statsMem struct {
	subjects     map[string][]SubjectStats // studentID -> totals, pct unset
	roster       map[string][]Student      // classID -> active students
	sessionCount map[string]int            // classID -> denominator
	presents     map[string]map[string]int // classID -> studentID -> attended
	absences     map[string][]time.Time    // studentID -> absent marks
	presentTotal map[string]int
}

func newStatsMem() *statsMem {
	return &statsMem{
		subjects:     make(map[string][]SubjectStats),
		roster:       make(map[string][]Student),
		sessionCount: make(map[string]int),
		presents:     make(map[string]map[string]int),
		absences:     make(map[string][]time.Time),
		presentTotal: make(map[string]int),
	}
}

func (s *statsMem) SubjectTotals(_ context.Context, studentID string) ([]SubjectStats, error) {
	out := make([]SubjectStats, len(s.subjects[studentID]))
	copy(out, s.subjects[studentID])
	return out, nil
}

func (s *statsMem) ClassStudents(_ context.Context, classID string) ([]Student, error) {
	return s.roster[classID], nil
}

func (s *statsMem) ClassSessionCount(_ context.Context, classID string) (int, error) {
	return s.sessionCount[classID], nil
}

func (s *statsMem) ClassPresentCounts(_ context.Context, classID string) (map[string]int, error) {
	counts := make(map[string]int, len(s.presents[classID]))
	for id, n := range s.presents[classID] {
		counts[id] = n
	}
	return counts, nil
}

func (s *statsMem) AbsenceCountSince(_ context.Context, studentID string, since time.Time) (int, error) {
	n := 0
	for _, t := range s.absences[studentID] {
		if !t.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *statsMem) PresentTotal(_ context.Context, studentID string) (int, error) {
	return s.presentTotal[studentID], nil
}

var _ StatsStore = (*statsMem)(nil)

// achMem is an in-memory achievement store with idempotent unlocks.
type achMem struct {
	achievements []Achievement
	unlocks      map[string]bool // studentID|achievementID
}

func newAchMem(achievements ...Achievement) *achMem {
	return &achMem{achievements: achievements, unlocks: make(map[string]bool)}
}

func (a *achMem) ListAchievements(_ context.Context) ([]Achievement, error) {
	return a.achievements, nil
}

func (a *achMem) UnlockedSet(_ context.Context, studentID string) (map[string]bool, error) {
	set := make(map[string]bool)
	for key := range a.unlocks {
		if len(key) > len(studentID) && key[:len(studentID)] == studentID && key[len(studentID)] == '|' {
			set[key[len(studentID)+1:]] = true
		}
	}
	return set, nil
}

func (a *achMem) InsertUnlock(_ context.Context, studentID, achievementID string) (bool, error) {
	key := studentID + "|" + achievementID
	if a.unlocks[key] {
		return false, nil
	}
	a.unlocks[key] = true
	return true, nil
}

var _ AchievementStore = (*achMem)(nil)

// stepClock is a controllable clock for edit-window and dedup tests.
type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
