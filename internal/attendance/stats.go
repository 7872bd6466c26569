package attendance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// StatsStore is the read-only query surface the aggregation engine needs.
// Every query excludes archived sessions.
type StatsStore interface {
	// SubjectTotals returns, per subject under the student's class
	// mappings, the distinct session count and the student's distinct
	// present count. Percentage is left for the caller.
	SubjectTotals(ctx context.Context, studentID string) ([]SubjectStats, error)
	ClassStudents(ctx context.Context, classID string) ([]Student, error)
	ClassSessionCount(ctx context.Context, classID string) (int, error)
	// ClassPresentCounts maps student id to distinct present count across
	// the class's sessions.
	ClassPresentCounts(ctx context.Context, classID string) (map[string]int, error)
	AbsenceCountSince(ctx context.Context, studentID string, since time.Time) (int, error)
	PresentTotal(ctx context.Context, studentID string) (int, error)
}

// LeaderboardCache caches computed leaderboards keyed by class. Get returns
// (nil, nil) on a miss; failures are treated as misses by the engine.
type LeaderboardCache interface {
	Get(ctx context.Context, classID string) ([]LeaderboardEntry, error)
	Set(ctx context.Context, classID string, entries []LeaderboardEntry) error
}

// OverallStats is a student's attendance ratio across all class subjects.
type OverallStats struct {
	Total      int     `json:"total_sessions"`
	Attended   int     `json:"attended_sessions"`
	Percentage float64 `json:"percentage"`
}

// Stats derives percentages, defaulter lists, and leaderboards from the
// ledger. Pure reads; the only thing downstream that ever persists derived
// state is the achievement evaluator.
type Stats struct {
	store              StatsStore
	cache              LeaderboardCache
	defaulterThreshold float64
}

// NewStats creates the aggregation engine. cache may be nil to disable
// leaderboard caching; defaulterThreshold is the percentage below which a
// student counts as a defaulter.
func NewStats(store StatsStore, cache LeaderboardCache, defaulterThreshold float64) *Stats {
	if defaulterThreshold <= 0 {
		defaulterThreshold = 75
	}
	return &Stats{store: store, cache: cache, defaulterThreshold: defaulterThreshold}
}

// StudentSubjectStats returns per-subject attendance for a student. A
// subject with no sessions reports 0 percent.
func (s *Stats) StudentSubjectStats(ctx context.Context, studentID string) ([]SubjectStats, error) {
	subjects, err := s.store.SubjectTotals(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("subject totals: %w", err)
	}
	for i := range subjects {
		subjects[i].Percentage = percentage(subjects[i].Attended, subjects[i].Total)
	}
	return subjects, nil
}

// OverallPercentage aggregates the same ratio across every subject of the
// student's class.
func (s *Stats) OverallPercentage(ctx context.Context, studentID string) (OverallStats, error) {
	subjects, err := s.store.SubjectTotals(ctx, studentID)
	if err != nil {
		return OverallStats{}, fmt.Errorf("subject totals: %w", err)
	}
	var overall OverallStats
	for _, sub := range subjects {
		overall.Total += sub.Total
		overall.Attended += sub.Attended
	}
	overall.Percentage = percentage(overall.Attended, overall.Total)
	return overall, nil
}

// Defaulters lists active students of a class whose overall percentage is
// strictly below the threshold. Students with zero sessions sit at 0
// percent and therefore appear.
func (s *Stats) Defaulters(ctx context.Context, classID string) ([]Defaulter, error) {
	roster, total, presents, err := s.classAttendance(ctx, classID)
	if err != nil {
		return nil, err
	}
	defaulters := make([]Defaulter, 0)
	for _, student := range roster {
		pct := percentage(presents[student.ID], total)
		if pct < s.defaulterThreshold {
			defaulters = append(defaulters, Defaulter{
				StudentID:  student.ID,
				Name:       student.Name,
				Percentage: pct,
			})
		}
	}
	sort.Slice(defaulters, func(i, j int) bool {
		return nameLess(defaulters[i].Name, defaulters[j].Name)
	})
	return defaulters, nil
}

// Leaderboard ranks every active student of a class. The denominator is the
// class's distinct non-archived session count, identical for everyone.
// Order: percentage descending, then name ascending case-insensitive.
// Ranks are strictly positional 1..N; equal percentages do not share a rank.
func (s *Stats) Leaderboard(ctx context.Context, classID string) ([]LeaderboardEntry, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, classID); err == nil && cached != nil {
			return cached, nil
		}
	}

	roster, total, presents, err := s.classAttendance(ctx, classID)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(roster))
	for _, student := range roster {
		attended := presents[student.ID]
		entries = append(entries, LeaderboardEntry{
			StudentID:  student.ID,
			Name:       student.Name,
			Attended:   attended,
			Total:      total,
			Percentage: percentage(attended, total),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		return nameLess(entries[i].Name, entries[j].Name)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, classID, entries)
	}
	return entries, nil
}

func (s *Stats) classAttendance(ctx context.Context, classID string) ([]Student, int, map[string]int, error) {
	roster, err := s.store.ClassStudents(ctx, classID)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("class roster: %w", err)
	}
	total, err := s.store.ClassSessionCount(ctx, classID)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("class session count: %w", err)
	}
	presents, err := s.store.ClassPresentCounts(ctx, classID)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("class present counts: %w", err)
	}
	return roster, total, presents, nil
}

func nameLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
