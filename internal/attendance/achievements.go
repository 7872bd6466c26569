package attendance

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"classtrack/internal/clock"
	"classtrack/internal/metrics"
)

// AchievementStore is the persistence surface the evaluator needs.
// InsertUnlock must be an atomic insert-if-absent on the
// (student, achievement) pair so concurrent evaluations of the same
// student cannot double-unlock.
type AchievementStore interface {
	ListAchievements(ctx context.Context) ([]Achievement, error)
	UnlockedSet(ctx context.Context, studentID string) (map[string]bool, error)
	InsertUnlock(ctx context.Context, studentID, achievementID string) (bool, error)
}

// Evaluator applies declarative achievement criteria to fresh aggregation
// output and persists unlocks idempotently.
type Evaluator struct {
	store AchievementStore
	stats *Stats
	clock clock.Clock
	log   *logrus.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(store AchievementStore, stats *Stats, clk clock.Clock, log *logrus.Logger) *Evaluator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Evaluator{store: store, stats: stats, clock: clk, log: log}
}

// evalContext carries everything a criterion can look at, computed once per
// Evaluate call.
type evalContext struct {
	subjects      []SubjectStats
	overall       OverallStats
	presentTotal  int
	absencesWeek  int
	absencesMonth int
}

// Evaluate checks every defined achievement for the student. Achievements
// already unlocked are reported unlocked without re-evaluation; malformed
// criteria are logged and skipped, never fatal; fresh unlocks are inserted
// idempotently (a duplicate insert is a no-op, not an error).
func (e *Evaluator) Evaluate(ctx context.Context, studentID string) ([]AchievementStatus, error) {
	achievements, err := e.store.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	unlocked, err := e.store.UnlockedSet(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("unlocked set: %w", err)
	}

	ec, err := e.buildContext(ctx, studentID)
	if err != nil {
		return nil, err
	}

	results := make([]AchievementStatus, 0, len(achievements))
	for _, ach := range achievements {
		status := AchievementStatus{Achievement: ach, Unlocked: unlocked[ach.ID]}
		if !status.Unlocked {
			met, evalErr := criterionMet(ach.Criteria, ec)
			if evalErr != nil {
				e.log.WithFields(logrus.Fields{
					"achievement": ach.ID,
					"kind":        ach.Criteria.Kind,
				}).WithError(evalErr).Warn("skipping achievement with bad criteria")
			} else if met {
				inserted, insErr := e.store.InsertUnlock(ctx, studentID, ach.ID)
				if insErr != nil {
					return nil, fmt.Errorf("insert unlock: %w", insErr)
				}
				status.Unlocked = true
				status.JustUnlocked = inserted
				if inserted {
					metrics.AchievementsUnlocked.Inc()
				}
			}
		}
		results = append(results, status)
	}
	return results, nil
}

func (e *Evaluator) buildContext(ctx context.Context, studentID string) (evalContext, error) {
	subjects, err := e.stats.StudentSubjectStats(ctx, studentID)
	if err != nil {
		return evalContext{}, err
	}
	var overall OverallStats
	for _, sub := range subjects {
		overall.Total += sub.Total
		overall.Attended += sub.Attended
	}
	overall.Percentage = percentage(overall.Attended, overall.Total)

	presentTotal, err := e.stats.store.PresentTotal(ctx, studentID)
	if err != nil {
		return evalContext{}, fmt.Errorf("present total: %w", err)
	}
	now := e.clock.Now()
	week, err := e.stats.store.AbsenceCountSince(ctx, studentID, now.AddDate(0, 0, -7))
	if err != nil {
		return evalContext{}, fmt.Errorf("weekly absences: %w", err)
	}
	month, err := e.stats.store.AbsenceCountSince(ctx, studentID, now.AddDate(0, 0, -30))
	if err != nil {
		return evalContext{}, fmt.Errorf("monthly absences: %w", err)
	}
	return evalContext{
		subjects:      subjects,
		overall:       overall,
		presentTotal:  presentTotal,
		absencesWeek:  week,
		absencesMonth: month,
	}, nil
}

// criterionMet decides one criterion against the evaluation context. An
// invalid descriptor comes back as ErrInvalidCriteria for the caller's
// skip-and-warn path.
func criterionMet(c Criteria, ec evalContext) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	switch c.Kind {
	case CriteriaPerfectSubject:
		for _, sub := range ec.subjects {
			if sub.Total >= 1 && sub.Percentage == 100 {
				return true, nil
			}
		}
		return false, nil

	case CriteriaMinOverall:
		return ec.overall.Total > 0 && ec.overall.Percentage >= c.Threshold, nil

	case CriteriaNoAbsentDays:
		if ec.overall.Total == 0 {
			return false, nil
		}
		// Only the 7- and 30-day windows are live; any other window is
		// inert and never unlocks.
		switch c.WindowDays {
		case 7:
			return ec.absencesWeek == 0, nil
		case 30:
			return ec.absencesMonth == 0, nil
		default:
			return false, nil
		}

	case CriteriaAllSubjectsMin:
		counted := 0
		for _, sub := range ec.subjects {
			if sub.Total < 1 {
				continue
			}
			counted++
			if sub.Percentage < c.Threshold {
				return false, nil
			}
		}
		return counted > 0, nil

	case CriteriaMinTotalAttended:
		return ec.presentTotal >= c.Count, nil

	case CriteriaMinSubjectsAboveX:
		matched := 0
		for _, sub := range ec.subjects {
			if sub.Percentage >= c.Percentage {
				matched++
			}
		}
		return matched >= c.Count, nil
	}
	return false, fmt.Errorf("%w: unknown kind %q", ErrInvalidCriteria, c.Kind)
}
