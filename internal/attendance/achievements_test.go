package attendance

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func evaluatorFixture(achievements ...Achievement) (*achMem, *statsMem, *Evaluator) {
	achStore := newAchMem(achievements...)
	statsStore := newStatsMem()
	stats := NewStats(statsStore, nil, 75)
	clk := &stepClock{now: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)}
	return achStore, statsStore, NewEvaluator(achStore, stats, clk, quietLogger())
}

func TestEvaluateUnlocksMinOverall(t *testing.T) {
	ach := Achievement{ID: "ach-1", Title: "Regular", Criteria: Criteria{Kind: CriteriaMinOverall, Threshold: 75}}
	achStore, statsStore, ev := evaluatorFixture(ach)
	statsStore.subjects["stu-1"] = []SubjectStats{{SubjectID: "sub-1", Total: 10, Attended: 8}}
	ctx := context.Background()

	results, err := ev.Evaluate(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Unlocked)
	assert.True(t, results[0].JustUnlocked)
	assert.True(t, achStore.unlocks["stu-1|ach-1"])
}

func TestEvaluateMinOverallNeedsHistory(t *testing.T) {
	ach := Achievement{ID: "ach-1", Criteria: Criteria{Kind: CriteriaMinOverall, Threshold: 0}}
	_, statsStore, ev := evaluatorFixture(ach)
	statsStore.subjects["stu-1"] = []SubjectStats{{SubjectID: "sub-1"}}

	results, err := ev.Evaluate(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.False(t, results[0].Unlocked, "zero total sessions never unlocks min_overall")
}

func TestEvaluateIdempotent(t *testing.T) {
	ach := Achievement{ID: "ach-1", Criteria: Criteria{Kind: CriteriaMinTotalAttended, Count: 1}}
	achStore, statsStore, ev := evaluatorFixture(ach)
	statsStore.presentTotal["stu-1"] = 5
	ctx := context.Background()

	first, err := ev.Evaluate(ctx, "stu-1")
	require.NoError(t, err)
	assert.True(t, first[0].JustUnlocked)

	// Re-evaluation reports unlocked without touching the store again.
	second, err := ev.Evaluate(ctx, "stu-1")
	require.NoError(t, err)
	assert.True(t, second[0].Unlocked)
	assert.False(t, second[0].JustUnlocked)
	assert.Len(t, achStore.unlocks, 1)
}

func TestEvaluateSkipsMalformedCriteria(t *testing.T) {
	good := Achievement{ID: "ach-good", Criteria: Criteria{Kind: CriteriaMinTotalAttended, Count: 1}}
	bad := Achievement{ID: "ach-bad", Criteria: Criteria{Kind: "streak_master"}}
	achStore, statsStore, ev := evaluatorFixture(bad, good)
	statsStore.presentTotal["stu-1"] = 3

	results, err := ev.Evaluate(context.Background(), "stu-1")
	require.NoError(t, err, "malformed criteria never fail the whole evaluation")
	require.Len(t, results, 2)

	byID := map[string]AchievementStatus{}
	for _, r := range results {
		byID[r.Achievement.ID] = r
	}
	assert.False(t, byID["ach-bad"].Unlocked)
	assert.True(t, byID["ach-good"].Unlocked)
	assert.False(t, achStore.unlocks["stu-1|ach-bad"])
}

func TestEvaluateAbsenceWindows(t *testing.T) {
	week := Achievement{ID: "ach-week", Criteria: Criteria{Kind: CriteriaNoAbsentDays, WindowDays: 7}}
	month := Achievement{ID: "ach-month", Criteria: Criteria{Kind: CriteriaNoAbsentDays, WindowDays: 30}}
	_, statsStore, ev := evaluatorFixture(week, month)
	statsStore.subjects["stu-1"] = []SubjectStats{{SubjectID: "sub-1", Total: 5, Attended: 5}}
	// One absence 10 days back: outside the week window, inside the month.
	statsStore.absences["stu-1"] = []time.Time{time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)}

	results, err := ev.Evaluate(context.Background(), "stu-1")
	require.NoError(t, err)

	byID := map[string]AchievementStatus{}
	for _, r := range results {
		byID[r.Achievement.ID] = r
	}
	assert.True(t, byID["ach-week"].Unlocked)
	assert.False(t, byID["ach-month"].Unlocked)
}

func TestEvaluatePerfectAndSubjectCriteria(t *testing.T) {
	perfect := Achievement{ID: "ach-perfect", Criteria: Criteria{Kind: CriteriaPerfectSubject}}
	allMin := Achievement{ID: "ach-all", Criteria: Criteria{Kind: CriteriaAllSubjectsMin, Threshold: 70}}
	above := Achievement{ID: "ach-above", Criteria: Criteria{Kind: CriteriaMinSubjectsAboveX, Percentage: 90, Count: 2}}
	_, statsStore, ev := evaluatorFixture(perfect, allMin, above)
	statsStore.subjects["stu-1"] = []SubjectStats{
		{SubjectID: "sub-1", Total: 10, Attended: 10}, // 100
		{SubjectID: "sub-2", Total: 10, Attended: 7},  // 70
	}

	results, err := ev.Evaluate(context.Background(), "stu-1")
	require.NoError(t, err)

	byID := map[string]AchievementStatus{}
	for _, r := range results {
		byID[r.Achievement.ID] = r
	}
	assert.True(t, byID["ach-perfect"].Unlocked)
	assert.True(t, byID["ach-all"].Unlocked)
	assert.False(t, byID["ach-above"].Unlocked, "only one subject reaches 90")
}
