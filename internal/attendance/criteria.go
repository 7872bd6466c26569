package attendance

import (
	"encoding/json"
	"fmt"
)

// CriteriaKind tags the closed set of achievement criteria variants.
type CriteriaKind string

const (
	// CriteriaPerfectSubject unlocks when any subject with at least one
	// session sits at 100%.
	CriteriaPerfectSubject CriteriaKind = "perfect_subject"

	// CriteriaMinOverall unlocks when the overall percentage meets
	// Threshold and at least one session exists.
	CriteriaMinOverall CriteriaKind = "min_overall"

	// CriteriaNoAbsentDays unlocks when the trailing WindowDays window
	// holds zero absent records and at least one session exists. Only 7-
	// and 30-day windows are recognized; other windows never match.
	CriteriaNoAbsentDays CriteriaKind = "no_absent_days"

	// CriteriaAllSubjectsMin unlocks when every subject with at least one
	// session meets Threshold and at least one subject exists.
	CriteriaAllSubjectsMin CriteriaKind = "all_subjects_min"

	// CriteriaMinTotalAttended unlocks when the cumulative present count
	// reaches Count.
	CriteriaMinTotalAttended CriteriaKind = "min_total_attended"

	// CriteriaMinSubjectsAboveX unlocks when at least Count subjects meet
	// or exceed Percentage.
	CriteriaMinSubjectsAboveX CriteriaKind = "min_subjects_above"
)

// Criteria is an achievement's declarative unlock condition. Only the fields
// relevant to Kind carry meaning; the rest stay zero. Stored as JSONB.
type Criteria struct {
	Kind       CriteriaKind `json:"kind"`
	Threshold  float64      `json:"threshold,omitempty"`
	WindowDays int          `json:"window_days,omitempty"`
	Count      int          `json:"count,omitempty"`
	Percentage float64      `json:"percentage,omitempty"`
}

// Validate reports whether the descriptor is well-formed for its kind.
// Unknown kinds and nonsensical parameters are rejected; the evaluator
// treats such descriptors as skippable, never fatal.
func (c Criteria) Validate() error {
	switch c.Kind {
	case CriteriaPerfectSubject:
		return nil
	case CriteriaMinOverall, CriteriaAllSubjectsMin:
		if c.Threshold < 0 || c.Threshold > 100 {
			return fmt.Errorf("%w: threshold %.1f out of range", ErrInvalidCriteria, c.Threshold)
		}
		return nil
	case CriteriaNoAbsentDays:
		if c.WindowDays <= 0 {
			return fmt.Errorf("%w: window_days must be positive", ErrInvalidCriteria)
		}
		return nil
	case CriteriaMinTotalAttended:
		if c.Count <= 0 {
			return fmt.Errorf("%w: count must be positive", ErrInvalidCriteria)
		}
		return nil
	case CriteriaMinSubjectsAboveX:
		if c.Count <= 0 || c.Percentage < 0 || c.Percentage > 100 {
			return fmt.Errorf("%w: bad count/percentage pair", ErrInvalidCriteria)
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing kind", ErrInvalidCriteria)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCriteria, c.Kind)
	}
}

// ParseCriteria decodes a stored JSONB descriptor. Decode errors surface as
// ErrInvalidCriteria so the evaluator's skip path catches them uniformly.
func ParseCriteria(raw []byte) (Criteria, error) {
	var c Criteria
	if err := json.Unmarshal(raw, &c); err != nil {
		return Criteria{}, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}
	if err := c.Validate(); err != nil {
		return Criteria{}, err
	}
	return c, nil
}
