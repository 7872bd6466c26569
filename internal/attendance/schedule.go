package attendance

import (
	"context"
	"fmt"

	"classtrack/internal/metrics"
)

// ScheduleStore is the slot persistence surface the validator needs.
type ScheduleStore interface {
	SlotsForMappingDay(ctx context.Context, mappingID string, dayOfWeek int) ([]TimetableSlot, error)
	InsertSlot(ctx context.Context, slot TimetableSlot) (TimetableSlot, error)
	DeleteSlot(ctx context.Context, slotID string) error
}

// Scheduler gates timetable slot creation on conflict checks. Slots are
// never updated in place; a change is a delete plus a fresh create.
type Scheduler struct {
	store ScheduleStore
}

// NewScheduler creates a scheduler over the given store.
func NewScheduler(store ScheduleStore) *Scheduler {
	return &Scheduler{store: store}
}

// CreateSlot validates the candidate against every existing slot under the
// same mapping and day, then persists it.
//
// The overlap test checks whether either candidate endpoint falls inside an
// existing slot's interval, boundaries inclusive. A candidate that strictly
// contains an existing slot slips through because neither of its endpoints
// lands inside the existing interval. That gap is documented behavior; see
// DESIGN.md before changing it.
func (s *Scheduler) CreateSlot(ctx context.Context, mappingID string, dayOfWeek, startMinute, endMinute int) (TimetableSlot, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return TimetableSlot{}, fmt.Errorf("%w: day of week %d", ErrInvalidSlot, dayOfWeek)
	}
	if startMinute < 0 || endMinute > 24*60 || startMinute >= endMinute {
		return TimetableSlot{}, fmt.Errorf("%w: interval %d-%d", ErrInvalidSlot, startMinute, endMinute)
	}

	existing, err := s.store.SlotsForMappingDay(ctx, mappingID, dayOfWeek)
	if err != nil {
		return TimetableSlot{}, fmt.Errorf("fetch slots: %w", err)
	}
	for _, slot := range existing {
		if within(startMinute, slot.StartMinute, slot.EndMinute) || within(endMinute, slot.StartMinute, slot.EndMinute) {
			metrics.ScheduleConflicts.Inc()
			return TimetableSlot{}, fmt.Errorf("%w: overlaps slot %s", ErrScheduleConflict, slot.ID)
		}
	}

	created, err := s.store.InsertSlot(ctx, TimetableSlot{
		MappingID:   mappingID,
		DayOfWeek:   dayOfWeek,
		StartMinute: startMinute,
		EndMinute:   endMinute,
	})
	if err != nil {
		return TimetableSlot{}, fmt.Errorf("insert slot: %w", err)
	}
	metrics.SlotsCreated.Inc()
	return created, nil
}

// DeleteSlot removes a slot. Sessions already opened against it survive.
func (s *Scheduler) DeleteSlot(ctx context.Context, slotID string) error {
	return s.store.DeleteSlot(ctx, slotID)
}

func within(v, lo, hi int) bool {
	return v >= lo && v <= hi
}
