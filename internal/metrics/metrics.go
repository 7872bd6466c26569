// Package metrics defines the Prometheus collectors the engine increments.
// Exposition happens on the API's /metrics route via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SlotsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_slots_created_total",
		Help: "Timetable slots that passed conflict validation.",
	})
	ScheduleConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_schedule_conflicts_total",
		Help: "Slot creations rejected for overlapping an existing slot.",
	})
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_opened_total",
		Help: "Attendance sessions opened.",
	})
	DuplicateSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_duplicate_sessions_total",
		Help: "Session opens rejected because one was already open.",
	})
	RecordsMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_records_marked_total",
		Help: "Attendance records created by an initial mark.",
	})
	RecordsEdited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_records_edited_total",
		Help: "Attendance record corrections inside the edit window.",
	})
	ExpiredEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_expired_edits_total",
		Help: "Record corrections rejected past the edit window.",
	})
	AchievementsUnlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_achievements_unlocked_total",
		Help: "Achievement unlock rows inserted.",
	})
	SessionsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_archived_total",
		Help: "Sessions archived by the worker's cron job.",
	})
)
