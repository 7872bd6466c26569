package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/queue"
)

type api struct {
	scheduler *attendance.Scheduler
	sessions  *attendance.SessionManager
	ledger    *attendance.Ledger
	stats     *attendance.Stats
	evaluator *attendance.Evaluator
	queue     queue.Queue
	log       *logrus.Logger
}

func (a *api) register(g *gin.RouterGroup) {
	staff := g.Group("", auth.RequireRole(auth.RoleFaculty, auth.RoleAdmin))
	staff.POST("/slots", a.createSlot)
	staff.DELETE("/slots/:id", a.deleteSlot)
	staff.POST("/sessions", a.openSession)
	staff.POST("/sessions/:id/lock", a.lockSession)
	staff.POST("/sessions/:id/records", a.markRecord)
	staff.GET("/records/:id/audit", a.auditTrail)
	staff.GET("/classes/:id/defaulters", a.defaulters)

	g.GET("/abuse-candidates", auth.RequireRole(auth.RoleAdmin), a.abuseCandidates)

	g.GET("/students/:id/stats", a.studentStats)
	g.GET("/students/:id/overall", a.studentOverall)
	g.GET("/classes/:id/leaderboard", a.leaderboard)
	g.POST("/students/:id/achievements/evaluate", a.evaluateAchievements)
}

func (a *api) createSlot(c *gin.Context) {
	var req struct {
		MappingID string `json:"mapping_id" binding:"required"`
		DayOfWeek int    `json:"day_of_week"`
		StartTime string `json:"start_time" binding:"required"`
		EndTime   string `json:"end_time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseHHMM(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time: " + err.Error()})
		return
	}
	end, err := parseHHMM(req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time: " + err.Error()})
		return
	}

	slot, err := a.scheduler.CreateSlot(c.Request.Context(), req.MappingID, req.DayOfWeek, start, end)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          slot.ID,
		"mapping_id":  slot.MappingID,
		"day_of_week": slot.DayOfWeek,
		"start_time":  formatHHMM(slot.StartMinute),
		"end_time":    formatHHMM(slot.EndMinute),
	})
}

func (a *api) deleteSlot(c *gin.Context) {
	if err := a.scheduler.DeleteSlot(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) openSession(c *gin.Context) {
	var req struct {
		SlotID string `json:"slot_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := a.sessions.Open(c.Request.Context(), req.SlotID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":           session.ID,
		"slot_id":      session.SlotID,
		"session_date": session.SessionDate.Format("2006-01-02"),
	})
}

func (a *api) lockSession(c *gin.Context) {
	if err := a.sessions.Lock(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) markRecord(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Status    string `json:"status" binding:"required"`
		Reason    string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	editor := auth.FromContext(c).Subject
	record, created, err := a.ledger.Mark(c.Request.Context(), c.Param("id"), req.StudentID,
		attendance.Status(req.Status), editor, req.Reason)
	if err != nil {
		a.fail(c, err)
		return
	}

	// Fresh history may unlock achievements; let the worker figure it out.
	if err := a.queue.Publish(c.Request.Context(), queue.Message{
		Type: queue.TypeEvaluate,
		Body: []byte(req.StudentID),
	}); err != nil {
		a.log.WithError(err).Warn("queue publish failed")
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"id":         record.ID,
		"status":     record.Status,
		"edit_count": record.EditCount,
		"marked_at":  record.MarkedAt,
	})
}

func (a *api) auditTrail(c *gin.Context) {
	entries, err := a.ledger.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (a *api) abuseCandidates(c *gin.Context) {
	candidates, err := a.ledger.AbuseCandidates(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

func (a *api) studentStats(c *gin.Context) {
	studentID := c.Param("id")
	if !auth.CanReadStudent(auth.FromContext(c), studentID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your stats"})
		return
	}
	subjects, err := a.stats.StudentSubjectStats(c.Request.Context(), studentID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (a *api) studentOverall(c *gin.Context) {
	studentID := c.Param("id")
	if !auth.CanReadStudent(auth.FromContext(c), studentID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your stats"})
		return
	}
	overall, err := a.stats.OverallPercentage(c.Request.Context(), studentID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overall)
}

func (a *api) defaulters(c *gin.Context) {
	list, err := a.stats.Defaulters(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"defaulters": list})
}

func (a *api) leaderboard(c *gin.Context) {
	entries, err := a.stats.Leaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

func (a *api) evaluateAchievements(c *gin.Context) {
	studentID := c.Param("id")
	if !auth.CanReadStudent(auth.FromContext(c), studentID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your achievements"})
		return
	}
	results, err := a.evaluator.Evaluate(c.Request.Context(), studentID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": results})
}

// fail maps engine errors to status codes. The engine never formats
// user-facing text; the sentinel messages are safe to pass through.
func (a *api) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrInvalidSlot),
		errors.Is(err, attendance.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSlotNotFound),
		errors.Is(err, attendance.ErrSessionNotFound),
		errors.Is(err, attendance.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrScheduleConflict),
		errors.Is(err, attendance.ErrDuplicateSession),
		errors.Is(err, attendance.ErrSessionLocked),
		errors.Is(err, attendance.ErrConcurrentEdit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrEditWindowExpired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		a.log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, errors.New("expected HH:MM")
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.New("time out of range")
	}
	return h*60 + m, nil
}

func formatHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
