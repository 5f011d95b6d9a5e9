package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/wenqi-dev/timegrid/internal/dto"
	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/service"
	"github.com/wenqi-dev/timegrid/pkg/response"
)

// MaintenanceHandler exposes integrity, conflict and batch endpoints.
type MaintenanceHandler struct {
	integrity *service.IntegrityService
	conflicts *service.ConflictService
	batches   *service.BatchService
	metrics   *service.MetricsService
	validate  *validator.Validate
}

// NewMaintenanceHandler constructs MaintenanceHandler.
func NewMaintenanceHandler(
	integrity *service.IntegrityService,
	conflicts *service.ConflictService,
	batches *service.BatchService,
	metrics *service.MetricsService,
	validate *validator.Validate,
) *MaintenanceHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &MaintenanceHandler{
		integrity: integrity,
		conflicts: conflicts,
		batches:   batches,
		metrics:   metrics,
		validate:  validate,
	}
}

// CheckIntegrity runs the read-only consistency scan.
func (h *MaintenanceHandler) CheckIntegrity(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.integrity.Check(c.Request.Context()))
}

// CleanupOrphans soft-deletes every flagged record.
func (h *MaintenanceHandler) CleanupOrphans(c *gin.Context) {
	result, err := h.integrity.CleanupOrphans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordOrphansCleaned(result.CleanedCourses + result.CleanedSessions)
	response.JSON(c, http.StatusOK, result)
}

// ValidateSegments checks a timetable's segment grid for overlaps.
func (h *MaintenanceHandler) ValidateSegments(c *gin.Context) {
	validation, err := h.conflicts.ValidateSegments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, validation)
}

// FixTimeConflicts repairs overlapping sessions in one sweep.
func (h *MaintenanceHandler) FixTimeConflicts(c *gin.Context) {
	result, err := h.conflicts.FixTimeConflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordConflictsFixed(result.ConflictsFixed)
	response.JSON(c, http.StatusOK, result)
}

// CheckPlacement evaluates a candidate session move.
func (h *MaintenanceHandler) CheckPlacement(c *gin.Context) {
	var req dto.PlacementCheckRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	check, err := h.conflicts.CheckPlacement(c.Request.Context(), req.ToServiceRequest())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check)
}

// ApplyPlacement moves a session when the placement is valid.
func (h *MaintenanceHandler) ApplyPlacement(c *gin.Context) {
	var req dto.PlacementCheckRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	check, err := h.conflicts.ApplyPlacement(c.Request.Context(), req.ToServiceRequest())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, check)
}

// StandardizeTimes rounds a timetable's session times to the quarter hour.
func (h *MaintenanceHandler) StandardizeTimes(c *gin.Context) {
	changed, err := h.conflicts.StandardizeTimes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"standardized": changed})
}

// DuplicateTimetable deep-copies a timetable.
func (h *MaintenanceHandler) DuplicateTimetable(c *gin.Context) {
	var req dto.DuplicateTimetableRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	clone, err := h.batches.DuplicateTimetable(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, clone)
}

// MergeDuplicateCourses collapses same-title courses within a timetable.
func (h *MaintenanceHandler) MergeDuplicateCourses(c *gin.Context) {
	result, err := h.batches.MergeDuplicateCourses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// MoveSessions shifts a batch of sessions to a new day and start.
func (h *MaintenanceHandler) MoveSessions(c *gin.Context) {
	var req dto.MoveSessionsRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	moved, err := h.batches.MoveSessions(c.Request.Context(), req.SessionIDs, req.DayOfWeek, req.StartMinutes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"moved": moved})
}

// BatchCreateSessions inserts several sessions atomically.
func (h *MaintenanceHandler) BatchCreateSessions(c *gin.Context) {
	var req dto.BatchCreateSessionsRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	sessions := make([]models.Session, 0, len(req.Sessions))
	for _, r := range req.Sessions {
		sessions = append(sessions, r.ToModel())
	}
	ids, err := h.batches.CreateSessions(c.Request.Context(), sessions)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"sessionIds": ids})
}

// BatchDeleteSessions soft-deletes several sessions atomically.
func (h *MaintenanceHandler) BatchDeleteSessions(c *gin.Context) {
	var req dto.BatchDeleteSessionsRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	deleted, err := h.batches.DeleteSessions(c.Request.Context(), req.SessionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted})
}

// BatchUpdateCourses patches several courses atomically.
func (h *MaintenanceHandler) BatchUpdateCourses(c *gin.Context) {
	var req dto.BatchUpdateCoursesRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	updated, err := h.batches.UpdateCourses(c.Request.Context(), req.Updates)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": updated})
}
