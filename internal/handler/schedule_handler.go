package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/wenqi-dev/timegrid/internal/dto"
	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/service"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
	"github.com/wenqi-dev/timegrid/pkg/response"
)

// ScheduleHandler exposes timetable, course and session endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
	validate  *validator.Validate
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleService, validate *validator.Validate) *ScheduleHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ScheduleHandler{schedules: schedules, validate: validate}
}

func bindAndValidate(c *gin.Context, validate *validator.Validate, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	if err := validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// ListTimetables returns all active timetables.
func (h *ScheduleHandler) ListTimetables(c *gin.Context) {
	timetables, err := h.schedules.ListTimetables(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetables)
}

// GetTimetable returns one active timetable.
func (h *ScheduleHandler) GetTimetable(c *gin.Context) {
	tt, err := h.schedules.GetTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tt)
}

// CreateTimetable stores a new timetable. With standard=true the built-in
// school template is applied instead of the submitted segments.
func (h *ScheduleHandler) CreateTimetable(c *gin.Context) {
	var req dto.CreateTimetableRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}

	var (
		tt  *models.Timetable
		err error
	)
	if req.Standard {
		tt, err = h.schedules.CreateStandardTimetable(c.Request.Context(), req.Name, models.TimetableType(req.Type))
	} else {
		tt, err = h.schedules.CreateTimetable(c.Request.Context(), req.ToModel())
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tt)
}

// UpdateTimetable applies a partial update.
func (h *ScheduleHandler) UpdateTimetable(c *gin.Context) {
	var req dto.UpdateTimetableRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	tt, err := h.schedules.UpdateTimetable(c.Request.Context(), c.Param("id"), req.ToPatch())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tt)
}

// DeleteTimetable soft-deletes a timetable.
func (h *ScheduleHandler) DeleteTimetable(c *gin.Context) {
	if err := h.schedules.DeleteTimetable(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RestoreTimetable undoes a soft delete.
func (h *ScheduleHandler) RestoreTimetable(c *gin.Context) {
	if err := h.schedules.RestoreTimetable(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PurgeTimetable removes a timetable permanently.
func (h *ScheduleHandler) PurgeTimetable(c *gin.Context) {
	if err := h.schedules.PurgeTimetable(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListDeleted returns the recoverable records of all three entity kinds.
func (h *ScheduleHandler) ListDeleted(c *gin.Context) {
	ctx := c.Request.Context()
	timetables, err := h.schedules.ListDeletedTimetables(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	courses, err := h.schedules.ListDeletedCourses(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	sessions, err := h.schedules.ListDeletedSessions(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"timetables": timetables,
		"courses":    courses,
		"sessions":   sessions,
	})
}

// ListCourses returns a timetable's active courses.
func (h *ScheduleHandler) ListCourses(c *gin.Context) {
	courses, err := h.schedules.ListCourses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// CreateCourse stores a new course.
func (h *ScheduleHandler) CreateCourse(c *gin.Context) {
	var req dto.CreateCourseRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	course, err := h.schedules.CreateCourse(c.Request.Context(), req.ToModel())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse applies a partial update.
func (h *ScheduleHandler) UpdateCourse(c *gin.Context) {
	var patch models.CoursePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.schedules.UpdateCourse(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// DeleteCourse soft-deletes a course.
func (h *ScheduleHandler) DeleteCourse(c *gin.Context) {
	if err := h.schedules.DeleteCourse(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RestoreCourse undoes a soft delete.
func (h *ScheduleHandler) RestoreCourse(c *gin.Context) {
	if err := h.schedules.RestoreCourse(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PurgeCourse removes a course permanently.
func (h *ScheduleHandler) PurgeCourse(c *gin.Context) {
	if err := h.schedules.PurgeCourse(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSessions returns a timetable's active sessions.
func (h *ScheduleHandler) ListSessions(c *gin.Context) {
	sessions, err := h.schedules.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions)
}

// CreateSession stores a new session.
func (h *ScheduleHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if !bindAndValidate(c, h.validate, &req) {
		return
	}
	sess, err := h.schedules.CreateSession(c.Request.Context(), req.ToModel())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// UpdateSession applies a partial update.
func (h *ScheduleHandler) UpdateSession(c *gin.Context) {
	var patch models.SessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sess, err := h.schedules.UpdateSession(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sess)
}

// DeleteSession soft-deletes a session.
func (h *ScheduleHandler) DeleteSession(c *gin.Context) {
	if err := h.schedules.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RestoreSession undoes a soft delete.
func (h *ScheduleHandler) RestoreSession(c *gin.Context) {
	if err := h.schedules.RestoreSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PurgeSession removes a session permanently.
func (h *ScheduleHandler) PurgeSession(c *gin.Context) {
	if err := h.schedules.PurgeSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
