package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wenqi-dev/timegrid/internal/service"
)

// RouterConfig bundles the handlers mounted by NewRouter.
type RouterConfig struct {
	APIPrefix   string
	Schedules   *ScheduleHandler
	Maintenance *MaintenanceHandler
	Backups     *BackupHandler
	Metrics     *service.MetricsService
	Middlewares []gin.HandlerFunc
}

// NewRouter mounts every route under the configured API prefix, plus the
// health and metrics endpoints at the root.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	for _, mw := range cfg.Middlewares {
		r.Use(mw)
	}
	if cfg.Metrics != nil {
		r.Use(metricsMiddleware(cfg.Metrics))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	timetables := api.Group("/timetables")
	{
		timetables.GET("", cfg.Schedules.ListTimetables)
		timetables.POST("", cfg.Schedules.CreateTimetable)
		timetables.GET("/:id", cfg.Schedules.GetTimetable)
		timetables.PUT("/:id", cfg.Schedules.UpdateTimetable)
		timetables.DELETE("/:id", cfg.Schedules.DeleteTimetable)
		timetables.POST("/:id/restore", cfg.Schedules.RestoreTimetable)
		timetables.DELETE("/:id/purge", cfg.Schedules.PurgeTimetable)

		timetables.GET("/:id/courses", cfg.Schedules.ListCourses)
		timetables.GET("/:id/sessions", cfg.Schedules.ListSessions)

		timetables.POST("/:id/duplicate", cfg.Maintenance.DuplicateTimetable)
		timetables.POST("/:id/merge-courses", cfg.Maintenance.MergeDuplicateCourses)
		timetables.GET("/:id/segments/validate", cfg.Maintenance.ValidateSegments)
		timetables.POST("/:id/fix-conflicts", cfg.Maintenance.FixTimeConflicts)
		timetables.POST("/:id/standardize-times", cfg.Maintenance.StandardizeTimes)

		timetables.GET("/:id/export/csv", cfg.Backups.ExportCSV)
		timetables.GET("/:id/export/pdf", cfg.Backups.ExportPDF)
		timetables.POST("/:id/import/csv", cfg.Backups.ImportCSV)
	}

	courses := api.Group("/courses")
	{
		courses.POST("", cfg.Schedules.CreateCourse)
		courses.PUT("/:id", cfg.Schedules.UpdateCourse)
		courses.DELETE("/:id", cfg.Schedules.DeleteCourse)
		courses.POST("/:id/restore", cfg.Schedules.RestoreCourse)
		courses.DELETE("/:id/purge", cfg.Schedules.PurgeCourse)
	}

	sessions := api.Group("/sessions")
	{
		sessions.POST("", cfg.Schedules.CreateSession)
		sessions.PUT("/:id", cfg.Schedules.UpdateSession)
		sessions.DELETE("/:id", cfg.Schedules.DeleteSession)
		sessions.POST("/:id/restore", cfg.Schedules.RestoreSession)
		sessions.DELETE("/:id/purge", cfg.Schedules.PurgeSession)

		sessions.POST("/move", cfg.Maintenance.MoveSessions)
		sessions.POST("/batch", cfg.Maintenance.BatchCreateSessions)
		sessions.POST("/batch-delete", cfg.Maintenance.BatchDeleteSessions)
		sessions.POST("/placement/check", cfg.Maintenance.CheckPlacement)
		sessions.POST("/placement/apply", cfg.Maintenance.ApplyPlacement)
	}

	api.POST("/courses/batch-update", cfg.Maintenance.BatchUpdateCourses)

	integrity := api.Group("/integrity")
	{
		integrity.GET("/check", cfg.Maintenance.CheckIntegrity)
		integrity.POST("/cleanup", cfg.Maintenance.CleanupOrphans)
	}

	backups := api.Group("/backups")
	{
		backups.GET("", cfg.Backups.List)
		backups.POST("", cfg.Backups.Create)
		backups.GET("/deleted", cfg.Backups.ListDeleted)
		backups.POST("/import", cfg.Backups.Import)
		backups.GET("/:id/export", cfg.Backups.Export)
		backups.POST("/:id/restore", cfg.Backups.Restore)
		backups.POST("/:id/undelete", cfg.Backups.Undelete)
		backups.DELETE("/:id", cfg.Backups.Delete)
		backups.DELETE("/:id/purge", cfg.Backups.Purge)
	}

	api.GET("/deleted", cfg.Schedules.ListDeleted)

	return r
}

func metricsMiddleware(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
