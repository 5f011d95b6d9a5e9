package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/service"
	"github.com/wenqi-dev/timegrid/internal/store"
	"github.com/wenqi-dev/timegrid/pkg/blob"
	"github.com/wenqi-dev/timegrid/pkg/database"
	"github.com/wenqi-dev/timegrid/pkg/export"
	"github.com/wenqi-dev/timegrid/pkg/response"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := store.New(db)
	require.NoError(t, s.Migrate(context.Background()))

	validate := validator.New()
	metrics := service.NewMetricsService()
	schedules := service.NewScheduleService(s, nil)
	integrity := service.NewIntegrityService(s, nil)
	conflicts := service.NewConflictService(s, nil)
	batches := service.NewBatchService(s, nil)
	backups := service.NewBackupService(s, blob.NewMemoryStore(), "2.0", "导入: ", nil)
	transfers := service.NewTransferService(s, export.NewCSVExporter(), export.NewPDFExporter(), nil)

	r := NewRouter(RouterConfig{
		APIPrefix:   "/api/v1",
		Schedules:   NewScheduleHandler(schedules, validate),
		Maintenance: NewMaintenanceHandler(integrity, conflicts, batches, metrics, validate),
		Backups:     NewBackupHandler(backups, transfers, metrics),
		Metrics:     metrics,
	})
	return r, s
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestTimetableLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/timetables", gin.H{
		"name": "三年二班", "type": "student", "standard": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var tt models.Timetable
	decodeData(t, w, &tt)
	require.NotEmpty(t, tt.ID)
	require.Len(t, tt.Segments, 6)
	require.Equal(t, "08:00", tt.Segments[0].StartTime)

	w = doJSON(t, r, http.MethodGet, "/api/v1/timetables", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/v1/timetables/"+tt.ID, gin.H{"name": "新名字"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/timetables/"+tt.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/timetables/"+tt.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/timetables/"+tt.ID+"/restore", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/timetables/"+tt.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCreateTimetableRejectsBadPayload(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/timetables", gin.H{"name": "X", "type": "admin"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	require.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestIntegrityEndpoints(t *testing.T) {
	r, s := newTestRouter(t)
	ctx := context.Background()

	orphan := &models.Course{TimetableID: "missing", Title: "Dangling"}
	require.NoError(t, s.Courses.Create(ctx, nil, orphan))

	w := doJSON(t, r, http.MethodGet, "/api/v1/integrity/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report service.IntegrityReport
	decodeData(t, w, &report)
	require.False(t, report.IsValid)
	require.Len(t, report.Orphaned.Courses, 1)

	w = doJSON(t, r, http.MethodPost, "/api/v1/integrity/cleanup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cleanup service.CleanupResult
	decodeData(t, w, &cleanup)
	require.Equal(t, 1, cleanup.CleanedCourses)
}

func TestBackupRoundTripOverHTTP(t *testing.T) {
	r, s := newTestRouter(t)
	ctx := context.Background()

	tt := &models.Timetable{Name: "Main", Type: models.TimetableTypeTeacher}
	require.NoError(t, s.Timetables.Create(ctx, nil, tt))

	w := doJSON(t, r, http.MethodPost, "/api/v1/backups", gin.H{"name": "checkpoint"})
	require.Equal(t, http.StatusCreated, w.Code)
	var record models.Backup
	decodeData(t, w, &record)
	require.Equal(t, 1, record.RecordCount)

	require.NoError(t, s.Timetables.SoftDelete(ctx, nil, tt.ID, record.CreatedAt))

	w = doJSON(t, r, http.MethodPost, "/api/v1/backups/"+record.ID+"/restore", gin.H{"merge": true})
	require.Equal(t, http.StatusOK, w.Code)
	var result service.RestoreResult
	decodeData(t, w, &result)
	require.True(t, result.Success)
	require.Equal(t, 1, result.RestoredRecords)

	active, err := s.Timetables.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestCSVImportExportOverHTTP(t *testing.T) {
	r, s := newTestRouter(t)
	ctx := context.Background()

	tt := &models.Timetable{Name: "Main", Type: models.TimetableTypeTeacher}
	require.NoError(t, s.Timetables.Create(ctx, nil, tt))

	csvBody := "课程名称,教师,地点,星期,开始时间,结束时间,备注\n数学,王老师,教学楼A,周一,08:00,08:40,\n"
	req, err := http.NewRequest(http.MethodPost, "/api/v1/timetables/"+tt.ID+"/import/csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.ImportResult
	decodeData(t, w, &result)
	require.Equal(t, 1, result.Imported)
	require.Empty(t, result.Errors)

	w = doJSON(t, r, http.MethodGet, "/api/v1/timetables/"+tt.ID+"/export/csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "数学")
	require.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	r, _ := newTestRouter(t)

	doJSON(t, r, http.MethodGet, "/api/v1/timetables", nil)

	w := doJSON(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http_requests_total")
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}
