package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wenqi-dev/timegrid/internal/dto"
	"github.com/wenqi-dev/timegrid/internal/service"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
	"github.com/wenqi-dev/timegrid/pkg/response"
)

// maxUploadBytes caps backup and CSV uploads.
const maxUploadBytes = 32 << 20

// BackupHandler exposes snapshot and data-transfer endpoints.
type BackupHandler struct {
	backups   *service.BackupService
	transfers *service.TransferService
	metrics   *service.MetricsService
}

// NewBackupHandler constructs BackupHandler.
func NewBackupHandler(backups *service.BackupService, transfers *service.TransferService, metrics *service.MetricsService) *BackupHandler {
	return &BackupHandler{backups: backups, transfers: transfers, metrics: metrics}
}

// List returns active backup records, most recent first.
func (h *BackupHandler) List(c *gin.Context) {
	backups, err := h.backups.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, backups)
}

// ListDeleted returns soft-deleted backup records.
func (h *BackupHandler) ListDeleted(c *gin.Context) {
	backups, err := h.backups.ListDeleted(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, backups)
}

// Create captures a new snapshot of all active records.
func (h *BackupHandler) Create(c *gin.Context) {
	var req dto.CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.backups.Create(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordBackupCreated()
	response.Created(c, record)
}

// Restore applies a snapshot. The outcome is always 200 with a result
// body; a failed restore is data, not a transport error.
func (h *BackupHandler) Restore(c *gin.Context) {
	var req dto.RestoreBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result := h.backups.Restore(c.Request.Context(), c.Param("id"), service.RestoreOptions{
		ClearExisting: req.ClearExisting,
		Merge:         req.Merge,
	})
	if result.Success {
		h.metrics.RecordBackupRestored()
	}
	response.JSON(c, http.StatusOK, result)
}

// Export streams the raw snapshot payload as a JSON attachment.
func (h *BackupHandler) Export(c *gin.Context) {
	payload, err := h.backups.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="backup.json"`)
	c.Data(http.StatusOK, "application/json", payload)
}

// Import registers an uploaded snapshot under a fresh id.
func (h *BackupHandler) Import(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "read payload"))
		return
	}
	record, err := h.backups.Import(c.Request.Context(), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Delete soft-deletes a backup record, keeping its payload.
func (h *BackupHandler) Delete(c *gin.Context) {
	if err := h.backups.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Undelete brings a soft-deleted backup record back.
func (h *BackupHandler) Undelete(c *gin.Context) {
	if err := h.backups.Undelete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Purge removes a backup record and its payload permanently.
func (h *BackupHandler) Purge(c *gin.Context) {
	if err := h.backups.Purge(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportCSV streams a timetable's sessions as a CSV attachment.
func (h *BackupHandler) ExportCSV(c *gin.Context) {
	raw, err := h.transfers.ExportCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", raw)
}

// ImportCSV loads session rows into a timetable from an uploaded CSV.
func (h *BackupHandler) ImportCSV(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "read payload"))
		return
	}
	result, err := h.transfers.ImportCSV(c.Request.Context(), c.Param("id"), raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordRowsImported(result.Imported)
	response.JSON(c, http.StatusOK, result)
}

// ExportPDF streams a timetable's sessions as a PDF attachment.
func (h *BackupHandler) ExportPDF(c *gin.Context) {
	raw, err := h.transfers.ExportPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.pdf"`)
	c.Data(http.StatusOK, "application/pdf", raw)
}
