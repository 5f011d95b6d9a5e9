package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wenqi-dev/timegrid/internal/models"
	"github.com/wenqi-dev/timegrid/internal/store"
	appErrors "github.com/wenqi-dev/timegrid/pkg/errors"
	"github.com/wenqi-dev/timegrid/pkg/export"
	"github.com/wenqi-dev/timegrid/pkg/timeutil"
)

// csvHeaders is the column set shared by export and import.
var csvHeaders = []string{"课程名称", "教师", "地点", "星期", "开始时间", "结束时间", "备注"}

// ImportResult reports how a CSV import went. Malformed rows are skipped
// and reported per row; well-formed rows are still applied.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// TransferService moves timetable data across the CSV and PDF boundary.
type TransferService struct {
	store  *store.Store
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewTransferService builds the service.
func NewTransferService(st *store.Store, csvExporter *export.CSVExporter, pdfExporter *export.PDFExporter, logger *zap.Logger) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{store: st, csv: csvExporter, pdf: pdfExporter, logger: logger}
}

// ExportCSV renders a timetable's active sessions as CSV, one row per
// session in insertion order. Location falls back from the session to its
// course; teacher and notes come from the course.
func (s *TransferService) ExportCSV(ctx context.Context, timetableID string) ([]byte, error) {
	dataset, _, err := s.buildDataset(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(*dataset)
}

// ExportPDF renders the same tabular view as a landscape PDF titled with
// the timetable name.
func (s *TransferService) ExportPDF(ctx context.Context, timetableID string) ([]byte, error) {
	dataset, tt, err := s.buildDataset(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	return s.pdf.Render(*dataset, tt.Name)
}

func (s *TransferService) buildDataset(ctx context.Context, timetableID string) (*export.Dataset, *models.Timetable, error) {
	tt, err := s.requireActiveTimetable(ctx, timetableID)
	if err != nil {
		return nil, nil, err
	}

	courses, err := s.store.Courses.ListActiveByTimetable(ctx, nil, timetableID)
	if err != nil {
		return nil, nil, err
	}
	courseByID := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		courseByID[c.ID] = c
	}

	sessions, err := s.store.Sessions.ListActiveByTimetable(ctx, nil, timetableID)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]map[string]string, 0, len(sessions))
	for _, sess := range sessions {
		course := courseByID[sess.CourseID]
		location := strValue(sess.Location)
		if location == "" {
			location = strValue(course.Location)
		}
		rows = append(rows, map[string]string{
			"课程名称": course.Title,
			"教师":   strValue(course.TeacherName),
			"地点":   location,
			"星期":   timeutil.DayName(sess.DayOfWeek),
			"开始时间": timeutil.MinutesToTime(sess.StartMinutes),
			"结束时间": timeutil.MinutesToTime(sess.EndMinutes),
			"备注":   strValue(course.Notes),
		})
	}

	return &export.Dataset{Headers: csvHeaders, Rows: rows}, tt, nil
}

// ImportCSV reads session rows into an existing timetable. Courses are
// matched by exact title among the timetable's active courses and created
// on first sight. Each malformed row yields one error entry naming its
// line; valid rows around it are imported anyway, all in one transaction.
func (s *TransferService) ImportCSV(ctx context.Context, timetableID string, data []byte) (ImportResult, error) {
	if _, err := s.requireActiveTimetable(ctx, timetableID); err != nil {
		return ImportResult{}, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records := [][]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ImportResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "无法解析 CSV 文件")
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return ImportResult{}, appErrors.Clone(appErrors.ErrValidation, "CSV 文件为空")
	}

	result := ImportResult{Errors: []string{}}

	// Skip the header row; line numbers in error messages are file lines.
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		courseIDs := map[string]string{}
		for i, record := range records[1:] {
			line := i + 2

			if len(record) < 6 {
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行：字段不足", line))
				continue
			}

			title := strings.TrimSpace(record[0])
			if title == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行：课程名称不能为空", line))
				continue
			}

			day := timeutil.ParseDayName(strings.TrimSpace(record[3]))
			if day < 0 {
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行：无效的星期 %q", line, record[3]))
				continue
			}

			start, err := timeutil.TimeToMinutes(strings.TrimSpace(record[4]))
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行：无效的时间 %q", line, record[4]))
				continue
			}
			end, err := timeutil.TimeToMinutes(strings.TrimSpace(record[5]))
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("第%d行：无效的时间 %q", line, record[5]))
				continue
			}

			courseID, ok := courseIDs[title]
			if !ok {
				id, err := s.findOrCreateCourse(ctx, tx, timetableID, title, record)
				if err != nil {
					return err
				}
				courseIDs[title] = id
				courseID = id
			}

			sess := &models.Session{
				TimetableID:  timetableID,
				CourseID:     courseID,
				DayOfWeek:    day,
				StartMinutes: start,
				EndMinutes:   end,
			}
			if location := strings.TrimSpace(record[2]); location != "" {
				sess.Location = &location
			}
			if err := s.store.Sessions.Create(ctx, tx, sess); err != nil {
				return err
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	s.logger.Info("csv imported",
		zap.String("timetable_id", timetableID),
		zap.Int("imported", result.Imported),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

func (s *TransferService) findOrCreateCourse(ctx context.Context, tx *sqlx.Tx, timetableID, title string, record []string) (string, error) {
	existing, err := s.store.Courses.FindActiveByTitle(ctx, tx, timetableID, title)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	course := &models.Course{TimetableID: timetableID, Title: title}
	if teacher := strings.TrimSpace(record[1]); teacher != "" {
		course.TeacherName = &teacher
	}
	if len(record) > 6 {
		if notes := strings.TrimSpace(record[6]); notes != "" {
			course.Notes = &notes
		}
	}
	if err := s.store.Courses.Create(ctx, tx, course); err != nil {
		return "", err
	}
	return course.ID, nil
}

func (s *TransferService) requireActiveTimetable(ctx context.Context, id string) (*models.Timetable, error) {
	tt, err := s.store.Timetables.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "课表不存在")
		}
		return nil, err
	}
	if tt.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "课表不存在")
	}
	return tt, nil
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
