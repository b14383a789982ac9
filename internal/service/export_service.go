package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noor-academy/tutoring-api/internal/models"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
	"github.com/noor-academy/tutoring-api/pkg/export"
	"github.com/noor-academy/tutoring-api/pkg/jobs"
	"github.com/noor-academy/tutoring-api/pkg/storage"
)

// ReportJobType routes export jobs on the shared queue.
const ReportJobType = "analytics-report"

// ExportService renders teacher analytics into downloadable CSV and PDF
// reports. Generation runs on the jobs queue; callers poll the job and
// fetch the file through a signed download token once it completes.
type ExportService struct {
	analytics *AnalyticsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	logger    *zap.Logger
	now       func() time.Time

	mu   sync.RWMutex
	jobs map[string]*models.ReportJob
}

// NewExportService constructs an ExportService. The queue handler must
// be wired to HandleJob.
func NewExportService(analytics *AnalyticsService, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		analytics: analytics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		storage:   store,
		signer:    signer,
		logger:    logger,
		now:       time.Now,
		jobs:      make(map[string]*models.ReportJob),
	}
}

// SetQueue attaches the dispatch queue. Must be called before Request.
func (s *ExportService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Request registers a pending report job and schedules its generation.
func (s *ExportService) Request(ctx context.Context, teacherID string, period models.ReportingPeriod, format models.ReportFormat) (*models.ReportJob, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	if !period.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period must be week, month or semester")
	}
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue unavailable")
	}

	job := &models.ReportJob{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		Period:    period,
		Format:    format,
		Status:    models.ReportStatusPending,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    ReportJobType,
		Payload: job.ID,
	})
	if err != nil {
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue report job")
	}

	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("teacher_id", teacherID),
		zap.String("period", string(period)),
		zap.String("format", string(format)))

	return cloneReportJob(job), nil
}

// Job returns the current state of a teacher's report job.
func (s *ExportService) Job(teacherID, jobID string) (*models.ReportJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok || job.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
	}
	return cloneReportJob(job), nil
}

// Open validates a download token and returns the stored report file
// along with the name the client should save it as.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}

	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok || job.Status != models.ReportStatusCompleted || job.FileName != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file missing")
	}
	return file, relPath, nil
}

// HandleJob is the jobs.Handler for report generation.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		s.logger.Warn("unexpected report payload", zap.String("job", job.ID))
		return nil
	}

	s.mu.RLock()
	pending, found := s.jobs[jobID]
	s.mu.RUnlock()
	if !found {
		return nil
	}

	if err := s.generate(ctx, pending); err != nil {
		retryable := job.Attempt+1 < 3
		if !retryable {
			s.fail(jobID, err)
		}
		return err
	}
	return nil
}

func (s *ExportService) generate(ctx context.Context, job *models.ReportJob) error {
	analytics, perStudent, err := s.analytics.Report(ctx, job.TeacherID, job.Period)
	if err != nil {
		return fmt.Errorf("compute report analytics: %w", err)
	}

	dataset := reportDataset(perStudent)

	var payload []byte
	switch job.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		title := fmt.Sprintf("Class Performance Report (%s)", job.Period)
		payload, err = s.pdf.Render(dataset, title, reportSummary(analytics))
	default:
		err = fmt.Errorf("unsupported format %q", job.Format)
	}
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	fileName := fmt.Sprintf("%s/%s-%s.%s", job.TeacherID, job.Period, job.ID, job.Format)
	if _, err := s.storage.Save(fileName, payload); err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	token, expiresAt, err := s.signer.Generate(job.ID, fileName)
	if err != nil {
		return fmt.Errorf("sign report url: %w", err)
	}

	completedAt := s.now().UTC()
	s.mu.Lock()
	job.Status = models.ReportStatusCompleted
	job.FileName = fileName
	job.DownloadToken = token
	job.ExpiresAt = &expiresAt
	job.CompletedAt = &completedAt
	job.Error = ""
	s.mu.Unlock()

	s.logger.Info("report generated",
		zap.String("job_id", job.ID),
		zap.String("teacher_id", job.TeacherID),
		zap.String("file", fileName))
	return nil
}

func (s *ExportService) fail(jobID string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return
	}
	job.Status = models.ReportStatusFailed
	job.Error = cause.Error()
}

// CleanupExpired removes stored report files older than the given TTL.
func (s *ExportService) CleanupExpired(ttl time.Duration) {
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("cleanup reports", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
	}
}

func reportDataset(perStudent []models.StudentPerformance) export.Dataset {
	headers := []string{"Student", "Attendance %", "Average Performance", "Completed Classes", "Scheduled Classes"}
	rows := make([]map[string]string, 0, len(perStudent))
	for _, sp := range perStudent {
		rows = append(rows, map[string]string{
			"Student":             sp.Name,
			"Attendance %":        fmt.Sprintf("%d", sp.AttendancePercentage),
			"Average Performance": fmt.Sprintf("%d", sp.AveragePerformance),
			"Completed Classes":   fmt.Sprintf("%d", sp.TotalCompletedClasses),
			"Scheduled Classes":   fmt.Sprintf("%d", sp.TotalScheduledClasses),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func reportSummary(analytics *models.TeacherAnalytics) []string {
	lines := []string{
		fmt.Sprintf("Students: %d", analytics.TotalStudents),
		fmt.Sprintf("Average attendance: %d%%", analytics.AverageAttendance),
		fmt.Sprintf("Average grade: %d", analytics.AverageGrade),
		fmt.Sprintf("Assignment completion: %d%%", analytics.AssignmentCompletionRate),
	}
	if analytics.ParseFailures > 0 {
		lines = append(lines, fmt.Sprintf("Records skipped (unreadable evaluation): %d", analytics.ParseFailures))
	}
	return lines
}

func cloneReportJob(job *models.ReportJob) *models.ReportJob {
	copied := *job
	if job.ExpiresAt != nil {
		t := *job.ExpiresAt
		copied.ExpiresAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
