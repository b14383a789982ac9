package models

import "time"

// ReportFormat selects the rendered file type for analytics exports.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Valid returns true when the format is supported.
func (f ReportFormat) Valid() bool {
	return f == ReportFormatCSV || f == ReportFormatPDF
}

// ReportStatus tracks an export job through its lifecycle.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusFailed    ReportStatus = "failed"
)

// ReportJob describes one asynchronous analytics export.
type ReportJob struct {
	ID            string          `json:"id"`
	TeacherID     string          `json:"teacherId"`
	Period        ReportingPeriod `json:"period"`
	Format        ReportFormat    `json:"format"`
	Status        ReportStatus    `json:"status"`
	FileName      string          `json:"fileName,omitempty"`
	DownloadToken string          `json:"downloadToken,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}
