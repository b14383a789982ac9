package models

import "time"

// ReportingPeriod is the rolling window analytics are scoped to.
type ReportingPeriod string

const (
	PeriodWeek     ReportingPeriod = "week"
	PeriodMonth    ReportingPeriod = "month"
	PeriodSemester ReportingPeriod = "semester"
)

// Valid returns true when the period is a supported value.
func (p ReportingPeriod) Valid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodSemester:
		return true
	default:
		return false
	}
}

// LowerBound resolves the period to its inclusive lower date bound.
// There is no upper bound; the window always extends to the present.
func (p ReportingPeriod) LowerBound(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodSemester:
		return now.AddDate(0, -6, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// StudentPerformance is the per-student aggregate derived from completed
// sessions within the reporting window. Recomputed on demand, never persisted.
type StudentPerformance struct {
	StudentID             string `json:"studentId"`
	Name                  string `json:"name"`
	AttendancePercentage  int    `json:"attendancePercentage"`
	AveragePerformance    int    `json:"averagePerformance"` // 1–5 scale mapped onto 0–100
	TotalCompletedClasses int    `json:"totalCompletedClasses"`
	TotalScheduledClasses int    `json:"totalScheduledClasses"`
}

// TeacherAnalytics is the aggregator output for one teacher and period.
type TeacherAnalytics struct {
	TotalStudents            int                  `json:"totalStudents"`
	AverageAttendance        int                  `json:"averageAttendance"`
	AverageGrade             int                  `json:"averageGrade"`
	AssignmentCompletionRate int                  `json:"assignmentCompletionRate"`
	TopPerformers            []StudentPerformance `json:"topPerformers"`
	NeedsAttention           []StudentPerformance `json:"needsAttention"`

	// ParseFailures counts sessions whose notes could not be decoded.
	// Diagnostic only; such sessions still count toward scheduled totals.
	ParseFailures int `json:"parseFailures,omitempty"`

	Period      ReportingPeriod `json:"period"`
	GeneratedAt time.Time       `json:"generatedAt"`
}
