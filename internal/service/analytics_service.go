package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noor-academy/tutoring-api/internal/evaluation"
	"github.com/noor-academy/tutoring-api/internal/models"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
)

// UnknownStudentName labels sessions whose student is missing from the
// current roster. Aggregation continues with the placeholder.
const UnknownStudentName = "Unknown Student"

type sessionLister interface {
	List(ctx context.Context, teacherID string) ([]models.Session, error)
}

type rosterLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Student, error)
}

// AnalyticsConfig sizes the ranked cohorts.
type AnalyticsConfig struct {
	TopPerformers  int
	NeedsAttention int
}

// AnalyticsService reconstructs attendance and performance analytics from
// persisted class records. It is a pure read-side transform: it never
// mutates records, and a class whose evaluation cannot be decoded
// degrades the numbers instead of failing the request.
type AnalyticsService struct {
	sessions sessionLister
	roster   rosterLister
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
	cfg      AnalyticsConfig
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(sessions sessionLister, roster rosterLister, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg AnalyticsConfig) *AnalyticsService {
	if cfg.TopPerformers <= 0 {
		cfg.TopPerformers = 3
	}
	if cfg.NeedsAttention <= 0 {
		cfg.NeedsAttention = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		sessions: sessions,
		roster:   roster,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

// CacheKey returns the cache key for a teacher/period pair.
func CacheKey(teacherID string, period models.ReportingPeriod) string {
	return fmt.Sprintf("analytics:%s:%s", teacherID, period)
}

// CacheKeyPattern matches every cached period for a teacher.
func CacheKeyPattern(teacherID string) string {
	return fmt.Sprintf("analytics:%s:*", teacherID)
}

// Performance computes a teacher's analytics for the reporting period.
// The boolean indicates whether the result came from cache.
func (s *AnalyticsService) Performance(ctx context.Context, teacherID string, period models.ReportingPeriod) (*models.TeacherAnalytics, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	if !period.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "period must be week, month or semester")
	}

	cacheKey := CacheKey(teacherID, period)
	var cached models.TeacherAnalytics
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get analytics cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	sessions, err := s.sessions.List(ctx, teacherID)
	if err != nil {
		return nil, false, err
	}
	roster, err := s.roster.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_inputs", time.Since(start))
	}

	result, _ := s.aggregate(teacherID, sessions, roster, period)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil && s.logger != nil {
			s.logger.Warn("cache analytics", zap.Error(err))
		}
	}
	return result, false, nil
}

type studentTotals struct {
	scheduled int
	attended  int
	missed    int
	perfSum   int
	evalCount int
	hwDone    int
	hwTotal   int
}

// Report computes the analytics together with the per-student breakdown
// used by exports. It always recomputes from the store.
func (s *AnalyticsService) Report(ctx context.Context, teacherID string, period models.ReportingPeriod) (*models.TeacherAnalytics, []models.StudentPerformance, error) {
	if teacherID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
	}
	if !period.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "period must be week, month or semester")
	}

	sessions, err := s.sessions.List(ctx, teacherID)
	if err != nil {
		return nil, nil, err
	}
	roster, err := s.roster.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, nil, err
	}
	analytics, perStudent := s.aggregate(teacherID, sessions, roster, period)
	return analytics, perStudent, nil
}

func (s *AnalyticsService) aggregate(teacherID string, sessions []models.Session, roster []models.Student, period models.ReportingPeriod) (*models.TeacherAnalytics, []models.StudentPerformance) {
	now := s.now().UTC()
	lowerBound := period.LowerBound(now)

	names := make(map[string]string, len(roster))
	for _, student := range roster {
		names[student.ID] = student.FullName
	}

	totals := make(map[string]*studentTotals)
	order := make([]string, 0)
	parseFailures := 0

	for _, session := range sessions {
		if !session.Completed() {
			continue
		}
		if session.Date.Before(lowerBound) {
			continue
		}

		st, ok := totals[session.StudentID]
		if !ok {
			st = &studentTotals{}
			totals[session.StudentID] = st
			order = append(order, session.StudentID)
		}
		st.scheduled++

		decoded, err := s.decode(session)
		if err != nil {
			parseFailures++
			s.logger.Debug("class evaluation failed to decode",
				zap.String("class_id", session.ID),
				zap.String("student_id", session.StudentID),
				zap.Error(err))
			continue
		}

		st.evalCount++
		st.perfSum += decoded.Performance
		switch decoded.AttendanceStatus {
		case models.AttendancePresent, models.AttendanceLate:
			st.attended++
		case models.AttendanceAbsent:
			st.missed++
		}

		if session.Evaluation != nil {
			st.hwTotal++
			if session.Evaluation.Homework == models.HomeworkCompleted {
				st.hwDone++
			}
		}
	}

	perStudent := make([]models.StudentPerformance, 0, len(order))
	var pooled studentTotals
	for _, studentID := range order {
		st := totals[studentID]
		pooled.scheduled += st.scheduled
		pooled.attended += st.attended
		pooled.perfSum += st.perfSum
		pooled.evalCount += st.evalCount
		pooled.hwDone += st.hwDone
		pooled.hwTotal += st.hwTotal

		name, ok := names[studentID]
		if !ok {
			name = UnknownStudentName
		}
		perStudent = append(perStudent, models.StudentPerformance{
			StudentID:             studentID,
			Name:                  name,
			AttendancePercentage:  percentage(st.attended, st.scheduled),
			AveragePerformance:    gradeScale(st.perfSum, st.evalCount),
			TotalCompletedClasses: st.evalCount,
			TotalScheduledClasses: st.scheduled,
		})
	}

	ranked := make([]models.StudentPerformance, 0, len(perStudent))
	for _, sp := range perStudent {
		if sp.TotalCompletedClasses > 0 {
			ranked = append(ranked, sp)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AveragePerformance != ranked[j].AveragePerformance {
			return ranked[i].AveragePerformance > ranked[j].AveragePerformance
		}
		return ranked[i].AttendancePercentage > ranked[j].AttendancePercentage
	})

	top := make([]models.StudentPerformance, 0, s.cfg.TopPerformers)
	attention := make([]models.StudentPerformance, 0, s.cfg.NeedsAttention)
	for _, sp := range ranked {
		if len(top) < s.cfg.TopPerformers && sp.AveragePerformance >= 90 && sp.AttendancePercentage >= 85 {
			top = append(top, sp)
		}
	}
	for _, sp := range ranked {
		if len(attention) < s.cfg.NeedsAttention && (sp.AveragePerformance < 70 || sp.AttendancePercentage < 75) {
			attention = append(attention, sp)
		}
	}

	return &models.TeacherAnalytics{
		TotalStudents:            len(roster),
		AverageAttendance:        percentage(pooled.attended, pooled.scheduled),
		AverageGrade:             gradeScale(pooled.perfSum, pooled.evalCount),
		AssignmentCompletionRate: percentage(pooled.hwDone, pooled.hwTotal),
		TopPerformers:            top,
		NeedsAttention:           attention,
		ParseFailures:            parseFailures,
		Period:                   period,
		GeneratedAt:              now,
	}, perStudent
}

// decode prefers the structured evaluation persisted with the record and
// falls back to the legacy notes summary for older records.
func (s *AnalyticsService) decode(session models.Session) (models.DecodedEvaluation, error) {
	if ev := session.Evaluation; ev != nil {
		return models.DecodedEvaluation{
			Performance:      ev.Performance,
			Tajweed:          ev.Tajweed,
			AttendanceStatus: ev.Attendance,
		}, nil
	}
	return evaluation.Decode(session.Notes)
}

// percentage maps part/whole onto 0–100, returning 0 for an empty whole.
func percentage(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// gradeScale maps a summed 1–5 score onto 0–100, returning 0 when no
// evaluations were decoded.
func gradeScale(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count) * 20))
}
