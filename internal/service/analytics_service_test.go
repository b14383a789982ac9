package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/tutoring-api/internal/evaluation"
	"github.com/noor-academy/tutoring-api/internal/models"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
)

type stubSessions struct {
	sessions []models.Session
	err      error
}

func (s *stubSessions) List(context.Context, string) ([]models.Session, error) {
	return s.sessions, s.err
}

type stubRoster struct {
	students []models.Student
	err      error
}

func (s *stubRoster) ListByTeacher(context.Context, string) ([]models.Student, error) {
	return s.students, s.err
}

type memCacheRepo struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{data: make(map[string][]byte)}
}

func (r *memCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	raw, ok := r.data[key]
	r.mu.Unlock()
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.data[key] = raw
	r.mu.Unlock()
	return nil
}

func (r *memCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	r.mu.Lock()
	for key := range r.data {
		if strings.HasPrefix(key, prefix) {
			delete(r.data, key)
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *memCacheRepo) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[key]
	return ok
}

var analyticsNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestAnalytics(sessions []models.Session, students []models.Student, cache *CacheService) *AnalyticsService {
	svc := NewAnalyticsService(&stubSessions{sessions: sessions}, &stubRoster{students: students}, cache, nil, nil, AnalyticsConfig{})
	svc.now = func() time.Time { return analyticsNow }
	return svc
}

func makeEval(perf int, att models.EvaluationAttendance, hw models.HomeworkStatus) models.Evaluation {
	return models.Evaluation{
		Attendance:    att,
		Homework:      hw,
		Performance:   perf,
		Memorization:  perf,
		Tajweed:       perf,
		Participation: perf,
	}
}

func completedSession(studentID string, daysAgo int, ev models.Evaluation, structured bool) models.Session {
	session := models.Session{
		ID:        fmt.Sprintf("%s-%d", studentID, daysAgo),
		StudentID: studentID,
		TeacherID: "teacher-1",
		Date:      analyticsNow.AddDate(0, 0, -daysAgo),
		Status:    models.SessionStatusCompleted,
		Notes:     evaluation.Encode(ev),
	}
	if structured {
		session.Evaluation = &models.EvaluationRecord{
			SchemaVersion: models.EvaluationRecordSchemaVersion,
			Evaluation:    ev,
		}
	}
	return session
}

func malformedSession(studentID string, daysAgo int) models.Session {
	return models.Session{
		ID:        studentID + "-broken",
		StudentID: studentID,
		TeacherID: "teacher-1",
		Date:      analyticsNow.AddDate(0, 0, -daysAgo),
		Status:    models.SessionStatusCompleted,
		Notes:     "teacher wrote free-form notes instead of a summary",
	}
}

func roster(names ...string) []models.Student {
	students := make([]models.Student, 0, len(names))
	for i, name := range names {
		students = append(students, models.Student{
			ID:        "student-" + string(rune('1'+i)),
			TeacherID: "teacher-1",
			FullName:  name,
			Active:    true,
		})
	}
	return students
}

func TestPerformanceDecodeFailureCountsScheduledOnly(t *testing.T) {
	ev := makeEval(5, models.AttendancePresent, models.HomeworkCompleted)
	sessions := []models.Session{
		completedSession("student-1", 1, ev, true),
		completedSession("student-1", 2, ev, true),
		completedSession("student-1", 3, ev, true),
		malformedSession("student-1", 4),
	}
	svc := newTestAnalytics(sessions, roster("Aisha Rahman"), nil)

	analytics, cacheHit, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)
	assert.False(t, cacheHit)

	// The malformed record stays in the scheduled denominator but
	// contributes nothing to attendance or grades.
	assert.Equal(t, 75, analytics.AverageAttendance)
	assert.Equal(t, 100, analytics.AverageGrade)
	assert.Equal(t, 1, analytics.ParseFailures)

	// Attendance 75 is below the 85 top-performer gate and not below the
	// 75 attention threshold, so neither cohort picks the student up.
	assert.Empty(t, analytics.TopPerformers)
	assert.Empty(t, analytics.NeedsAttention)

	_, perStudent, err := svc.Report(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)
	require.Len(t, perStudent, 1)
	assert.Equal(t, "Aisha Rahman", perStudent[0].Name)
	assert.Equal(t, 3, perStudent[0].TotalCompletedClasses)
	assert.Equal(t, 4, perStudent[0].TotalScheduledClasses)
	assert.Equal(t, 75, perStudent[0].AttendancePercentage)
	assert.Equal(t, 100, perStudent[0].AveragePerformance)
}

func TestPerformanceLegacyNotesFallback(t *testing.T) {
	ev := makeEval(4, models.AttendanceLate, models.HomeworkPartial)
	sessions := []models.Session{
		completedSession("student-1", 1, ev, false),
	}
	svc := newTestAnalytics(sessions, roster("Aisha Rahman"), nil)

	analytics, _, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)

	// Late still counts as attended; the record predates the structured
	// schema so only the summary string is available.
	assert.Equal(t, 100, analytics.AverageAttendance)
	assert.Equal(t, 80, analytics.AverageGrade)
	assert.Zero(t, analytics.ParseFailures)
}

func TestPerformanceWindowFiltering(t *testing.T) {
	ev := makeEval(5, models.AttendancePresent, models.HomeworkCompleted)
	sessions := []models.Session{
		completedSession("student-1", 1, ev, true),
		completedSession("student-1", 20, makeEval(1, models.AttendanceAbsent, models.HomeworkNotDone), true),
	}
	svc := newTestAnalytics(sessions, roster("Aisha Rahman"), nil)

	weekly, _, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 100, weekly.AverageGrade)

	monthly, _, err := svc.Performance(context.Background(), "teacher-1", models.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, 60, monthly.AverageGrade)
}

func TestPerformanceCohortSelection(t *testing.T) {
	sessions := []models.Session{
		// Top performer: high grade, full attendance.
		completedSession("student-1", 1, makeEval(5, models.AttendancePresent, models.HomeworkCompleted), true),
		// Attention candidates with declining grades.
		completedSession("student-2", 1, makeEval(3, models.AttendancePresent, models.HomeworkPartial), true),
		completedSession("student-3", 1, makeEval(2, models.AttendancePresent, models.HomeworkNotDone), true),
		completedSession("student-4", 1, makeEval(1, models.AttendancePresent, models.HomeworkNotDone), true),
		// Good grade but absent, so attendance flags them too.
		completedSession("student-5", 1, makeEval(4, models.AttendanceAbsent, models.HomeworkCompleted), true),
	}
	students := roster("Aisha Rahman", "Bilal Hussain", "Fatima Noor", "Hamza Ali", "Maryam Said")
	svc := newTestAnalytics(sessions, students, nil)

	analytics, _, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)

	require.Len(t, analytics.TopPerformers, 1)
	assert.Equal(t, "Aisha Rahman", analytics.TopPerformers[0].Name)

	// Four students qualify; the list is capped at three, ordered by
	// average performance descending.
	require.Len(t, analytics.NeedsAttention, 3)
	assert.Equal(t, "Maryam Said", analytics.NeedsAttention[0].Name)
	assert.Equal(t, "Bilal Hussain", analytics.NeedsAttention[1].Name)
	assert.Equal(t, "Fatima Noor", analytics.NeedsAttention[2].Name)
}

func TestPerformanceAssignmentCompletionRate(t *testing.T) {
	sessions := []models.Session{
		completedSession("student-1", 1, makeEval(4, models.AttendancePresent, models.HomeworkCompleted), true),
		completedSession("student-1", 2, makeEval(4, models.AttendancePresent, models.HomeworkPartial), true),
		// Legacy record without structured homework data.
		completedSession("student-1", 3, makeEval(4, models.AttendancePresent, models.HomeworkCompleted), false),
	}
	svc := newTestAnalytics(sessions, roster("Aisha Rahman"), nil)

	analytics, _, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)

	// Only structured evaluations carry homework status.
	assert.Equal(t, 50, analytics.AssignmentCompletionRate)
}

func TestPerformanceEmptyWindow(t *testing.T) {
	svc := newTestAnalytics(nil, roster("Aisha Rahman"), nil)

	analytics, _, err := svc.Performance(context.Background(), "teacher-1", models.PeriodSemester)
	require.NoError(t, err)

	assert.Equal(t, 1, analytics.TotalStudents)
	assert.Zero(t, analytics.AverageAttendance)
	assert.Zero(t, analytics.AverageGrade)
	assert.Zero(t, analytics.AssignmentCompletionRate)
	assert.Empty(t, analytics.TopPerformers)
	assert.Empty(t, analytics.NeedsAttention)
}

func TestPerformanceUnknownStudentPlaceholder(t *testing.T) {
	sessions := []models.Session{
		completedSession("student-9", 1, makeEval(5, models.AttendancePresent, models.HomeworkCompleted), true),
	}
	svc := newTestAnalytics(sessions, nil, nil)

	analytics, _, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)
	require.Len(t, analytics.TopPerformers, 1)
	assert.Equal(t, UnknownStudentName, analytics.TopPerformers[0].Name)
}

func TestPerformanceValidation(t *testing.T) {
	svc := newTestAnalytics(nil, nil, nil)

	_, _, err := svc.Performance(context.Background(), "", models.PeriodWeek)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = svc.Performance(context.Background(), "teacher-1", "fortnight")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPerformanceCaching(t *testing.T) {
	cacheSvc := NewCacheService(newMemCacheRepo(), nil, time.Minute, nil, true)
	ev := makeEval(5, models.AttendancePresent, models.HomeworkCompleted)
	sessions := []models.Session{completedSession("student-1", 1, ev, true)}
	svc := newTestAnalytics(sessions, roster("Aisha Rahman"), cacheSvc)

	first, cacheHit, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)
	assert.False(t, cacheHit)

	second, cacheHit, err := svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, first.AverageGrade, second.AverageGrade)

	// Invalidating the teacher's pattern forces a recompute.
	require.NoError(t, cacheSvc.Invalidate(context.Background(), CacheKeyPattern("teacher-1")))
	_, cacheHit, err = svc.Performance(context.Background(), "teacher-1", models.PeriodWeek)
	require.NoError(t, err)
	assert.False(t, cacheHit)
}
