package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/tutoring-api/internal/evaluation"
	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/recordstore"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
)

func newTestSessionService(t *testing.T) (*SessionService, *recordstore.Memory) {
	t.Helper()
	store := recordstore.NewMemory()
	t.Cleanup(store.Close)
	svc := NewSessionService(store, "classes", nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	return svc, store
}

func scheduleTestClass(t *testing.T, svc *SessionService) *models.Session {
	t.Helper()
	session, err := svc.Schedule(context.Background(), ScheduleSessionRequest{
		StudentID: "student-1",
		TeacherID: "teacher-1",
		Date:      time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		Time:      "16:30",
		Duration:  60,
		Subject:   "Tajweed",
		ZoomLink:  "https://zoom.example/j/1",
	})
	require.NoError(t, err)
	return session
}

func validEvaluation() models.Evaluation {
	return models.Evaluation{
		Attendance:    models.AttendancePresent,
		Homework:      models.HomeworkCompleted,
		Performance:   5,
		Memorization:  4,
		Tajweed:       5,
		Participation: 4,
		Notes:         "Solid recitation",
	}
}

func TestScheduleCreatesScheduledClass(t *testing.T) {
	svc, _ := newTestSessionService(t)

	session := scheduleTestClass(t, svc)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionStatusScheduled, session.Status)
	assert.Nil(t, session.OnlineTime)
	assert.Len(t, session.History, 1)

	loaded, err := svc.Get(context.Background(), "teacher-1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, loaded.ID)
	assert.Equal(t, models.SessionStatusScheduled, loaded.Status)
}

func TestScheduleValidatesPayload(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, err := svc.Schedule(context.Background(), ScheduleSessionRequest{TeacherID: "teacher-1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStartSetsOnlineTimeOnce(t *testing.T) {
	svc, _ := newTestSessionService(t)
	session := scheduleTestClass(t, svc)

	started, err := svc.Start(context.Background(), "teacher-1", session.ID, "Ustadh Karim")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, started.Status)
	require.NotNil(t, started.OnlineTime)
	assert.Len(t, started.History, 2)

	// A second Start must be rejected without touching the record.
	_, err = svc.Start(context.Background(), "teacher-1", session.ID, "Ustadh Karim")
	assert.ErrorIs(t, err, appErrors.ErrSessionAlreadyStarted)

	loaded, err := svc.Get(context.Background(), "teacher-1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, loaded.Status)
	assert.Equal(t, started.OnlineTime.UTC(), loaded.OnlineTime.UTC())
	assert.Len(t, loaded.History, 2)
}

func TestStartUnknownClass(t *testing.T) {
	svc, _ := newTestSessionService(t)

	_, err := svc.Start(context.Background(), "teacher-1", "missing", "Ustadh Karim")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCompleteAfterStart(t *testing.T) {
	svc, _ := newTestSessionService(t)
	session := scheduleTestClass(t, svc)

	_, err := svc.Start(context.Background(), "teacher-1", session.ID, "Ustadh Karim")
	require.NoError(t, err)

	ev := validEvaluation()
	completed, err := svc.Complete(context.Background(), "teacher-1", session.ID, "Ustadh Karim", ev)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, completed.Status)
	assert.NotNil(t, completed.OnlineTime)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.Rating)
	assert.Equal(t, 5, *completed.Rating)
	assert.Equal(t, evaluation.Encode(ev), completed.Notes)
	require.NotNil(t, completed.Evaluation)
	assert.Equal(t, models.EvaluationRecordSchemaVersion, completed.Evaluation.SchemaVersion)
	assert.Equal(t, ev.Tajweed, completed.Evaluation.Tajweed)

	// scheduled + started + completed marker + summary line
	require.Len(t, completed.History, 4)
	assert.Equal(t, evaluation.Encode(ev), completed.History[3])
}

func TestCompleteDirectlyFromScheduled(t *testing.T) {
	svc, _ := newTestSessionService(t)
	session := scheduleTestClass(t, svc)

	completed, err := svc.Complete(context.Background(), "teacher-1", session.ID, "Ustadh Karim", validEvaluation())
	require.NoError(t, err)

	// The start step was skipped, so no onlineTime is ever recorded.
	assert.Equal(t, models.SessionStatusCompleted, completed.Status)
	assert.Nil(t, completed.OnlineTime)
	assert.NotNil(t, completed.CompletedAt)
}

func TestCompleteTwiceRejected(t *testing.T) {
	svc, _ := newTestSessionService(t)
	session := scheduleTestClass(t, svc)

	first, err := svc.Complete(context.Background(), "teacher-1", session.ID, "Ustadh Karim", validEvaluation())
	require.NoError(t, err)

	second := validEvaluation()
	second.Performance = 1
	_, err = svc.Complete(context.Background(), "teacher-1", session.ID, "Ustadh Karim", second)
	assert.ErrorIs(t, err, appErrors.ErrSessionCompleted)

	loaded, err := svc.Get(context.Background(), "teacher-1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.Rating, *loaded.Rating)
	assert.Len(t, loaded.History, len(first.History))
}

func TestCompleteValidatesEvaluation(t *testing.T) {
	svc, _ := newTestSessionService(t)
	session := scheduleTestClass(t, svc)

	invalid := validEvaluation()
	invalid.Performance = 0
	_, err := svc.Complete(context.Background(), "teacher-1", session.ID, "Ustadh Karim", invalid)
	assert.ErrorIs(t, err, appErrors.ErrEvaluationRequired)

	loaded, err := svc.Get(context.Background(), "teacher-1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, loaded.Status)
}

func TestListSortsByDateThenTime(t *testing.T) {
	svc, _ := newTestSessionService(t)

	for _, slot := range []struct {
		date time.Time
		hour string
	}{
		{time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), "10:00"},
		{time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), "18:00"},
		{time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), "09:00"},
	} {
		_, err := svc.Schedule(context.Background(), ScheduleSessionRequest{
			StudentID: "student-1",
			TeacherID: "teacher-1",
			Date:      slot.date,
			Time:      slot.hour,
			Duration:  30,
			Subject:   "Hifz",
		})
		require.NoError(t, err)
	}

	sessions, err := svc.List(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "09:00", sessions[0].Time)
	assert.Equal(t, "18:00", sessions[1].Time)
	assert.Equal(t, "10:00", sessions[2].Time)
}

func TestListUpcomingExcludesCompletedAndPast(t *testing.T) {
	svc, _ := newTestSessionService(t)

	past, err := svc.Schedule(context.Background(), ScheduleSessionRequest{
		StudentID: "student-1",
		TeacherID: "teacher-1",
		Date:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Time:      "10:00",
		Duration:  30,
		Subject:   "Hifz",
	})
	require.NoError(t, err)

	future := scheduleTestClass(t, svc)
	done := scheduleTestClass(t, svc)
	_, err = svc.Complete(context.Background(), "teacher-1", done.ID, "Ustadh Karim", validEvaluation())
	require.NoError(t, err)

	upcoming, err := svc.ListUpcoming(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, future.ID, upcoming[0].ID)
	assert.NotEqual(t, past.ID, upcoming[0].ID)
}
