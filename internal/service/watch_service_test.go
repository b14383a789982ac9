package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/recordstore"
	"github.com/noor-academy/tutoring-api/pkg/jobs"
)

func TestWatchInvalidatesTeacherCacheOnWrite(t *testing.T) {
	store := recordstore.NewMemory()
	t.Cleanup(store.Close)

	cacheRepo := newMemCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	sessions := NewSessionService(store, "classes", nil)
	watch := NewWatchService(store, sessions, cacheSvc, nil, nil)
	t.Cleanup(watch.Close)

	queue := jobs.NewQueue("watch-events", watch.HandleEvent, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	watch.SetQueue(queue)

	require.NoError(t, watch.Watch(context.Background(), "teacher-1"))

	// Seed cached analytics for two teachers.
	require.NoError(t, cacheSvc.Set(context.Background(), CacheKey("teacher-1", models.PeriodWeek), "stale", 0))
	require.NoError(t, cacheSvc.Set(context.Background(), CacheKey("teacher-2", models.PeriodWeek), "fresh", 0))

	_, err := sessions.Schedule(context.Background(), ScheduleSessionRequest{
		StudentID: "student-1",
		TeacherID: "teacher-1",
		Date:      time.Now().AddDate(0, 0, 1),
		Time:      "16:30",
		Duration:  60,
		Subject:   "Tajweed",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !cacheRepo.has(CacheKey("teacher-1", models.PeriodWeek))
	}, 5*time.Second, 20*time.Millisecond)

	// The other teacher's cache is untouched; invalidation is scoped.
	assert.True(t, cacheRepo.has(CacheKey("teacher-2", models.PeriodWeek)))
}

func TestWatchSameTeacherTwiceIsNoop(t *testing.T) {
	store := recordstore.NewMemory()
	t.Cleanup(store.Close)

	sessions := NewSessionService(store, "classes", nil)
	watch := NewWatchService(store, sessions, nil, nil, nil)
	t.Cleanup(watch.Close)

	queue := jobs.NewQueue("watch-events", watch.HandleEvent, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	watch.SetQueue(queue)

	require.NoError(t, watch.Watch(context.Background(), "teacher-1"))
	require.NoError(t, watch.Watch(context.Background(), "teacher-1"))

	watch.mu.Lock()
	count := len(watch.watched)
	watch.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestUnwatchStopsTracking(t *testing.T) {
	store := recordstore.NewMemory()
	t.Cleanup(store.Close)

	sessions := NewSessionService(store, "classes", nil)
	watch := NewWatchService(store, sessions, nil, nil, nil)
	t.Cleanup(watch.Close)

	queue := jobs.NewQueue("watch-events", watch.HandleEvent, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	watch.SetQueue(queue)

	require.NoError(t, watch.Watch(context.Background(), "teacher-1"))
	watch.Unwatch("teacher-1")

	watch.mu.Lock()
	count := len(watch.watched)
	watch.mu.Unlock()
	assert.Zero(t, count)
}
