package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noor-academy/tutoring-api/internal/recordstore"
	"github.com/noor-academy/tutoring-api/pkg/jobs"
)

// WatchService keeps derived analytics converged with the record store.
// It subscribes to each watched teacher's class collection, not the whole
// store, so a write only invalidates the caches of the teacher it
// belongs to. Snapshots are handed to the jobs queue so subscriber
// callbacks never block the store's fan-out.
type WatchService struct {
	store    recordstore.Store
	sessions *SessionService
	cache    *CacheService
	metrics  *MetricsService
	queue    *jobs.Queue
	logger   *zap.Logger

	// Subscriptions must outlive the request that triggered them, so
	// they are bound to this context rather than the caller's.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watched map[string]recordstore.Unsubscribe
}

// NewWatchService constructs a WatchService. The queue handler must be
// wired to HandleEvent.
func NewWatchService(store recordstore.Store, sessions *SessionService, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *WatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WatchService{
		store:    store,
		sessions: sessions,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		watched:  make(map[string]recordstore.Unsubscribe),
	}
}

// SetQueue attaches the dispatch queue. Must be called before Watch.
func (s *WatchService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// storeEvent is the queue payload for one fanned-out snapshot.
type storeEvent struct {
	TeacherID string
	Snapshot  recordstore.Snapshot
}

// Watch subscribes to a teacher's class collection. Watching the same
// teacher twice is a no-op. The subscription lives until Unwatch or
// Close regardless of the caller's context.
func (s *WatchService) Watch(_ context.Context, teacherID string) error {
	s.mu.Lock()
	if _, ok := s.watched[teacherID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	collection := s.sessions.CollectionKey(teacherID) + "/"
	unsub, err := s.store.Subscribe(s.ctx, collection, func(snap recordstore.Snapshot) {
		if s.queue == nil {
			return
		}
		err := s.queue.Enqueue(jobs.Job{
			ID:      snap.Key,
			Type:    "store-event",
			Payload: storeEvent{TeacherID: teacherID, Snapshot: snap},
		})
		if err != nil {
			s.logger.Warn("dropping store event", zap.String("key", snap.Key), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	// A concurrent Watch may have won; keep the first subscription.
	if _, ok := s.watched[teacherID]; ok {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.watched[teacherID] = unsub
	s.mu.Unlock()

	s.logger.Info("watching teacher classes", zap.String("teacher_id", teacherID))
	return nil
}

// Unwatch detaches a teacher subscription.
func (s *WatchService) Unwatch(teacherID string) {
	s.mu.Lock()
	unsub, ok := s.watched[teacherID]
	if ok {
		delete(s.watched, teacherID)
	}
	s.mu.Unlock()
	if ok {
		unsub()
	}
}

// Close detaches every subscription.
func (s *WatchService) Close() {
	s.cancel()
	s.mu.Lock()
	subs := make([]recordstore.Unsubscribe, 0, len(s.watched))
	for id, unsub := range s.watched {
		subs = append(subs, unsub)
		delete(s.watched, id)
	}
	s.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
}

// HandleEvent is the jobs.Handler for store events: it drops the
// affected teacher's cached analytics so the next read recomputes from
// the freshest snapshots.
func (s *WatchService) HandleEvent(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(storeEvent)
	if !ok {
		s.logger.Warn("unexpected watch payload", zap.String("job", job.ID))
		return nil
	}

	if s.metrics != nil {
		kind := "write"
		if event.Snapshot.Deleted {
			kind = "delete"
		}
		s.metrics.ObserveStoreEvent(kind)
	}

	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, CacheKeyPattern(event.TeacherID)); err != nil {
		return err
	}
	return nil
}
