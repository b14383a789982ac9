package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noor-academy/tutoring-api/internal/evaluation"
	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/recordstore"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
)

// SessionService owns the class lifecycle: scheduling, the
// scheduled → in-progress → completed transitions, and the side-effecting
// fields each transition writes. All mutations go through the record
// store; a failed store call leaves no local state behind, and fresher
// snapshots received via subscriptions always win over local intent.
type SessionService struct {
	store     recordstore.Store
	keyPrefix string
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store recordstore.Store, keyPrefix string, logger *zap.Logger) *SessionService {
	if keyPrefix == "" {
		keyPrefix = "classes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		store:     store,
		keyPrefix: keyPrefix,
		validator: validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// CollectionKey returns the store collection holding a teacher's classes.
func (s *SessionService) CollectionKey(teacherID string) string {
	return fmt.Sprintf("teachers/%s/%s", teacherID, s.keyPrefix)
}

func (s *SessionService) recordKey(teacherID, sessionID string) string {
	return s.CollectionKey(teacherID) + "/" + sessionID
}

// ScheduleSessionRequest carries the fields needed to create a class.
type ScheduleSessionRequest struct {
	StudentID string    `json:"studentId" validate:"required"`
	TeacherID string    `json:"teacherId" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	Time      string    `json:"time" validate:"required"`
	Duration  int       `json:"duration" validate:"required,min=15,max=240"`
	Subject   string    `json:"subject" validate:"required"`
	ZoomLink  string    `json:"zoomLink"`
	Notes     string    `json:"notes"`
}

// Schedule creates a new class record in the scheduled state.
func (s *SessionService) Schedule(ctx context.Context, req ScheduleSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	now := s.now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		TeacherID: req.TeacherID,
		Date:      req.Date,
		Time:      req.Time,
		Duration:  req.Duration,
		Subject:   req.Subject,
		Status:    models.SessionStatusScheduled,
		ZoomLink:  req.ZoomLink,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
		History:   []string{fmt.Sprintf("Class scheduled for %s at %s (%s)", req.Date.Format("2006-01-02"), req.Time, now.Format(time.RFC3339))},
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode class record")
	}
	if err := s.store.Set(ctx, s.recordKey(req.TeacherID, session.ID), payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "schedule class")
	}

	s.logger.Info("class scheduled",
		zap.String("class_id", session.ID),
		zap.String("teacher_id", req.TeacherID),
		zap.String("student_id", req.StudentID))
	return session, nil
}

// Get fetches a single class record.
func (s *SessionService) Get(ctx context.Context, teacherID, sessionID string) (*models.Session, error) {
	raw, err := s.store.Get(ctx, s.recordKey(teacherID, sessionID))
	if errors.Is(err, recordstore.ErrKeyNotFound) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "load class")
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode class record")
	}
	return &session, nil
}

// List returns every class record for a teacher.
func (s *SessionService) List(ctx context.Context, teacherID string) ([]models.Session, error) {
	values, err := s.store.List(ctx, s.CollectionKey(teacherID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "list classes")
	}

	sessions := make([]models.Session, 0, len(values))
	for key, raw := range values {
		var session models.Session
		if err := json.Unmarshal(raw, &session); err != nil {
			s.logger.Warn("skipping undecodable class record", zap.String("key", key), zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].Date.Equal(sessions[j].Date) {
			return sessions[i].Date.Before(sessions[j].Date)
		}
		return sessions[i].Time < sessions[j].Time
	})
	return sessions, nil
}

// ListUpcoming returns classes that are not yet completed and fall on or
// after the start of today, soonest first.
func (s *SessionService) ListUpcoming(ctx context.Context, teacherID string) ([]models.Session, error) {
	sessions, err := s.List(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	upcoming := make([]models.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.Completed() {
			continue
		}
		if session.Date.Before(today) {
			continue
		}
		upcoming = append(upcoming, session)
	}
	return upcoming, nil
}

// Start transitions a class from scheduled to in-progress. Re-invoking
// Start on a class that already left the scheduled state is rejected
// without mutating the record; this is the only transition that sets
// onlineTime.
func (s *SessionService) Start(ctx context.Context, teacherID, sessionID, actor string) (*models.Session, error) {
	var updated *models.Session

	err := s.store.Update(ctx, s.recordKey(teacherID, sessionID), func(current []byte) ([]byte, error) {
		var session models.Session
		if err := json.Unmarshal(current, &session); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode class record")
		}

		// Guard against the freshest snapshot, not local intent: another
		// actor may have raced us through the same transition.
		switch session.Status {
		case models.SessionStatusInProgress:
			return nil, appErrors.ErrSessionAlreadyStarted
		case models.SessionStatusCompleted:
			return nil, appErrors.ErrSessionCompleted
		}

		now := s.now().UTC()
		session.Status = models.SessionStatusInProgress
		session.OnlineTime = &now
		session.UpdatedAt = now
		session.History = append(session.History, fmt.Sprintf("Class started by %s at %s", actor, now.Format(time.RFC3339)))

		updated = &session
		return json.Marshal(&session)
	})
	if err != nil {
		return nil, s.mapStoreErr(err, "start class")
	}

	s.logger.Info("class started",
		zap.String("class_id", sessionID),
		zap.String("teacher_id", teacherID),
		zap.String("actor", actor))
	return updated, nil
}

// Complete transitions a class to completed and records the evaluation.
// The transition is allowed from in-progress or directly from scheduled;
// a teacher may forget to press start, and the record then carries no
// onlineTime. The notes field is overwritten with the summary string and
// the structured evaluation is persisted alongside it.
func (s *SessionService) Complete(ctx context.Context, teacherID, sessionID, actor string, ev models.Evaluation) (*models.Session, error) {
	if err := s.validator.Struct(ev); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrEvaluationRequired.Code, appErrors.ErrEvaluationRequired.Status, "invalid evaluation")
	}

	var updated *models.Session

	err := s.store.Update(ctx, s.recordKey(teacherID, sessionID), func(current []byte) ([]byte, error) {
		var session models.Session
		if err := json.Unmarshal(current, &session); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode class record")
		}

		if session.Completed() {
			return nil, appErrors.ErrSessionCompleted
		}

		now := s.now().UTC()
		summary := evaluation.Encode(ev)
		rating := ev.Performance

		session.Status = models.SessionStatusCompleted
		session.CompletedAt = &now
		session.UpdatedAt = now
		session.Rating = &rating
		session.Notes = summary
		session.Evaluation = &models.EvaluationRecord{
			SchemaVersion: models.EvaluationRecordSchemaVersion,
			Evaluation:    ev,
		}
		session.History = append(session.History,
			fmt.Sprintf("Class completed by %s at %s", actor, now.Format(time.RFC3339)),
			summary,
		)

		updated = &session
		return json.Marshal(&session)
	})
	if err != nil {
		return nil, s.mapStoreErr(err, "complete class")
	}

	s.logger.Info("class completed",
		zap.String("class_id", sessionID),
		zap.String("teacher_id", teacherID),
		zap.Int("rating", ev.Performance))
	return updated, nil
}

func (s *SessionService) mapStoreErr(err error, op string) error {
	if errors.Is(err, recordstore.ErrKeyNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, op)
}
