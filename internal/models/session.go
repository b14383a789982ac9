package models

import "time"

// SessionStatus tracks the lifecycle of a tutoring class.
// Transitions are monotonic: scheduled → in-progress → completed.
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in-progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted:
		return true
	default:
		return false
	}
}

// Session represents one scheduled teacher–student tutoring occurrence.
// It is the unit of mutation in the record store and is delivered to
// subscribers as a full snapshot on every write.
type Session struct {
	ID        string        `json:"id"`
	StudentID string        `json:"studentId"`
	TeacherID string        `json:"teacherId"`
	Date      time.Time     `json:"date"`
	Time      string        `json:"time"`     // local wall-clock, e.g. "16:30"
	Duration  int           `json:"duration"` // minutes
	Subject   string        `json:"subject"`
	Status    SessionStatus `json:"status"`
	ZoomLink  string        `json:"zoomLink"`

	// OnlineTime is set exactly once, when the class enters in-progress.
	// A class completed straight from scheduled never gets one.
	OnlineTime  *time.Time `json:"onlineTime,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Notes holds an optional teacher comment before completion and is
	// overwritten with the evaluation summary string at completion.
	Notes  string `json:"notes"`
	Rating *int   `json:"rating,omitempty"`

	// History is an append-only audit trail; never truncated or reordered.
	History []string `json:"history"`

	// Evaluation is the structured record persisted alongside the notes
	// summary. Legacy records predating it carry only the notes string.
	Evaluation *EvaluationRecord `json:"evaluation,omitempty"`

	// Rev is a monotonic revision assigned by the record store so viewers
	// can discard stale snapshots. Writes are still last-write-wins.
	Rev int64 `json:"rev,omitempty"`
}

// Started reports whether the class has ever left the scheduled state.
func (s *Session) Started() bool {
	return s.Status == SessionStatusInProgress || s.Status == SessionStatusCompleted
}

// Completed reports whether the class reached its terminal state.
func (s *Session) Completed() bool {
	return s.Status == SessionStatusCompleted
}

// Clone returns a deep copy so controller mutations never leak into
// snapshots held by other viewers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.OnlineTime != nil {
		t := *s.OnlineTime
		out.OnlineTime = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.Rating != nil {
		r := *s.Rating
		out.Rating = &r
	}
	out.History = append([]string(nil), s.History...)
	if s.Evaluation != nil {
		ev := *s.Evaluation
		out.Evaluation = &ev
	}
	return &out
}

// SessionFilter scopes session listing queries.
type SessionFilter struct {
	TeacherID string
	StudentID string
	Status    *SessionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
}
