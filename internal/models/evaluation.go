package models

// EvaluationAttendance classifies the student's presence in a class.
type EvaluationAttendance string

const (
	AttendancePresent EvaluationAttendance = "present"
	AttendanceAbsent  EvaluationAttendance = "absent"
	AttendanceLate    EvaluationAttendance = "late"
)

// Valid returns true when the attendance value is supported.
func (a EvaluationAttendance) Valid() bool {
	switch a {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// HomeworkStatus classifies homework completion.
type HomeworkStatus string

const (
	HomeworkCompleted HomeworkStatus = "completed"
	HomeworkPartial   HomeworkStatus = "partial"
	HomeworkNotDone   HomeworkStatus = "not-done"
)

// Valid returns true when the homework value is supported.
func (h HomeworkStatus) Valid() bool {
	switch h {
	case HomeworkCompleted, HomeworkPartial, HomeworkNotDone:
		return true
	default:
		return false
	}
}

// Evaluation is the structured teacher assessment supplied when a class
// is completed. It is the input to the summary codec.
type Evaluation struct {
	Attendance    EvaluationAttendance `json:"attendance" validate:"required,oneof=present absent late"`
	Homework      HomeworkStatus       `json:"homework" validate:"required,oneof=completed partial not-done"`
	Performance   int                  `json:"performance" validate:"required,min=1,max=5"`
	Memorization  int                  `json:"memorization" validate:"required,min=1,max=5"`
	Tajweed       int                  `json:"tajweed" validate:"required,min=1,max=5"`
	Participation int                  `json:"participation" validate:"required,min=1,max=5"`
	Notes         string               `json:"notes"`
	NextLesson    string               `json:"nextLesson"`
}

// EvaluationRecord is the versioned structured form persisted inside the
// session record, alongside the prose summary kept for compatibility.
type EvaluationRecord struct {
	SchemaVersion int `json:"schemaVersion"`
	Evaluation
}

// EvaluationRecordSchemaVersion is the current structured schema version.
const EvaluationRecordSchemaVersion = 1

// DecodedEvaluation carries the fields the legacy summary decoder is
// required to recover. Everything else in the summary is display-only.
type DecodedEvaluation struct {
	Performance      int                  `json:"performance"`
	Tajweed          int                  `json:"tajweed"`
	AttendanceStatus EvaluationAttendance `json:"attendanceStatus"`
}
