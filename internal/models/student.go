package models

import "time"

// Student represents a child enrolled with the academy.
type Student struct {
	ID           string    `db:"id" json:"id"`
	TeacherID    string    `db:"teacher_id" json:"teacherId"`
	FullName     string    `db:"full_name" json:"fullName"`
	GuardianName *string   `db:"guardian_name" json:"guardianName,omitempty"`
	Timezone     *string   `db:"timezone" json:"timezone,omitempty"`
	Level        *string   `db:"level" json:"level,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	TeacherID string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
