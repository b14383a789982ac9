// Package evaluation implements the summary-string codec used to persist
// structured class evaluations inside the session notes field.
//
// The encoded form is a versioned wire format: field order, names and
// punctuation are fixed, and stored records depend on them byte-for-byte.
// Do not change the grammar; add a new schema version instead.
package evaluation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noor-academy/tutoring-api/internal/models"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
)

// Marker identifies a notes string that carries an encoded evaluation.
const Marker = "Evaluation Summary:"

var (
	performanceRe = regexp.MustCompile(`(?i)Performance=(\d)/5`)
	tajweedRe     = regexp.MustCompile(`(?i)Tajweed=(\d)/5`)
	attendanceRe  = regexp.MustCompile(`(?i)Attendance=([A-Za-z][A-Za-z ]*?)[.,]`)
)

// Encode flattens an evaluation into the single-line summary persisted in
// the session notes field.
func Encode(ev models.Evaluation) string {
	return fmt.Sprintf(
		"%s Performance=%d/5, Memorization=%d/5, Tajweed=%d/5, Participation=%d/5, Attendance=%s, Homework=%s. Notes: %s",
		Marker,
		ev.Performance,
		ev.Memorization,
		ev.Tajweed,
		ev.Participation,
		ev.Attendance,
		ev.Homework,
		ev.Notes,
	)
}

// Decode recovers the scores the aggregator depends on from a notes
// string. It fails as a whole when the marker is absent or any required
// capture is missing; partial decodes are never surfaced.
func Decode(notes string) (models.DecodedEvaluation, error) {
	var out models.DecodedEvaluation

	if !strings.Contains(notes, Marker) {
		return out, appErrors.Clone(appErrors.ErrEvaluationFormat, "summary marker missing")
	}

	perf := performanceRe.FindStringSubmatch(notes)
	if perf == nil {
		return out, appErrors.Clone(appErrors.ErrEvaluationFormat, "performance score missing")
	}
	taj := tajweedRe.FindStringSubmatch(notes)
	if taj == nil {
		return out, appErrors.Clone(appErrors.ErrEvaluationFormat, "tajweed score missing")
	}
	att := attendanceRe.FindStringSubmatch(notes)
	if att == nil {
		return out, appErrors.Clone(appErrors.ErrEvaluationFormat, "attendance status missing")
	}

	p, err := strconv.Atoi(perf[1])
	if err != nil {
		return out, appErrors.Wrap(err, appErrors.ErrEvaluationFormat.Code, appErrors.ErrEvaluationFormat.Status, "performance score malformed")
	}
	t, err := strconv.Atoi(taj[1])
	if err != nil {
		return out, appErrors.Wrap(err, appErrors.ErrEvaluationFormat.Code, appErrors.ErrEvaluationFormat.Status, "tajweed score malformed")
	}

	out.Performance = p
	out.Tajweed = t
	out.AttendanceStatus = models.EvaluationAttendance(strings.ToLower(strings.TrimSpace(att[1])))
	return out, nil
}
