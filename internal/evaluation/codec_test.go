package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/tutoring-api/internal/models"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
)

func TestEncodeProducesFixedGrammar(t *testing.T) {
	ev := models.Evaluation{
		Attendance:    models.AttendancePresent,
		Homework:      models.HomeworkCompleted,
		Performance:   5,
		Memorization:  4,
		Tajweed:       3,
		Participation: 2,
		Notes:         "Great focus today",
	}

	got := Encode(ev)
	want := "Evaluation Summary: Performance=5/5, Memorization=4/5, Tajweed=3/5, Participation=2/5, Attendance=present, Homework=completed. Notes: Great focus today"
	assert.Equal(t, want, got)
}

func TestEncodeEmptyNotes(t *testing.T) {
	ev := models.Evaluation{
		Attendance:    models.AttendanceAbsent,
		Homework:      models.HomeworkNotDone,
		Performance:   1,
		Memorization:  1,
		Tajweed:       1,
		Participation: 1,
	}

	got := Encode(ev)
	assert.Equal(t, "Evaluation Summary: Performance=1/5, Memorization=1/5, Tajweed=1/5, Participation=1/5, Attendance=absent, Homework=not-done. Notes: ", got)
}

func TestRoundTripRecoversRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		ev   models.Evaluation
	}{
		{
			name: "late arrival",
			ev: models.Evaluation{
				Attendance:    models.AttendanceLate,
				Homework:      models.HomeworkPartial,
				Performance:   4,
				Memorization:  5,
				Tajweed:       3,
				Participation: 4,
				Notes:         "needs revision of surah al-mulk",
			},
		},
		{
			name: "absent",
			ev: models.Evaluation{
				Attendance:    models.AttendanceAbsent,
				Homework:      models.HomeworkNotDone,
				Performance:   1,
				Memorization:  2,
				Tajweed:       1,
				Participation: 1,
			},
		},
		{
			name: "perfect class",
			ev: models.Evaluation{
				Attendance:    models.AttendancePresent,
				Homework:      models.HomeworkCompleted,
				Performance:   5,
				Memorization:  5,
				Tajweed:       5,
				Participation: 5,
				Notes:         "mashallah",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, err := Decode(Encode(tc.ev))
			require.NoError(t, err)
			assert.Equal(t, tc.ev.Performance, decoded.Performance)
			assert.Equal(t, tc.ev.Tajweed, decoded.Tajweed)
			assert.Equal(t, tc.ev.Attendance, decoded.AttendanceStatus)
		})
	}
}

func TestDecodeExampleFromStoredRecord(t *testing.T) {
	// Shape as written by older clients; decoding must stay byte-compatible.
	notes := "Evaluation Summary: Performance=4/5, Memorization=3/5, Tajweed=3/5, Participation=5/5, Attendance=late, Homework=partial. Notes: arrived ten minutes late"

	decoded, err := Decode(notes)
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Performance)
	assert.Equal(t, 3, decoded.Tajweed)
	assert.Equal(t, models.AttendanceLate, decoded.AttendanceStatus)
}

func TestDecodeIsCaseInsensitive(t *testing.T) {
	notes := "Evaluation Summary: PERFORMANCE=5/5, Memorization=5/5, TAJWEED=4/5, Participation=5/5, ATTENDANCE=Present, Homework=completed. Notes: "

	decoded, err := Decode(notes)
	require.NoError(t, err)
	assert.Equal(t, 5, decoded.Performance)
	assert.Equal(t, 4, decoded.Tajweed)
	assert.Equal(t, models.AttendancePresent, decoded.AttendanceStatus)
}

func TestDecodeMissingMarker(t *testing.T) {
	_, err := Decode("teacher left a free-form comment before the class")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEvaluationFormat)
}

func TestDecodeMarkerPresentButFieldsMissing(t *testing.T) {
	cases := []struct {
		name  string
		notes string
	}{
		{"no performance", "Evaluation Summary: Tajweed=3/5, Attendance=present. Notes: x"},
		{"no tajweed", "Evaluation Summary: Performance=3/5, Attendance=present. Notes: x"},
		{"no attendance", "Evaluation Summary: Performance=3/5, Memorization=2/5, Tajweed=3/5, Participation=1/5, Homework=partial. Notes: x"},
		{"marker only", "Evaluation Summary:"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.notes)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrEvaluationFormat)
		})
	}
}
