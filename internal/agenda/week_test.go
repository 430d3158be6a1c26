package agenda_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsprackett/agenda-live/internal/agenda"
)

func TestWeekOf(t *testing.T) {
	// Wednesday, Monday, Sunday, and a week spanning the new year.
	cases := []struct {
		day    time.Time
		inicio string
		fim    string
	}{
		{time.Date(2026, 5, 6, 15, 30, 0, 0, time.UTC), "2026-05-04", "2026-05-10"},
		{time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), "2026-05-04", "2026-05-10"},
		{time.Date(2026, 5, 10, 23, 59, 0, 0, time.UTC), "2026-05-04", "2026-05-10"},
		{time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), "2025-12-29", "2026-01-04"},
	}
	for _, tc := range cases {
		w := agenda.WeekOf(tc.day)
		assert.Equal(t, tc.inicio, w.Inicio(), tc.day.String())
		assert.Equal(t, tc.fim, w.Fim(), tc.day.String())
	}
}

func TestWeekNavigation(t *testing.T) {
	w := agenda.WeekOf(time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-05-11", w.Next().Inicio())
	assert.Equal(t, "2026-04-27", w.Prev().Inicio())
	assert.Equal(t, w, w.Next().Prev())
}

func TestParseWeek(t *testing.T) {
	w, err := agenda.ParseWeek("2026-05-07")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04", w.Inicio())

	_, err = agenda.ParseWeek("07/05/2026")
	assert.Error(t, err)
}
