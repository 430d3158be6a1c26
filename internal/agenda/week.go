package agenda

import (
	"fmt"
	"time"
)

const dateLayout = time.DateOnly

// Week is the Monday..Sunday range the agenda shows.
type Week struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the week containing t.
func WeekOf(t time.Time) Week {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // days since Monday
	start := day.AddDate(0, 0, -offset)
	return Week{Start: start, End: start.AddDate(0, 0, 6)}
}

// ParseWeek returns the week starting on the given YYYY-MM-DD date.
func ParseWeek(start string) (Week, error) {
	t, err := time.ParseInLocation(dateLayout, start, time.Local)
	if err != nil {
		return Week{}, fmt.Errorf("parse week start: %w", err)
	}
	return WeekOf(t), nil
}

func (w Week) Next() Week { return WeekOf(w.Start.AddDate(0, 0, 7)) }
func (w Week) Prev() Week { return WeekOf(w.Start.AddDate(0, 0, -7)) }

func (w Week) Inicio() string { return w.Start.Format(dateLayout) }
func (w Week) Fim() string    { return w.End.Format(dateLayout) }

func (w Week) String() string {
	return w.Start.Format("02/01") + " – " + w.End.Format("02/01/2006")
}
