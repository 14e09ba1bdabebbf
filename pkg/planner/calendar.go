package planner

import (
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
)

// WeekWindow returns the Monday-aligned ISO week containing t, in loc
func WeekWindow(t time.Time, loc *time.Location) models.Window {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
	return models.Window{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthWindow returns the calendar month containing t, in loc
func MonthWindow(t time.Time, loc *time.Location) models.Window {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return models.Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// inclusiveWindow turns an inclusive [start, end] range into a half-open window
func inclusiveWindow(start, end time.Time) models.Window {
	return models.Window{Start: start, End: end.Add(time.Nanosecond)}
}
