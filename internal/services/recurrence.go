// Package services implements the expense materialization engine: recurrence
// arithmetic, due resolution, idempotent confirmation, receipt reconciliation
// and the saga-style ingest write path.
package services

import (
	"time"

	"kanakku/internal/core"
)

// DueDates returns every calendar date the template is due on, up to and
// including asOf, in ascending order. Recurrence resumes the month after the
// watermark when one is set, otherwise at the start date. Paused templates
// yield nothing.
func DueDates(tpl core.RecurringTemplate, asOf core.Date) []core.Date {
	if tpl.Status != core.StatusActive {
		return nil
	}
	if tpl.StartDate.IsZero() || asOf.IsZero() {
		return nil
	}

	year, month := tpl.StartDate.Year(), tpl.StartDate.MonthIndex()
	if !tpl.LastProcessed.IsZero() {
		year, month = tpl.LastProcessed.Year(), tpl.LastProcessed.MonthIndex()
		year, month = nextMonth(year, month)
	}

	var out []core.Date
	for !afterMonth(year, month, asOf) {
		day := effectiveDay(tpl.DayOfMonth, year, month)
		d := core.NewDate(year, month, day)
		if !d.After(asOf.Time) && !d.Before(tpl.StartDate.Time) {
			out = append(out, d)
		}
		year, month = nextMonth(year, month)
	}
	return out
}

// isOccurrence reports whether date is a calendar instance the template
// produces at all: an active template, on or after the start date, on the
// month's effective (clamped) day. Unlike DueDates it ignores the watermark,
// so already-processed occurrences still match.
func isOccurrence(tpl core.RecurringTemplate, date core.Date) bool {
	if tpl.Status != core.StatusActive {
		return false
	}
	if date.IsZero() || date.Before(tpl.StartDate.Time) {
		return false
	}
	return date.Day() == effectiveDay(tpl.DayOfMonth, date.Year(), date.MonthIndex())
}

// effectiveDay clamps the template day to the length of the month, so day 31
// lands on Feb 28/29 and Apr 30.
func effectiveDay(day, year, month int) int {
	last := lastDayOfMonth(year, month)
	if day > last {
		return last
	}
	return day
}

func lastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func nextMonth(year, month int) (int, int) {
	month++
	if month > 12 {
		return year + 1, 1
	}
	return year, month
}

// afterMonth reports whether (year, month) lies past asOf's calendar month.
func afterMonth(year, month int, asOf core.Date) bool {
	if year != asOf.Year() {
		return year > asOf.Year()
	}
	return month > asOf.MonthIndex()
}
