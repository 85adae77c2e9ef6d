// Package timeutil provides the date arithmetic used when comparing
// transaction instants against bank-side civil dates.
package timeutil

import "time"

// CivilDate truncates an instant to its civil date, rebuilt at UTC midnight.
// The date components are taken in the instant's own location.
func CivilDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute whole-day distance between the civil
// dates of a and b. Time-of-day is discarded before subtraction, so
// 23:59 on Monday and 00:01 on Tuesday are one day apart.
func DaysBetween(a, b time.Time) int {
	diff := CivilDate(a).Sub(CivilDate(b))
	days := int(diff.Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// HoursBetween returns the absolute distance between two instants in hours.
func HoursBetween(a, b time.Time) float64 {
	diff := a.Sub(b).Hours()
	if diff < 0 {
		return -diff
	}
	return diff
}

// LiftDate raises a civil date to start-of-day in the reference instant's
// zone. Settlement dates carry no time-of-day, so window checks against a
// zoned transaction timestamp lift the date into that zone first.
func LiftDate(d, ref time.Time) time.Time {
	year, month, day := d.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, ref.Location())
}
