// Package calendarx holds the pure calendar arithmetic the dashboard navigates
// by: Monday-aligned week windows for the day/week charts and the fixed 7-day
// month blocks the upstream aggregation service groups by.
//
// The two partitioning rules deliberately disagree: a "Tuần N" month block
// always starts at day (N-1)*7+1 regardless of weekday, while a week window is
// always Monday..Sunday. Both sides of the system depend on that exact split,
// so neither rule may be "fixed" to match the other.
package calendarx

import "time"

// DateLayout is the wire format for date path segments (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// WeekdayShort are the Monday-first weekday labels used on the grouped
// day-of-week chart, in the upstream service's locale.
var WeekdayShort = [7]string{"T2", "T3", "T4", "T5", "T6", "T7", "CN"}

// Week is a Monday-aligned 7-day window containing some anchor date.
type Week struct {
	Start time.Time
	Days  [7]time.Time
}

// midnight strips the clock part so week math never straddles a DST boundary.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekOf returns the Monday-first week window containing date. Go's
// time.Weekday has Sunday=0, which maps to an offset of 6: a Sunday anchor
// belongs to the week that started the preceding Monday.
func WeekOf(date time.Time) Week {
	d := midnight(date)
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDate(0, 0, -offset)
	var w Week
	w.Start = start
	for i := 0; i < 7; i++ {
		w.Days[i] = start.AddDate(0, 0, i)
	}
	return w
}

// WeekdayLabel returns the Monday-first short label for date's weekday.
func WeekdayLabel(date time.Time) string {
	return WeekdayShort[(int(date.Weekday())+6)%7]
}

// WeekIndexInMonth returns the 1-based fixed 7-day block that date's day of
// month falls into. Blocks start at day 1; the final block of a month may be
// shorter than 7 days (day 29 of a 29-day February is block 5, not block 4).
func WeekIndexInMonth(date time.Time) int {
	return (date.Day()-1)/7 + 1
}

// DaysInMonth returns the Gregorian month length, leap-year aware.
func DaysInMonth(year, month int) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MaxWeekIndex returns the number of fixed 7-day blocks in the month,
// i.e. the highest valid week index for selector widgets.
func MaxWeekIndex(year, month int) int {
	return (DaysInMonth(year, month) + 6) / 7
}

// WeekBlockRange returns the first and last day of month covered by the given
// block. The end is capped at the month length, never extended past 7 days.
func WeekBlockRange(year, month, weekIndex int) (startDay, endDay int) {
	startDay = (weekIndex-1)*7 + 1
	endDay = startDay + 6
	if last := DaysInMonth(year, month); endDay > last {
		endDay = last
	}
	return startDay, endDay
}

// FormatDate renders a date as a wire-format path segment.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// ParseDate parses a wire-format date segment.
func ParseDate(s string) (time.Time, error) { return time.Parse(DateLayout, s) }

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
