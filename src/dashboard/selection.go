package dashboard

import (
	"sync"
	"time"

	"github.com/huypokedt/chart-web/src/calendarx"
)

// Period is the active aggregation granularity. Exactly one is active.
type Period int

const (
	PeriodDay Period = iota
	PeriodWeek
	PeriodMonth
	PeriodYear
)

func (p Period) String() string {
	switch p {
	case PeriodDay:
		return "day"
	case PeriodWeek:
		return "week"
	case PeriodMonth:
		return "month"
	case PeriodYear:
		return "year"
	}
	return "unknown"
}

// ParsePeriod maps a wire name back to a Period.
func ParsePeriod(s string) (Period, bool) {
	switch s {
	case "day":
		return PeriodDay, true
	case "week":
		return PeriodWeek, true
	case "month":
		return PeriodMonth, true
	case "year":
		return PeriodYear, true
	}
	return PeriodDay, false
}

// Selection is the single current viewing context. Date is the anchor;
// Year/Month/WeekIndex are derived-but-cached for the selector widgets and are
// kept consistent with Date whenever Date moves.
type Selection struct {
	Period    Period
	Date      time.Time
	Year      int
	Month     int // 1..12
	WeekIndex int // 1-based fixed 7-day block
	Device    DeviceFilter
}

// State owns the Selection for the session. It is created once at startup and
// mutated in place through the operations below; every mutation re-establishes
// the weekIndex range invariant before observers see the new value.
type State struct {
	mu       sync.Mutex
	sel      Selection
	onChange func(Selection)
}

// NewState anchors a fresh session selection to now, in the Day period.
func NewState(now time.Time) *State {
	s := &State{}
	s.sel = Selection{
		Period:    PeriodDay,
		Date:      now,
		Year:      now.Year(),
		Month:     int(now.Month()),
		WeekIndex: calendarx.WeekIndexInMonth(now),
		Device:    AllDevices,
	}
	return s
}

// Subscribe registers the single change observer (the view coordinator).
// The observer runs after the mutation completes, outside any lock.
func (s *State) Subscribe(fn func(Selection)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns a copy of the current selection.
func (s *State) Snapshot() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// clampWeek forces WeekIndex into [1, blocks-in-month]. Callers that change
// Year/Month may leave a stale index behind; it snaps to the last valid block.
func clampWeek(sel *Selection) {
	max := calendarx.MaxWeekIndex(sel.Year, sel.Month)
	if sel.WeekIndex < 1 {
		sel.WeekIndex = 1
	}
	if sel.WeekIndex > max {
		sel.WeekIndex = max
	}
}

func (s *State) mutate(fn func(*Selection)) Selection {
	s.mu.Lock()
	fn(&s.sel)
	clampWeek(&s.sel)
	sel := s.sel
	notify := s.onChange
	s.mu.Unlock()
	if notify != nil {
		notify(sel)
	}
	return sel
}

// SetFromDate moves the anchor date and recomputes the cached selector fields.
// The active period is unchanged.
func (s *State) SetFromDate(date time.Time) Selection {
	return s.mutate(func(sel *Selection) {
		sel.Date = date
		sel.Year = date.Year()
		sel.Month = int(date.Month())
		sel.WeekIndex = calendarx.WeekIndexInMonth(date)
	})
}

// SetPeriod switches the active granularity without touching the anchor.
func (s *State) SetPeriod(p Period) Selection {
	return s.mutate(func(sel *Selection) { sel.Period = p })
}

// SetWeek is the selector-driven week choice.
func (s *State) SetWeek(year, month, weekIndex int) Selection {
	return s.mutate(func(sel *Selection) {
		sel.Year = year
		sel.Month = month
		sel.WeekIndex = weekIndex
	})
}

// SetMonth is the selector-driven month choice. WeekIndex is left alone apart
// from the range clamp, so the caller can rebuild the week option list.
func (s *State) SetMonth(year, month int) Selection {
	return s.mutate(func(sel *Selection) {
		sel.Year = year
		sel.Month = month
	})
}

// SetYear is the selector-driven year choice.
func (s *State) SetYear(year int) Selection {
	return s.mutate(func(sel *Selection) { sel.Year = year })
}

// SetDevice updates the device filter; period and anchor stay put.
func (s *State) SetDevice(f DeviceFilter) Selection {
	return s.mutate(func(sel *Selection) { sel.Device = f })
}
