package dashboard

import (
	"testing"
	"time"
)

func TestNewStateAnchorsToToday(t *testing.T) {
	now := time.Date(2024, time.February, 29, 10, 30, 0, 0, time.UTC)
	s := NewState(now)
	sel := s.Snapshot()
	if sel.Period != PeriodDay {
		t.Fatalf("startup period = %s, want day", sel.Period)
	}
	if sel.Year != 2024 || sel.Month != 2 || sel.WeekIndex != 5 {
		t.Fatalf("derived fields = %d/%d week %d, want 2024/2 week 5", sel.Year, sel.Month, sel.WeekIndex)
	}
}

func TestSetFromDateRecomputesDerivedFields(t *testing.T) {
	s := NewState(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	s.SetPeriod(PeriodWeek)
	sel := s.SetFromDate(time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC))
	if sel.Year != 2024 || sel.Month != 7 || sel.WeekIndex != 3 {
		t.Fatalf("derived = %d/%d week %d, want 2024/7 week 3", sel.Year, sel.Month, sel.WeekIndex)
	}
	if sel.Period != PeriodWeek {
		t.Fatalf("SetFromDate changed period to %s", sel.Period)
	}
}

func TestSetMonthClampsWeekIndex(t *testing.T) {
	// anchor in block 5 of a 31-day month, then move to a 28-day February
	s := NewState(time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC))
	if got := s.Snapshot().WeekIndex; got != 5 {
		t.Fatalf("precondition: week index = %d, want 5", got)
	}
	sel := s.SetMonth(2023, 2)
	if sel.WeekIndex != 4 {
		t.Fatalf("week index after move to 2023-02 = %d, want clamp to 4", sel.WeekIndex)
	}
}

func TestSetDeviceLeavesSelectionAlone(t *testing.T) {
	s := NewState(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	before := s.Snapshot()
	sel := s.SetDevice(DeviceFilter("máy 2"))
	if sel.Device != DeviceFilter("máy 2") {
		t.Fatalf("device = %q", sel.Device)
	}
	sel.Device = before.Device
	if sel != before {
		t.Fatalf("SetDevice touched other fields: %+v vs %+v", sel, before)
	}
}

func TestSubscribeSeesClampedSelection(t *testing.T) {
	s := NewState(time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC))
	var seen []Selection
	s.Subscribe(func(sel Selection) { seen = append(seen, sel) })
	s.SetWeek(2023, 2, 9)
	if len(seen) != 1 {
		t.Fatalf("observer calls = %d, want 1", len(seen))
	}
	if seen[0].WeekIndex != 4 {
		t.Fatalf("observer saw unclamped week index %d", seen[0].WeekIndex)
	}
}
