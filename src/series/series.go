// Package series reshapes raw aggregation payloads into the derived series the
// charts consume: grouped per-day totals, cumulative growth sums and pass-rate
// percentages. Every function here is pure and total: identical inputs yield
// identical outputs, empty inputs yield empty outputs, nothing ever fails.
package series

import "math"

// RefKind tags what a chart point drills down into.
type RefKind int

const (
	RefNone RefKind = iota
	RefDate
	RefWeek
	RefMonth
)

// PointRef is the structured origin of one chart point, carried alongside its
// human-readable label so drill-down never has to re-parse label text.
type PointRef struct {
	Kind  RefKind
	Date  string // YYYY-MM-DD when Kind == RefDate
	Week  int    // 1-based block index when Kind == RefWeek
	Month int    // 1..12 when Kind == RefMonth
}

// DateRef, WeekRef and MonthRef build PointRefs for the three drill targets.
func DateRef(date string) PointRef { return PointRef{Kind: RefDate, Date: date} }
func WeekRef(week int) PointRef    { return PointRef{Kind: RefWeek, Week: week} }
func MonthRef(month int) PointRef  { return PointRef{Kind: RefMonth, Month: month} }

// Derived is the render-ready shape of one aggregation payload. It is
// recomputed from scratch on every fetch and never cached across fetches.
type Derived struct {
	Labels  []string
	Pass    []int
	Fail    []int
	RatePct []int
	Refs    []PointRef // empty when the chart has no finer granularity
}

// Derive pairs a payload with per-point drill-down refs. refs may be nil for
// charts that do not drill anywhere; a short refs slice is padded with RefNone
// so Refs always matches Labels in length.
func Derive(labels []string, pass, fail []int, refs []PointRef) Derived {
	d := Derived{
		Labels:  labels,
		Pass:    pass,
		Fail:    fail,
		RatePct: Rate(pass, fail),
		Refs:    make([]PointRef, len(labels)),
	}
	copy(d.Refs, refs)
	return d
}

// Rate computes round(100*pass/(pass+fail)) per bucket, with empty buckets
// reported as 0 rather than NaN. Extra elements in the longer slice are
// ignored.
func Rate(pass, fail []int) []int {
	n := len(pass)
	if len(fail) < n {
		n = len(fail)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		total := pass[i] + fail[i]
		if total <= 0 {
			continue
		}
		out[i] = int(math.Round(100 * float64(pass[i]) / float64(total)))
	}
	return out
}

// Cumulative returns running prefix sums in label order.
func Cumulative(vals []int) []int {
	out := make([]int, len(vals))
	sum := 0
	for i, v := range vals {
		sum += v
		out[i] = sum
	}
	return out
}

// Sum totals one counter array.
func Sum(vals []int) int {
	s := 0
	for _, v := range vals {
		s += v
	}
	return s
}

// GroupedCounts collapses seven per-day hourly payloads into one pass/fail
// scalar per day, preserving Mon..Sun order. A day whose arrays are empty
// (e.g. zero-filled after a failed sub-fetch) contributes zeros.
func GroupedCounts(pass, fail [7][]int) (passPerDay, failPerDay [7]int) {
	for i := 0; i < 7; i++ {
		passPerDay[i] = Sum(pass[i])
		failPerDay[i] = Sum(fail[i])
	}
	return passPerDay, failPerDay
}
