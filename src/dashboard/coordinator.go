package dashboard

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/huypokedt/chart-web/src/calendarx"
	"github.com/huypokedt/chart-web/src/series"
)

// ChartTarget names one chart surface kept by the coordinator. Each target has
// its own stale-guard generation counter.
type ChartTarget string

const (
	ChartDayHourly ChartTarget = "day_hourly"  // 24 hourly buckets for the anchor date
	ChartDayWeek   ChartTarget = "day_week"    // grouped Mon..Sun bars around the anchor date
	ChartWeek      ChartTarget = "week_growth" // cumulative growth over one month block
	ChartMonth     ChartTarget = "month_blocks"
	ChartYear      ChartTarget = "year_months"
)

// errPlaceholder is the localized label shown on a chart whose load failed.
// Prior chart data stays on screen; only the label flips.
const errPlaceholder = "Lỗi tải dữ liệu"

// RenderKind selects the visual treatment for a derived series.
type RenderKind int

const (
	KindHourlyBars RenderKind = iota
	KindGroupedBars
	KindGrowthArea
	KindCountsWithRate
)

// Renderer is the charting capability: render a derived series under a kind
// and title, return encoded image bytes.
type Renderer interface {
	Render(kind RenderKind, title string, d series.Derived) ([]byte, error)
}

// Fetcher is the slice of the data-service client the pipelines use.
// *Client implements it; tests substitute scripted fakes.
type Fetcher interface {
	FetchDay(ctx context.Context, date time.Time, device DeviceFilter) (*DayPayload, error)
	FetchDayAcrossWeek(ctx context.Context, date time.Time, device DeviceFilter) WeekOfDays
	FetchWeek(ctx context.Context, year, month, weekIndex int, device DeviceFilter) (*WeekPayload, error)
	FetchMonth(ctx context.Context, year, month int, device DeviceFilter) (*MonthPayload, error)
	FetchYear(ctx context.Context, year int, device DeviceFilter) (*YearPayload, error)
	FetchDayLogs(ctx context.Context, date time.Time, device DeviceFilter) ([]LogRow, error)
	ListDevices(ctx context.Context) ([]Device, error)
}

// WeekOption is one entry of the week selector: "Tuần N (start-end)".
type WeekOption struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// ChartInfo is the per-chart slice of the view model. Error carries the
// localized placeholder while the previous image stays served.
type ChartInfo struct {
	Error   string `json:"error,omitempty"`
	HasData bool   `json:"has_data"`
}

// View is the coordinated state every widget reads: the selection, the
// selector option lists, the calendar highlight window, the device registry
// and the day log table.
type View struct {
	Period         string                `json:"period"`
	Title          string                `json:"title"`
	Date           string                `json:"date"`
	Year           int                   `json:"year"`
	Month          int                   `json:"month"`
	WeekIndex      int                   `json:"week_index"`
	Device         string                `json:"device,omitempty"`
	Years          []int                 `json:"years"`
	Months         []int                 `json:"months"`
	Weeks          []WeekOption          `json:"weeks"`
	HighlightStart string                `json:"highlight_start"`
	HighlightEnd   string                `json:"highlight_end"`
	Devices        []Device              `json:"devices"`
	Logs           []LogRow              `json:"logs"`
	Charts         map[string]ChartInfo `json:"charts"`
}

// Coordinator keeps the five views consistent with the single selection. All
// mutations arrive as Commands; each command mutates SelectionState, runs the
// matching load pipeline and leaves the rendered charts behind. Pipelines are
// idempotent: re-dispatching with an unchanged selection reproduces identical
// chart bytes.
type Coordinator struct {
	state    *State
	fetcher  Fetcher
	renderer Renderer
	clock    func() time.Time

	mu         sync.Mutex
	gen        map[ChartTarget]uint64
	charts     map[ChartTarget][]byte
	chartErrs  map[ChartTarget]string
	lastSeries map[ChartTarget]series.Derived
	titles     map[ChartTarget]string
	logs       []LogRow
	logsGen    uint64
	devices    []Device

	// selector option lists, rebuilt on every selection change
	years []int
	weeks []WeekOption
}

// NewCoordinator wires the coordinator to its collaborators and subscribes it
// to selection changes so the selector option lists always match the current
// year/month.
func NewCoordinator(state *State, fetcher Fetcher, renderer Renderer) *Coordinator {
	c := &Coordinator{
		state:      state,
		fetcher:    fetcher,
		renderer:   renderer,
		clock:      time.Now,
		gen:        make(map[ChartTarget]uint64),
		charts:     make(map[ChartTarget][]byte),
		chartErrs:  make(map[ChartTarget]string),
		lastSeries: make(map[ChartTarget]series.Derived),
		titles:     make(map[ChartTarget]string),
	}
	state.Subscribe(c.onSelectionChanged)
	c.onSelectionChanged(state.Snapshot())
	return c
}

// onSelectionChanged rebuilds the selector widgets' option lists. The week
// option list depends on the month length, so it must be rebuilt whenever the
// year or month moves.
func (c *Coordinator) onSelectionChanged(sel Selection) {
	years := make([]int, 0, 6)
	thisYear := c.now().Year()
	for y := thisYear - 4; y <= thisYear; y++ {
		years = append(years, y)
	}
	if sel.Year < years[0] || sel.Year > thisYear {
		years = append(years, sel.Year)
	}
	max := calendarx.MaxWeekIndex(sel.Year, sel.Month)
	weeks := make([]WeekOption, 0, max)
	for w := 1; w <= max; w++ {
		s, e := calendarx.WeekBlockRange(sel.Year, sel.Month, w)
		weeks = append(weeks, WeekOption{Index: w, Label: "Tuần " + strconv.Itoa(w) + " (" + strconv.Itoa(s) + "-" + strconv.Itoa(e) + ")"})
	}
	c.mu.Lock()
	c.years = years
	c.weeks = weeks
	c.mu.Unlock()
}

func (c *Coordinator) now() time.Time {
	if c.clock != nil {
		return c.clock()
	}
	return time.Now()
}

// Command is one discrete interaction fed to Dispatch: a selector edit, a
// period switch, a chart click or a realtime tick.
type Command interface {
	run(c *Coordinator)
}

// Dispatch applies one command. Commands run to completion on the caller's
// goroutine; overlapping dispatches from the refresher and the HTTP surface
// are reconciled by the per-chart stale guard.
func (c *Coordinator) Dispatch(cmd Command) { cmd.run(c) }

// Start performs the initial load for the current (startup) selection.
func (c *Coordinator) Start(ctx context.Context) {
	c.refreshDevices(ctx)
	c.loadActive(ctx, c.state.Snapshot())
}

// SwitchPeriod shows another granularity's chart and runs its pipeline.
type SwitchPeriod struct{ Period Period }

func (cmd SwitchPeriod) run(c *Coordinator) {
	sel := c.state.SetPeriod(cmd.Period)
	c.loadActive(context.Background(), sel)
}

// SelectDate moves the anchor date (calendar widget or drill-down).
type SelectDate struct{ Date time.Time }

func (cmd SelectDate) run(c *Coordinator) {
	sel := c.state.SetFromDate(cmd.Date)
	c.loadActive(context.Background(), sel)
}

// SelectWeek is a week-selector edit.
type SelectWeek struct{ Year, Month, Week int }

func (cmd SelectWeek) run(c *Coordinator) {
	sel := c.state.SetWeek(cmd.Year, cmd.Month, cmd.Week)
	c.loadActive(context.Background(), sel)
}

// SelectMonth is a month-selector edit.
type SelectMonth struct{ Year, Month int }

func (cmd SelectMonth) run(c *Coordinator) {
	sel := c.state.SetMonth(cmd.Year, cmd.Month)
	c.loadActive(context.Background(), sel)
}

// SelectYear is a year-selector edit.
type SelectYear struct{ Year int }

func (cmd SelectYear) run(c *Coordinator) {
	sel := c.state.SetYear(cmd.Year)
	c.loadActive(context.Background(), sel)
}

// SelectDevice narrows every fetch to one device (or back to all).
type SelectDevice struct{ Device DeviceFilter }

func (cmd SelectDevice) run(c *Coordinator) {
	sel := c.state.SetDevice(cmd.Device)
	c.loadActive(context.Background(), sel)
}

// ChartClick drills a click on an aggregated chart element into a finer
// selection. Resolution prefers the structured ref carried with the rendered
// series; the label text is only a fallback. Unresolvable clicks are no-ops.
type ChartClick struct {
	Chart ChartTarget
	Index int
	Label string
}

func (cmd ChartClick) run(c *Coordinator) {
	ref := c.resolveClick(cmd)
	sel := c.state.Snapshot()
	switch {
	case cmd.Chart == ChartWeek && ref.Kind == series.RefDate:
		d, err := calendarx.ParseDate(ref.Date)
		if err != nil {
			Debugf("[drill] unparseable date ref %q: %v", ref.Date, err)
			return
		}
		c.state.SetFromDate(d)
		newSel := c.state.SetPeriod(PeriodDay)
		c.loadActive(context.Background(), newSel)
	case cmd.Chart == ChartMonth && ref.Kind == series.RefWeek:
		c.state.SetWeek(sel.Year, sel.Month, ref.Week)
		newSel := c.state.SetPeriod(PeriodWeek)
		c.loadActive(context.Background(), newSel)
	case cmd.Chart == ChartYear && ref.Kind == series.RefMonth:
		c.state.SetMonth(sel.Year, ref.Month)
		newSel := c.state.SetPeriod(PeriodMonth)
		c.loadActive(context.Background(), newSel)
	default:
		Debugf("[drill] click on %s index=%d label=%q resolves to nothing", cmd.Chart, cmd.Index, cmd.Label)
	}
}

// resolveClick recovers the structured origin of a clicked element.
func (c *Coordinator) resolveClick(cmd ChartClick) series.PointRef {
	c.mu.Lock()
	last, ok := c.lastSeries[cmd.Chart]
	c.mu.Unlock()
	if ok && cmd.Index >= 0 && cmd.Index < len(last.Refs) && last.Refs[cmd.Index].Kind != series.RefNone {
		return last.Refs[cmd.Index]
	}
	// legacy path: recover the index from the label text
	label := strings.TrimSpace(cmd.Label)
	if n, ok := parseNumberedLabel(label, "Tuần "); ok {
		return series.WeekRef(n)
	}
	if n, ok := parseNumberedLabel(label, "Tháng "); ok {
		return series.MonthRef(n)
	}
	if _, err := calendarx.ParseDate(label); err == nil {
		return series.DateRef(label)
	}
	return series.PointRef{}
}

func parseNumberedLabel(label, prefix string) (int, bool) {
	rest, found := strings.CutPrefix(label, prefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// RefreshTick re-runs the active pipeline on the realtime interval. The Day
// period only refreshes when the anchor is today, so an operator reviewing a
// past day is never yanked back to the present. The device list always
// refreshes.
type RefreshTick struct{}

func (RefreshTick) run(c *Coordinator) {
	metricRefreshTicks.Inc()
	ctx := context.Background()
	c.refreshDevices(ctx)
	sel := c.state.Snapshot()
	if sel.Period == PeriodDay && !calendarx.SameDay(sel.Date, c.now()) {
		Debugf("[refresh] day view pinned to %s, skipping chart refresh", calendarx.FormatDate(sel.Date))
		return
	}
	c.loadActive(ctx, sel)
}

// loadActive runs the pipeline for the selection's period.
func (c *Coordinator) loadActive(ctx context.Context, sel Selection) {
	metricPipelineRuns.WithLabelValues(sel.Period.String()).Inc()
	switch sel.Period {
	case PeriodDay:
		c.loadDay(ctx, sel)
	case PeriodWeek:
		c.loadWeek(ctx, sel)
	case PeriodMonth:
		c.loadMonth(ctx, sel)
	case PeriodYear:
		c.loadYear(ctx, sel)
	}
}

// beginRun bumps the generation of every chart the run will write and returns
// the expected values. A later commit with a superseded generation is dropped.
func (c *Coordinator) beginRun(targets ...ChartTarget) map[ChartTarget]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	gens := make(map[ChartTarget]uint64, len(targets))
	for _, t := range targets {
		c.gen[t]++
		gens[t] = c.gen[t]
	}
	return gens
}

// commitChart installs a rendered chart if its run is still current.
func (c *Coordinator) commitChart(t ChartTarget, gen uint64, png []byte, d series.Derived, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[t] != gen {
		metricStaleDrops.Inc()
		Debugf("[stale] dropping superseded result for %s (gen %d < %d)", t, gen, c.gen[t])
		return
	}
	c.charts[t] = png
	c.chartErrs[t] = ""
	c.lastSeries[t] = d
	if title != "" {
		c.titles[t] = title
	}
}

// commitChartError flips the chart's label to the error placeholder but keeps
// the previous image, if any.
func (c *Coordinator) commitChartError(t ChartTarget, gen uint64, err error) {
	Errorf("[pipeline] %s: %v", t, err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[t] != gen {
		metricStaleDrops.Inc()
		return
	}
	c.chartErrs[t] = errPlaceholder
}

// renderAndCommit renders one derived series and commits the outcome.
func (c *Coordinator) renderAndCommit(t ChartTarget, gen uint64, kind RenderKind, title string, d series.Derived) {
	png, err := c.renderer.Render(kind, title, d)
	if err != nil {
		c.commitChartError(t, gen, err)
		return
	}
	c.commitChart(t, gen, png, d, title)
}

// loadDay runs the two day-period charts plus the log table. Each part fails
// independently; one broken chart never blanks the others.
func (c *Coordinator) loadDay(ctx context.Context, sel Selection) {
	gens := c.beginRun(ChartDayHourly, ChartDayWeek)
	dateStr := calendarx.FormatDate(sel.Date)

	if p, err := c.fetcher.FetchDay(ctx, sel.Date, sel.Device); err != nil {
		c.commitChartError(ChartDayHourly, gens[ChartDayHourly], err)
	} else {
		labels := make([]string, 24)
		for h := 0; h < 24; h++ {
			labels[h] = strconv.Itoa(h) + "h"
		}
		d := series.Derive(labels, p.Pass, p.Fail, nil)
		c.renderAndCommit(ChartDayHourly, gens[ChartDayHourly], KindHourlyBars, dateStr, d)
	}

	// the grouped bar view never fails as a whole: failed days arrive zeroed
	wd := c.fetcher.FetchDayAcrossWeek(ctx, sel.Date, sel.Device)
	var pass, fail [7][]int
	labels := make([]string, 7)
	refs := make([]series.PointRef, 7)
	for i, day := range wd.Window.Days {
		pass[i] = wd.Days[i].Pass
		fail[i] = wd.Days[i].Fail
		labels[i] = calendarx.WeekdayLabel(day)
		refs[i] = series.DateRef(calendarx.FormatDate(day))
	}
	pd, fd := series.GroupedCounts(pass, fail)
	d := series.Derive(labels, pd[:], fd[:], refs)
	title := calendarx.FormatDate(wd.Window.Start) + " - " + calendarx.FormatDate(wd.Window.Days[6])
	c.renderAndCommit(ChartDayWeek, gens[ChartDayWeek], KindGroupedBars, title, d)

	c.loadLogs(ctx, sel)
}

// loadLogs fetches the per-device table for the anchor date, with its own
// stale guard so a superseded fetch cannot overwrite a newer table.
func (c *Coordinator) loadLogs(ctx context.Context, sel Selection) {
	c.mu.Lock()
	c.logsGen++
	gen := c.logsGen
	c.mu.Unlock()
	rows, err := c.fetcher.FetchDayLogs(ctx, sel.Date, sel.Device)
	if err != nil {
		Errorf("[pipeline] day logs: %v", err)
		return
	}
	c.mu.Lock()
	if c.logsGen == gen {
		c.logs = rows
	} else {
		metricStaleDrops.Inc()
	}
	c.mu.Unlock()
}

func (c *Coordinator) loadWeek(ctx context.Context, sel Selection) {
	gens := c.beginRun(ChartWeek)
	p, err := c.fetcher.FetchWeek(ctx, sel.Year, sel.Month, sel.WeekIndex, sel.Device)
	if err != nil {
		c.commitChartError(ChartWeek, gens[ChartWeek], err)
		return
	}
	refs := make([]series.PointRef, len(p.Labels))
	for i, l := range p.Labels {
		if _, err := calendarx.ParseDate(l); err == nil {
			refs[i] = series.DateRef(l)
		}
	}
	d := series.Derive(p.Labels, p.Pass, p.Fail, refs)
	c.renderAndCommit(ChartWeek, gens[ChartWeek], KindGrowthArea, p.Range, d)
}

func (c *Coordinator) loadMonth(ctx context.Context, sel Selection) {
	gens := c.beginRun(ChartMonth)
	p, err := c.fetcher.FetchMonth(ctx, sel.Year, sel.Month, sel.Device)
	if err != nil {
		c.commitChartError(ChartMonth, gens[ChartMonth], err)
		return
	}
	refs := make([]series.PointRef, len(p.Labels))
	for i := range refs {
		refs[i] = series.WeekRef(i + 1)
	}
	d := series.Derive(p.Labels, p.Pass, p.Fail, refs)
	c.renderAndCommit(ChartMonth, gens[ChartMonth], KindCountsWithRate, p.Month, d)
}

func (c *Coordinator) loadYear(ctx context.Context, sel Selection) {
	gens := c.beginRun(ChartYear)
	p, err := c.fetcher.FetchYear(ctx, sel.Year, sel.Device)
	if err != nil {
		c.commitChartError(ChartYear, gens[ChartYear], err)
		return
	}
	refs := make([]series.PointRef, len(p.Labels))
	for i := range refs {
		refs[i] = series.MonthRef(i + 1)
	}
	d := series.Derive(p.Labels, p.Pass, p.Fail, refs)
	c.renderAndCommit(ChartYear, gens[ChartYear], KindCountsWithRate, strconv.Itoa(p.Year), d)
}

func (c *Coordinator) refreshDevices(ctx context.Context) {
	devs, err := c.fetcher.ListDevices(ctx)
	if err != nil {
		Warnf("[devices] refresh failed: %v", err)
		return
	}
	c.mu.Lock()
	c.devices = devs
	c.mu.Unlock()
}

// SeriesLen returns how many elements the target's last rendered series had,
// for pixel-to-index resolution on the HTTP surface.
func (c *Coordinator) SeriesLen(t ChartTarget) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastSeries[t].Labels)
}

// ChartPNG returns the latest rendered image for a target.
func (c *Coordinator) ChartPNG(t ChartTarget) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	png, ok := c.charts[t]
	return png, ok
}

// activeTargets lists the chart surfaces shown for a period.
func activeTargets(p Period) []ChartTarget {
	switch p {
	case PeriodDay:
		return []ChartTarget{ChartDayHourly, ChartDayWeek}
	case PeriodWeek:
		return []ChartTarget{ChartWeek}
	case PeriodMonth:
		return []ChartTarget{ChartMonth}
	case PeriodYear:
		return []ChartTarget{ChartYear}
	}
	return nil
}

// View assembles the full coordinated view model for the current selection.
func (c *Coordinator) View() View {
	sel := c.state.Snapshot()
	window := calendarx.WeekOf(sel.Date)

	c.mu.Lock()
	defer c.mu.Unlock()

	months := make([]int, 12)
	for i := range months {
		months[i] = i + 1
	}
	v := View{
		Period:         sel.Period.String(),
		Date:           calendarx.FormatDate(sel.Date),
		Year:           sel.Year,
		Month:          sel.Month,
		WeekIndex:      sel.WeekIndex,
		Device:         string(sel.Device),
		Years:          append([]int(nil), c.years...),
		Months:         months,
		Weeks:          append([]WeekOption(nil), c.weeks...),
		HighlightStart: calendarx.FormatDate(window.Start),
		HighlightEnd:   calendarx.FormatDate(window.Days[6]),
		Devices:        append([]Device(nil), c.devices...),
		Logs:           append([]LogRow(nil), c.logs...),
		Charts:         make(map[string]ChartInfo),
	}
	for _, t := range activeTargets(sel.Period) {
		_, has := c.charts[t]
		v.Charts[string(t)] = ChartInfo{Error: c.chartErrs[t], HasData: has}
		if v.Title == "" {
			if title := c.titles[t]; title != "" {
				v.Title = title
			}
		}
	}
	if v.Title == "" {
		v.Title = v.Date
	}
	return v
}
