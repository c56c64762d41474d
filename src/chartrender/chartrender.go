// Package chartrender draws derived series to PNG with go-chart. It is the
// "render series S under config C" collaborator: the coordinator hands it a
// derived series and a kind, it hands back image bytes, and NearestIndex maps
// a pixel coordinate back to the element a click landed on.
package chartrender

import (
	"bytes"
	"image"
	"image/png"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/huypokedt/chart-web/src/dashboard"
	"github.com/huypokedt/chart-web/src/series"
)

// Plot paddings, mirrored by NearestIndex. The gutters approximate the space
// go-chart reserves for the y-axis labels.
const (
	padLeft       = 16
	padRight      = 12
	padTop        = 14
	padBottom     = 28
	axisGutterPx  = 40
	rightGutterPx = 10
)

var (
	passColor = chart.ColorGreen
	failColor = chart.ColorRed
	rateColor = chart.ColorBlue
)

// PNGRenderer renders all chart kinds at a fixed pixel size.
type PNGRenderer struct {
	Width  int
	Height int
}

// New returns a renderer at the dashboard's default chart size.
func New() *PNGRenderer {
	return &PNGRenderer{Width: 900, Height: 420}
}

// Render implements dashboard.Renderer.
func (r *PNGRenderer) Render(kind dashboard.RenderKind, title string, d series.Derived) ([]byte, error) {
	// go-chart needs at least two points per series; degenerate inputs get a
	// blank canvas instead of an error so an empty day still shows a chart.
	if len(d.Labels) < 2 {
		return blankPNG(r.Width, r.Height)
	}
	switch kind {
	case dashboard.KindGrowthArea:
		return r.growthArea(title, d)
	case dashboard.KindCountsWithRate:
		return r.countsWithRate(title, d)
	default: // hourly and grouped bars share the counts treatment
		return r.counts(title, d)
	}
}

func xs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func ys(vals []int) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}

func ticks(labels []string) []chart.Tick {
	out := make([]chart.Tick, len(labels))
	for i, l := range labels {
		out[i] = chart.Tick{Value: float64(i), Label: l}
	}
	return out
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{StrokeColor: col, StrokeWidth: 2, DotColor: col, DotWidth: 3}
}

func areaStyle(col drawing.Color) chart.Style {
	return chart.Style{StrokeColor: col, StrokeWidth: 2, FillColor: col.WithAlpha(64)}
}

func (r *PNGRenderer) render(ch chart.Chart) ([]byte, error) {
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *PNGRenderer) base(title string, d series.Derived) chart.Chart {
	return chart.Chart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: padTop, Left: padLeft, Right: padRight, Bottom: padBottom}},
		XAxis:      chart.XAxis{Ticks: ticks(d.Labels)},
	}
}

// counts draws pass and fail totals per bucket.
func (r *PNGRenderer) counts(title string, d series.Derived) ([]byte, error) {
	ch := r.base(title, d)
	x := xs(len(d.Labels))
	ch.Series = []chart.Series{
		chart.ContinuousSeries{Name: "Pass", XValues: x, YValues: ys(d.Pass), Style: lineStyle(passColor)},
		chart.ContinuousSeries{Name: "Fail", XValues: x, YValues: ys(d.Fail), Style: lineStyle(failColor)},
	}
	return r.render(ch)
}

// growthArea draws cumulative pass/fail growth across the window.
func (r *PNGRenderer) growthArea(title string, d series.Derived) ([]byte, error) {
	ch := r.base(title, d)
	x := xs(len(d.Labels))
	ch.Series = []chart.Series{
		chart.ContinuousSeries{Name: "Pass", XValues: x, YValues: ys(series.Cumulative(d.Pass)), Style: areaStyle(passColor)},
		chart.ContinuousSeries{Name: "Fail", XValues: x, YValues: ys(series.Cumulative(d.Fail)), Style: areaStyle(failColor)},
	}
	return r.render(ch)
}

// countsWithRate overlays the pass-rate percentage on a secondary 0-100 axis.
func (r *PNGRenderer) countsWithRate(title string, d series.Derived) ([]byte, error) {
	ch := r.base(title, d)
	x := xs(len(d.Labels))
	ch.YAxisSecondary = chart.YAxis{
		Name:  "%",
		Range: &chart.ContinuousRange{Min: 0, Max: 100},
	}
	ch.Series = []chart.Series{
		chart.ContinuousSeries{Name: "Pass", XValues: x, YValues: ys(d.Pass), Style: lineStyle(passColor)},
		chart.ContinuousSeries{Name: "Fail", XValues: x, YValues: ys(d.Fail), Style: lineStyle(failColor)},
		chart.ContinuousSeries{Name: "Tỷ lệ đạt", XValues: x, YValues: ys(d.RatePct), Style: lineStyle(rateColor), YAxis: chart.YAxisSecondary},
	}
	return r.render(ch)
}

func blankPNG(w, h int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NearestIndex maps a pixel x coordinate on a rendered chart back to the
// nearest element index, using the same plot paddings Render applies. Returns
// -1 when there are no elements.
func NearestIndex(n, width, x int) int {
	if n <= 0 || width <= 0 {
		return -1
	}
	if n == 1 {
		return 0
	}
	left := float64(padLeft + axisGutterPx)
	right := float64(padRight + rightGutterPx)
	plotW := float64(width) - left - right
	if plotW < 1 {
		plotW = float64(width)
	}
	best, bestD := 0, -1.0
	for i := 0; i < n; i++ {
		center := left + plotW*float64(i)/float64(n-1)
		d := center - float64(x)
		if d < 0 {
			d = -d
		}
		if bestD < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	return best
}
