package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/huypokedt/chart-web/src/calendarx"
	"github.com/huypokedt/chart-web/src/dashboard"
	"github.com/huypokedt/chart-web/src/series"
)

type stubRenderer struct{}

func (stubRenderer) Render(kind dashboard.RenderKind, title string, d series.Derived) ([]byte, error) {
	return []byte(fmt.Sprintf("k=%d t=%s n=%d", kind, title, len(d.Labels))), nil
}

// stubFetcher returns fixed payloads for every period.
type stubFetcher struct{}

func hourly(total int) []int {
	out := make([]int, 24)
	out[0] = total
	return out
}

func (stubFetcher) FetchDay(_ context.Context, date time.Time, _ dashboard.DeviceFilter) (*dashboard.DayPayload, error) {
	return &dashboard.DayPayload{Date: calendarx.FormatDate(date), Pass: hourly(2), Fail: hourly(1)}, nil
}

func (stubFetcher) FetchDayAcrossWeek(_ context.Context, date time.Time, _ dashboard.DeviceFilter) dashboard.WeekOfDays {
	out := dashboard.WeekOfDays{Window: calendarx.WeekOf(date)}
	for i, d := range out.Window.Days {
		out.Days[i] = dashboard.DayPayload{Date: calendarx.FormatDate(d), Pass: hourly(i), Fail: hourly(0)}
	}
	return out
}

func (stubFetcher) FetchWeek(_ context.Context, year, month, weekIndex int, _ dashboard.DeviceFilter) (*dashboard.WeekPayload, error) {
	return &dashboard.WeekPayload{Range: "r", Labels: []string{"a", "b"}, Pass: []int{1, 2}, Fail: []int{0, 0}}, nil
}

func (stubFetcher) FetchMonth(_ context.Context, year, month int, _ dashboard.DeviceFilter) (*dashboard.MonthPayload, error) {
	return &dashboard.MonthPayload{Month: fmt.Sprintf("%04d-%02d", year, month), Labels: []string{"Tuần 1", "Tuần 2"}, Pass: []int{40, 35}, Fail: []int{10, 5}}, nil
}

func (stubFetcher) FetchYear(_ context.Context, year int, _ dashboard.DeviceFilter) (*dashboard.YearPayload, error) {
	labels := make([]string, 12)
	for i := range labels {
		labels[i] = fmt.Sprintf("Tháng %d", i+1)
	}
	return &dashboard.YearPayload{Year: year, Labels: labels, Pass: make([]int, 12), Fail: make([]int, 12)}, nil
}

func (stubFetcher) FetchDayLogs(_ context.Context, _ time.Time, _ dashboard.DeviceFilter) ([]dashboard.LogRow, error) {
	return []dashboard.LogRow{{DeviceID: "máy 1", Pass: 2, Fail: 1, Total: 3}}, nil
}

func (stubFetcher) ListDevices(_ context.Context) ([]dashboard.Device, error) {
	return []dashboard.Device{{ID: 1, Name: "máy 1", Status: 1}}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *dashboard.Coordinator) {
	t.Helper()
	st := dashboard.NewState(time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC))
	co := dashboard.NewCoordinator(st, stubFetcher{}, stubRenderer{})
	co.Start(context.Background())
	srv := httptest.NewServer(New(co).Handler())
	t.Cleanup(srv.Close)
	return srv, co
}

func getView(t *testing.T, srv *httptest.Server) dashboard.View {
	t.Helper()
	resp, err := http.Get(srv.URL + "/view")
	if err != nil {
		t.Fatalf("GET /view: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /view status = %d", resp.StatusCode)
	}
	var v dashboard.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func postForm(t *testing.T, srv *httptest.Server, path string, vals url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path+"?"+vals.Encode(), "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestViewEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	v := getView(t, srv)
	if v.Period != "day" || v.Date != "2024-02-15" {
		t.Fatalf("view = %s %s", v.Period, v.Date)
	}
	if len(v.Logs) != 1 || len(v.Devices) != 1 {
		t.Fatalf("logs=%d devices=%d", len(v.Logs), len(v.Devices))
	}
}

func TestPeriodSwitchAndChartServing(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postForm(t, srv, "/nav/period", url.Values{"period": {"year"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("switch status = %d", resp.StatusCode)
	}
	var v dashboard.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Period != "year" {
		t.Fatalf("period = %s, want year", v.Period)
	}

	img, err := http.Get(srv.URL + "/charts/year_months.png")
	if err != nil {
		t.Fatalf("GET chart: %v", err)
	}
	defer img.Body.Close()
	if img.StatusCode != http.StatusOK {
		t.Fatalf("chart status = %d", img.StatusCode)
	}

	missing, err := http.Get(srv.URL + "/charts/nonexistent.png")
	if err != nil {
		t.Fatalf("GET missing chart: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing chart status = %d, want 404", missing.StatusCode)
	}
}

func TestBadInputsRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	if resp := postForm(t, srv, "/nav/period", url.Values{"period": {"decade"}}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad period status = %d", resp.StatusCode)
	}
	if resp := postForm(t, srv, "/nav/date", url.Values{"date": {"15/02/2024"}}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", resp.StatusCode)
	}
	if resp := postForm(t, srv, "/nav/month", url.Values{"year": {"2024"}, "month": {"13"}}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad month status = %d", resp.StatusCode)
	}
}

func TestClickDrillsDown(t *testing.T) {
	srv, _ := newTestServer(t)
	postForm(t, srv, "/nav/period", url.Values{"period": {"year"}})

	resp := postForm(t, srv, "/click", url.Values{"chart": {"year_months"}, "label": {"Tháng 7"}})
	var v dashboard.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Period != "month" || v.Month != 7 {
		t.Fatalf("after click: period=%s month=%d, want month/7", v.Period, v.Month)
	}
	if len(v.Weeks) != 5 {
		t.Fatalf("week options for July = %d, want 5", len(v.Weeks))
	}
	for _, w := range v.Weeks {
		if !strings.HasPrefix(w.Label, "Tuần ") {
			t.Fatalf("week option label %q", w.Label)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
