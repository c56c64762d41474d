package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/huypokedt/chart-web/src/calendarx"
)

// DeviceFilter restricts every data fetch to one device; AllDevices disables
// the filter (no ?device= query parameter is sent).
type DeviceFilter string

// AllDevices is the unfiltered view.
const AllDevices DeviceFilter = ""

// FetchError is a non-2xx response from the data service. The body is the
// service's plain-text error description; it is carried verbatim, never parsed.
type FetchError struct {
	URL    string
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.Status, e.Body)
}

// MalformedPayloadError is a 2xx response whose JSON does not satisfy the
// expected payload shape (wrong array lengths, undecodable body). Call sites
// treat it exactly like a FetchError.
type MalformedPayloadError struct {
	URL    string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload from %s: %s", e.URL, e.Reason)
}

// DayPayload is the hourly aggregation for one date: 24 buckets per counter.
type DayPayload struct {
	Date  string `json:"date"`
	Hours []int  `json:"hours"`
	Pass  []int  `json:"pass"`
	Fail  []int  `json:"fail"`
}

// WeekPayload is the per-day aggregation for one fixed 7-day month block.
type WeekPayload struct {
	Range  string   `json:"range"`
	Labels []string `json:"labels"`
	Pass   []int    `json:"pass"`
	Fail   []int    `json:"fail"`
}

// MonthPayload is the per-block aggregation for one month.
type MonthPayload struct {
	Month  string   `json:"month"`
	Labels []string `json:"labels"`
	Pass   []int    `json:"pass"`
	Fail   []int    `json:"fail"`
}

// YearPayload is the per-month aggregation for one year.
type YearPayload struct {
	Year   int      `json:"year"`
	Labels []string `json:"labels"`
	Pass   []int    `json:"pass"`
	Fail   []int    `json:"fail"`
}

// LogRow is one device's pass/fail totals for a day, as shown in the log table.
type LogRow struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Pass     int    `json:"pass"`
	Fail     int    `json:"fail"`
	Total    int    `json:"total"`
	Metric   string `json:"metric"`
}

// Device is one registry entry. Status is 1 (on) or 0 (off); LastSeen is an
// ISO timestamp or empty when the device has never reported.
type Device struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Status   int    `json:"status"`
	LastSeen string `json:"last_seen"`
}

// WeekOfDays is the result of the grouped-bar fan-out: seven per-day payloads
// in Mon..Sun order plus how many sub-fetches were downgraded to zeros.
type WeekOfDays struct {
	Window calendarx.Week
	Days   [7]DayPayload
	Failed int
}

// Client talks to the external aggregation/data service. All methods take a
// context and return either a populated payload or a typed error; nothing here
// panics past its boundary.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a Client for the given service base URL, e.g.
// "http://127.0.0.1:5500". A zero timeout falls back to 15s.
func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return &Client{base: base, http: &http.Client{Timeout: timeout}}
}

// getJSON issues one GET, appending the device filter only when set, and
// decodes the body into out. Non-2xx becomes *FetchError; an undecodable body
// becomes *MalformedPayloadError.
func (c *Client) getJSON(ctx context.Context, path string, device DeviceFilter, out interface{}) error {
	u := c.base + path
	if device != AllDevices {
		u += "?device=" + url.QueryEscape(string(device))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", u, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{URL: u, Status: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedPayloadError{URL: u, Reason: err.Error()}
	}
	return nil
}

// FetchDay returns the 24-bucket hourly aggregation for date.
func (c *Client) FetchDay(ctx context.Context, date time.Time, device DeviceFilter) (*DayPayload, error) {
	u := "/data/day/" + calendarx.FormatDate(date)
	var p DayPayload
	if err := c.getJSON(ctx, u, device, &p); err != nil {
		metricFetchFailures.WithLabelValues("day").Inc()
		return nil, err
	}
	if len(p.Pass) != 24 || len(p.Fail) != 24 {
		metricFetchFailures.WithLabelValues("day").Inc()
		return nil, &MalformedPayloadError{URL: u, Reason: fmt.Sprintf("expected 24 hourly buckets, got pass=%d fail=%d", len(p.Pass), len(p.Fail))}
	}
	return &p, nil
}

// FetchDayAcrossWeek resolves the Monday-aligned week containing date and
// fetches all seven days concurrently. A failed or malformed day is downgraded
// to zero counts and logged; the grouped bar chart must always get 7 entries,
// so this never returns an error.
func (c *Client) FetchDayAcrossWeek(ctx context.Context, date time.Time, device DeviceFilter) WeekOfDays {
	out := WeekOfDays{Window: calendarx.WeekOf(date)}
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < 7; i++ {
		wg.Add(1)
		go func(idx int, day time.Time) {
			defer wg.Done()
			p, err := c.FetchDay(ctx, day, device)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				Warnf("[week-bars] day %s failed, counting as zero: %v", calendarx.FormatDate(day), err)
				metricPartialDowngrades.Inc()
				out.Failed++
				out.Days[idx] = DayPayload{Date: calendarx.FormatDate(day)}
				return
			}
			out.Days[idx] = *p
		}(i, out.Window.Days[i])
	}
	wg.Wait()
	return out
}

// FetchWeek returns per-day counts for one fixed 7-day block of a month.
func (c *Client) FetchWeek(ctx context.Context, year, month, weekIndex int, device DeviceFilter) (*WeekPayload, error) {
	u := fmt.Sprintf("/data/week/%d/%d/%d", year, month, weekIndex)
	var p WeekPayload
	if err := c.getJSON(ctx, u, device, &p); err != nil {
		metricFetchFailures.WithLabelValues("week").Inc()
		return nil, err
	}
	if len(p.Labels) != len(p.Pass) || len(p.Labels) != len(p.Fail) {
		metricFetchFailures.WithLabelValues("week").Inc()
		return nil, &MalformedPayloadError{URL: u, Reason: fmt.Sprintf("array lengths differ: labels=%d pass=%d fail=%d", len(p.Labels), len(p.Pass), len(p.Fail))}
	}
	return &p, nil
}

// FetchMonth returns per-week-block counts for one month.
func (c *Client) FetchMonth(ctx context.Context, year, month int, device DeviceFilter) (*MonthPayload, error) {
	u := fmt.Sprintf("/data/month/%d/%d", year, month)
	var p MonthPayload
	if err := c.getJSON(ctx, u, device, &p); err != nil {
		metricFetchFailures.WithLabelValues("month").Inc()
		return nil, err
	}
	if len(p.Labels) != len(p.Pass) || len(p.Labels) != len(p.Fail) {
		metricFetchFailures.WithLabelValues("month").Inc()
		return nil, &MalformedPayloadError{URL: u, Reason: fmt.Sprintf("array lengths differ: labels=%d pass=%d fail=%d", len(p.Labels), len(p.Pass), len(p.Fail))}
	}
	return &p, nil
}

// FetchYear returns per-month counts for one year.
func (c *Client) FetchYear(ctx context.Context, year int, device DeviceFilter) (*YearPayload, error) {
	u := fmt.Sprintf("/data/year/%d", year)
	var p YearPayload
	if err := c.getJSON(ctx, u, device, &p); err != nil {
		metricFetchFailures.WithLabelValues("year").Inc()
		return nil, err
	}
	if len(p.Labels) != len(p.Pass) || len(p.Labels) != len(p.Fail) {
		metricFetchFailures.WithLabelValues("year").Inc()
		return nil, &MalformedPayloadError{URL: u, Reason: fmt.Sprintf("array lengths differ: labels=%d pass=%d fail=%d", len(p.Labels), len(p.Pass), len(p.Fail))}
	}
	return &p, nil
}

// FetchDayLogs returns the per-device pass/fail table for one date.
func (c *Client) FetchDayLogs(ctx context.Context, date time.Time, device DeviceFilter) ([]LogRow, error) {
	var rows []LogRow
	if err := c.getJSON(ctx, "/logs/day/"+calendarx.FormatDate(date), device, &rows); err != nil {
		metricFetchFailures.WithLabelValues("logs").Inc()
		return nil, err
	}
	return rows, nil
}

// ListDevices returns the full device registry.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var devs []Device
	if err := c.getJSON(ctx, "/devices", AllDevices, &devs); err != nil {
		metricFetchFailures.WithLabelValues("devices").Inc()
		return nil, err
	}
	return devs, nil
}

// send issues one non-GET registry request and decodes a JSON response if out
// is non-nil.
func (c *Client) send(ctx context.Context, method, path string, payload, out interface{}) error {
	u := c.base + path
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", u, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request %s: %w", u, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{URL: u, Status: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &MalformedPayloadError{URL: u, Reason: err.Error()}
		}
	}
	return nil
}

// AddDevice registers a new device by name and returns the created entry.
func (c *Client) AddDevice(ctx context.Context, name string) (*Device, error) {
	var d Device
	if err := c.send(ctx, http.MethodPost, "/devices", map[string]string{"name": name}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDevice removes a device from the registry.
func (c *Client) DeleteDevice(ctx context.Context, id int) error {
	return c.send(ctx, http.MethodDelete, "/devices/"+strconv.Itoa(id), nil, nil)
}

// SetDeviceStatus flips a device on (1) or off (0).
func (c *Client) SetDeviceStatus(ctx context.Context, id, status int) error {
	return c.send(ctx, http.MethodPut, fmt.Sprintf("/devices/%d/status?status=%d", id, status), nil, nil)
}

// PutDailyMetric upserts the free-form metric note shown in the log table.
func (c *Client) PutDailyMetric(ctx context.Context, deviceID string, date time.Time, metric string) error {
	payload := map[string]string{
		"device_id": deviceID,
		"date":      calendarx.FormatDate(date),
		"metric":    metric,
	}
	return c.send(ctx, http.MethodPost, "/logs", payload, nil)
}
