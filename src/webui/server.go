// Package webui exposes the coordinated dashboard view over HTTP: the view
// model as JSON, the rendered charts as PNG, and every user interaction as a
// POST command. It is a thin translation layer; all behavior lives in the
// dashboard package.
package webui

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/huypokedt/chart-web/src/calendarx"
	"github.com/huypokedt/chart-web/src/chartrender"
	"github.com/huypokedt/chart-web/src/dashboard"
)

// Server routes dashboard requests to the coordinator.
type Server struct {
	co     *dashboard.Coordinator
	router *mux.Router
}

// New builds the router.
func New(co *dashboard.Coordinator) *Server {
	s := &Server{co: co, router: mux.NewRouter()}
	r := s.router
	r.HandleFunc("/view", s.handleView).Methods(http.MethodGet)
	r.HandleFunc("/charts/{chart}.png", s.handleChart).Methods(http.MethodGet)
	r.HandleFunc("/nav/period", s.handlePeriod).Methods(http.MethodPost)
	r.HandleFunc("/nav/date", s.handleDate).Methods(http.MethodPost)
	r.HandleFunc("/nav/week", s.handleWeek).Methods(http.MethodPost)
	r.HandleFunc("/nav/month", s.handleMonth).Methods(http.MethodPost)
	r.HandleFunc("/nav/year", s.handleYear).Methods(http.MethodPost)
	r.HandleFunc("/nav/device", s.handleDevice).Methods(http.MethodPost)
	r.HandleFunc("/click", s.handleClick).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

// Handler wraps the router with combined access logging.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(os.Stdout, s.router)
}

func (s *Server) writeView(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.co.View()); err != nil {
		dashboard.Errorf("[webui] encode view: %v", err)
	}
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	s.writeView(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["chart"]
	png, ok := s.co.ChartPNG(dashboard.ChartTarget(name))
	if !ok {
		http.Error(w, "no chart rendered for "+name, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	p, ok := dashboard.ParsePeriod(r.FormValue("period"))
	if !ok {
		http.Error(w, "period must be one of day/week/month/year", http.StatusBadRequest)
		return
	}
	s.co.Dispatch(dashboard.SwitchPeriod{Period: p})
	s.writeView(w)
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	d, err := calendarx.ParseDate(r.FormValue("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	s.co.Dispatch(dashboard.SelectDate{Date: d})
	s.writeView(w)
}

func (s *Server) intParam(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.FormValue(name))
	return n, err == nil
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	year, ok1 := s.intParam(r, "year")
	month, ok2 := s.intParam(r, "month")
	week, ok3 := s.intParam(r, "week")
	if !ok1 || !ok2 || !ok3 {
		http.Error(w, "year, month and week must be integers", http.StatusBadRequest)
		return
	}
	s.co.Dispatch(dashboard.SelectWeek{Year: year, Month: month, Week: week})
	s.writeView(w)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	year, ok1 := s.intParam(r, "year")
	month, ok2 := s.intParam(r, "month")
	if !ok1 || !ok2 || month < 1 || month > 12 {
		http.Error(w, "year must be an integer and month in 1..12", http.StatusBadRequest)
		return
	}
	s.co.Dispatch(dashboard.SelectMonth{Year: year, Month: month})
	s.writeView(w)
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year, ok := s.intParam(r, "year")
	if !ok {
		http.Error(w, "year must be an integer", http.StatusBadRequest)
		return
	}
	s.co.Dispatch(dashboard.SelectYear{Year: year})
	s.writeView(w)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	// an empty device value means "all devices"
	s.co.Dispatch(dashboard.SelectDevice{Device: dashboard.DeviceFilter(r.FormValue("device"))})
	s.writeView(w)
}

// handleClick accepts either an explicit element index, a pixel x coordinate
// (resolved against the rendered chart's geometry), or a raw label.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	target := dashboard.ChartTarget(r.FormValue("chart"))
	index := -1
	if n, ok := s.intParam(r, "index"); ok {
		index = n
	} else if x, ok := s.intParam(r, "x"); ok {
		width, ok := s.intParam(r, "width")
		if !ok {
			http.Error(w, "x requires width", http.StatusBadRequest)
			return
		}
		index = chartrender.NearestIndex(s.co.SeriesLen(target), width, x)
	}
	s.co.Dispatch(dashboard.ChartClick{Chart: target, Index: index, Label: r.FormValue("label")})
	s.writeView(w)
}
