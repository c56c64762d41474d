// Command dashboard runs the production pass/fail dashboard engine: it
// consumes the aggregation data service, keeps the coordinated time-range
// selection, renders the charts headlessly and serves the whole view over
// HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/huypokedt/chart-web/src/chartrender"
	"github.com/huypokedt/chart-web/src/dashboard"
	"github.com/huypokedt/chart-web/src/webui"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; flags override environment
	_ = godotenv.Load()

	var (
		apiBase  string
		listen   string
		refresh  time.Duration
		timeout  time.Duration
		logLevel string
	)
	flag.StringVar(&apiBase, "api", getEnv("DATA_API", "http://127.0.0.1:5500"), "Base URL of the aggregation data service")
	flag.StringVar(&listen, "listen", getEnv("LISTEN_ADDR", ":8090"), "HTTP listen address for the dashboard")
	flag.DurationVar(&refresh, "refresh", 30*time.Second, "Realtime refresh interval")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "Per-request timeout against the data service")
	flag.StringVar(&logLevel, "loglevel", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	dashboard.SetLogLevel(logLevel)
	dashboard.Infof("dashboard starting: api=%s listen=%s refresh=%s", apiBase, listen, refresh)

	client := dashboard.NewClient(apiBase, timeout)
	state := dashboard.NewState(time.Now())
	co := dashboard.NewCoordinator(state, client, chartrender.New())
	co.Start(context.Background())

	refresher := dashboard.NewRefresher(co, refresh)
	refresher.Start()

	srv := &http.Server{
		Addr:         listen,
		Handler:      webui.New(co).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		dashboard.Infof("listening on %s", listen)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		dashboard.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			dashboard.Errorf("server error: %v", err)
		}
	}

	refresher.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		dashboard.Errorf("shutdown: %v", err)
	}
	dashboard.Infof("dashboard stopped")
}
