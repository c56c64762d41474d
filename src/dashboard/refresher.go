package dashboard

import (
	"sync"
	"time"
)

// Refresher re-dispatches a RefreshTick on a fixed interval so the active
// charts and the device list track live data. The today-only guard for the
// Day period lives in the RefreshTick command itself, not here.
type Refresher struct {
	co       *Coordinator
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRefresher builds a stopped refresher. A non-positive interval falls back
// to 30s.
func NewRefresher(co *Coordinator, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{co: co, interval: interval, stop: make(chan struct{})}
}

// Start launches the tick loop.
func (r *Refresher) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.co.Dispatch(RefreshTick{})
			}
		}
	}()
	Infof("realtime refresher started (every %s)", r.interval)
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}
