package dashboard

import (
	"testing"
	"time"
)

func TestRefresherTicksAndStops(t *testing.T) {
	co, _, ff := newTestCoordinator(day("2024-03-09"))
	r := NewRefresher(co, 10*time.Millisecond)
	r.Start()
	time.Sleep(100 * time.Millisecond)
	r.Stop()

	ff.mu.Lock()
	ticks := ff.devCalls
	ff.mu.Unlock()
	if ticks == 0 {
		t.Fatalf("no ticks dispatched")
	}

	time.Sleep(30 * time.Millisecond)
	ff.mu.Lock()
	after := ff.devCalls
	ff.mu.Unlock()
	if after != ticks {
		t.Fatalf("ticks continued after Stop: %d -> %d", ticks, after)
	}

	// Stop is idempotent
	r.Stop()
}
