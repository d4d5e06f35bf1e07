package telephony

import (
	"context"
	"sync"
)

// CallTracker counts running call legs so shutdown can wait for them.
// http.Server.Shutdown does not wait for hijacked connections, so a gateway
// call is invisible to it once the socket is upgraded.
type CallTracker struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	draining bool
}

// Track wraps r. Legs that arrive after Drain started are not run; the
// handler closes their socket.
func (t *CallTracker) Track(r CallRunner) CallRunner {
	return CallRunnerFunc(func(ctx context.Context, s Session) {
		t.mu.Lock()
		if t.draining {
			t.mu.Unlock()
			return
		}
		t.wg.Add(1)
		t.mu.Unlock()
		defer t.wg.Done()

		r.Run(ctx, s)
	})
}

// Drain stops admitting legs and waits for the running ones, bounded by ctx.
func (t *CallTracker) Drain(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
