package service

import (
	"context"
	"sync"
	"time"

	"github.com/uakhmed/temperature-dashboard-service/internal/temps"
)

// inFlightClean tracks one cleaning pass that concurrent chart requests for
// the same dataset may wait on.
type inFlightClean struct {
	done    chan struct{}
	records []temps.Record
	err     error
}

// cleanCoalescer collapses concurrent cleaning passes for the same cache key
// into one. Two chart renders arriving together for a freshly uploaded
// dataset would otherwise both run the full pipeline.
type cleanCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightClean
	timeout  time.Duration
}

func newCleanCoalescer(timeout time.Duration) *cleanCoalescer {
	return &cleanCoalescer{
		inFlight: make(map[string]*inFlightClean),
		timeout:  timeout,
	}
}

// GetOrDo runs fn for key, unless a run for the same key is already in
// flight, in which case it waits for that run's result. Waiters are bounded
// by the coalescer timeout and ctx.
func (c *cleanCoalescer) GetOrDo(ctx context.Context, key string, fn func() ([]temps.Record, error)) ([]temps.Record, error) {
	c.mu.Lock()
	if req, ok := c.inFlight[key]; ok {
		c.mu.Unlock()

		waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		select {
		case <-req.done:
			return req.records, req.err
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		}
	}

	req := &inFlightClean{done: make(chan struct{})}
	c.inFlight[key] = req
	c.mu.Unlock()

	// The leader runs fn on the calling goroutine; waiters observe via done.
	req.records, req.err = fn()
	close(req.done)

	c.mu.Lock()
	delete(c.inFlight, key)
	c.mu.Unlock()

	return req.records, req.err
}
