package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uakhmed/temperature-dashboard-service/internal/temps"
)

// TestCoalescer_SingleFlight verifies that a request arriving while another
// request's cleaning pass is in flight waits for that result instead of
// running its own pass.
func TestCoalescer_SingleFlight(t *testing.T) {
	c := newCleanCoalescer(time.Second)

	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.GetOrDo(context.Background(), "k", func() ([]temps.Record, error) {
			runs.Add(1)
			close(started)
			<-release
			return []temps.Record{{City: "Oslo"}}, nil
		})
	}()

	<-started

	wg.Add(1)
	var waiterRecords []temps.Record
	var waiterErr error
	go func() {
		defer wg.Done()
		waiterRecords, waiterErr = c.GetOrDo(context.Background(), "k", func() ([]temps.Record, error) {
			runs.Add(1)
			return nil, nil
		})
	}()

	// Give the waiter time to register against the in-flight pass.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := runs.Load(); got != 1 {
		t.Errorf("cleaning ran %d times, want 1", got)
	}
	if waiterErr != nil {
		t.Errorf("waiter error = %v, want nil", waiterErr)
	}
	if len(waiterRecords) != 1 || waiterRecords[0].City != "Oslo" {
		t.Errorf("waiter records = %v, want leader's result", waiterRecords)
	}
}

// TestCoalescer_WaiterTimeout verifies a waiter gives up when the in-flight
// pass outlives the coalescer timeout.
func TestCoalescer_WaiterTimeout(t *testing.T) {
	c := newCleanCoalescer(10 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = c.GetOrDo(context.Background(), "slow", func() ([]temps.Record, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()

	<-started
	_, err := c.GetOrDo(context.Background(), "slow", func() ([]temps.Record, error) {
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waiter error = %v, want DeadlineExceeded", err)
	}
}

// TestCoalescer_DistinctKeys verifies different keys do not serialize.
func TestCoalescer_DistinctKeys(t *testing.T) {
	c := newCleanCoalescer(time.Second)

	var runs atomic.Int32
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, _ = c.GetOrDo(context.Background(), key, func() ([]temps.Record, error) {
				runs.Add(1)
				return nil, nil
			})
		}(key)
	}
	wg.Wait()

	if got := runs.Load(); got != 2 {
		t.Errorf("cleaning ran %d times, want 2 (one per key)", got)
	}
}

// TestCoalescer_LeaderError verifies the leader's error propagates to waiters.
func TestCoalescer_LeaderError(t *testing.T) {
	c := newCleanCoalescer(time.Second)

	wantErr := errors.New("parse failed")
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_, _ = c.GetOrDo(context.Background(), "bad", func() ([]temps.Record, error) {
			close(started)
			<-release
			return nil, wantErr
		})
	}()

	<-started
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrDo(context.Background(), "bad", func() ([]temps.Record, error) {
			return nil, nil
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	if err := <-done; !errors.Is(err, wantErr) {
		t.Errorf("waiter error = %v, want leader's error", err)
	}
}
