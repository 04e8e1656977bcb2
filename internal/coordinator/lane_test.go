// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package coordinator_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coverly-dev/coverly/internal/coordinator"
	coverr "github.com/coverly-dev/coverly/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLane_SerializesWork(t *testing.T) {
	lane := coordinator.NewLane("s1")
	defer lane.Close()

	var mu sync.Mutex
	var order []int

	// Stagger submissions so the channel receives them in order.
	var wg sync.WaitGroup
	for i := range 3 {
		time.Sleep(5 * time.Millisecond)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lane.Submit(context.Background(), func(_ context.Context) error {
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Equal(t, []int{0, 1, 2}, order, "tasks must execute in FIFO submission order")
}

func TestLane_CancelledBeforeSubmit(t *testing.T) {
	lane := coordinator.NewLane("s1")
	defer lane.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := lane.Submit(ctx, func(_ context.Context) error {
		t.Fatal("should not execute")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLane_WaitsForRunningWorkAfterCancel(t *testing.T) {
	lane := coordinator.NewLane("s1")
	defer lane.Close()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var finished atomic.Bool

	go func() {
		<-started
		cancel()
	}()

	err := lane.Submit(ctx, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond) // compensation still running
		finished.Store(true)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, finished.Load(), "Submit returns only after the work item completes")
}

func TestLane_RecoversPanic(t *testing.T) {
	lane := coordinator.NewLane("s1")
	defer lane.Close()

	err := lane.Submit(context.Background(), func(context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.True(t, coverr.HasCode(err, coverr.CodeCoordinatorLanePanic))

	// The lane keeps serving work afterwards.
	assert.NoError(t, lane.Submit(context.Background(), func(context.Context) error { return nil }))
}

func TestLane_SubmitAfterClose(t *testing.T) {
	lane := coordinator.NewLane("s1")
	lane.Close()
	lane.Close() // idempotent

	err := lane.Submit(context.Background(), func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, coverr.HasCode(err, coverr.CodeCoordinatorLaneClosed))
}

func TestLanePool_DistinctKeysRunConcurrently(t *testing.T) {
	pool := coordinator.NewLanePool()
	defer pool.Close()

	var peak, running atomic.Int32
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), []string{key}, func(context.Context) error {
				cur := running.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, peak.Load(), int32(2), "at least 2 lanes should have run concurrently")
}

func TestLanePool_OverlappingKeySetsDoNotDeadlock(t *testing.T) {
	pool := coordinator.NewLanePool()
	defer pool.Close()

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		keys := []string{"a", "b"}
		if i%2 == 1 {
			keys = []string{"b", "a"}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), keys, func(context.Context) error {
				assert.Equal(t, int32(1), inside.Add(1), "holders of a and b are exclusive")
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock acquiring overlapping key sets")
	}
}

func TestLanePool_RetiresIdleLanes(t *testing.T) {
	pool := coordinator.NewLanePool()
	defer pool.Close()

	err := pool.Do(context.Background(), []string{"a", "a", "b"}, func(context.Context) error {
		assert.Equal(t, 2, pool.Len(), "duplicate keys share one lane")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, pool.Len())
}

func TestLanePool_ClosedPoolRejectsWork(t *testing.T) {
	pool := coordinator.NewLanePool()
	pool.Close()

	err := pool.Do(context.Background(), []string{"a"}, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, coverr.HasCode(err, coverr.CodeCoordinatorLaneClosed))
}
