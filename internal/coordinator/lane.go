// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package coordinator

import (
	"context"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	coverr "github.com/coverly-dev/coverly/pkg/errors"
)

// workItem represents a unit of work submitted to a Lane.
type workItem struct {
	fn     func(context.Context) error
	ctx    context.Context
	result chan<- error
}

// Lane serialises work for a single source ID. Tasks submitted via Submit
// are executed one at a time in FIFO order by a background goroutine.
type Lane struct {
	key     string
	queue   chan workItem
	done    chan struct{}
	closing chan struct{} // Closed immediately when Close() is called

	once sync.Once
}

// NewLane creates a Lane for the given key and starts its background
// processing goroutine. Call Close when the lane is no longer needed.
func NewLane(key string) *Lane {
	l := &Lane{
		key:     key,
		queue:   make(chan workItem, 64),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go l.run()
	return l
}

// run processes work items sequentially until the lane is closed.
func (l *Lane) run() {
	defer close(l.done)
	for {
		select {
		case w := <-l.queue:
			l.executeWork(w)
		case <-l.closing:
			// Drain any remaining queued items before exiting.
			for {
				select {
				case w := <-l.queue:
					l.executeWork(w)
				default:
					return
				}
			}
		}
	}
}

// executeWork runs a work item with panic recovery.
func (l *Lane) executeWork(w workItem) {
	// Skip execution if the submitter's context was cancelled while queued.
	if err := w.ctx.Err(); err != nil {
		w.result <- err
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("lane worker panic recovered",
					"source_id", l.key,
					"panic", r,
					"stack", string(debug.Stack()))
				err = coverr.Errorf(coverr.CodeCoordinatorLanePanic, "lane worker panic: %v", r)
			}
		}()
		err = w.fn(w.ctx)
	}()

	w.result <- err
}

// Submit enqueues fn for execution on this lane and blocks until it
// completes. If ctx is cancelled before the work item is enqueued,
// ctx.Err() is returned without executing fn. Once enqueued, Submit always
// waits for the result so a caller never returns while fn (or the
// compensation inside it) is still running.
func (l *Lane) Submit(ctx context.Context, fn func(context.Context) error) error {
	// Fast path: bail immediately if context is already done.
	if err := ctx.Err(); err != nil {
		return err
	}

	// Non-blocking check prevents send-to-closed-channel races.
	select {
	case <-l.closing:
		return coverr.New(coverr.CodeCoordinatorLaneClosed, "lane is closed", coverr.FieldSourceID(l.key))
	default:
	}

	result := make(chan error, 1)
	w := workItem{
		fn:     fn,
		ctx:    ctx,
		result: result,
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closing:
		return coverr.New(coverr.CodeCoordinatorLaneClosed, "lane is closed", coverr.FieldSourceID(l.key))
	case l.queue <- w:
	}

	// The worker drains the queue on close, so result is always delivered.
	return <-result
}

// Close shuts down the lane's background goroutine and waits for it to finish
// processing any already-enqueued work. Close is idempotent and safe for
// concurrent calls.
func (l *Lane) Close() {
	l.once.Do(func() {
		close(l.closing)
		<-l.done
	})
}

// pooledLane is a Lane plus the number of callers currently holding it.
type pooledLane struct {
	lane *Lane
	refs int
}

// LanePool manages Lanes keyed by source ID. Lanes are created on first
// acquisition and retired once no caller holds them. Safe for concurrent use.
type LanePool struct {
	mu     sync.Mutex
	lanes  map[string]*pooledLane
	closed bool
}

// NewLanePool returns an empty LanePool.
func NewLanePool() *LanePool {
	return &LanePool{
		lanes: make(map[string]*pooledLane),
	}
}

func (p *LanePool) acquire(key string) (*Lane, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, coverr.New(coverr.CodeCoordinatorLaneClosed, "lane pool is closed", coverr.FieldSourceID(key))
	}

	pl, ok := p.lanes[key]
	if !ok {
		pl = &pooledLane{lane: NewLane(key)}
		p.lanes[key] = pl
	}
	pl.refs++
	return pl.lane, nil
}

func (p *LanePool) release(key string) {
	p.mu.Lock()
	pl, ok := p.lanes[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	pl.refs--
	if pl.refs > 0 {
		p.mu.Unlock()
		return
	}
	delete(p.lanes, key)
	p.mu.Unlock()

	pl.lane.Close()
}

// Len returns the number of live lanes.
func (p *LanePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}

// Do runs fn while holding the lanes of every key. Keys are deduplicated and
// acquired in sorted order, so two callers needing overlapping key sets
// cannot deadlock.
func (p *LanePool) Do(ctx context.Context, keys []string, fn func(context.Context) error) error {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	return p.nest(ctx, sorted, fn)
}

func (p *LanePool) nest(ctx context.Context, keys []string, fn func(context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}

	lane, err := p.acquire(keys[0])
	if err != nil {
		return err
	}
	defer p.release(keys[0])

	return lane.Submit(ctx, func(ctx context.Context) error {
		return p.nest(ctx, keys[1:], fn)
	})
}

// Close shuts down all lanes managed by the pool. Later acquisitions fail.
func (p *LanePool) Close() {
	p.mu.Lock()
	p.closed = true
	lanes := p.lanes
	p.lanes = make(map[string]*pooledLane)
	p.mu.Unlock()

	for _, pl := range lanes {
		pl.lane.Close()
	}
}
