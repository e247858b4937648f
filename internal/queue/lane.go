// Package queue serialises work per key. Scheduled tool calls use one lane
// per job so a slow run never overlaps the next one.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrEmptyLaneID is returned when work is submitted without a lane ID.
	ErrEmptyLaneID = errors.New("queue: lane ID must not be empty")
	// ErrLaneBusy is returned by TryDo when the lane already has work.
	ErrLaneBusy = errors.New("queue: lane busy")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("queue: closed")
)

// Work is one unit of work. It receives the submitter's context.
type Work func(ctx context.Context) error

type workItem struct {
	ctx  context.Context
	fn   Work
	done chan error
}

// lane processes work items sequentially via a single goroutine.
type lane struct {
	work    chan workItem
	pending atomic.Int64 // queued plus running
}

func (l *lane) run(quit <-chan struct{}) {
	for {
		select {
		case item := <-l.work:
			if err := item.ctx.Err(); err != nil {
				item.done <- err
			} else {
				item.done <- safeExec(item.ctx, item.fn)
			}
			l.pending.Add(-1)
		case <-quit:
			return
		}
	}
}

// safeExec runs fn and converts a panic into an error.
func safeExec(ctx context.Context, fn Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: panic: %v", r)
		}
	}()
	return fn(ctx)
}

// defaultLaneBufferSize is the capacity of each lane's work channel.
var defaultLaneBufferSize = 64

// LaneQueue runs work FIFO within a lane and concurrently across lanes.
type LaneQueue struct {
	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	quit   chan struct{}
}

// NewLaneQueue creates a new LaneQueue ready for use.
func NewLaneQueue() *LaneQueue {
	return &LaneQueue{lanes: make(map[string]*lane), quit: make(chan struct{})}
}

// Do runs fn in laneID after earlier work in that lane and waits for it.
// It returns fn's error, or ctx.Err() if ctx ends first.
func (q *LaneQueue) Do(ctx context.Context, laneID string, fn Work) error {
	return q.submit(ctx, laneID, fn, false)
}

// TryDo is Do, except it returns ErrLaneBusy without queueing when the lane
// already has work.
func (q *LaneQueue) TryDo(ctx context.Context, laneID string, fn Work) error {
	return q.submit(ctx, laneID, fn, true)
}

func (q *LaneQueue) submit(ctx context.Context, laneID string, fn Work, exclusive bool) error {
	if laneID == "" {
		return ErrEmptyLaneID
	}
	l, err := q.reserve(laneID, exclusive)
	if err != nil {
		return err
	}
	item := workItem{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case l.work <- item:
	case <-ctx.Done():
		l.pending.Add(-1)
		return ctx.Err()
	case <-q.quit:
		l.pending.Add(-1)
		return ErrClosed
	}

	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrClosed
	}
}

// reserve returns the lane for laneID, creating it if needed, and counts the
// new item as pending. The check and the increment happen under q.mu so two
// TryDo calls cannot both see an idle lane.
func (q *LaneQueue) reserve(laneID string, exclusive bool) (*lane, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	l, ok := q.lanes[laneID]
	if !ok {
		l = &lane{work: make(chan workItem, defaultLaneBufferSize)}
		q.lanes[laneID] = l
		go l.run(q.quit)
	}
	if exclusive && l.pending.Load() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrLaneBusy, laneID)
	}
	l.pending.Add(1)
	return l, nil
}

// Pending returns queued plus running items in laneID.
func (q *LaneQueue) Pending(laneID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if l, ok := q.lanes[laneID]; ok {
		return int(l.pending.Load())
	}
	return 0
}

// LaneCount returns the number of lanes created so far.
func (q *LaneQueue) LaneCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes)
}

// Close stops every lane worker. Queued work is abandoned and its
// submitters get ErrClosed; a running item finishes in the background.
func (q *LaneQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.quit)
}
