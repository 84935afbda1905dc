// File: internal/frame/frame.go

// Package frame provides the tick source the positioning engine defers work
// to. Style flushes and tween updates are coalesced onto frame boundaries so
// that many Set calls in one frame produce a single write.
package frame

import (
	"sync"
	"time"
)

// Callback is invoked once with the timestamp of the frame it runs on.
type Callback func(now time.Time)

// Scheduler defers work to frame boundaries.
type Scheduler interface {
	// Request enqueues cb to run exactly once on the next frame. Callbacks
	// run in enqueue order, ahead of subscribers.
	Request(cb Callback)
	// Subscribe registers cb to run on every frame until the returned
	// cancel function is called. Subscribers run in registration order.
	Subscribe(cb Callback) (cancel func())
}

type subscriber struct {
	id uint64
	cb Callback
}

// registry holds the shared queue/subscriber bookkeeping for the concrete
// schedulers.
type registry struct {
	mu     sync.Mutex
	queue  []Callback
	subs   []subscriber
	nextID uint64
}

func (r *registry) Request(cb Callback) {
	if cb == nil {
		return
	}
	r.mu.Lock()
	r.queue = append(r.queue, cb)
	r.mu.Unlock()
}

func (r *registry) Subscribe(cb Callback) func() {
	if cb == nil {
		return func() {}
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriber{id: id, cb: cb})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				copy(r.subs[i:], r.subs[i+1:])
				r.subs = r.subs[:len(r.subs)-1]
				return
			}
		}
	}
}

// Pending reports how many one-shot callbacks await the next frame.
func (r *registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// take drains the one-shot queue and snapshots the subscriber list. Work
// requested while a frame executes lands on the next frame.
func (r *registry) take() (queue, subs []Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue = r.queue
	r.queue = nil
	if len(r.subs) > 0 {
		subs = make([]Callback, len(r.subs))
		for i, s := range r.subs {
			subs[i] = s.cb
		}
	}
	return queue, subs
}
