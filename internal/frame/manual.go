// File: internal/frame/manual.go
package frame

import "time"

// Manual is a hand-stepped Scheduler for tests and offline rendering, where
// frames must advance deterministically. Panics are not recovered; a broken
// callback should fail the run that stepped it.
type Manual struct {
	registry
}

// NewManual returns a scheduler that only advances when Step is called.
func NewManual() *Manual {
	return &Manual{}
}

// Step executes one frame at the given timestamp: first the one-shot queue,
// then every subscriber. Work enqueued during the step runs on the next one.
func (m *Manual) Step(now time.Time) {
	queue, subs := m.take()
	for _, cb := range queue {
		cb(now)
	}
	for _, cb := range subs {
		cb(now)
	}
}
