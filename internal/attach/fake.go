// File: internal/attach/fake.go
package attach

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/xkilldash9x/repose/api/schemas"
)

// Fake is an in-memory element target. It records every style flush and
// maintains the merged style surface the way a DOM node would end up
// carrying it, so tests and demos can assert on both the write history and
// the final state without a browser.
type Fake struct {
	mu      sync.Mutex
	writes  []map[string]string
	style   map[string]string
	err     error
	bounds  schemas.ResizeObservation
	parent  schemas.Size
	sized   bool
	flushed int
}

// NewFake returns an empty recorder target.
func NewFake() *Fake {
	return &Fake{style: make(map[string]string)}
}

// ApplyStyles records the flush and folds it into the merged style state.
// An empty value removes the property, matching the live backend.
func (f *Fake) ApplyStyles(ctx context.Context, styles map[string]string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}

	cp := make(map[string]string, len(styles))
	for prop, val := range styles {
		cp[prop] = val
		if val == "" {
			delete(f.style, prop)
		} else {
			f.style[prop] = val
		}
	}
	f.writes = append(f.writes, cp)
	f.flushed++
	return nil
}

// FailWith makes every subsequent ApplyStyles return err until called again
// with nil. Writes made while failing are not recorded.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// SetBounds configures the synthetic geometry Sync reports.
func (f *Fake) SetBounds(obs schemas.ResizeObservation, parent schemas.Size) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bounds = obs
	f.parent = parent
	f.sized = true
}

// Sync pushes the configured synthetic geometry into the store. It is a
// no-op until SetBounds has been called, mirroring a browser element that
// has not produced an observation yet.
func (f *Fake) Sync(ctx context.Context, into Geometry) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	f.mu.Lock()
	obs, parent, sized := f.bounds, f.parent, f.sized
	f.mu.Unlock()

	if !sized || into == nil {
		return nil
	}
	into.SetParentSize(parent)
	into.ObserveResize(obs)
	return nil
}

// Flushes reports how many style writes landed.
func (f *Fake) Flushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushed
}

// Writes returns a copy of the full flush history in arrival order.
func (f *Fake) Writes() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]string, len(f.writes))
	for i, w := range f.writes {
		cp := make(map[string]string, len(w))
		for prop, val := range w {
			cp[prop] = val
		}
		out[i] = cp
	}
	return out
}

// LastWrite returns a copy of the most recent flush, or nil when none
// landed yet.
func (f *Fake) LastWrite() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	last := f.writes[len(f.writes)-1]
	cp := make(map[string]string, len(last))
	for prop, val := range last {
		cp[prop] = val
	}
	return cp
}

// Style reports the merged value of a single property.
func (f *Fake) Style(prop string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.style[prop]
	return val, ok
}

// Styles returns a copy of the merged style surface.
func (f *Fake) Styles() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]string, len(f.style))
	for prop, val := range f.style {
		cp[prop] = val
	}
	return cp
}

// StyleText renders the merged surface as a deterministic inline-style
// string, handy for one-line assertions and demo output.
func (f *Fake) StyleText() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	props := make([]string, 0, len(f.style))
	for prop := range f.style {
		props = append(props, prop)
	}
	sort.Strings(props)

	var b strings.Builder
	for i, prop := range props {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(prop)
		b.WriteString(": ")
		b.WriteString(f.style[prop])
	}
	return b.String()
}

// Reset clears history, merged state and any injected error. Configured
// bounds survive.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.style = make(map[string]string)
	f.err = nil
	f.flushed = 0
}
