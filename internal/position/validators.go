// File: internal/position/validators.go
package position

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/transform"
)

// ValidationData is the bundle each validator inspects. Candidate carries the
// merged position the pipeline wants to commit; validators may return an
// adjusted copy or nil to veto the whole update.
type ValidationData struct {
	// Candidate is the fully merged position under consideration. Each
	// validator in the chain receives the previous validator's returned
	// value, so adjustments accumulate.
	Candidate schemas.PositionData
	// Current is the committed position before this update.
	Current schemas.PositionData
	// Parent is the client box of the containing element.
	Parent schemas.Size
	// Element is the last observed geometry of the element itself.
	Element schemas.ResizeObservation
	// Styles is a snapshot of the styles last written to the element.
	Styles map[string]string
	// Transform lazily computes derived geometry for the candidate.
	Transform func() transform.Data
	// Margins and the size bounds come from the owning instance's
	// configuration.
	Margins Margins
	MinSize schemas.Size
	MaxSize schemas.Size
	// Rest carries any extra keys from the original patch. Never merged
	// into position data.
	Rest map[string]any
}

// Validator vets one candidate update. A nil result rejects the entire
// update; a non-nil result (possibly adjusted) lets the chain continue.
// Rejection is not an error, so there is no error channel.
type Validator interface {
	Validate(d ValidationData) *schemas.PositionData
}

// ValidatorFunc adapts a plain function to the Validator interface.
type ValidatorFunc func(d ValidationData) *schemas.PositionData

func (f ValidatorFunc) Validate(d ValidationData) *schemas.PositionData { return f(d) }

// Notifier lets a validator ask for re-validation without a new Set call,
// e.g. after a window resize moved the goalposts. Register receives the
// trigger and returns a cleanup function.
type Notifier interface {
	Register(revalidate func()) (cancel func())
}

// Entry is one element of the validator chain.
type Entry struct {
	// ID identifies the entry for RemoveByID. Assigned automatically when
	// empty.
	ID string
	// Weight orders the chain ascending and is clamped to [0, 1]. Entries
	// with equal weight run in insertion order.
	Weight float64
	// Validator is required.
	Validator Validator
	// Notifier is optional; wired to the owning instance on Bind.
	Notifier Notifier
}

type chainEntry struct {
	Entry
	cancel func()
}

// Validators is the ordered, weighted chain the pipeline consults before
// committing an update. The zero value is not usable; construct with
// NewValidators.
type Validators struct {
	mu         sync.Mutex
	entries    []*chainEntry
	enabled    bool
	revalidate func()
}

// NewValidators builds an enabled chain from the given entries.
func NewValidators(entries ...Entry) *Validators {
	v := &Validators{enabled: true}
	for _, e := range entries {
		v.Add(e)
	}
	return v
}

// Add inserts an entry and re-sorts the chain. It returns the entry's ID.
func (v *Validators) Add(e Entry) string {
	if e.Validator == nil {
		return ""
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Weight < 0 {
		e.Weight = 0
	} else if e.Weight > 1 {
		e.Weight = 1
	}

	ce := &chainEntry{Entry: e}

	v.mu.Lock()
	v.entries = append(v.entries, ce)
	// Stable sort keeps insertion order within equal weights.
	sort.SliceStable(v.entries, func(i, j int) bool {
		return v.entries[i].Weight < v.entries[j].Weight
	})
	revalidate := v.revalidate
	v.mu.Unlock()

	if e.Notifier != nil && revalidate != nil {
		cancel := e.Notifier.Register(revalidate)
		v.mu.Lock()
		ce.cancel = cancel
		v.mu.Unlock()
	}
	return e.ID
}

// Remove drops every entry carrying the given validator.
func (v *Validators) Remove(val Validator) int {
	return v.RemoveBy(func(e Entry) bool { return e.Validator == val })
}

// RemoveByID drops the entry with the given ID.
func (v *Validators) RemoveByID(id string) bool {
	return v.RemoveBy(func(e Entry) bool { return e.ID == id }) > 0
}

// RemoveBy drops every entry the predicate matches and reports how many
// were removed.
func (v *Validators) RemoveBy(pred func(Entry) bool) int {
	v.mu.Lock()
	kept := v.entries[:0]
	var dropped []*chainEntry
	for _, ce := range v.entries {
		if pred(ce.Entry) {
			dropped = append(dropped, ce)
		} else {
			kept = append(kept, ce)
		}
	}
	v.entries = kept
	v.mu.Unlock()

	for _, ce := range dropped {
		if ce.cancel != nil {
			ce.cancel()
		}
	}
	return len(dropped)
}

// Clear removes every entry.
func (v *Validators) Clear() {
	v.RemoveBy(func(Entry) bool { return true })
}

// Len reports the number of entries.
func (v *Validators) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.entries)
}

// IDs lists entry IDs in chain order.
func (v *Validators) IDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := make([]string, len(v.entries))
	for i, ce := range v.entries {
		ids[i] = ce.ID
	}
	return ids
}

// SetEnabled toggles the whole chain. When disabled the pipeline accepts
// every candidate as-is.
func (v *Validators) SetEnabled(enabled bool) {
	v.mu.Lock()
	v.enabled = enabled
	v.mu.Unlock()
}

// Enabled reports whether the chain participates in updates.
func (v *Validators) Enabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

// Bind wires notifier hooks to the owning instance's revalidation trigger.
// Entries added later are wired on Add.
func (v *Validators) Bind(revalidate func()) {
	v.mu.Lock()
	v.revalidate = revalidate
	entries := make([]*chainEntry, len(v.entries))
	copy(entries, v.entries)
	v.mu.Unlock()

	if revalidate == nil {
		return
	}
	for _, ce := range entries {
		if ce.Notifier != nil && ce.cancel == nil {
			cancel := ce.Notifier.Register(revalidate)
			v.mu.Lock()
			ce.cancel = cancel
			v.mu.Unlock()
		}
	}
}

// run threads the candidate through the chain. The second result is false
// when a validator vetoed the update.
func (v *Validators) run(d ValidationData) (schemas.PositionData, bool) {
	v.mu.Lock()
	if !v.enabled {
		v.mu.Unlock()
		return d.Candidate, true
	}
	entries := make([]*chainEntry, len(v.entries))
	copy(entries, v.entries)
	v.mu.Unlock()

	cand := d.Candidate
	for _, ce := range entries {
		d.Candidate = cand
		out := ce.Validator.Validate(d)
		if out == nil {
			return schemas.PositionData{}, false
		}
		cand = *out
	}
	return cand, true
}
