// File: internal/position/stores.go
package position

import (
	"sync"

	"github.com/xkilldash9x/repose/api/schemas"
)

// Store is a minimal readable/writable value container with synchronous
// subscriber notification. Subscribe immediately invokes fn with the current
// value, then again on every Set, in registration order.
type Store[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   []*storeBinding[T]
	nextID uint64
}

type storeBinding[T any] struct {
	id     uint64
	fn     func(T)
	active bool
}

// NewStore returns a store seeded with initial.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

// Get returns the current value. Safe from any goroutine.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies subscribers outside the lock.
func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	// Compact away cancelled bindings while we hold the lock.
	active := make([]*storeBinding[T], 0, len(s.subs))
	for _, b := range s.subs {
		if b.active {
			active = append(active, b)
		}
	}
	s.subs = active
	s.mu.Unlock()

	for _, b := range active {
		b.fn(v)
	}
}

// Update applies fn to the current value and stores the result.
func (s *Store[T]) Update(fn func(T) T) {
	s.Set(fn(s.Get()))
}

// Subscribe registers fn and immediately invokes it with the current value.
func (s *Store[T]) Subscribe(fn func(T)) Unsubscribe {
	s.mu.Lock()
	s.nextID++
	b := &storeBinding[T]{id: s.nextID, fn: fn, active: true}
	s.subs = append(s.subs, b)
	v := s.value
	s.mu.Unlock()

	fn(v)

	return func() {
		s.mu.Lock()
		b.active = false
		s.mu.Unlock()
	}
}

// FieldStore is a read/write channel for a single position field, routed
// through the owning instance's update pipeline. Writes are ordinary Set
// calls and may therefore be vetoed by the validator chain.
type FieldStore struct {
	p   *Position
	key schemas.Key
}

// Key names the field this store addresses.
func (f *FieldStore) Key() schemas.Key { return f.key }

// Get returns the field's current value: float64, "auto"/"inherit", an
// origin string, or nil when unset.
func (f *FieldStore) Get() any {
	data := f.p.Data()
	return fieldValue(&data, f.key)
}

// Set routes the value through the update pipeline. The result reports
// whether the update was applied.
func (f *FieldStore) Set(v any) bool {
	return f.p.Set(schemas.Patch{f.key: v})
}

// Update applies fn to the current value and routes the result through the
// pipeline.
func (f *FieldStore) Update(fn func(any) any) bool {
	return f.Set(fn(f.Get()))
}

// Subscribe projects the field out of the position stream. The callback
// fires immediately and then on every committed update.
func (f *FieldStore) Subscribe(fn func(any)) Unsubscribe {
	return f.p.Subscribe(func(d schemas.PositionData) {
		fn(fieldValue(&d, f.key))
	})
}

// fieldValue lowers a typed field to its plain reactive-channel form.
func fieldValue(d *schemas.PositionData, k schemas.Key) any {
	v, ok := d.Value(k)
	if !ok {
		return nil
	}
	switch tv := v.(type) {
	case schemas.Float:
		if !tv.Valid() {
			return nil
		}
		return tv.Float64()
	case schemas.Dimension:
		if !tv.Valid() {
			return nil
		}
		if tv.IsAuto() {
			return "auto"
		}
		if tv.IsInherit() {
			return "inherit"
		}
		px, _ := tv.Pixels()
		return px
	case schemas.Origin:
		if tv == "" {
			return nil
		}
		return string(tv)
	default:
		return nil
	}
}
