// File: internal/position/position_test.go
package position_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/frame"
	"github.com/xkilldash9x/repose/internal/position"
	"github.com/xkilldash9x/repose/internal/transform"
)

// mockTarget records every style write it receives.
type mockTarget struct {
	mu     sync.Mutex
	writes []map[string]string
	err    error
}

func (m *mockTarget) ApplyStyles(_ context.Context, styles map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(styles))
	for k, v := range styles {
		cp[k] = v
	}
	m.writes = append(m.writes, cp)
	return m.err
}

func (m *mockTarget) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *mockTarget) last() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return nil
	}
	return m.writes[len(m.writes)-1]
}

// merged folds all writes into the element's effective style state.
func (m *mockTarget) merged() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, w := range m.writes {
		for k, v := range w {
			if v == "" {
				delete(out, k)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func seedData() schemas.PositionData {
	var d schemas.PositionData
	d.Width = schemas.Px(100)
	d.Height = schemas.Px(50)
	d.Left = schemas.NewFloat(0)
	d.Top = schemas.NewFloat(0)
	return d
}

func newTestPosition(t *testing.T, cfg position.Config) (*position.Position, *frame.Manual) {
	t.Helper()
	m := frame.NewManual()
	cfg.Scheduler = m
	if cfg.Logger == nil {
		cfg.Logger = zaptest.NewLogger(t)
	}
	p, err := position.New(cfg)
	require.NoError(t, err)
	return p, m
}

func TestNewRequiresScheduler(t *testing.T) {
	t.Parallel()
	_, err := position.New(position.Config{})
	require.ErrorIs(t, err, position.ErrSchedulerRequired)
}

func TestNewRejectsInvertedBounds(t *testing.T) {
	t.Parallel()
	m := frame.NewManual()
	_, err := position.New(position.Config{
		Scheduler: m,
		MinSize:   schemas.Size{Width: schemas.Px(500)},
		MaxSize:   schemas.Size{Width: schemas.Px(100)},
	})
	require.Error(t, err)
}

func TestSetRelativeEndToEnd(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData()})

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: "+=50"}))
	assert.Equal(t, 50.0, p.Get()[schemas.KeyLeft])

	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))

	type updated struct {
		ts  time.Time
		err error
	}
	resCh := make(chan updated, 1)
	go func() {
		ts, err := p.ElementUpdated(context.Background())
		resCh <- updated{ts, err}
	}()

	var res updated
	require.Eventually(t, func() bool {
		m.Step(time.Now())
		select {
		case res = <-resCh:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, res.err)
	assert.False(t, res.ts.IsZero())

	style := tgt.merged()
	assert.Equal(t, "50px", style["left"])
	assert.Equal(t, "0px", style["top"])
	assert.Equal(t, "100px", style["width"])
	assert.Equal(t, "50px", style["height"])
	assert.NotContains(t, style, "transform")
}

func TestOrthoModeWritesMatrixInsteadOfLeftTop(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData(), Ortho: true})
	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: "+=50"}))

	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())

	style := tgt.merged()
	assert.Equal(t, "matrix3d(1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 50, 0, 0, 1)", style["transform"])
	assert.NotContains(t, style, "left")
	assert.NotContains(t, style, "top")
	assert.Equal(t, "100px", style["width"])
}

func TestSetIdempotentSkipsDuplicateWrite(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData()})
	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())
	require.Equal(t, 1, tgt.count())

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 5.0}))
	m.Step(time.Now())
	require.Equal(t, 2, tgt.count())
	assert.Equal(t, map[string]string{"left": "5px"}, tgt.last())

	// Identical data again: accepted, but nothing reaches the element.
	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 5.0}))
	m.Step(time.Now())
	assert.Equal(t, 2, tgt.count())
}

func TestImmediateElementUpdateFlushesBeforeReturn(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData()})
	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())
	before := tgt.count()

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 25.0}, position.WithImmediateElementUpdate()))
	assert.Equal(t, before+1, tgt.count())
	assert.Equal(t, "25px", tgt.last()["left"])
}

func TestCoalescedWritesSingleFlushPerFrame(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData()})
	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())
	before := tgt.count()

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 10.0}))
	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 20.0}))
	require.True(t, p.Set(schemas.Patch{schemas.KeyTop: 30.0}))
	m.Step(time.Now())

	require.Equal(t, before+1, tgt.count())
	assert.Equal(t, map[string]string{"left": "20px", "top": "30px"}, tgt.last())
}

func TestFirstWriteAfterAttachIncludesSize(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData()})
	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())

	first := tgt.last()
	assert.Equal(t, "100px", first["width"])
	assert.Equal(t, "50px", first["height"])
}

func TestValidatorShortCircuitNoNotify(t *testing.T) {
	t.Parallel()

	var ran []string
	chain := position.NewValidators(
		position.Entry{
			ID:     "accepts",
			Weight: 0.2,
			Validator: position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
				ran = append(ran, "accepts")
				return &d.Candidate
			}),
		},
		position.Entry{
			ID:     "rejects",
			Weight: 0.5,
			Validator: position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
				ran = append(ran, "rejects")
				return nil
			}),
		},
	)

	p, m := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})
	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())
	writes := tgt.count()

	notifications := 0
	p.Subscribe(func(schemas.PositionData) { notifications++ })
	require.Equal(t, 1, notifications) // immediate initial call

	ok := p.Set(schemas.Patch{schemas.KeyLeft: 10.0})
	m.Step(time.Now())

	assert.False(t, ok)
	assert.Equal(t, []string{"accepts", "rejects"}, ran)
	assert.Equal(t, 1, notifications)
	assert.Equal(t, 0.0, p.Get()[schemas.KeyLeft])
	assert.Equal(t, writes, tgt.count())
}

func TestValidatorWeightOrdering(t *testing.T) {
	t.Parallel()

	var order []float64
	rec := func(w float64) position.Validator {
		return position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
			order = append(order, w)
			return &d.Candidate
		})
	}

	chain := position.NewValidators(
		position.Entry{Weight: 0.8, Validator: rec(0.8)},
		position.Entry{Weight: 0.1, Validator: rec(0.1)},
		position.Entry{Weight: 0.5, Validator: rec(0.5)},
	)
	p, _ := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 1.0}))
	assert.Equal(t, []float64{0.1, 0.5, 0.8}, order)
}

func TestValidatorAdjustmentsThreadThroughChain(t *testing.T) {
	t.Parallel()

	var seenBySecond schemas.Float
	chain := position.NewValidators(
		position.Entry{
			Weight: 0.1,
			Validator: position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
				out := d.Candidate
				out.Left = schemas.NewFloat(10) // clamp
				return &out
			}),
		},
		position.Entry{
			Weight: 0.9,
			Validator: position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
				seenBySecond = d.Candidate.Left
				return &d.Candidate
			}),
		},
	)
	p, _ := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 500.0}))
	assert.Equal(t, schemas.NewFloat(10), seenBySecond)
	assert.Equal(t, 10.0, p.Get()[schemas.KeyLeft])
}

func TestValidatorChainDisabledBypasses(t *testing.T) {
	t.Parallel()

	chain := position.NewValidators(position.Entry{
		Validator: position.ValidatorFunc(func(position.ValidationData) *schemas.PositionData {
			return nil // would reject everything
		}),
	})
	chain.SetEnabled(false)

	p, _ := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})
	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 42.0}))
	assert.Equal(t, 42.0, p.Get()[schemas.KeyLeft])
}

func TestExtraPatchKeysReachValidatorsNotData(t *testing.T) {
	t.Parallel()

	var seenRest map[string]any
	chain := position.NewValidators(position.Entry{
		Validator: position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
			seenRest = d.Rest
			return &d.Candidate
		}),
	})
	p, _ := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})

	require.True(t, p.Set(schemas.Patch{
		schemas.KeyLeft:        5.0,
		schemas.Key("payload"): "drag",
	}))

	require.NotNil(t, seenRest)
	assert.Equal(t, "drag", seenRest["payload"])
	_, present := p.Get()[schemas.Key("payload")]
	assert.False(t, present)
}

func TestUnresolvableFieldDroppedSiblingsApplied(t *testing.T) {
	t.Parallel()

	p, _ := newTestPosition(t, position.Config{Initial: seedData()})
	require.True(t, p.Set(schemas.Patch{
		schemas.KeyWidth: "10rad", // dropped
		schemas.KeyLeft:  "+=50",
	}))

	got := p.Get()
	assert.Equal(t, 100.0, got[schemas.KeyWidth])
	assert.Equal(t, 50.0, got[schemas.KeyLeft])
}

func TestDisabledSetIsNoOp(t *testing.T) {
	t.Parallel()

	p, _ := newTestPosition(t, position.Config{Initial: seedData()})
	notifications := 0
	p.Subscribe(func(schemas.PositionData) { notifications++ })

	p.SetEnabled(false)
	assert.False(t, p.Set(schemas.Patch{schemas.KeyLeft: 99.0}))
	assert.Equal(t, 0.0, p.Get()[schemas.KeyLeft])
	assert.Equal(t, 1, notifications)

	p.SetEnabled(true)
	assert.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 99.0}))
	assert.Equal(t, 99.0, p.Get()[schemas.KeyLeft])
}

func TestRevalidateOnNotifier(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		maxLeft = 1000.0
		trigger func()
	)
	notifier := notifierFunc(func(reval func()) func() {
		trigger = reval
		return func() { trigger = nil }
	})
	chain := position.NewValidators(position.Entry{
		Notifier: notifier,
		Validator: position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
			mu.Lock()
			limit := maxLeft
			mu.Unlock()
			out := d.Candidate
			if out.Left.Or(0) > limit {
				out.Left = schemas.NewFloat(limit)
			}
			return &out
		}),
	})

	p, _ := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})
	require.NotNil(t, trigger)

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 800.0}))
	assert.Equal(t, 800.0, p.Get()[schemas.KeyLeft])

	// The constraint tightens, the notifier fires, no new Set call needed.
	mu.Lock()
	maxLeft = 300
	mu.Unlock()
	trigger()

	assert.Equal(t, 300.0, p.Get()[schemas.KeyLeft])
}

type notifierFunc func(func()) func()

func (f notifierFunc) Register(reval func()) func() { return f(reval) }

func TestParentPercentResolution(t *testing.T) {
	t.Parallel()

	p, _ := newTestPosition(t, position.Config{
		Initial: seedData(),
		Parent:  schemas.Size{Width: schemas.Px(200), Height: schemas.Px(400)},
	})

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: "50%"}))
	assert.Equal(t, 100.0, p.Get()[schemas.KeyLeft])

	p.SetParentSize(schemas.Size{Width: schemas.Px(600), Height: schemas.Px(400)})
	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: "50%"}))
	assert.Equal(t, 300.0, p.Get()[schemas.KeyLeft])
}

func TestGetFilters(t *testing.T) {
	t.Parallel()

	var d schemas.PositionData
	d.Left = schemas.NewFloat(1)
	d.Width = schemas.Auto()
	p, _ := newTestPosition(t, position.Config{Initial: d})

	full := p.Get()
	assert.Len(t, full, len(schemas.Keys()))
	assert.Equal(t, 1.0, full[schemas.KeyLeft])
	assert.Equal(t, "auto", full[schemas.KeyWidth])
	assert.Nil(t, full[schemas.KeyTop])

	compact := p.Get(position.WithoutNull())
	_, hasTop := compact[schemas.KeyTop]
	assert.False(t, hasTop)
	assert.Equal(t, 1.0, compact[schemas.KeyLeft])

	numeric := p.Get(position.WithNumericDefaults())
	assert.Equal(t, 0.0, numeric[schemas.KeyTop])
	assert.Equal(t, 1.0, numeric[schemas.KeyScale])
	assert.Equal(t, string(schemas.DefaultOrigin), numeric[schemas.KeyTransformOrigin])

	only := p.Get(position.WithKeys(schemas.KeyLeft, schemas.KeyTop))
	assert.Len(t, only, 2)

	without := p.Get(position.WithoutKeys(schemas.KeyLeft))
	_, hasLeft := without[schemas.KeyLeft]
	assert.False(t, hasLeft)
}

func TestJSONSnapshot(t *testing.T) {
	t.Parallel()

	var d schemas.PositionData
	d.Left = schemas.NewFloat(1.5)
	p, _ := newTestPosition(t, position.Config{Initial: d})

	b, err := p.JSON(position.WithKeys(schemas.KeyLeft))
	require.NoError(t, err)
	assert.JSONEq(t, `{"left":1.5}`, string(b))
}

func TestFieldStoreRoutesThroughPipeline(t *testing.T) {
	t.Parallel()

	chain := position.NewValidators(position.Entry{
		Validator: position.ValidatorFunc(func(d position.ValidationData) *schemas.PositionData {
			out := d.Candidate
			if out.Left.Or(0) > 100 {
				return nil
			}
			return &out
		}),
	})
	p, _ := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})

	left := p.Field(schemas.KeyLeft)
	var seen []any
	left.Subscribe(func(v any) { seen = append(seen, v) })
	require.Equal(t, []any{0.0}, seen)

	assert.True(t, left.Set(40.0))
	assert.Equal(t, 40.0, left.Get())

	// Vetoed by the chain: value unchanged, no notification.
	assert.False(t, left.Set(500.0))
	assert.Equal(t, 40.0, left.Get())
	assert.Equal(t, []any{0.0, 40.0}, seen)

	assert.True(t, left.Update(func(v any) any { return v.(float64) + 10 }))
	assert.Equal(t, 50.0, left.Get())
}

func TestDerivedStoresFollowCommits(t *testing.T) {
	t.Parallel()

	p, _ := newTestPosition(t, position.Config{Initial: seedData()})

	var lastSize schemas.Size
	p.Dimensions().Subscribe(func(s schemas.Size) { lastSize = s })

	var lastGeom transform.Data
	p.Geometry().Subscribe(func(d transform.Data) { lastGeom = d })

	require.True(t, p.Set(schemas.Patch{schemas.KeyWidth: 320.0}))
	w, ok := lastSize.Width.Pixels()
	require.True(t, ok)
	assert.Equal(t, 320.0, w)

	require.True(t, p.Set(schemas.Patch{schemas.KeyRotateZ: 90.0}))
	assert.NotEmpty(t, lastGeom.CSS)
	assert.NotEmpty(t, p.TransformData().CSS)
}

func TestLoadBypassesValidation(t *testing.T) {
	t.Parallel()

	chain := position.NewValidators(position.Entry{
		Validator: position.ValidatorFunc(func(position.ValidationData) *schemas.PositionData {
			return nil // rejects everything
		}),
	})
	p, _ := newTestPosition(t, position.Config{Initial: seedData(), Validators: chain})

	require.False(t, p.Set(schemas.Patch{schemas.KeyLeft: 10.0}))

	var d schemas.PositionData
	d.Left = schemas.NewFloat(77)
	notified := 0
	p.Subscribe(func(schemas.PositionData) { notified++ })

	p.Load(d)
	assert.Equal(t, 77.0, p.Get()[schemas.KeyLeft])
	assert.Equal(t, 2, notified)
}

func TestDetachFailsWaitersAndKeepsData(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData()})
	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())

	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 5.0}))
	m.Step(time.Now()) // drain the pending flush so the queue is empty

	errCh := make(chan error, 1)
	go func() {
		_, err := p.ElementUpdated(context.Background())
		errCh <- err
	}()

	// The waiter schedules its own flush; its arrival in the queue proves
	// registration happened.
	require.Eventually(t, func() bool { return m.Pending() > 0 }, 2*time.Second, time.Millisecond)
	p.Detach()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, position.ErrDetached)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never failed after detach")
	}

	assert.False(t, p.Attached())
	assert.Equal(t, 5.0, p.Get()[schemas.KeyLeft])

	_, err := p.ElementUpdated(context.Background())
	require.ErrorIs(t, err, position.ErrNotAttached)
}

func TestStyleWriteFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	p, m := newTestPosition(t, position.Config{Initial: seedData()})
	tgt := &mockTarget{err: assert.AnError}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())
	require.Equal(t, 1, tgt.count())

	// The pipeline keeps accepting updates after a failed write.
	require.True(t, p.Set(schemas.Patch{schemas.KeyLeft: 30.0}))
	m.Step(time.Now())
	assert.Equal(t, 2, tgt.count())
}

func TestPlacementSeedsMissingCoordinates(t *testing.T) {
	t.Parallel()

	var d schemas.PositionData
	d.Width = schemas.Px(100)
	d.Height = schemas.Px(50)

	p, m := newTestPosition(t, position.Config{
		Initial:   d,
		Placement: centerIn(800, 600),
	})

	tgt := &mockTarget{}
	require.NoError(t, p.Attach(context.Background(), tgt))
	m.Step(time.Now())

	got := p.Get()
	assert.Equal(t, 350.0, got[schemas.KeyLeft])
	assert.Equal(t, 275.0, got[schemas.KeyTop])
	assert.Equal(t, "350px", tgt.merged()["left"])
}

type fixedPlacement struct{ vw, vh float64 }

func centerIn(vw, vh float64) fixedPlacement { return fixedPlacement{vw: vw, vh: vh} }

func (f fixedPlacement) Left(width float64) float64 { return (f.vw - width) / 2 }
func (f fixedPlacement) Top(height float64) float64 { return (f.vh - height) / 2 }
