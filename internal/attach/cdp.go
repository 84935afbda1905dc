// File: internal/attach/cdp.go

// Package attach provides element targets for the positioning pipeline: a
// chromedp-backed Element that writes inline styles into a live browser tab
// and reads its box metrics back, and an in-memory Fake for tests and demos.
package attach

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/repose/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrSelectorRequired is returned when an Element is built without a
	// CSS selector.
	ErrSelectorRequired = errors.New("attach: selector required")
	// ErrElementNotFound is returned when the selector matches nothing in
	// the live document.
	ErrElementNotFound = errors.New("attach: element not found")
)

// Geometry is the slice of the position store that box-metric sync feeds.
type Geometry interface {
	SetParentSize(schemas.Size)
	ObserveResize(schemas.ResizeObservation)
}

// Element binds a DOM node, addressed by CSS selector, over the Chrome
// DevTools Protocol. Style flushes and metric reads run against the chromedp
// tab context the caller provides per call, so one Element can serve
// whichever tab the position was attached with.
type Element struct {
	selector string
	logger   *zap.Logger
	timeout  time.Duration
}

// ElementOption adjusts Element construction.
type ElementOption func(*Element)

// WithTimeout bounds each CDP round trip. Zero or negative keeps the
// default.
func WithTimeout(d time.Duration) ElementOption {
	return func(e *Element) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewElement builds a target for the node matched by selector.
func NewElement(selector string, logger *zap.Logger, opts ...ElementOption) (*Element, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, ErrSelectorRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Element{
		selector: selector,
		logger:   logger.Named("attach").With(zap.String("selector", selector)),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Selector reports the CSS selector the Element was built with.
func (e *Element) Selector() string { return e.selector }

// ApplyStyles writes one coalesced style diff to the element. Empty values
// remove the property. The whole batch lands in a single Evaluate so the
// browser never paints a half-applied frame.
func (e *Element) ApplyStyles(ctx context.Context, styles map[string]string) error {
	if len(styles) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	script := styleScript(e.selector, styles)
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var found bool
	err := chromedp.Run(opCtx, chromedp.Evaluate(script, &found, evaluateByValue))
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("timeout writing styles to %q after %v: %w", e.selector, e.timeout, opCtx.Err())
		}
		return fmt.Errorf("style write to %q failed: %w", e.selector, err)
	}
	if !found {
		e.logger.Debug("Style write hit no element")
		return fmt.Errorf("%w: %q", ErrElementNotFound, e.selector)
	}
	return nil
}

// Metrics is the element box plus its containing client box, read in one
// round trip.
type Metrics struct {
	OffsetWidth   float64 `json:"offsetWidth"`
	OffsetHeight  float64 `json:"offsetHeight"`
	ContentWidth  float64 `json:"contentWidth"`
	ContentHeight float64 `json:"contentHeight"`
	ParentWidth   float64 `json:"parentWidth"`
	ParentHeight  float64 `json:"parentHeight"`
}

// Observation converts the element box into the observation the pipeline
// consumes.
func (m Metrics) Observation() schemas.ResizeObservation {
	return schemas.ResizeObservation{
		OffsetWidth:   m.OffsetWidth,
		OffsetHeight:  m.OffsetHeight,
		ContentWidth:  m.ContentWidth,
		ContentHeight: m.ContentHeight,
	}
}

// ParentSize converts the containing client box into a concrete pixel size.
func (m Metrics) ParentSize() schemas.Size {
	return schemas.Size{
		Width:  schemas.Px(m.ParentWidth),
		Height: schemas.Px(m.ParentHeight),
	}
}

// Metrics reads the live element box and its offset parent's client box.
func (e *Element) Metrics(ctx context.Context) (Metrics, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	script := metricsScript(e.selector)
	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var res jsoniter.RawMessage
	err := chromedp.Run(opCtx, chromedp.Evaluate(script, &res, evaluateByValue))
	if err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return Metrics{}, fmt.Errorf("timeout reading metrics for %q after %v: %w", e.selector, e.timeout, opCtx.Err())
		}
		return Metrics{}, fmt.Errorf("metrics read for %q failed: %w", e.selector, err)
	}
	if string(res) == "null" {
		e.logger.Debug("Metrics read hit no element")
		return Metrics{}, fmt.Errorf("%w: %q", ErrElementNotFound, e.selector)
	}

	var m Metrics
	if err := json.Unmarshal(res, &m); err != nil {
		return Metrics{}, fmt.Errorf("decoding metrics for %q: %w (payload: %s)", e.selector, err, string(res))
	}
	return m, nil
}

// Sync reads the live box once and feeds both the element observation and
// the containing client box into the store.
func (e *Element) Sync(ctx context.Context, into Geometry) error {
	m, err := e.Metrics(ctx)
	if err != nil {
		return err
	}
	if into == nil {
		return nil
	}
	into.SetParentSize(m.ParentSize())
	into.ObserveResize(m.Observation())
	return nil
}

// Watch polls the element box on the given interval and forwards changes
// into the store until ctx is cancelled. Transient read failures are logged
// and skipped; the return value is always the terminal context error.
func (e *Element) Watch(ctx context.Context, into Geometry, every time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if every <= 0 {
		every = time.Second
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last Metrics
	var seen bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m, err := e.Metrics(ctx)
			if err != nil {
				e.logger.Debug("Element metrics poll failed", zap.Error(err))
				continue
			}
			if seen && m == last {
				continue
			}
			last, seen = m, true
			if into != nil {
				into.SetParentSize(m.ParentSize())
				into.ObserveResize(m.Observation())
			}
		}
	}
}

// evaluateByValue makes Evaluate return the resolved value rather than a
// remote object reference, with JS-side exceptions kept quiet.
func evaluateByValue(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
}

// styleScript renders one setProperty/removeProperty batch against the
// selected element. Properties are emitted in sorted order so the same diff
// always produces the same script.
func styleScript(selector string, styles map[string]string) string {
	props := make([]string, 0, len(styles))
	for prop := range styles {
		props = append(props, prop)
	}
	sort.Strings(props)

	var b strings.Builder
	b.WriteString("(function(sel) {\n")
	b.WriteString("  const node = document.querySelector(sel);\n")
	b.WriteString("  if (!node) return false;\n")
	for _, prop := range props {
		if val := styles[prop]; val == "" {
			fmt.Fprintf(&b, "  node.style.removeProperty(%s);\n", jsString(prop))
		} else {
			fmt.Fprintf(&b, "  node.style.setProperty(%s, %s);\n", jsString(prop), jsString(val))
		}
	}
	b.WriteString("  return true;\n")
	fmt.Fprintf(&b, "})(%s)", jsString(selector))
	return b.String()
}

// metricsScript reads the element box and its offset parent's client box in
// one evaluation. getBoundingClientRect keeps fractional sizes that the
// integer offset properties would round away.
func metricsScript(selector string) string {
	return fmt.Sprintf(`(function(sel) {
  const node = document.querySelector(sel);
  if (!node) return null;
  const rect = node.getBoundingClientRect();
  const parent = node.offsetParent || node.parentElement || document.documentElement;
  return {
    offsetWidth: rect.width,
    offsetHeight: rect.height,
    contentWidth: node.clientWidth,
    contentHeight: node.clientHeight,
    parentWidth: parent.clientWidth,
    parentHeight: parent.clientHeight
  };
})(%s)`, jsString(selector))
}

// jsString renders v as a JS string literal. JSON string encoding is valid
// JS, which keeps selectors with quotes or backslashes intact.
func jsString(v string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
