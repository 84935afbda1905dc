// File: internal/position/target.go
package position

import "context"

// Target receives the coalesced inline-style writes for an attached element.
// Values are CSS property/value pairs; an empty value means the property
// should be removed.
type Target interface {
	ApplyStyles(ctx context.Context, styles map[string]string) error
}

// Placement seeds left/top for an element that attaches without explicit
// coordinates. Implementations receive the concrete width/height the element
// will occupy.
type Placement interface {
	Left(width float64) float64
	Top(height float64) float64
}

// Margins are the gaps validators keep between an element and its
// container edges, in pixels.
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Unsubscribe detaches a subscriber. Safe to call more than once.
type Unsubscribe func()
