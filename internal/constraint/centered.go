// File: internal/constraint/centered.go
package constraint

import (
	"sync"
)

// Centered is the stock initial-placement collaborator: it seeds left/top
// so the element centers inside an explicit boundary box. Implements
// position.Placement.
type Centered struct {
	mu      sync.RWMutex
	enabled bool
	locked  bool
	width   float64
	height  float64
}

// NewCentered builds the placement. The boundary must be explicit, finite
// and positive; there is no parent to fall back to at placement time.
func NewCentered(cfg Config) (*Centered, error) {
	if err := checkBoundary(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrBoundaryRequired
	}
	return &Centered{
		enabled: cfg.Enabled,
		locked:  cfg.Locked,
		width:   cfg.Width,
		height:  cfg.Height,
	}, nil
}

// SetBoundary replaces the boundary box.
func (c *Centered) SetBoundary(w, h float64) error {
	if err := checkBoundary(w, h); err != nil {
		return err
	}
	if w <= 0 || h <= 0 {
		return ErrBoundaryRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return ErrLocked
	}
	c.width, c.height = w, h
	return nil
}

// Left returns the left coordinate centering an element of the given width.
func (c *Centered) Left(width float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.enabled {
		return 0
	}
	return (c.width - width) / 2
}

// Top returns the top coordinate centering an element of the given height.
func (c *Centered) Top(height float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.enabled {
		return 0
	}
	return (c.height - height) / 2
}
