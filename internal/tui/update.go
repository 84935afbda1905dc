// File: internal/tui/update.go
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xkilldash9x/repose/api/schemas"
	"github.com/xkilldash9x/repose/internal/drag"
	"github.com/xkilldash9x/repose/internal/snapshot"
	"github.com/xkilldash9x/repose/internal/tween"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		// One engine frame: tween ticks, then any queued style flush.
		m.scene.Frames.Step(time.Time(msg))
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showSnaps {
		return m.handleSnapBrowserKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up":
		m = m.nudge(0, -nudgeStep)
	case "down":
		m = m.nudge(0, nudgeStep)
	case "left":
		m = m.nudge(-nudgeStep, 0)
	case "right":
		m = m.nudge(nudgeStep, 0)
	case "shift+up":
		m = m.nudge(0, -1)
	case "shift+down":
		m = m.nudge(0, 1)
	case "shift+left":
		m = m.nudge(-1, 0)
	case "shift+right":
		m = m.nudge(1, 0)
	case "+", "=":
		m = m.scaleBy(scaleStep)
	case "-", "_":
		m = m.scaleBy(-scaleStep)
	case "[":
		m = m.rotateBy(-rotateStep)
	case "]":
		m = m.rotateBy(rotateStep)
	case "0":
		m.scene.Tweens.CancelTarget(m.scene.Position)
		m.scene.Position.Set(schemas.Patch{
			schemas.KeyScale:   1.0,
			schemas.KeyRotateZ: 0.0,
		})
		m.status = "transform reset"
	case "t":
		m = m.tweenToAnchor()
	case "s":
		snap := m.scene.Snaps.Save(stageSlot, nil)
		m.status = fmt.Sprintf("saved %q", snap.Name)
	case "r":
		_, err := m.scene.Snaps.Restore(stageSlot, snapshot.RestoreOptions{
			AnimateTo: &tween.Options{
				Duration: 400 * time.Millisecond,
				Easing:   tween.EaseOutCubic,
				Strategy: tween.StrategyCancel,
			},
		})
		if err != nil {
			m.status = "nothing saved yet"
		} else {
			m.status = fmt.Sprintf("restoring %q", stageSlot)
		}
	case "R":
		if err := m.scene.Snaps.Reset(snapshot.ResetOptions{}); err != nil {
			m.status = "reset failed: " + err.Error()
		} else {
			m.status = "reset to start"
		}
	case "d":
		on := !m.scene.Drag.Enabled()
		m.scene.Drag.SetEnabled(on)
		m.status = fmt.Sprintf("drag: %v", on)
	case "l":
		m.refreshSnaps()
		stage := m.layout()
		m.snapList.SetSize(minInt(40, stage.w-6), minInt(stage.h-4, 14))
		m.showSnaps = true
	case "h":
		m.helpVisible = !m.helpVisible
	}
	return m, nil
}

// handleSnapBrowserKey routes keys to the snapshot overlay while it is open.
func (m Model) handleSnapBrowserKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "l", "q":
		m.showSnaps = false
		return m, nil
	case "enter":
		m.showSnaps = false
		it, ok := m.snapList.SelectedItem().(snapItem)
		if !ok {
			return m, nil
		}
		_, err := m.scene.Snaps.Restore(it.name, snapshot.RestoreOptions{
			AnimateTo: &tween.Options{
				Duration: 400 * time.Millisecond,
				Easing:   tween.EaseOutCubic,
				Strategy: tween.StrategyCancel,
			},
		})
		if err != nil {
			m.status = "restore failed: " + err.Error()
		} else {
			m.status = fmt.Sprintf("restoring %q", it.name)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.snapList, cmd = m.snapList.Update(msg)
	return m, cmd
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// nudge moves the element by a fixed offset, taking the fields back from
// any running tween first.
func (m Model) nudge(dx, dy float64) Model {
	if m.scene.Drag.Dragging() {
		return m
	}
	m.scene.Tweens.CancelTarget(m.scene.Position)
	d := m.scene.Position.Data()
	m.scene.Position.Set(schemas.Patch{
		schemas.KeyLeft: d.Left.Or(0) + dx,
		schemas.KeyTop:  d.Top.Or(0) + dy,
	})
	d = m.scene.Position.Data()
	m.status = fmt.Sprintf("left %s top %s", d.Left, d.Top)
	return m
}

func (m Model) scaleBy(delta float64) Model {
	d := m.scene.Position.Data()
	s := d.Scale.Or(1) + delta
	if s < 0.2 {
		s = 0.2
	}
	if s > 4 {
		s = 4
	}
	m.scene.Position.Set(schemas.Patch{schemas.KeyScale: s})
	m.status = fmt.Sprintf("scale %.1f", s)
	return m
}

func (m Model) rotateBy(deg float64) Model {
	d := m.scene.Position.Data()
	r := d.RotateZ.Or(0) + deg
	m.scene.Position.Set(schemas.Patch{schemas.KeyRotateZ: r})
	m.status = fmt.Sprintf("rotate %.0f°", r)
	return m
}

// tweenToAnchor glides the element's center to the next anchor point.
func (m Model) tweenToAnchor() Model {
	a := anchors[m.anchorIdx%len(anchors)]
	m.anchorIdx++

	d := m.scene.Position.Data()
	g := m.scene.Geom
	to := map[schemas.Key]float64{
		schemas.KeyLeft: a[0]*g.ParentWidth - d.Width.Or(0)/2,
		schemas.KeyTop:  a[1]*g.ParentHeight - d.Height.Or(0)/2,
	}
	m.scene.Tweens.To(m.scene.Position, to, tween.Options{
		Duration: 600 * time.Millisecond,
		Easing:   tween.EaseInOutCubic,
		Strategy: tween.StrategyCancel,
	})
	m.status = fmt.Sprintf("gliding to %.0f,%.0f", to[schemas.KeyLeft], to[schemas.KeyTop])
	return m
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	stage := m.layout()
	inside := msg.X >= stage.x && msg.X < stage.x+stage.w &&
		msg.Y >= stage.y && msg.Y < stage.y+stage.h
	px, py := m.cellToPx(msg.X-stage.x, msg.Y-stage.y, stage.w, stage.h)
	p := drag.Vector2D{X: px, Y: py}

	m.hovering = inside
	m.hoverX, m.hoverY = px, py

	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if !inside || !m.hitsElement(px, py) {
			break
		}
		if m.scene.Drag.PointerDown(stagePointer, p, time.Now()) {
			m.status = "dragging"
		}
	case msg.Action == tea.MouseActionMotion:
		m.scene.Drag.PointerMove(stagePointer, p, time.Now())
	case msg.Action == tea.MouseActionRelease:
		if m.scene.Drag.PointerUp(stagePointer, p, time.Now()) {
			m.status = "released"
		}
	}
	return m, nil
}

// hitsElement maps a parent-space point through the inverse transform and
// tests it against the untransformed element box.
func (m Model) hitsElement(px, py float64) bool {
	td := m.scene.Position.TransformData()
	lx, ly, _ := td.Inverse.Apply(px, py, 0)
	d := m.scene.Position.Data()
	return lx >= 0 && lx <= d.Width.Or(0) && ly >= 0 && ly <= d.Height.Or(0)
}
