// File: internal/tui/view.go
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// stageRect is the stage viewport in terminal cells.
type stageRect struct {
	x, y, w, h int
}

// layout computes the stage viewport for the current window. View and the
// mouse handler both use it, so cell-to-pixel mapping always agrees with
// what is on screen.
func (m Model) layout() stageRect {
	contentWidth := m.width
	if contentWidth < 40 {
		contentWidth = 40
	}
	contentHeight := m.height - 3
	if contentHeight < 4 {
		contentHeight = 4
	}

	stageW := contentWidth
	if contentWidth >= 70 {
		stageW = contentWidth - hudWidth - 1
	}
	if stageW < 20 {
		stageW = 20
	}
	return stageRect{x: 0, y: 1, w: stageW, h: contentHeight}
}

// pxToCell maps parent coordinates onto stage cells.
func (m Model) pxToCell(x, y float64, w, h int) (int, int) {
	if w < 2 || h < 2 {
		return 0, 0
	}
	g := m.scene.Geom
	cx := int(x/g.ParentWidth*float64(w-1) + 0.5)
	cy := int(y/g.ParentHeight*float64(h-1) + 0.5)
	return cx, cy
}

// cellToPx is the inverse mapping, for mouse events.
func (m Model) cellToPx(cx, cy, w, h int) (float64, float64) {
	if w < 2 || h < 2 {
		return 0, 0
	}
	g := m.scene.Geom
	return float64(cx) / float64(w-1) * g.ParentWidth,
		float64(cy) / float64(h-1) * g.ParentHeight
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	stage := m.layout()
	contentWidth := m.width
	if contentWidth < 40 {
		contentWidth = 40
	}

	header := titleStyle.Render(" repose ─ element stage ")
	header = lipgloss.NewStyle().Width(contentWidth).Render(header)

	stageView := m.renderStage(stage)

	var body string
	if stage.w < contentWidth {
		hud := m.renderHUD(stage.h)
		body = lipgloss.JoinHorizontal(lipgloss.Top, stageView, " ", hud)
	} else {
		body = stageView
	}

	help := m.renderHelp()
	status := dimStyle.Render(" " + m.status + " ")
	coords := ""
	if m.hovering {
		coords = dimStyle.Render(fmt.Sprintf("  x=%.0f y=%.0f  ", m.hoverX, m.hoverY))
	}
	left := lipgloss.JoinHorizontal(lipgloss.Bottom, status, help)
	spacerW := contentWidth - lipgloss.Width(left) - lipgloss.Width(coords)
	if spacerW < 0 {
		spacerW = 0
	}
	right := lipgloss.Place(spacerW+lipgloss.Width(coords), 1, lipgloss.Right, lipgloss.Center, coords)
	footer := lipgloss.NewStyle().Width(contentWidth).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, left, right))

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

// renderStage draws the parent border and the element's transformed quad,
// or the snapshot browser when it is open.
func (m Model) renderStage(stage stageRect) string {
	if m.showSnaps {
		box := boxStyle.Render(m.snapList.View())
		return lipgloss.Place(stage.w, stage.h, lipgloss.Center, lipgloss.Center, box)
	}

	cv := newCanvas(stage.w, stage.h)
	cv.border()

	td := m.scene.Position.TransformData()
	var cells [4][2]int
	for i, c := range td.Corners {
		cx, cy := m.pxToCell(c.X, c.Y, stage.w, stage.h)
		cells[i] = [2]int{cx, cy}
	}
	for i := range cells {
		a := cells[i]
		b := cells[(i+1)%4]
		cv.line(a[0], a[1], b[0], b[1])
	}

	lines := strings.Split(cv.String(), "\n")

	// Recolor the top-left corner cell so rotation stays readable.
	mx, my := cells[0][0], cells[0][1]
	if my >= 0 && my < len(lines) {
		row := []rune(lines[my])
		if mx >= 0 && mx < len(row) {
			style := markerStyle
			if m.scene.Drag.Dragging() {
				style = activeStyle
			}
			lines[my] = string(row[:mx]) + style.Render("◆") + string(row[mx+1:])
		}
	}

	return lipgloss.NewStyle().Width(stage.w).Height(stage.h).Render(strings.Join(lines, "\n"))
}

func (m Model) renderHUD(height int) string {
	d := m.scene.Position.Data()
	td := m.scene.Position.TransformData()

	onOff := "off"
	if m.scene.Drag.Enabled() {
		onOff = "on"
	}

	lines := []string{
		titleStyle.Render("element"),
		fmt.Sprintf("left     %s", d.Left),
		fmt.Sprintf("top      %s", d.Top),
		fmt.Sprintf("width    %s", d.Width),
		fmt.Sprintf("height   %s", d.Height),
		fmt.Sprintf("scale    %s", d.Scale),
		fmt.Sprintf("rotate   %s", d.RotateZ),
		fmt.Sprintf("z        %s", d.ZIndex),
		"",
		fmt.Sprintf("tweens   %d", m.scene.Tweens.Len()),
		fmt.Sprintf("writes   %d", m.scene.Target.Flushes()),
		fmt.Sprintf("snaps    %d", m.scene.Snaps.Len()),
		fmt.Sprintf("drag     %s", onOff),
		"",
		dimStyle.Render(truncate(td.CSS, hudWidth-4)),
	}
	box := boxStyle.Width(hudWidth - 2).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(hudWidth, height, lipgloss.Left, lipgloss.Top, box)
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"↑↓←→ nudge",
		"+/- scale",
		"[/] rotate",
		"t glide",
		"s/r snapshot",
		"l list",
		"R reset",
		"d drag",
		"h help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}

func truncate(s string, n int) string {
	if n <= 1 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
