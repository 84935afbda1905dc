// File: internal/tui/model.go
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// frameInterval paces the engine at roughly 30 FPS.
	frameInterval = 33 * time.Millisecond

	// stagePointer is the synthetic pointer id for mouse drags; the terminal
	// only ever reports one pointer.
	stagePointer = 1

	// stageSlot is the snapshot name the s/r keys operate on.
	stageSlot = "stage"

	hudWidth   = 34
	nudgeStep  = 10.0
	scaleStep  = 0.1
	rotateStep = 15.0
)

// anchors are the tween targets the t key cycles through, as fractions of
// the parent box.
var anchors = [][2]float64{
	{0.1, 0.1},
	{0.9, 0.1},
	{0.9, 0.9},
	{0.1, 0.9},
	{0.5, 0.5},
}

type Model struct {
	scene *Scene

	width  int
	height int

	helpVisible bool
	status      string

	anchorIdx int

	// snapshot browser overlay
	showSnaps bool
	snapList  list.Model

	// hover tracks the last mouse position in parent coordinates.
	hovering bool
	hoverX   float64
	hoverY   float64
}

// snapItem adapts a stored snapshot for the browser list.
type snapItem struct {
	name    string
	savedAt time.Time
}

func (s snapItem) Title() string       { return s.name }
func (s snapItem) Description() string { return "saved " + s.savedAt.Format("15:04:05") }
func (s snapItem) FilterValue() string { return s.name }

// New builds the stage model around an already-wired scene.
func New(scene *Scene) Model {
	m := Model{
		scene:       scene,
		helpVisible: true,
		status:      "stage ready",
	}
	d := list.NewDefaultDelegate()
	m.snapList = list.New(nil, d, 0, 0)
	m.snapList.Title = "Snapshots"
	m.snapList.SetShowHelp(false)
	m.snapList.SetShowStatusBar(false)
	m.snapList.SetFilteringEnabled(false)
	return m
}

// refreshSnaps reloads the browser items from the store.
func (m *Model) refreshSnaps() {
	snaps := m.scene.Snaps.All()
	items := make([]list.Item, 0, len(snaps))
	for _, s := range snaps {
		items = append(items, snapItem{name: s.Name, savedAt: s.SavedAt})
	}
	m.snapList.SetItems(items)
}

// frameMsg carries the wall-clock instant one engine frame advances to.
type frameMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }
