// Package tui hosts a timeline engine in the terminal. It draws one lane per
// track, drives the playhead from a bubbletea tick and maps keys to engine
// operations.
package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

const (
	defaultTick = 100 * time.Millisecond
	// nudgeStep is used for move and resize keys when snapping is off.
	nudgeStep = 0.1
	seekStep  = 1.0
)

type tickMsg time.Time

// Config configures a Model. Path may be empty, in which case saving is
// disabled.
type Config struct {
	Engine  *timeline.Engine
	Project export.Project
	Path    string
	Tick    time.Duration
	Logger  *slog.Logger
}

// Model is the bubbletea model for the terminal host.
type Model struct {
	engine  *timeline.Engine
	project export.Project
	path    string
	tick    time.Duration
	logger  *slog.Logger

	unsubscribe func()
	lastTick    time.Time
	dirty       bool
	status      string
	err         error

	// offset is the first visible second.
	offset   float64
	width    int
	height   int
	quitting bool
}

// New creates a model around cfg.Engine.
func New(cfg Config) *Model {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	m := &Model{
		engine:  cfg.Engine,
		project: cfg.Project,
		path:    cfg.Path,
		tick:    cfg.Tick,
		logger:  logging.WithComponent(cfg.Logger, "tui"),
		width:   100,
		height:  24,
	}
	m.unsubscribe = m.engine.Subscribe(func(ev timeline.Event) {
		if ev.Kind == timeline.EventHistory {
			m.dirty = true
		}
	})
	return m
}

// Run starts the program on the alternate screen and blocks until the user
// quits.
func Run(cfg Config) error {
	m := New(cfg)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// Close detaches the model from the engine.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) Dirty() bool { return m.dirty }

func (m *Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.advance(time.Time(msg))
		return m, m.tickCmd()

	case tea.KeyMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

// advance feeds wall-clock time since the previous tick to the engine while
// playing.
func (m *Model) advance(now time.Time) {
	last := m.lastTick
	m.lastTick = now
	if !m.engine.Playback().Playing || last.IsZero() {
		return
	}
	res := m.engine.Tick(now.Sub(last).Seconds())
	if res.Ended {
		m.status = "end of timeline"
	}
	m.follow(res.Time)
}

func (m *Model) handleKey(key string) tea.Cmd {
	m.err = nil
	e := m.engine

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit
	case " ":
		e.TogglePlay()
	case "s":
		e.Stop()
		m.offset = 0
	case "left":
		m.follow(e.Seek(e.Playback().CurrentTime - seekStep))
	case "right":
		m.follow(e.Seek(e.Playback().CurrentTime + seekStep))
	case "home":
		m.follow(e.Seek(0))
	case "end":
		m.follow(e.Seek(e.ContentEnd()))
	case "tab":
		m.cycleSelection(1)
	case "shift+tab":
		m.cycleSelection(-1)
	case "esc":
		e.ClearSelection()
	case "h":
		m.nudge(-1)
	case "l":
		m.nudge(1)
	case "<":
		m.resize(-1)
	case ">":
		m.resize(1)
	case "c":
		m.split()
	case "d":
		if copies := e.DuplicateSelection(); len(copies) > 0 {
			m.status = fmt.Sprintf("duplicated %d clip(s)", len(copies))
		}
	case "x", "delete":
		if n := e.DeleteSelection(); n > 0 {
			m.status = fmt.Sprintf("deleted %d clip(s)", n)
		}
	case "u":
		if !e.Undo() {
			m.status = "nothing to undo"
		}
	case "ctrl+r":
		if !e.Redo() {
			m.status = "nothing to redo"
		}
	case "+", "=":
		e.SetZoom(e.Viewport().Zoom * 1.25)
	case "-":
		e.SetZoom(e.Viewport().Zoom / 1.25)
	case "g":
		e.SetSnapToGrid(!e.Viewport().SnapToGrid)
	case "L":
		e.SetLoop(!e.Playback().Loop)
	case "m":
		mk := e.AddMarker(e.Playback().CurrentTime, "", "")
		m.status = fmt.Sprintf("marker at %s", formatTime(mk.Time))
	case "]":
		if mk, ok := e.NextMarker(e.Playback().CurrentTime); ok {
			m.follow(e.Seek(mk.Time))
		}
	case "[":
		if mk, ok := e.PrevMarker(e.Playback().CurrentTime); ok {
			m.follow(e.Seek(mk.Time))
		}
	case "ctrl+s", "w":
		m.save()
	}
	return nil
}

// selectedClip returns the first selected clip and its track.
func (m *Model) selectedClip() (string, timeline.Clip, bool) {
	ids := m.engine.SelectedClipIDs()
	if len(ids) == 0 {
		return "", timeline.Clip{}, false
	}
	return m.engine.FindClip(ids[0])
}

// clipOrder lists clip ids lane by lane, each lane in start order.
func (m *Model) clipOrder() []string {
	var ids []string
	for _, tr := range m.engine.Tracks() {
		for _, c := range tr.SortedClips() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (m *Model) cycleSelection(dir int) {
	ids := m.clipOrder()
	if len(ids) == 0 {
		return
	}
	next := 0
	if dir < 0 {
		next = len(ids) - 1
	}
	if _, cur, ok := m.selectedClip(); ok {
		for i, id := range ids {
			if id == cur.ID {
				next = (i + dir + len(ids)) % len(ids)
				break
			}
		}
	}
	m.report(m.engine.SelectClip(ids[next], false))
}

func (m *Model) step() float64 {
	vp := m.engine.Viewport()
	if vp.SnapToGrid && vp.GridSize > 0 {
		return vp.GridSize
	}
	return nudgeStep
}

func (m *Model) nudge(dir float64) {
	trackID, c, ok := m.selectedClip()
	if !ok {
		m.status = "no clip selected"
		return
	}
	m.report(m.engine.MoveClip(trackID, c.ID, c.Start+dir*m.step()))
}

func (m *Model) resize(dir float64) {
	trackID, c, ok := m.selectedClip()
	if !ok {
		m.status = "no clip selected"
		return
	}
	m.report(m.engine.ResizeClip(trackID, c.ID, c.Duration+dir*m.step()))
}

func (m *Model) split() {
	trackID, c, ok := m.selectedClip()
	if !ok {
		m.status = "no clip selected"
		return
	}
	right, err := m.engine.SplitClip(trackID, c.ID, m.engine.Playback().CurrentTime)
	if m.report(err) {
		m.status = fmt.Sprintf("split at %s", formatTime(right.Start))
	}
}

// report shows err in the status line and returns true when err is nil.
func (m *Model) report(err error) bool {
	if err == nil {
		return true
	}
	m.err = err
	if errors.Is(err, timeline.ErrLocked) {
		m.status = "clip or track is locked"
	}
	return false
}

func (m *Model) save() {
	if m.path == "" {
		m.status = "no file to save to"
		return
	}
	f := formatForPath(m.path)
	data, err := export.Marshal(export.Encode(m.engine.ExportSnapshot(), m.project), f)
	if err != nil {
		m.err = err
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		m.err = fmt.Errorf("save: %w", err)
		m.logger.Error("save failed", "path", m.path, "error", err)
		return
	}
	m.dirty = false
	m.status = "saved " + filepath.Base(m.path)
	m.logger.Info("document saved", "path", m.path, "bytes", len(data))
}

// follow scrolls so that t stays inside the visible window.
func (m *Model) follow(t float64) {
	cps := m.cellsPerSecond()
	visible := float64(m.trackWidth()) / cps
	if t < m.offset || t >= m.offset+visible {
		m.offset = t - visible/4
		if m.offset < 0 {
			m.offset = 0
		}
	}
}

// formatForPath picks YAML for .yaml and .yml files and JSON otherwise.
func formatForPath(path string) export.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return export.FormatYAML
	}
	return export.FormatJSON
}

// Load reads a JSON or YAML document from path.
func Load(path string) (*export.Imported, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return export.Decode(data, formatForPath(path))
}
