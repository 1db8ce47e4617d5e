package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

const (
	labelWidth = 14
	// baseCellsPerSecond is the horizontal resolution at zoom 1.
	baseCellsPerSecond = 4.0
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	rulerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	playheadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	markerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("212")).Bold(true)
	lockedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("238"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)

	kindColors = map[timeline.TrackKind]lipgloss.Color{
		timeline.TrackVideo:  lipgloss.Color("63"),
		timeline.TrackAudio:  lipgloss.Color("35"),
		timeline.TrackText:   lipgloss.Color("172"),
		timeline.TrackImage:  lipgloss.Color("135"),
		timeline.TrackEffect: lipgloss.Color("31"),
	}
)

const helpText = "space play  ←/→ seek  tab select  h/l nudge  </> resize  c split  d dup  x del  u/^r undo/redo  +/- zoom  g snap  m marker  w save  q quit"

type cellKind int

const (
	cellEmpty cellKind = iota
	cellClip
	cellSelected
	cellLocked
	cellPlayhead
)

func (m *Model) cellsPerSecond() float64 {
	return baseCellsPerSecond * m.engine.Viewport().Zoom
}

func (m *Model) trackWidth() int {
	w := m.width - labelWidth - 1
	if w < 10 {
		w = 10
	}
	return w
}

// column maps a time to a cell index in the visible window, or -1.
func (m *Model) column(t float64) int {
	col := int(math.Floor((t - m.offset) * m.cellsPerSecond()))
	if col < 0 || col >= m.trackWidth() {
		return -1
	}
	return col
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.ruler())
	b.WriteString("\n")
	b.WriteString(m.markerRow())
	b.WriteString("\n")

	tracks := m.engine.Tracks()
	if len(tracks) == 0 {
		b.WriteString(mutedStyle.Render("  no tracks"))
		b.WriteString("\n")
	}
	for _, tr := range tracks {
		b.WriteString(m.lane(tr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(truncate(helpText, m.width)))
	return b.String()
}

func (m *Model) header() string {
	name := m.project.Name
	if name == "" {
		name = "untitled"
	}
	if m.dirty {
		name += " *"
	}
	pb := m.engine.Playback()
	state := "paused"
	if pb.Playing {
		state = "playing"
	}
	info := fmt.Sprintf("%s / %s  %s  %.2fx", formatTime(pb.CurrentTime), formatTime(pb.Duration), state, pb.Rate)
	if pb.Loop {
		info += "  loop"
	}
	return titleStyle.Render(name) + "  " + statusStyle.Render(info)
}

// ruler draws a tick every second with a label every five.
func (m *Model) ruler() string {
	width := m.trackWidth()
	row := []rune(strings.Repeat(" ", width))
	cps := m.cellsPerSecond()
	every := 5
	if cps*5 < 6 {
		every = int(math.Ceil(6 / cps))
	}
	first := int(math.Ceil(m.offset))
	for s := first; ; s++ {
		col := m.column(float64(s))
		if col < 0 {
			if float64(s) > m.offset {
				break
			}
			continue
		}
		if s%every == 0 {
			label := []rune(fmt.Sprintf("|%ds", s))
			for i, r := range label {
				if col+i < width {
					row[col+i] = r
				}
			}
		} else if row[col] == ' ' && cps >= 2 {
			row[col] = '.'
		}
	}
	return strings.Repeat(" ", labelWidth+1) + rulerStyle.Render(string(row))
}

func (m *Model) markerRow() string {
	width := m.trackWidth()
	row := []rune(strings.Repeat(" ", width))
	for _, mk := range m.engine.Markers() {
		if col := m.column(mk.Time); col >= 0 {
			row[col] = '▼'
		}
	}
	if col := m.column(m.engine.Playback().CurrentTime); col >= 0 && row[col] == ' ' {
		row[col] = 'v'
	}
	return mutedStyle.Render(padRight("markers", labelWidth)) + " " + markerStyle.Render(string(row))
}

// lane draws one track as a row of cells, then renders runs of equal kind
// with the matching style.
func (m *Model) lane(tr timeline.Track) string {
	width := m.trackWidth()
	text := []rune(strings.Repeat(" ", width))
	kinds := make([]cellKind, width)

	for _, c := range tr.SortedClips() {
		startCol := int(math.Floor((c.Start - m.offset) * m.cellsPerSecond()))
		endCol := int(math.Ceil((c.End() - m.offset) * m.cellsPerSecond()))
		if endCol <= startCol {
			endCol = startCol + 1
		}
		kind := cellClip
		switch {
		case c.Selected:
			kind = cellSelected
		case c.Locked || tr.Locked:
			kind = cellLocked
		}
		label := []rune(clipLabel(c))
		for col := startCol; col < endCol; col++ {
			if col < 0 || col >= width {
				continue
			}
			kinds[col] = kind
			i := col - startCol
			switch {
			case i == 0:
				text[col] = '['
			case col == endCol-1:
				text[col] = ']'
			case i-1 < len(label):
				text[col] = label[i-1]
			default:
				text[col] = ' '
			}
		}
	}

	if col := m.column(m.engine.Playback().CurrentTime); col >= 0 {
		kinds[col] = cellPlayhead
		text[col] = '│'
	}

	clipStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(laneColor(tr))
	var b strings.Builder
	name := tr.Name
	if name == "" {
		name = string(tr.Kind)
	}
	style := labelStyle
	if !tr.Visible {
		style = mutedStyle
	}
	b.WriteString(style.Render(padRight(truncate(name, labelWidth), labelWidth)))
	b.WriteString(" ")

	for start := 0; start < width; {
		end := start + 1
		for end < width && kinds[end] == kinds[start] {
			end++
		}
		run := string(text[start:end])
		switch kinds[start] {
		case cellClip:
			run = clipStyle.Render(run)
		case cellSelected:
			run = selectedStyle.Render(run)
		case cellLocked:
			run = lockedStyle.Render(run)
		case cellPlayhead:
			run = playheadStyle.Render(run)
		}
		b.WriteString(run)
		start = end
	}
	return b.String()
}

func (m *Model) statusLine() string {
	vp := m.engine.Viewport()
	snap := "off"
	if vp.SnapToGrid {
		snap = fmt.Sprintf("%.2fs", vp.GridSize)
	}
	parts := []string{
		fmt.Sprintf("zoom %.2f", vp.Zoom),
		"snap " + snap,
		fmt.Sprintf("history %d", len(m.engine.History())),
		fmt.Sprintf("selected %d", len(m.engine.SelectedClipIDs())),
	}
	line := statusStyle.Render(strings.Join(parts, "  "))
	if m.err != nil {
		return line + "  " + errorStyle.Render(m.err.Error())
	}
	if m.status != "" {
		return line + "  " + m.status
	}
	return line
}

func laneColor(tr timeline.Track) lipgloss.Color {
	if tr.Color != "" {
		return lipgloss.Color(tr.Color)
	}
	if c, ok := kindColors[tr.Kind]; ok {
		return c
	}
	return lipgloss.Color("60")
}

func clipLabel(c timeline.Clip) string {
	s := c.Content
	if i := strings.LastIndex(s, "/"); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	if s == "" {
		s = "clip"
	}
	if len(c.Keyframes) > 0 {
		s += fmt.Sprintf(" ◆%d", len(c.Keyframes))
	}
	return s
}

// formatTime renders seconds as m:ss.t.
func formatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	tenths := int(math.Round(seconds * 10))
	return fmt.Sprintf("%d:%02d.%d", tenths/600, (tenths/10)%60, tenths%10)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func padRight(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s
	}
	return s + strings.Repeat(" ", n-w)
}
