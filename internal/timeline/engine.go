package timeline

import (
	"io"
	"log/slog"
	"math"
	"reflect"

	"github.com/heimdex/heimdex-timeline/internal/history"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/timegrid"
)

const (
	MinZoom             = 0.1
	MaxZoom             = 10.0
	DefaultZoom         = 1.0
	MinClipDuration     = 0.1
	DefaultClipDuration = 5.0
	DefaultGridSize     = 1.0
	MinGridSize         = 0.01
	DefaultDuplicateGap = 1.0
	DefaultDuration     = 60.0

	// keyframeEpsilon keeps a clamped keyframe strictly before its clip end.
	keyframeEpsilon = 0.001
)

// DuplicatePolicy decides what is selected after DuplicateSelection.
type DuplicatePolicy int

const (
	DeselectAll DuplicatePolicy = iota
	SelectCopies
	KeepOriginals
)

// ParseDuplicatePolicy maps a config string to a policy. Unknown values fall
// back to DeselectAll.
func ParseDuplicatePolicy(s string) DuplicatePolicy {
	switch s {
	case "select-copies":
		return SelectCopies
	case "keep-originals":
		return KeepOriginals
	default:
		return DeselectAll
	}
}

// Options configures an Engine. Zero values select the defaults above.
type Options struct {
	HistoryCapacity int
	MinZoom         float64
	MaxZoom         float64
	MinClipDuration float64
	// DuplicateGap is the space left after an original clip. Negative means
	// copies start exactly at the original's end.
	DuplicateGap    float64
	DuplicatePolicy DuplicatePolicy
	Duration        float64
	Logger          *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HistoryCapacity <= 0 {
		o.HistoryCapacity = history.DefaultCapacity
	}
	if o.MinZoom <= 0 {
		o.MinZoom = MinZoom
	}
	if o.MaxZoom <= 0 || o.MaxZoom < o.MinZoom {
		o.MaxZoom = MaxZoom
	}
	if o.MinClipDuration <= 0 {
		o.MinClipDuration = MinClipDuration
	}
	if o.DuplicateGap < 0 {
		o.DuplicateGap = 0
	} else if o.DuplicateGap == 0 {
		o.DuplicateGap = DefaultDuplicateGap
	}
	if o.Duration <= 0 {
		o.Duration = DefaultDuration
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Engine owns tracks, clips, keyframes, effects, markers and viewport
// settings. Every successful mutation appends exactly one history entry,
// unless it runs inside a Txn, in which case the Txn records one entry on
// commit.
type Engine struct {
	opts      Options
	logger    *slog.Logger
	tracks    []Track
	markers   []Marker
	viewport  Viewport
	duration  float64
	selection Selection
	history   *history.History[Snapshot]
	player    *playback.Scheduler
	events    emitter
	txn       *Txn
	// scope is the transaction whose Do is running, if any.
	scope *Txn
}

func New(opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		opts:   opts,
		logger: opts.Logger,
		viewport: Viewport{
			Zoom:     DefaultZoom,
			GridSize: DefaultGridSize,
		},
		duration: opts.Duration,
		history:  history.New(opts.HistoryCapacity, Snapshot.Clone),
		player:   playback.NewScheduler(opts.Duration),
	}
	e.history.Reset("Initial state", e.snapshot())
	return e
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (e *Engine) Subscribe(fn func(Event)) func() {
	return e.events.subscribe(fn)
}

func (e *Engine) Options() Options {
	return e.opts
}

// snapshot copies the undoable subset with selection flags cleared, so
// history never carries selection.
func (e *Engine) snapshot() Snapshot {
	s := Snapshot{
		Tracks:   cloneTracks(e.tracks),
		Markers:  append([]Marker(nil), e.markers...),
		Viewport: e.viewport,
		Duration: e.duration,
	}
	for i := range s.Tracks {
		for j := range s.Tracks[i].Clips {
			s.Tracks[i].Clips[j].Selected = false
		}
	}
	return s
}

func (e *Engine) restore(s Snapshot) {
	e.tracks = s.Tracks
	e.markers = s.Markers
	e.viewport = s.Viewport
	e.duration = s.Duration
	e.player.SetDuration(s.Duration)
	e.pruneSelection()
	e.syncSelected()
}

// commit records a finished mutation and notifies listeners. A mutation made
// outside the open transaction's Do settles that transaction first, so the
// two never share an entry.
func (e *Engine) commit(label string, evs ...Event) {
	e.syncSelected()
	if e.txn != nil && e.scope != e.txn {
		e.settleTxn()
	}
	if e.txn != nil {
		e.txn.dirty = true
		e.txn.last = e.snapshot()
	} else {
		e.history.Push(label, e.snapshot())
	}
	for _, ev := range evs {
		e.events.emit(ev)
	}
	if e.txn == nil {
		e.events.emit(Event{Kind: EventHistory, Label: label})
	}
}

// report logs an invalid-reference condition and hands it back to the caller.
func (e *Engine) report(err error) error {
	e.logger.Warn("timeline operation rejected", "error", err)
	return err
}

func (e *Engine) quantize(v float64) float64 {
	if e.viewport.SnapToGrid {
		return timegrid.Snap(v, e.viewport.GridSize)
	}
	return v
}

func (e *Engine) clampStart(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func (e *Engine) clampDuration(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < e.opts.MinClipDuration {
		return e.opts.MinClipDuration
	}
	return v
}

// Undo restores the previous snapshot. An open transaction is rolled back
// first and reported as an aborted gesture.
func (e *Engine) Undo() bool {
	e.abortTxn()
	s, ok := e.history.Undo()
	if !ok {
		return false
	}
	e.restore(s)
	e.events.emit(Event{Kind: EventTracksChanged})
	e.events.emit(Event{Kind: EventHistory, Label: "undo"})
	return true
}

func (e *Engine) Redo() bool {
	e.abortTxn()
	s, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.restore(s)
	e.events.emit(Event{Kind: EventTracksChanged})
	e.events.emit(Event{Kind: EventHistory, Label: "redo"})
	return true
}

func (e *Engine) CanUndo() bool { return e.history.CanUndo() }
func (e *Engine) CanRedo() bool { return e.history.CanRedo() }

func (e *Engine) History() []history.Info {
	return e.history.Entries()
}

// Txn groups several mutations into one history entry. Mutations run through
// Do apply immediately and notify listeners, but only Commit records
// history.
type Txn struct {
	e      *Engine
	label  string
	before Snapshot
	// last is the state after the most recent mutation inside Do.
	last  Snapshot
	dirty bool
	done  bool
}

// Begin opens a transaction. A transaction that is already open is settled:
// its changes are kept and recorded as their own entry.
func (e *Engine) Begin(label string) *Txn {
	if e.txn != nil {
		e.settleTxn()
	}
	t := &Txn{e: e, label: label, before: e.snapshot()}
	e.txn = t
	return t
}

// Active reports whether the transaction can still be committed.
func (t *Txn) Active() bool {
	return t != nil && !t.done && t.e.txn == t
}

// Do runs fn with its mutations folded into the transaction.
func (t *Txn) Do(fn func() error) error {
	if !t.Active() {
		return ErrTxnClosed
	}
	prev := t.e.scope
	t.e.scope = t
	defer func() { t.e.scope = prev }()
	return fn()
}

// Commit records one history entry if anything changed and reports whether
// it did.
func (t *Txn) Commit() bool {
	if !t.Active() {
		return false
	}
	t.done = true
	t.e.txn = nil
	if !t.dirty {
		return false
	}
	after := t.e.snapshot()
	if reflect.DeepEqual(after, t.before) {
		return false
	}
	t.e.history.Push(t.label, after)
	t.e.events.emit(Event{Kind: EventHistory, Label: t.label})
	return true
}

// Rollback restores the state captured by Begin.
func (t *Txn) Rollback() {
	if !t.Active() {
		return
	}
	t.done = true
	t.e.txn = nil
	if t.dirty {
		t.e.restore(t.before)
		t.e.events.emit(Event{Kind: EventTracksChanged})
	}
}

// settleTxn closes the open transaction without rolling it back. Its state as
// of the last mutation inside Do is recorded, and listeners see the gesture
// end as aborted.
func (e *Engine) settleTxn() {
	t := e.txn
	t.done = true
	e.txn = nil
	if t.dirty && !reflect.DeepEqual(t.last, t.before) {
		e.history.Push(t.label, t.last)
		e.events.emit(Event{Kind: EventHistory, Label: t.label})
	}
	e.events.emit(Event{Kind: EventGestureAborted, Label: t.label})
}

func (e *Engine) abortTxn() {
	if e.txn == nil {
		return
	}
	label := e.txn.label
	e.txn.Rollback()
	e.events.emit(Event{Kind: EventGestureAborted, Label: label})
}

// InTransaction reports whether a transaction is open.
func (e *Engine) InTransaction() bool {
	return e.txn != nil
}

// SetZoom clamps z to the configured zoom bounds and returns the result.
func (e *Engine) SetZoom(z float64) float64 {
	if math.IsNaN(z) {
		z = DefaultZoom
	}
	e.viewport.Zoom = timegrid.Clamp(z, e.opts.MinZoom, e.opts.MaxZoom)
	e.commit("Zoom", Event{Kind: EventViewportChanged})
	return e.viewport.Zoom
}

func (e *Engine) SetSnapToGrid(on bool) {
	e.viewport.SnapToGrid = on
	e.commit("Toggle snap to grid", Event{Kind: EventViewportChanged})
}

// SetGridSize sets the snapping step; values below MinGridSize are clamped.
func (e *Engine) SetGridSize(step float64) float64 {
	if math.IsNaN(step) || step < MinGridSize {
		step = MinGridSize
	}
	e.viewport.GridSize = step
	e.commit("Grid size", Event{Kind: EventViewportChanged})
	return step
}

// SetDuration changes the total timeline length.
func (e *Engine) SetDuration(d float64) float64 {
	if math.IsNaN(d) || d < e.opts.MinClipDuration {
		d = e.opts.MinClipDuration
	}
	e.duration = d
	e.player.SetDuration(d)
	e.commit("Timeline duration", Event{Kind: EventViewportChanged}, Event{Kind: EventPlaybackState, Time: e.player.CurrentTime()})
	return d
}

func (e *Engine) Viewport() Viewport { return e.viewport }
func (e *Engine) Duration() float64 { return e.duration }

// Layout returns the geometry parameters for the current zoom.
func (e *Engine) Layout() timegrid.Layout {
	return timegrid.NewLayout(e.viewport.Zoom)
}

// Lanes returns the vertical footprint of each track in display order.
func (e *Engine) Lanes() []timegrid.Lane {
	lanes := make([]timegrid.Lane, len(e.tracks))
	for i, t := range e.tracks {
		lanes[i] = timegrid.Lane{Height: t.Height, Collapsed: t.Collapsed}
	}
	return lanes
}

// State returns a deep copy of everything export/import round-trips.
func (e *Engine) State() State {
	st := e.player.Status()
	return State{
		Snapshot: e.snapshot(),
		Playback: PlaybackSettings{
			CurrentTime: st.CurrentTime,
			Rate:        st.Rate,
			Loop:        st.Loop,
		},
	}
}

// ExportSnapshot returns the state for serialization. It does not mutate
// the engine and is not recorded in history.
func (e *Engine) ExportSnapshot() State {
	return e.State()
}

// Load replaces the whole model, clears selection and resets history to a
// single baseline entry.
func (e *Engine) Load(s State) {
	e.abortTxn()
	s = s.Clone()
	e.tracks = s.Tracks
	e.markers = s.Markers
	sortMarkers(e.markers)
	e.viewport = s.Viewport
	if e.viewport.Zoom == 0 {
		e.viewport.Zoom = DefaultZoom
	}
	e.viewport.Zoom = timegrid.Clamp(e.viewport.Zoom, e.opts.MinZoom, e.opts.MaxZoom)
	if e.viewport.GridSize < MinGridSize {
		e.viewport.GridSize = DefaultGridSize
	}
	e.duration = s.Duration
	if e.duration <= 0 {
		e.duration = e.opts.Duration
	}
	for i := range e.tracks {
		for j := range e.tracks[i].Clips {
			sortKeyframes(e.tracks[i].Clips[j].Keyframes)
		}
	}

	e.player.Stop()
	e.player.SetDuration(e.duration)
	e.player.Seek(s.Playback.CurrentTime)
	if s.Playback.Rate > 0 {
		e.player.SetRate(s.Playback.Rate)
	}
	e.player.SetLoop(s.Playback.Loop)

	e.selection.Clear()
	e.syncSelected()
	e.history.Reset("Load project", e.snapshot())
	e.events.emit(Event{Kind: EventLoaded})
}
