// Package gesture turns pointer drags over the timeline into clip moves and
// resizes. A gesture is applied live while the pointer moves and lands in
// history as a single entry when it ends.
package gesture

import (
	"fmt"

	"github.com/heimdex/heimdex-timeline/internal/timegrid"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Edge selects which side of a clip a resize moves.
type Edge int

const (
	EdgeEnd Edge = iota
	EdgeStart
)

func (e Edge) String() string {
	if e == EdgeStart {
		return "start"
	}
	return "end"
}

// HandleWidth is the pixel width of the resize zone at each clip edge.
const HandleWidth = 8.0

// Hit describes what lies under a pointer position.
type Hit struct {
	TrackID string
	ClipID  string
	// Resize is set when the pointer is on a resize handle; Edge says which.
	Resize bool
	Edge   Edge
}

// Controller runs one gesture at a time against an engine. It is not safe
// for concurrent use; the caller serializes access along with the engine.
type Controller struct {
	engine *timeline.Engine

	headerHeight float64
	scrollX      float64
	scrollY      float64

	mode      Mode
	edge      Edge
	trackID   string
	clipID    string
	originX   float64
	origStart float64
	origDur   float64
	layout    timegrid.Layout
	txn       *timeline.Txn

	unsubscribe func()
}

func NewController(e *timeline.Engine) *Controller {
	c := &Controller{engine: e}
	c.unsubscribe = e.Subscribe(func(ev timeline.Event) {
		if ev.Kind == timeline.EventGestureAborted || ev.Kind == timeline.EventLoaded {
			if c.txn != nil && !c.txn.Active() {
				c.reset()
			}
		}
	})
	return c
}

// Close detaches the controller from the engine, rolling back any open
// gesture.
func (c *Controller) Close() {
	c.Cancel()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// SetViewport records the pixel offsets of the hosting view so pointer
// coordinates map onto lanes correctly.
func (c *Controller) SetViewport(headerHeight, scrollX, scrollY float64) {
	c.headerHeight = headerHeight
	c.scrollX = scrollX
	c.scrollY = scrollY
}

func (c *Controller) currentLayout() timegrid.Layout {
	l := c.engine.Layout()
	l.HeaderHeight = c.headerHeight
	l.ScrollX = c.scrollX
	l.ScrollY = c.scrollY
	return l
}

func (c *Controller) Mode() Mode {
	return c.mode
}

// Target returns the track and clip of the running gesture.
func (c *Controller) Target() (trackID, clipID string) {
	return c.trackID, c.clipID
}

// HitTest finds the clip under (x, y). When clips overlap, the one that
// starts latest wins, matching draw order.
func (c *Controller) HitTest(x, y float64) (Hit, bool) {
	l := c.currentLayout()
	lanes := c.engine.Lanes()
	idx := l.TrackAt(y, lanes)
	tr, ok := c.engine.TrackAt(idx)
	if !ok {
		return Hit{}, false
	}
	clips := tr.SortedClips()
	for i := len(clips) - 1; i >= 0; i-- {
		cl := clips[i]
		r := l.ClipRect(idx, lanes, cl.Start, cl.Duration)
		if !r.Contains(x, y) {
			continue
		}
		h := Hit{TrackID: tr.ID, ClipID: cl.ID}
		handle := min(HandleWidth, r.W/3)
		switch {
		case x >= r.X+r.W-handle:
			h.Resize, h.Edge = true, EdgeEnd
		case x < r.X+handle:
			h.Resize, h.Edge = true, EdgeStart
		}
		return h, true
	}
	return Hit{}, false
}

// PointerDown starts a drag or a resize depending on what is under the
// pointer.
func (c *Controller) PointerDown(x, y float64) (Hit, error) {
	h, ok := c.HitTest(x, y)
	if !ok {
		c.Cancel()
		return Hit{}, timeline.ErrClipNotFound
	}
	if h.Resize {
		return h, c.BeginResize(h.TrackID, h.ClipID, h.Edge, x)
	}
	return h, c.BeginDrag(h.TrackID, h.ClipID, x, y)
}

func (c *Controller) capture(op, trackID, clipID string) (timeline.Clip, error) {
	tr, ok := c.engine.Track(trackID)
	if !ok {
		return timeline.Clip{}, &timeline.RefError{Op: op, ID: trackID, Err: timeline.ErrTrackNotFound}
	}
	owner, cl, ok := c.engine.FindClip(clipID)
	if !ok || owner != trackID {
		return timeline.Clip{}, &timeline.RefError{Op: op, ID: clipID, Err: timeline.ErrClipNotFound}
	}
	if tr.Locked || cl.Locked {
		return timeline.Clip{}, &timeline.RefError{Op: op, ID: clipID, Err: timeline.ErrLocked}
	}
	return cl, nil
}

// BeginDrag captures the clip's start and the pointer origin. A gesture
// already in flight is cancelled.
func (c *Controller) BeginDrag(trackID, clipID string, x, y float64) error {
	c.Cancel()
	cl, err := c.capture("drag", trackID, clipID)
	if err != nil {
		return err
	}
	c.start(Dragging, EdgeEnd, trackID, cl, x)
	return nil
}

// BeginResize captures the clip's bounds for a resize from edge.
func (c *Controller) BeginResize(trackID, clipID string, edge Edge, x float64) error {
	c.Cancel()
	if edge != EdgeEnd && edge != EdgeStart {
		return fmt.Errorf("resize: unknown edge %d", edge)
	}
	cl, err := c.capture("resize", trackID, clipID)
	if err != nil {
		return err
	}
	c.start(Resizing, edge, trackID, cl, x)
	return nil
}

func (c *Controller) start(mode Mode, edge Edge, trackID string, cl timeline.Clip, x float64) {
	label := "Move clip"
	if mode == Resizing {
		label = "Resize clip"
	}
	c.mode = mode
	c.edge = edge
	c.trackID = trackID
	c.clipID = cl.ID
	c.originX = x
	c.origStart = cl.Start
	c.origDur = cl.Duration
	c.layout = c.currentLayout()
	c.txn = c.engine.Begin(label)
}

// Move applies the pointer position. Deltas are always measured from the
// gesture origin against the captured bounds.
func (c *Controller) Move(x, y float64) error {
	if c.mode == Idle {
		return nil
	}
	if !c.txn.Active() {
		c.reset()
		return nil
	}
	delta := c.layout.DeltaSeconds(x - c.originX)
	return c.txn.Do(func() error {
		return c.apply(delta, y)
	})
}

func (c *Controller) apply(delta, y float64) error {
	switch c.mode {
	case Dragging:
		start := c.origStart + delta
		if vp := c.engine.Viewport(); vp.SnapToGrid {
			start = timegrid.Snap(start, vp.GridSize)
		}
		start = max(start, 0)
		target := c.laneUnder(y)
		if target != "" && target != c.trackID {
			if err := c.engine.MoveClipToTrack(c.trackID, c.clipID, target, start); err != nil {
				return err
			}
			c.trackID = target
			return nil
		}
		return c.engine.MoveClip(c.trackID, c.clipID, start)

	case Resizing:
		if c.edge == EdgeEnd {
			return c.engine.ResizeClip(c.trackID, c.clipID, c.origDur+delta)
		}
		return c.engine.TrimClipStart(c.trackID, c.clipID, c.origStart+delta)
	}
	return nil
}

// laneUnder returns the id of an unlocked track under y, or "".
func (c *Controller) laneUnder(y float64) string {
	idx := c.layout.TrackAt(y, c.engine.Lanes())
	tr, ok := c.engine.TrackAt(idx)
	if !ok || tr.Locked {
		return ""
	}
	return tr.ID
}

// End commits the gesture and reports whether a history entry was
// recorded.
func (c *Controller) End() bool {
	if c.mode == Idle {
		return false
	}
	committed := c.txn.Commit()
	c.reset()
	return committed
}

// Cancel rolls the clip back to its captured bounds.
func (c *Controller) Cancel() {
	if c.mode == Idle {
		return
	}
	c.txn.Rollback()
	c.reset()
}

func (c *Controller) reset() {
	c.mode = Idle
	c.trackID = ""
	c.clipID = ""
	c.txn = nil
}
