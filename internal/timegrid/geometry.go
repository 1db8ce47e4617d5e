package timegrid

const (
	DefaultTrackHeight   = 60.0
	CollapsedTrackHeight = 24.0
)

// Rect is a screen-space rectangle in pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether the point lies inside the rectangle. The right
// and bottom edges are exclusive.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Lane describes the vertical footprint of one track.
type Lane struct {
	Height    float64 // 0 means DefaultTrackHeight
	Collapsed bool
}

func (l Lane) height(fallback float64) float64 {
	if l.Collapsed {
		return CollapsedTrackHeight
	}
	if l.Height > 0 {
		return l.Height
	}
	return fallback
}

// Layout holds the viewport parameters used to place clips on screen.
type Layout struct {
	PixelsPerSecond float64
	Zoom            float64
	TrackHeight     float64
	HeaderHeight    float64
	ScrollX         float64
	ScrollY         float64
}

// NewLayout returns a layout with default scale and lane height.
func NewLayout(zoom float64) Layout {
	return Layout{
		PixelsPerSecond: DefaultPixelsPerSecond,
		Zoom:            zoom,
		TrackHeight:     DefaultTrackHeight,
	}
}

func (l Layout) pps() float64 {
	if l.PixelsPerSecond <= 0 {
		return DefaultPixelsPerSecond
	}
	return l.PixelsPerSecond
}

func (l Layout) trackHeight() float64 {
	if l.TrackHeight <= 0 {
		return DefaultTrackHeight
	}
	return l.TrackHeight
}

// X returns the screen x coordinate of a time value.
func (l Layout) X(seconds float64) float64 {
	return SecondsToPixels(seconds, l.Zoom, l.pps()) - l.ScrollX
}

// LaneTop returns the y coordinate of the top edge of lane index.
func (l Layout) LaneTop(index int, lanes []Lane) float64 {
	y := l.HeaderHeight - l.ScrollY
	for i := 0; i < index && i < len(lanes); i++ {
		y += lanes[i].height(l.trackHeight())
	}
	return y
}

// ClipRect computes the rectangle a clip occupies in lane index.
func (l Layout) ClipRect(index int, lanes []Lane, start, duration float64) Rect {
	h := l.trackHeight()
	if index >= 0 && index < len(lanes) {
		h = lanes[index].height(h)
	}
	return Rect{
		X: l.X(start),
		Y: l.LaneTop(index, lanes),
		W: SecondsToPixels(duration, l.Zoom, l.pps()),
		H: h,
	}
}

// TimeAt inverse-maps a pointer x coordinate to a non-negative time.
func (l Layout) TimeAt(x float64) float64 {
	t := PixelsToSeconds(x+l.ScrollX, l.Zoom, l.pps())
	if t < 0 {
		return 0
	}
	return t
}

// DeltaSeconds converts a horizontal pointer delta to seconds.
func (l Layout) DeltaSeconds(deltaPixels float64) float64 {
	return PixelsToSeconds(deltaPixels, l.Zoom, l.pps())
}

// TrackAt returns the lane index under pointer y, or -1 when the pointer is
// above the first lane or below the last one.
func (l Layout) TrackAt(y float64, lanes []Lane) int {
	top := l.HeaderHeight - l.ScrollY
	if y < top {
		return -1
	}
	for i, lane := range lanes {
		bottom := top + lane.height(l.trackHeight())
		if y < bottom {
			return i
		}
		top = bottom
	}
	return -1
}
