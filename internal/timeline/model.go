// Package timeline owns the canonical multi-track timeline model and every
// operation that mutates it. The Engine is single-threaded: callers that share
// one across goroutines must serialize access themselves.
package timeline

import (
	"maps"
	"slices"
	"sort"

	"github.com/google/uuid"
)

type TrackKind string

const (
	TrackVideo  TrackKind = "video"
	TrackAudio  TrackKind = "audio"
	TrackText   TrackKind = "text"
	TrackImage  TrackKind = "image"
	TrackEffect TrackKind = "effect"
)

func (k TrackKind) Valid() bool {
	switch k {
	case TrackVideo, TrackAudio, TrackText, TrackImage, TrackEffect:
		return true
	}
	return false
}

type Easing string

const (
	EaseLinear  Easing = "linear"
	EaseIn      Easing = "ease-in"
	EaseOut     Easing = "ease-out"
	EaseInOut   Easing = "ease-in-out"
	EaseBounce  Easing = "bounce"
	EaseElastic Easing = "elastic"
)

func (e Easing) Valid() bool {
	switch e {
	case EaseLinear, EaseIn, EaseOut, EaseInOut, EaseBounce, EaseElastic:
		return true
	}
	return false
}

type Interpolation string

const (
	InterpLinear Interpolation = "linear"
	InterpBezier Interpolation = "bezier"
	InterpStep   Interpolation = "step"
)

func (i Interpolation) Valid() bool {
	switch i {
	case InterpLinear, InterpBezier, InterpStep:
		return true
	}
	return false
}

type EffectType string

const (
	EffectFilter     EffectType = "filter"
	EffectTransition EffectType = "transition"
	EffectAnimation  EffectType = "animation"
	EffectParticle   EffectType = "particle"
	EffectPhysics    EffectType = "physics"
)

func (t EffectType) Valid() bool {
	switch t {
	case EffectFilter, EffectTransition, EffectAnimation, EffectParticle, EffectPhysics:
		return true
	}
	return false
}

// Keyframe is a timestamped property snapshot. Time is absolute timeline time.
type Keyframe struct {
	ID            string
	Time          float64
	Properties    map[string]any
	Easing        Easing
	Interpolation Interpolation
}

// Effect is a parameterized modifier scoped to a window of its clip. Start is
// relative to the clip start.
type Effect struct {
	ID       string
	Name     string
	Type     EffectType
	Enabled  bool
	Params   map[string]any
	Start    float64
	Duration float64
}

// Clip is a time-bounded item on a track.
type Clip struct {
	ID        string
	Start     float64
	Duration  float64
	Content   string
	Keyframes []Keyframe
	Effects   []Effect
	Selected  bool
	Locked    bool
}

// End returns start + duration.
func (c Clip) End() float64 {
	return c.Start + c.Duration
}

// Track is a horizontal lane of clips. Clips may overlap; their order in the
// slice carries no meaning.
type Track struct {
	ID        string
	Kind      TrackKind
	Name      string
	Color     string
	Visible   bool
	Locked    bool
	Volume    *float64
	Clips     []Clip
	Height    float64
	Collapsed bool
}

// SortedClips returns the clips ordered by ascending start time, for
// rendering.
func (t Track) SortedClips() []Clip {
	out := slices.Clone(t.Clips)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

type Marker struct {
	ID       string
	Time     float64
	Category string
	Label    string
}

// Viewport holds the zoom and grid settings.
type Viewport struct {
	Zoom       float64
	SnapToGrid bool
	GridSize   float64
}

// Snapshot is the subset of state recorded in history.
type Snapshot struct {
	Tracks   []Track
	Markers  []Marker
	Viewport Viewport
	Duration float64
}

// PlaybackSettings is the persisted part of the playhead state.
type PlaybackSettings struct {
	CurrentTime float64
	Rate        float64
	Loop        bool
}

// State is everything reachable in an engine that survives export/import.
type State struct {
	Snapshot
	Playback PlaybackSettings
}

func newID() string {
	return uuid.NewString()
}

func cloneProps(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container types produced by JSON/YAML decoding so
// that snapshots never alias nested maps or slices.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneProps(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	default:
		return v
	}
}

func (k Keyframe) clone() Keyframe {
	k.Properties = cloneProps(k.Properties)
	return k
}

func (e Effect) clone() Effect {
	e.Params = cloneProps(e.Params)
	return e
}

func (c Clip) clone() Clip {
	if c.Keyframes != nil {
		kfs := make([]Keyframe, len(c.Keyframes))
		for i, k := range c.Keyframes {
			kfs[i] = k.clone()
		}
		c.Keyframes = kfs
	}
	if c.Effects != nil {
		fx := make([]Effect, len(c.Effects))
		for i, e := range c.Effects {
			fx[i] = e.clone()
		}
		c.Effects = fx
	}
	return c
}

func (t Track) clone() Track {
	if t.Volume != nil {
		v := *t.Volume
		t.Volume = &v
	}
	if t.Clips != nil {
		clips := make([]Clip, len(t.Clips))
		for i, c := range t.Clips {
			clips[i] = c.clone()
		}
		t.Clips = clips
	}
	return t
}

func cloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.clone()
	}
	return out
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Tracks:   cloneTracks(s.Tracks),
		Markers:  slices.Clone(s.Markers),
		Viewport: s.Viewport,
		Duration: s.Duration,
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return State{Snapshot: s.Snapshot.Clone(), Playback: s.Playback}
}

func sortKeyframes(kfs []Keyframe) {
	sort.SliceStable(kfs, func(i, j int) bool { return kfs[i].Time < kfs[j].Time })
}

func sortMarkers(ms []Marker) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Time < ms[j].Time })
}

func mergeProps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	maps.Copy(dst, cloneProps(src))
	return dst
}
