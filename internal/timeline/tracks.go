package timeline

import (
	"fmt"
	"math"
	"slices"

	"github.com/heimdex/heimdex-timeline/internal/timegrid"
)

var defaultTrackColors = map[TrackKind]string{
	TrackVideo:  "#3b82f6",
	TrackAudio:  "#22c55e",
	TrackText:   "#eab308",
	TrackImage:  "#a855f7",
	TrackEffect: "#ef4444",
}

// TrackPatch carries optional track field updates. Nil fields are left
// untouched.
type TrackPatch struct {
	Name      *string
	Color     *string
	Visible   *bool
	Locked    *bool
	Volume    *float64
	Height    *float64
	Collapsed *bool
}

func (e *Engine) trackIndex(id string) int {
	return slices.IndexFunc(e.tracks, func(t Track) bool { return t.ID == id })
}

func (e *Engine) track(op, id string) (*Track, error) {
	i := e.trackIndex(id)
	if i < 0 {
		return nil, refErr(op, id, ErrTrackNotFound)
	}
	return &e.tracks[i], nil
}

// AddTrack appends an empty, visible track. An empty name becomes
// "<Kind> <n>".
func (e *Engine) AddTrack(kind TrackKind, name string) (Track, error) {
	if !kind.Valid() {
		return Track{}, e.report(refErr("add track", string(kind), ErrInvalidKind))
	}
	if name == "" {
		n := 1
		for _, t := range e.tracks {
			if t.Kind == kind {
				n++
			}
		}
		name = fmt.Sprintf("%s %d", kindTitle(kind), n)
	}
	t := Track{
		ID:      newID(),
		Kind:    kind,
		Name:    name,
		Color:   defaultTrackColors[kind],
		Visible: true,
		Height:  timegrid.DefaultTrackHeight,
	}
	if kind == TrackAudio {
		v := 1.0
		t.Volume = &v
	}
	e.tracks = append(e.tracks, t)
	e.commit("Add track", Event{Kind: EventTracksChanged, TrackID: t.ID})
	return t.clone(), nil
}

func kindTitle(k TrackKind) string {
	s := string(k)
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// RemoveTrack deletes a track and every clip on it. Locked tracks are kept.
func (e *Engine) RemoveTrack(id string) error {
	t, err := e.track("remove track", id)
	if err != nil {
		return e.report(err)
	}
	if t.Locked {
		return e.report(refErr("remove track", id, ErrLocked))
	}
	e.tracks = slices.Delete(e.tracks, e.trackIndex(id), e.trackIndex(id)+1)
	selChanged := e.pruneSelection()
	evs := []Event{{Kind: EventTracksChanged, TrackID: id}}
	if selChanged {
		evs = append(evs, Event{Kind: EventSelection})
	}
	e.commit("Remove track", evs...)
	return nil
}

// UpdateTrack applies patch. Lock state can always be changed; any other
// field on a locked track is rejected. Volume applies to audio tracks only.
func (e *Engine) UpdateTrack(id string, patch TrackPatch) error {
	t, err := e.track("update track", id)
	if err != nil {
		return e.report(err)
	}
	other := patch.Name != nil || patch.Color != nil || patch.Visible != nil ||
		patch.Volume != nil || patch.Height != nil || patch.Collapsed != nil
	locked := t.Locked
	if patch.Locked != nil {
		locked = *patch.Locked
	}
	if other && t.Locked && locked {
		return e.report(refErr("update track", id, ErrLocked))
	}
	if patch.Volume != nil && t.Kind != TrackAudio {
		return e.report(refErr("update track volume", id, ErrInvalidValue))
	}

	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Color != nil {
		t.Color = *patch.Color
	}
	if patch.Visible != nil {
		t.Visible = *patch.Visible
	}
	if patch.Locked != nil {
		t.Locked = *patch.Locked
	}
	if patch.Volume != nil {
		v := *patch.Volume
		if math.IsNaN(v) {
			v = 1
		}
		v = timegrid.Clamp(v, 0, 1)
		t.Volume = &v
	}
	if patch.Height != nil {
		h := *patch.Height
		if math.IsNaN(h) || h < timegrid.CollapsedTrackHeight {
			h = timegrid.CollapsedTrackHeight
		}
		t.Height = h
	}
	if patch.Collapsed != nil {
		t.Collapsed = *patch.Collapsed
	}
	e.commit("Update track", Event{Kind: EventTracksChanged, TrackID: id})
	return nil
}

// MoveTrack reorders a track to index, clamped to the valid range.
func (e *Engine) MoveTrack(id string, index int) error {
	from := e.trackIndex(id)
	if from < 0 {
		return e.report(refErr("move track", id, ErrTrackNotFound))
	}
	if index < 0 {
		index = 0
	}
	if index > len(e.tracks)-1 {
		index = len(e.tracks) - 1
	}
	t := e.tracks[from]
	e.tracks = slices.Delete(e.tracks, from, from+1)
	e.tracks = slices.Insert(e.tracks, index, t)
	e.commit("Reorder track", Event{Kind: EventTracksChanged, TrackID: id})
	return nil
}

// Tracks returns a deep copy of all tracks in display order.
func (e *Engine) Tracks() []Track {
	return cloneTracks(e.tracks)
}

func (e *Engine) Track(id string) (Track, bool) {
	i := e.trackIndex(id)
	if i < 0 {
		return Track{}, false
	}
	return e.tracks[i].clone(), true
}

// TrackAt returns the track at display index i.
func (e *Engine) TrackAt(i int) (Track, bool) {
	if i < 0 || i >= len(e.tracks) {
		return Track{}, false
	}
	return e.tracks[i].clone(), true
}

func (e *Engine) TrackIndex(id string) int {
	return e.trackIndex(id)
}
