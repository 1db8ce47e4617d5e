package timeline

import (
	"math"
	"slices"
)

const DefaultMarkerCategory = "default"

// AddMarker places a marker at t, clamped into [0, duration]. Markers stay
// sorted by time.
func (e *Engine) AddMarker(t float64, category, label string) Marker {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > e.duration {
		t = e.duration
	}
	if category == "" {
		category = DefaultMarkerCategory
	}
	m := Marker{ID: newID(), Time: t, Category: category, Label: label}
	e.markers = append(e.markers, m)
	sortMarkers(e.markers)
	e.commit("Add marker", Event{Kind: EventMarkersChanged, Time: t})
	return m
}

func (e *Engine) RemoveMarker(id string) error {
	i := slices.IndexFunc(e.markers, func(m Marker) bool { return m.ID == id })
	if i < 0 {
		return e.report(refErr("remove marker", id, ErrMarkerNotFound))
	}
	e.markers = slices.Delete(e.markers, i, i+1)
	e.commit("Remove marker", Event{Kind: EventMarkersChanged})
	return nil
}

func (e *Engine) Markers() []Marker {
	return slices.Clone(e.markers)
}

// NextMarker returns the first marker strictly after t.
func (e *Engine) NextMarker(t float64) (Marker, bool) {
	for _, m := range e.markers {
		if m.Time > t {
			return m, true
		}
	}
	return Marker{}, false
}

// PrevMarker returns the last marker strictly before t.
func (e *Engine) PrevMarker(t float64) (Marker, bool) {
	for i := len(e.markers) - 1; i >= 0; i-- {
		if e.markers[i].Time < t {
			return e.markers[i], true
		}
	}
	return Marker{}, false
}
