package timeline

type EventKind string

const (
	EventTracksChanged   EventKind = "tracks"
	EventClipChanged     EventKind = "clip"
	EventKeyframeChanged EventKind = "keyframe"
	EventEffectChanged   EventKind = "effect"
	EventMarkersChanged  EventKind = "markers"
	EventViewportChanged EventKind = "viewport"
	EventSelection       EventKind = "selection"
	EventHistory         EventKind = "history"
	EventPlaybackState   EventKind = "playback_state"
	EventPlaybackTick    EventKind = "playback_tick"
	EventGestureAborted  EventKind = "gesture_aborted"
	EventLoaded          EventKind = "loaded"
)

// Event is a discrete change notification. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind       EventKind `json:"kind"`
	Label      string    `json:"label,omitempty"`
	TrackID    string    `json:"track_id,omitempty"`
	ClipID     string    `json:"clip_id,omitempty"`
	KeyframeID string    `json:"keyframe_id,omitempty"`
	Time       float64   `json:"time,omitempty"`
	Playing    bool      `json:"playing,omitempty"`
}

type listener struct {
	id uint64
	fn func(Event)
}

type emitter struct {
	next      uint64
	listeners []listener
}

func (em *emitter) subscribe(fn func(Event)) func() {
	em.next++
	id := em.next
	em.listeners = append(em.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range em.listeners {
			if l.id == id {
				em.listeners = append(em.listeners[:i:i], em.listeners[i+1:]...)
				return
			}
		}
	}
}

func (em *emitter) emit(ev Event) {
	for _, l := range em.listeners {
		l.fn(ev)
	}
}
