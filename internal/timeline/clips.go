package timeline

import (
	"math"
	"slices"
)

// ClipSpec describes a clip to create. A non-positive Duration becomes
// DefaultClipDuration.
type ClipSpec struct {
	Start    float64
	Duration float64
	Content  string
	Locked   bool
}

func (e *Engine) clip(op, trackID, clipID string) (*Track, *Clip, error) {
	t, err := e.track(op, trackID)
	if err != nil {
		return nil, nil, err
	}
	i := slices.IndexFunc(t.Clips, func(c Clip) bool { return c.ID == clipID })
	if i < 0 {
		return nil, nil, refErr(op, clipID, ErrClipNotFound)
	}
	return t, &t.Clips[i], nil
}

// editableClip resolves a clip and rejects it when it or its track is locked.
func (e *Engine) editableClip(op, trackID, clipID string) (*Track, *Clip, error) {
	t, c, err := e.clip(op, trackID, clipID)
	if err != nil {
		return nil, nil, err
	}
	if t.Locked || c.Locked {
		return nil, nil, refErr(op, clipID, ErrLocked)
	}
	return t, c, nil
}

// findClip searches every track for clipID.
func (e *Engine) findClip(clipID string) (*Track, *Clip) {
	for i := range e.tracks {
		for j := range e.tracks[i].Clips {
			if e.tracks[i].Clips[j].ID == clipID {
				return &e.tracks[i], &e.tracks[i].Clips[j]
			}
		}
	}
	return nil, nil
}

func (e *Engine) AddClip(trackID string, spec ClipSpec) (Clip, error) {
	t, err := e.track("add clip", trackID)
	if err != nil {
		return Clip{}, e.report(err)
	}
	if t.Locked {
		return Clip{}, e.report(refErr("add clip", trackID, ErrLocked))
	}
	d := spec.Duration
	if d <= 0 || math.IsNaN(d) {
		d = DefaultClipDuration
	}
	c := Clip{
		ID:       newID(),
		Start:    e.clampStart(e.quantize(spec.Start)),
		Duration: e.clampDuration(e.quantize(d)),
		Content:  spec.Content,
		Locked:   spec.Locked,
	}
	t.Clips = append(t.Clips, c)
	e.commit("Add clip", Event{Kind: EventClipChanged, TrackID: trackID, ClipID: c.ID})
	return c.clone(), nil
}

func (e *Engine) RemoveClip(trackID, clipID string) error {
	t, c, err := e.editableClip("remove clip", trackID, clipID)
	if err != nil {
		return e.report(err)
	}
	id := c.ID
	t.Clips = slices.DeleteFunc(t.Clips, func(c Clip) bool { return c.ID == id })
	evs := []Event{{Kind: EventClipChanged, TrackID: trackID, ClipID: id}}
	if e.pruneSelection() {
		evs = append(evs, Event{Kind: EventSelection})
	}
	e.commit("Remove clip", evs...)
	return nil
}

// MoveClip sets a clip's start. The value is snapped when grid snapping is
// on, then clamped to zero. Overlap with other clips is allowed.
func (e *Engine) MoveClip(trackID, clipID string, newStart float64) error {
	_, c, err := e.editableClip("move clip", trackID, clipID)
	if err != nil {
		return e.report(err)
	}
	c.Start = e.clampStart(e.quantize(newStart))
	e.commit("Move clip", Event{Kind: EventClipChanged, TrackID: trackID, ClipID: clipID})
	return nil
}

// ResizeClip sets a clip's duration, snapped and clamped to the minimum clip
// duration.
func (e *Engine) ResizeClip(trackID, clipID string, newDuration float64) error {
	_, c, err := e.editableClip("resize clip", trackID, clipID)
	if err != nil {
		return e.report(err)
	}
	c.Duration = e.clampDuration(e.quantize(newDuration))
	e.commit("Resize clip", Event{Kind: EventClipChanged, TrackID: trackID, ClipID: clipID})
	return nil
}

// SetClipBounds sets start and duration together in a single history entry.
// Both values are snapped independently.
func (e *Engine) SetClipBounds(trackID, clipID string, start, duration float64) error {
	_, c, err := e.editableClip("trim clip", trackID, clipID)
	if err != nil {
		return e.report(err)
	}
	c.Start = e.clampStart(e.quantize(start))
	c.Duration = e.clampDuration(e.quantize(duration))
	e.commit("Trim clip", Event{Kind: EventClipChanged, TrackID: trackID, ClipID: clipID})
	return nil
}

// TrimClipStart moves a clip's start edge while its end stays put. Only the
// start is snapped; the duration is whatever remains up to the old end, but
// never less than the minimum clip duration.
func (e *Engine) TrimClipStart(trackID, clipID string, newStart float64) error {
	_, c, err := e.editableClip("trim clip", trackID, clipID)
	if err != nil {
		return e.report(err)
	}
	end := c.End()
	start := e.clampStart(e.quantize(newStart))
	if start > end-e.opts.MinClipDuration {
		start = max(end-e.opts.MinClipDuration, 0)
	}
	c.Start = start
	c.Duration = e.clampDuration(end - start)
	e.commit("Trim clip", Event{Kind: EventClipChanged, TrackID: trackID, ClipID: clipID})
	return nil
}

// MoveClipToTrack moves a clip to another lane at newStart. Both tracks must
// be unlocked.
func (e *Engine) MoveClipToTrack(fromTrackID, clipID, toTrackID string, newStart float64) error {
	if fromTrackID == toTrackID {
		return e.MoveClip(fromTrackID, clipID, newStart)
	}
	from, c, err := e.editableClip("move clip to track", fromTrackID, clipID)
	if err != nil {
		return e.report(err)
	}
	to, err := e.track("move clip to track", toTrackID)
	if err != nil {
		return e.report(err)
	}
	if to.Locked {
		return e.report(refErr("move clip to track", toTrackID, ErrLocked))
	}
	moved := *c
	moved.Start = e.clampStart(e.quantize(newStart))
	from.Clips = slices.DeleteFunc(from.Clips, func(x Clip) bool { return x.ID == clipID })
	to.Clips = append(to.Clips, moved)
	e.commit("Move clip to track",
		Event{Kind: EventClipChanged, TrackID: fromTrackID, ClipID: clipID},
		Event{Kind: EventClipChanged, TrackID: toTrackID, ClipID: clipID})
	return nil
}

// SplitClip cuts a clip in two at time at. Keyframes before at stay on the
// left part, the rest move to the right part. Effects are copied to both
// halves and clamped to each half's length. Both halves must be at least the
// minimum clip duration. It returns the new right-hand clip.
func (e *Engine) SplitClip(trackID, clipID string, at float64) (Clip, error) {
	t, c, err := e.editableClip("split clip", trackID, clipID)
	if err != nil {
		return Clip{}, e.report(err)
	}
	at = e.quantize(at)
	minDur := e.opts.MinClipDuration
	if math.IsNaN(at) || at-c.Start < minDur || c.End()-at < minDur {
		return Clip{}, e.report(refErr("split clip", clipID, ErrInvalidValue))
	}

	orig := c.clone()
	left := orig
	left.Duration = at - orig.Start
	left.Keyframes = nil
	left.Effects = nil

	right := orig.clone()
	right.ID = newID()
	right.Start = at
	right.Duration = orig.End() - at
	right.Selected = false
	right.Keyframes = nil
	right.Effects = nil

	for _, k := range orig.Keyframes {
		if k.Time < at {
			left.Keyframes = append(left.Keyframes, k)
		} else {
			right.Keyframes = append(right.Keyframes, k)
		}
	}
	offset := at - orig.Start
	for _, fx := range orig.Effects {
		if l, ok := fitEffect(fx, 0, left.Duration); ok {
			left.Effects = append(left.Effects, l)
		}
		r := fx.clone()
		r.ID = newID()
		r.Start -= offset
		if r2, ok := fitEffect(r, 0, right.Duration); ok {
			right.Effects = append(right.Effects, r2)
		}
	}

	*c = left
	t.Clips = append(t.Clips, right)
	e.commit("Split clip",
		Event{Kind: EventClipChanged, TrackID: trackID, ClipID: clipID},
		Event{Kind: EventClipChanged, TrackID: trackID, ClipID: right.ID})
	return right.clone(), nil
}

// fitEffect intersects an effect window with [lo, hi) in clip-relative time.
func fitEffect(fx Effect, lo, hi float64) (Effect, bool) {
	start := math.Max(fx.Start, lo)
	end := math.Min(fx.Start+fx.Duration, hi)
	if end <= start {
		return Effect{}, false
	}
	fx.Start = start
	fx.Duration = end - start
	return fx, true
}

// SetClipLocked toggles a clip's lock. It is allowed on locked clips so they
// can be unlocked, but not on locked tracks.
func (e *Engine) SetClipLocked(trackID, clipID string, locked bool) error {
	t, c, err := e.clip("lock clip", trackID, clipID)
	if err != nil {
		return e.report(err)
	}
	if t.Locked {
		return e.report(refErr("lock clip", clipID, ErrLocked))
	}
	c.Locked = locked
	label := "Unlock clip"
	if locked {
		label = "Lock clip"
	}
	e.commit(label, Event{Kind: EventClipChanged, TrackID: trackID, ClipID: clipID})
	return nil
}

// SetClipContent changes the media reference of a clip.
func (e *Engine) SetClipContent(trackID, clipID, content string) error {
	_, c, err := e.editableClip("set clip content", trackID, clipID)
	if err != nil {
		return e.report(err)
	}
	c.Content = content
	e.commit("Change clip content", Event{Kind: EventClipChanged, TrackID: trackID, ClipID: clipID})
	return nil
}

// FindClip returns the track id and a copy of the clip with id clipID.
func (e *Engine) FindClip(clipID string) (string, Clip, bool) {
	t, c := e.findClip(clipID)
	if c == nil {
		return "", Clip{}, false
	}
	return t.ID, c.clone(), true
}

// ClipsAt returns every clip whose span contains time t, in track order.
func (e *Engine) ClipsAt(t float64) []Clip {
	var out []Clip
	for _, tr := range e.tracks {
		for _, c := range tr.SortedClips() {
			if t >= c.Start && t < c.End() {
				out = append(out, c.clone())
			}
		}
	}
	return out
}

// ContentEnd returns the latest clip end across all tracks.
func (e *Engine) ContentEnd() float64 {
	var end float64
	for _, t := range e.tracks {
		for _, c := range t.Clips {
			end = math.Max(end, c.End())
		}
	}
	return end
}
