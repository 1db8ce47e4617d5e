package timeline

import "slices"

// Selection tracks selected clip and keyframe ids in insertion order.
type Selection struct {
	clips     []string
	keyframes []string
}

func toggle(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return append(ids, id)
}

// SelectClip replaces the clip selection with id, or toggles id when
// additive is set.
func (s *Selection) SelectClip(id string, additive bool) {
	if additive {
		s.clips = toggle(s.clips, id)
		return
	}
	s.clips = []string{id}
}

func (s *Selection) SelectKeyframe(id string, additive bool) {
	if additive {
		s.keyframes = toggle(s.keyframes, id)
		return
	}
	s.keyframes = []string{id}
}

func (s *Selection) HasClip(id string) bool {
	return slices.Contains(s.clips, id)
}

func (s *Selection) HasKeyframe(id string) bool {
	return slices.Contains(s.keyframes, id)
}

func (s *Selection) Clips() []string {
	return slices.Clone(s.clips)
}

func (s *Selection) Keyframes() []string {
	return slices.Clone(s.keyframes)
}

func (s *Selection) Empty() bool {
	return len(s.clips) == 0 && len(s.keyframes) == 0
}

func (s *Selection) Clear() {
	s.clips = nil
	s.keyframes = nil
}

// Prune drops ids the predicates no longer accept and reports whether
// anything was removed.
func (s *Selection) Prune(keepClip, keepKeyframe func(id string) bool) bool {
	before := len(s.clips) + len(s.keyframes)
	s.clips = slices.DeleteFunc(s.clips, func(id string) bool { return !keepClip(id) })
	s.keyframes = slices.DeleteFunc(s.keyframes, func(id string) bool { return !keepKeyframe(id) })
	return len(s.clips)+len(s.keyframes) != before
}

// pruneSelection drops selected ids that no longer exist in the model.
func (e *Engine) pruneSelection() bool {
	clips := make(map[string]bool)
	keys := make(map[string]bool)
	for _, t := range e.tracks {
		for _, c := range t.Clips {
			clips[c.ID] = true
			for _, k := range c.Keyframes {
				keys[k.ID] = true
			}
		}
	}
	return e.selection.Prune(
		func(id string) bool { return clips[id] },
		func(id string) bool { return keys[id] },
	)
}

// syncSelected mirrors the selection set onto Clip.Selected.
func (e *Engine) syncSelected() {
	for i := range e.tracks {
		for j := range e.tracks[i].Clips {
			c := &e.tracks[i].Clips[j]
			c.Selected = e.selection.HasClip(c.ID)
		}
	}
}

func (e *Engine) selectionChanged() {
	e.syncSelected()
	e.events.emit(Event{Kind: EventSelection})
}

// SelectClip selects a clip, or toggles it when additive is set. Selection
// is not recorded in history.
func (e *Engine) SelectClip(clipID string, additive bool) error {
	if _, c := e.findClip(clipID); c == nil {
		return e.report(refErr("select clip", clipID, ErrClipNotFound))
	}
	e.selection.SelectClip(clipID, additive)
	e.selectionChanged()
	return nil
}

func (e *Engine) SelectKeyframe(keyframeID string, additive bool) error {
	if _, _, k := e.findKeyframe(keyframeID); k == nil {
		return e.report(refErr("select keyframe", keyframeID, ErrKeyframeNotFound))
	}
	e.selection.SelectKeyframe(keyframeID, additive)
	e.selectionChanged()
	return nil
}

func (e *Engine) ClearSelection() {
	if e.selection.Empty() {
		return
	}
	e.selection.Clear()
	e.selectionChanged()
}

func (e *Engine) SelectedClipIDs() []string {
	return e.selection.Clips()
}

func (e *Engine) SelectedKeyframeIDs() []string {
	return e.selection.Keyframes()
}

// DuplicateSelection copies every selected clip on an unlocked track,
// placing each copy DuplicateGap seconds after its original. Copies get
// fresh ids for the clip, its keyframes and its effects; keyframe times
// shift with the clip. It returns the copies.
func (e *Engine) DuplicateSelection() []Clip {
	if len(e.selection.clips) == 0 {
		return nil
	}
	var copies []Clip
	var evs []Event
	for i := range e.tracks {
		t := &e.tracks[i]
		if t.Locked {
			continue
		}
		n := len(t.Clips)
		for j := 0; j < n; j++ {
			orig := t.Clips[j]
			if !e.selection.HasClip(orig.ID) {
				continue
			}
			dup := orig.clone()
			dup.ID = newID()
			dup.Selected = false
			dup.Locked = false
			dup.Start = orig.End() + e.opts.DuplicateGap
			shift := dup.Start - orig.Start
			for k := range dup.Keyframes {
				dup.Keyframes[k].ID = newID()
				dup.Keyframes[k].Time += shift
			}
			for k := range dup.Effects {
				dup.Effects[k].ID = newID()
			}
			t.Clips = append(t.Clips, dup)
			copies = append(copies, dup)
			evs = append(evs, Event{Kind: EventClipChanged, TrackID: t.ID, ClipID: dup.ID})
		}
	}
	if len(copies) == 0 {
		return nil
	}

	switch e.opts.DuplicatePolicy {
	case SelectCopies:
		e.selection.Clear()
		for _, c := range copies {
			e.selection.SelectClip(c.ID, true)
		}
	case KeepOriginals:
	default:
		e.selection.Clear()
	}
	evs = append(evs, Event{Kind: EventSelection})
	e.commit("Duplicate clips", evs...)

	out := make([]Clip, len(copies))
	for i, c := range copies {
		_, cur := e.findClip(c.ID)
		out[i] = cur.clone()
	}
	return out
}

// DeleteSelection removes every selected clip that is not locked and clears
// the selection. It returns the number of clips removed.
func (e *Engine) DeleteSelection() int {
	if len(e.selection.clips) == 0 {
		e.ClearSelection()
		return 0
	}
	removed := 0
	var evs []Event
	for i := range e.tracks {
		t := &e.tracks[i]
		if t.Locked {
			continue
		}
		t.Clips = slices.DeleteFunc(t.Clips, func(c Clip) bool {
			if c.Locked || !e.selection.HasClip(c.ID) {
				return false
			}
			removed++
			evs = append(evs, Event{Kind: EventClipChanged, TrackID: t.ID, ClipID: c.ID})
			return true
		})
	}
	e.selection.Clear()
	if removed == 0 {
		e.selectionChanged()
		return 0
	}
	evs = append(evs, Event{Kind: EventSelection})
	e.commit("Delete clips", evs...)
	return removed
}
