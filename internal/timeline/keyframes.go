package timeline

import (
	"math"
	"slices"
)

// KeyframePatch carries optional keyframe updates. Properties are merged
// into the existing map unless ReplaceProperties is set.
type KeyframePatch struct {
	Properties        map[string]any
	ReplaceProperties bool
	Easing            *Easing
	Interpolation     *Interpolation
}

// EffectSpec describes an effect to attach. A zero Duration spans to the end
// of the clip. Enabled defaults to true.
type EffectSpec struct {
	Name     string
	Type     EffectType
	Params   map[string]any
	Start    float64
	Duration float64
	Enabled  *bool
}

// EffectPatch carries optional effect updates. Params are merged.
type EffectPatch struct {
	Name     *string
	Enabled  *bool
	Params   map[string]any
	Start    *float64
	Duration *float64
}

func (e *Engine) editableClipByID(op, clipID string) (*Track, *Clip, error) {
	t, c := e.findClip(clipID)
	if c == nil {
		return nil, nil, refErr(op, clipID, ErrClipNotFound)
	}
	if t.Locked || c.Locked {
		return nil, nil, refErr(op, clipID, ErrLocked)
	}
	return t, c, nil
}

func (e *Engine) findKeyframe(keyframeID string) (*Track, *Clip, *Keyframe) {
	for i := range e.tracks {
		for j := range e.tracks[i].Clips {
			c := &e.tracks[i].Clips[j]
			for k := range c.Keyframes {
				if c.Keyframes[k].ID == keyframeID {
					return &e.tracks[i], c, &c.Keyframes[k]
				}
			}
		}
	}
	return nil, nil, nil
}

// keyframeTime clamps t into [start, end) of the clip.
func keyframeTime(c *Clip, t float64) float64 {
	if math.IsNaN(t) {
		return c.Start
	}
	hi := c.End() - keyframeEpsilon
	if hi < c.Start {
		hi = c.Start
	}
	return math.Min(math.Max(t, c.Start), hi)
}

// AddKeyframe records a property snapshot at time t, clamped into the clip.
func (e *Engine) AddKeyframe(clipID string, t float64, props map[string]any) (Keyframe, error) {
	tr, c, err := e.editableClipByID("add keyframe", clipID)
	if err != nil {
		return Keyframe{}, e.report(err)
	}
	k := Keyframe{
		ID:            newID(),
		Time:          keyframeTime(c, t),
		Properties:    cloneProps(props),
		Easing:        EaseLinear,
		Interpolation: InterpLinear,
	}
	if k.Properties == nil {
		k.Properties = map[string]any{}
	}
	c.Keyframes = append(c.Keyframes, k)
	sortKeyframes(c.Keyframes)
	e.commit("Add keyframe", Event{Kind: EventKeyframeChanged, TrackID: tr.ID, ClipID: clipID, KeyframeID: k.ID})
	return k.clone(), nil
}

func (e *Engine) clipKeyframe(op, clipID, keyframeID string) (*Track, *Clip, int, error) {
	tr, c, err := e.editableClipByID(op, clipID)
	if err != nil {
		return nil, nil, -1, err
	}
	i := slices.IndexFunc(c.Keyframes, func(k Keyframe) bool { return k.ID == keyframeID })
	if i < 0 {
		return nil, nil, -1, refErr(op, keyframeID, ErrKeyframeNotFound)
	}
	return tr, c, i, nil
}

func (e *Engine) RemoveKeyframe(clipID, keyframeID string) error {
	tr, c, i, err := e.clipKeyframe("remove keyframe", clipID, keyframeID)
	if err != nil {
		return e.report(err)
	}
	c.Keyframes = slices.Delete(c.Keyframes, i, i+1)
	evs := []Event{{Kind: EventKeyframeChanged, TrackID: tr.ID, ClipID: clipID, KeyframeID: keyframeID}}
	if e.pruneSelection() {
		evs = append(evs, Event{Kind: EventSelection})
	}
	e.commit("Remove keyframe", evs...)
	return nil
}

func (e *Engine) UpdateKeyframe(clipID, keyframeID string, patch KeyframePatch) error {
	tr, c, i, err := e.clipKeyframe("update keyframe", clipID, keyframeID)
	if err != nil {
		return e.report(err)
	}
	if patch.Easing != nil && !patch.Easing.Valid() {
		return e.report(refErr("update keyframe easing", keyframeID, ErrInvalidValue))
	}
	if patch.Interpolation != nil && !patch.Interpolation.Valid() {
		return e.report(refErr("update keyframe interpolation", keyframeID, ErrInvalidValue))
	}
	k := &c.Keyframes[i]
	if patch.ReplaceProperties {
		k.Properties = cloneProps(patch.Properties)
		if k.Properties == nil {
			k.Properties = map[string]any{}
		}
	} else if patch.Properties != nil {
		k.Properties = mergeProps(k.Properties, patch.Properties)
	}
	if patch.Easing != nil {
		k.Easing = *patch.Easing
	}
	if patch.Interpolation != nil {
		k.Interpolation = *patch.Interpolation
	}
	e.commit("Update keyframe", Event{Kind: EventKeyframeChanged, TrackID: tr.ID, ClipID: clipID, KeyframeID: keyframeID})
	return nil
}

// MoveKeyframe retimes a keyframe, clamped into its clip.
func (e *Engine) MoveKeyframe(clipID, keyframeID string, t float64) error {
	tr, c, i, err := e.clipKeyframe("move keyframe", clipID, keyframeID)
	if err != nil {
		return e.report(err)
	}
	c.Keyframes[i].Time = keyframeTime(c, t)
	sortKeyframes(c.Keyframes)
	e.commit("Move keyframe", Event{Kind: EventKeyframeChanged, TrackID: tr.ID, ClipID: clipID, KeyframeID: keyframeID})
	return nil
}

// PropertiesAt evaluates the clip's keyframes at absolute time t.
func (e *Engine) PropertiesAt(clipID string, t float64) (map[string]any, error) {
	_, c := e.findClip(clipID)
	if c == nil {
		return nil, refErr("properties at", clipID, ErrClipNotFound)
	}
	return Interpolate(c.Keyframes, t), nil
}

func (e *Engine) AddEffect(clipID string, spec EffectSpec) (Effect, error) {
	tr, c, err := e.editableClipByID("add effect", clipID)
	if err != nil {
		return Effect{}, e.report(err)
	}
	if !spec.Type.Valid() {
		return Effect{}, e.report(refErr("add effect", string(spec.Type), ErrInvalidValue))
	}
	fx := Effect{
		ID:      newID(),
		Name:    spec.Name,
		Type:    spec.Type,
		Enabled: true,
		Params:  cloneProps(spec.Params),
	}
	if spec.Enabled != nil {
		fx.Enabled = *spec.Enabled
	}
	if fx.Name == "" {
		fx.Name = string(spec.Type)
	}
	fx.Start, fx.Duration = effectWindow(c.Duration, spec.Start, spec.Duration)
	c.Effects = append(c.Effects, fx)
	e.commit("Add effect", Event{Kind: EventEffectChanged, TrackID: tr.ID, ClipID: clipID})
	return fx.clone(), nil
}

// effectWindow clamps a clip-relative window into [0, clipDur]. A
// non-positive duration spans to the clip end.
func effectWindow(clipDur, start, dur float64) (float64, float64) {
	if math.IsNaN(start) || start < 0 {
		start = 0
	}
	if start >= clipDur {
		start = 0
	}
	if math.IsNaN(dur) || dur <= 0 || start+dur > clipDur {
		dur = clipDur - start
	}
	return start, dur
}

func (e *Engine) clipEffect(op, clipID, effectID string) (*Track, *Clip, int, error) {
	tr, c, err := e.editableClipByID(op, clipID)
	if err != nil {
		return nil, nil, -1, err
	}
	i := slices.IndexFunc(c.Effects, func(fx Effect) bool { return fx.ID == effectID })
	if i < 0 {
		return nil, nil, -1, refErr(op, effectID, ErrEffectNotFound)
	}
	return tr, c, i, nil
}

func (e *Engine) UpdateEffect(clipID, effectID string, patch EffectPatch) error {
	tr, c, i, err := e.clipEffect("update effect", clipID, effectID)
	if err != nil {
		return e.report(err)
	}
	fx := &c.Effects[i]
	if patch.Name != nil {
		fx.Name = *patch.Name
	}
	if patch.Enabled != nil {
		fx.Enabled = *patch.Enabled
	}
	if patch.Params != nil {
		fx.Params = mergeProps(fx.Params, patch.Params)
	}
	if patch.Start != nil || patch.Duration != nil {
		start, dur := fx.Start, fx.Duration
		if patch.Start != nil {
			start = *patch.Start
		}
		if patch.Duration != nil {
			dur = *patch.Duration
		}
		fx.Start, fx.Duration = effectWindow(c.Duration, start, dur)
	}
	e.commit("Update effect", Event{Kind: EventEffectChanged, TrackID: tr.ID, ClipID: clipID})
	return nil
}

func (e *Engine) RemoveEffect(clipID, effectID string) error {
	tr, c, i, err := e.clipEffect("remove effect", clipID, effectID)
	if err != nil {
		return e.report(err)
	}
	c.Effects = slices.Delete(c.Effects, i, i+1)
	e.commit("Remove effect", Event{Kind: EventEffectChanged, TrackID: tr.ID, ClipID: clipID})
	return nil
}
