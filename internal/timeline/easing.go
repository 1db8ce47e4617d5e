package timeline

import (
	"math"
	"sort"
)

// Ease maps linear progress t in [0,1] through the named curve.
func Ease(e Easing, t float64) float64 {
	t = clamp01(t)
	switch e {
	case EaseIn:
		return t * t * t
	case EaseOut:
		return 1 - math.Pow(1-t, 3)
	case EaseInOut:
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	case EaseBounce:
		return bounceOut(t)
	case EaseElastic:
		if t == 0 || t == 1 {
			return t
		}
		const c4 = 2 * math.Pi / 3
		return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
	default:
		return t
	}
}

func bounceOut(t float64) float64 {
	const n1, d1 = 7.5625, 2.75
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// progress applies the outgoing keyframe's easing and interpolation mode.
func progress(from Keyframe, t float64) float64 {
	switch from.Interpolation {
	case InterpStep:
		return 0
	case InterpBezier:
		eased := Ease(from.Easing, t)
		return eased * eased * (3 - 2*eased)
	default:
		return Ease(from.Easing, t)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// Interpolate evaluates keyframed properties at absolute time t. Keyframes
// must be sorted by time. Before the first key the first key holds, after
// the last key the last key holds. Numeric properties present on both sides
// of t are blended; everything else holds the earlier key's value.
func Interpolate(keyframes []Keyframe, t float64) map[string]any {
	if len(keyframes) == 0 {
		return map[string]any{}
	}
	if t <= keyframes[0].Time {
		return cloneProps(keyframes[0].Properties)
	}
	last := keyframes[len(keyframes)-1]
	if t >= last.Time {
		return accumulate(keyframes, len(keyframes)-1)
	}

	i := sort.Search(len(keyframes), func(i int) bool { return keyframes[i].Time > t }) - 1
	prev, next := keyframes[i], keyframes[i+1]

	out := accumulate(keyframes, i)
	span := next.Time - prev.Time
	if span <= 0 {
		return out
	}
	p := progress(prev, (t-prev.Time)/span)

	for k, nv := range next.Properties {
		a, okA := toFloat(out[k])
		b, okB := toFloat(nv)
		if okA && okB {
			out[k] = lerp(a, b, p)
		}
	}
	return out
}

// accumulate merges properties of keyframes[0..i] so a property set once
// keeps its value until a later key changes it.
func accumulate(keyframes []Keyframe, i int) map[string]any {
	out := map[string]any{}
	for _, k := range keyframes[:i+1] {
		for name, v := range k.Properties {
			out[name] = cloneValue(v)
		}
	}
	return out
}
