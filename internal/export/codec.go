package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// DecodeError reports why a document was rejected. Path locates the
// offending field, e.g. "tracks[1].items[0].duration".
type DecodeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "import: " + e.Reason
	}
	return fmt.Sprintf("import: %s: %s", e.Path, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Imported is a validated document, ready for timeline.Engine.Load.
type Imported struct {
	State   timeline.State
	Project Project
}

// Encode builds a document from engine state. ExportedAt is the current
// time in UTC.
func Encode(st timeline.State, p Project) *Document {
	if p.RenderSettings == (RenderSettings{}) {
		p.RenderSettings = DefaultRenderSettings()
	}
	doc := &Document{
		Version: Version,
		Metadata: Metadata{
			Name:       p.Name,
			Duration:   st.Duration,
			FPS:        p.RenderSettings.FPS,
			Resolution: p.RenderSettings.Resolution,
			ExportedAt: time.Now().UTC(),
			TrackCount: len(st.Tracks),
		},
		RenderSettings: p.RenderSettings,
		Tracks:         make([]TrackDoc, 0, len(st.Tracks)),
		Markers:        make([]MarkerDoc, 0, len(st.Markers)),
		Timeline: TimelineDoc{
			CurrentTime:  st.Playback.CurrentTime,
			Zoom:         st.Viewport.Zoom,
			SnapToGrid:   st.Viewport.SnapToGrid,
			GridSize:     st.Viewport.GridSize,
			PlaybackRate: st.Playback.Rate,
			Loop:         st.Playback.Loop,
		},
	}

	for _, t := range st.Tracks {
		doc.Metadata.ClipCount += len(t.Clips)
		doc.Tracks = append(doc.Tracks, EncodeTrack(t))
	}
	for _, m := range st.Markers {
		doc.Markers = append(doc.Markers, EncodeMarker(m))
	}
	return doc
}

func EncodeTrack(t timeline.Track) TrackDoc {
	td := TrackDoc{
		ID:        t.ID,
		Type:      string(t.Kind),
		Name:      t.Name,
		Color:     t.Color,
		Visible:   t.Visible,
		Locked:    t.Locked,
		Volume:    t.Volume,
		Height:    t.Height,
		Collapsed: t.Collapsed,
		Items:     make([]ItemDoc, 0, len(t.Clips)),
	}
	for _, c := range t.Clips {
		td.Items = append(td.Items, EncodeClip(c))
	}
	return td
}

func EncodeMarker(m timeline.Marker) MarkerDoc {
	return MarkerDoc{ID: m.ID, Time: m.Time, Category: m.Category, Label: m.Label}
}

func EncodeKeyframe(k timeline.Keyframe) KeyframeDoc {
	return KeyframeDoc{
		ID:            k.ID,
		Time:          k.Time,
		Properties:    k.Properties,
		Easing:        string(k.Easing),
		Interpolation: string(k.Interpolation),
	}
}

func EncodeEffect(fx timeline.Effect) EffectDoc {
	return EffectDoc{
		ID:       fx.ID,
		Name:     fx.Name,
		Type:     string(fx.Type),
		Enabled:  fx.Enabled,
		Params:   fx.Params,
		Start:    fx.Start,
		Duration: fx.Duration,
	}
}

// EncodeClip derives the absolute bounds from start and duration.
func EncodeClip(c timeline.Clip) ItemDoc {
	it := ItemDoc{
		ID:            c.ID,
		Start:         c.Start,
		Duration:      c.Duration,
		Content:       c.Content,
		AbsoluteStart: c.Start,
		AbsoluteEnd:   c.End(),
		Locked:        c.Locked,
		Keyframes:     make([]KeyframeDoc, 0, len(c.Keyframes)),
		Effects:       make([]EffectDoc, 0, len(c.Effects)),
	}
	for _, k := range c.Keyframes {
		it.Keyframes = append(it.Keyframes, EncodeKeyframe(k))
	}
	for _, fx := range c.Effects {
		it.Effects = append(it.Effects, EncodeEffect(fx))
	}
	return it
}

// Marshal serializes a document. JSON output is indented.
func Marshal(doc *Document, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("marshal: unsupported format %q", f)
	}
}

// Decode parses and validates a document. Nothing is returned unless the
// whole document is valid.
func Decode(data []byte, f Format) (*Imported, error) {
	var doc Document
	switch f {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &DecodeError{Reason: "malformed json: " + err.Error(), Err: err}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &DecodeError{Reason: "malformed yaml: " + err.Error(), Err: err}
		}
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported format %q", f)}
	}
	return FromDocument(&doc)
}

// FromDocument validates doc and converts it to engine state.
func FromDocument(doc *Document) (*Imported, error) {
	v := validator{ids: make(map[string]string)}
	st := v.document(doc)
	if v.err != nil {
		return nil, v.err
	}
	return &Imported{
		State: st,
		Project: Project{
			Name:           doc.Metadata.Name,
			RenderSettings: doc.RenderSettings,
		},
	}, nil
}

// validator walks a document and stops at the first problem.
type validator struct {
	ids map[string]string
	err *DecodeError
}

func (v *validator) fail(path, format string, args ...any) {
	if v.err == nil {
		v.err = &DecodeError{Path: path, Reason: fmt.Sprintf(format, args...)}
	}
}

func (v *validator) id(path, id string) {
	if strings.TrimSpace(id) == "" {
		v.fail(path, "id is required")
		return
	}
	if prev, ok := v.ids[id]; ok {
		v.fail(path, "duplicate id %q (first used at %s)", id, prev)
		return
	}
	v.ids[id] = path
}

func (v *validator) document(doc *Document) timeline.State {
	var st timeline.State
	if doc.Version != "1" && !strings.HasPrefix(doc.Version, "1.") {
		v.fail("version", "unsupported version %q", doc.Version)
		return st
	}
	if doc.Metadata.Duration <= 0 {
		v.fail("metadata.duration", "must be positive")
	}
	st.Duration = doc.Metadata.Duration

	tl := doc.Timeline
	if tl.Zoom < 0 {
		v.fail("timeline.zoom", "must not be negative")
	}
	if tl.GridSize < 0 {
		v.fail("timeline.gridSize", "must not be negative")
	}
	if tl.PlaybackRate < 0 {
		v.fail("timeline.playbackRate", "must not be negative")
	}
	if tl.CurrentTime < 0 {
		v.fail("timeline.currentTime", "must not be negative")
	}
	st.Viewport = timeline.Viewport{Zoom: tl.Zoom, SnapToGrid: tl.SnapToGrid, GridSize: tl.GridSize}
	st.Playback = timeline.PlaybackSettings{CurrentTime: tl.CurrentTime, Rate: tl.PlaybackRate, Loop: tl.Loop}

	for i, td := range doc.Tracks {
		st.Tracks = append(st.Tracks, v.track(fmt.Sprintf("tracks[%d]", i), td))
	}
	for i, md := range doc.Markers {
		path := fmt.Sprintf("markers[%d]", i)
		v.id(path+".id", md.ID)
		if md.Time < 0 {
			v.fail(path+".time", "must not be negative")
		}
		st.Markers = append(st.Markers, timeline.Marker{ID: md.ID, Time: md.Time, Category: md.Category, Label: md.Label})
	}
	return st
}

func (v *validator) track(path string, td TrackDoc) timeline.Track {
	v.id(path+".id", td.ID)
	kind := timeline.TrackKind(td.Type)
	if !kind.Valid() {
		v.fail(path+".type", "unknown track type %q", td.Type)
	}
	if td.Volume != nil && kind != timeline.TrackAudio {
		v.fail(path+".volume", "only audio tracks have a volume")
	}
	if td.Height < 0 {
		v.fail(path+".height", "must not be negative")
	}
	t := timeline.Track{
		ID:        td.ID,
		Kind:      kind,
		Name:      td.Name,
		Color:     td.Color,
		Visible:   td.Visible,
		Locked:    td.Locked,
		Volume:    td.Volume,
		Height:    td.Height,
		Collapsed: td.Collapsed,
	}
	for i, it := range td.Items {
		t.Clips = append(t.Clips, v.clip(fmt.Sprintf("%s.items[%d]", path, i), it))
	}
	return t
}

func (v *validator) clip(path string, it ItemDoc) timeline.Clip {
	v.id(path+".id", it.ID)
	if it.Start < 0 {
		v.fail(path+".start", "must not be negative")
	}
	if it.Duration <= 0 {
		v.fail(path+".duration", "must be positive")
	}
	c := timeline.Clip{
		ID:       it.ID,
		Start:    it.Start,
		Duration: it.Duration,
		Content:  it.Content,
		Locked:   it.Locked,
	}
	for i, kd := range it.Keyframes {
		kp := fmt.Sprintf("%s.keyframes[%d]", path, i)
		v.id(kp+".id", kd.ID)
		easing := timeline.Easing(kd.Easing)
		if kd.Easing == "" {
			easing = timeline.EaseLinear
		}
		if !easing.Valid() {
			v.fail(kp+".easing", "unknown easing %q", kd.Easing)
		}
		interp := timeline.Interpolation(kd.Interpolation)
		if kd.Interpolation == "" {
			interp = timeline.InterpLinear
		}
		if !interp.Valid() {
			v.fail(kp+".interpolation", "unknown interpolation %q", kd.Interpolation)
		}
		props := normalizeMap(kd.Properties)
		if props == nil {
			props = map[string]any{}
		}
		c.Keyframes = append(c.Keyframes, timeline.Keyframe{
			ID:            kd.ID,
			Time:          kd.Time,
			Properties:    props,
			Easing:        easing,
			Interpolation: interp,
		})
	}
	for i, ed := range it.Effects {
		ep := fmt.Sprintf("%s.effects[%d]", path, i)
		v.id(ep+".id", ed.ID)
		typ := timeline.EffectType(ed.Type)
		if !typ.Valid() {
			v.fail(ep+".type", "unknown effect type %q", ed.Type)
		}
		if ed.Start < 0 || ed.Duration < 0 {
			v.fail(ep, "effect window must not be negative")
		}
		c.Effects = append(c.Effects, timeline.Effect{
			ID:       ed.ID,
			Name:     ed.Name,
			Type:     typ,
			Enabled:  ed.Enabled,
			Params:   normalizeMap(ed.Params),
			Start:    ed.Start,
			Duration: ed.Duration,
		})
	}
	return c
}

// normalizeMap converts decoded numbers to float64 so JSON and YAML imports
// produce the same values.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case map[string]any:
		return normalizeMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalizeValue(x[i])
		}
		return out
	default:
		return x
	}
}

// IsDecodeError reports whether err came from document validation.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
