package timeline

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/heimdex/heimdex-timeline/internal/playback"
)

func newTestEngine(t *testing.T) (*Engine, Track, Clip) {
	t.Helper()
	e := New(Options{Duration: 30})
	tr, err := e.AddTrack(TrackVideo, "")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	c, err := e.AddClip(tr.ID, ClipSpec{Start: 2, Duration: 3, Content: "asset://intro"})
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	return e, tr, c
}

func clipOf(t *testing.T, e *Engine, id string) Clip {
	t.Helper()
	_, c, ok := e.FindClip(id)
	if !ok {
		t.Fatalf("clip %s not found", id)
	}
	return c
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNew_BaselineHistory(t *testing.T) {
	e := New(Options{})
	if got := len(e.History()); got != 1 {
		t.Fatalf("len(History()) = %d, want 1", got)
	}
	if e.CanUndo() || e.CanRedo() {
		t.Error("fresh engine should have nothing to undo or redo")
	}
	if e.Viewport().Zoom != DefaultZoom {
		t.Errorf("Zoom = %v, want %v", e.Viewport().Zoom, DefaultZoom)
	}
}

func TestAddTrack(t *testing.T) {
	e := New(Options{})

	v, err := e.AddTrack(TrackVideo, "")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if v.Name != "Video 1" || !v.Visible || v.Volume != nil {
		t.Errorf("video track = %+v", v)
	}

	a, err := e.AddTrack(TrackAudio, "Music")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if a.Volume == nil || *a.Volume != 1 {
		t.Errorf("audio track volume = %v, want 1", a.Volume)
	}

	if _, err := e.AddTrack("hologram", ""); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("AddTrack(hologram) error = %v, want ErrInvalidKind", err)
	}
	if got := len(e.Tracks()); got != 2 {
		t.Errorf("len(Tracks()) = %d, want 2", got)
	}
	if got := len(e.History()); got != 3 {
		t.Errorf("len(History()) = %d, want 3", got)
	}
}

func TestMoveClip_SnapAndClamp(t *testing.T) {
	e, tr, c := newTestEngine(t)
	e.SetSnapToGrid(true)
	e.SetGridSize(1)

	tests := []struct {
		name  string
		start float64
		want  float64
	}{
		{"snaps up", 9.6, 10},
		{"snaps down", 4.2, 4},
		{"clamps negative", -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.MoveClip(tr.ID, c.ID, tt.start); err != nil {
				t.Fatalf("MoveClip() error = %v", err)
			}
			if got := clipOf(t, e, c.ID).Start; !approx(got, tt.want) {
				t.Errorf("Start = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResizeClip_MinimumDuration(t *testing.T) {
	e, tr, c := newTestEngine(t)

	if err := e.ResizeClip(tr.ID, c.ID, 0.05); err != nil {
		t.Fatalf("ResizeClip() error = %v", err)
	}
	if got := clipOf(t, e, c.ID).Duration; got != MinClipDuration {
		t.Errorf("Duration = %v, want %v", got, MinClipDuration)
	}

	if err := e.ResizeClip(tr.ID, c.ID, 7.5); err != nil {
		t.Fatalf("ResizeClip() error = %v", err)
	}
	if got := clipOf(t, e, c.ID).Duration; got != 7.5 {
		t.Errorf("Duration = %v, want 7.5", got)
	}
}

func TestSetClipBounds(t *testing.T) {
	e, tr, c := newTestEngine(t)
	before := len(e.History())

	if err := e.SetClipBounds(tr.ID, c.ID, 3, 2); err != nil {
		t.Fatalf("SetClipBounds() error = %v", err)
	}
	got := clipOf(t, e, c.ID)
	if got.Start != 3 || got.Duration != 2 {
		t.Errorf("bounds = (%v, %v), want (3, 2)", got.Start, got.Duration)
	}
	if len(e.History()) != before+1 {
		t.Errorf("SetClipBounds should record exactly one entry")
	}
}

func TestTrimClipStart_KeepsEnd(t *testing.T) {
	tests := []struct {
		name      string
		snap      bool
		start     float64
		wantStart float64
	}{
		{"free", false, 3.3, 3.3},
		{"snapped start", true, 3.4, 3},
		{"past the end", false, 9, 5 - MinClipDuration},
		{"clamps negative", false, -4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, tr, c := newTestEngine(t)
			if tt.snap {
				e.SetSnapToGrid(true)
				e.SetGridSize(1)
			}
			if err := e.TrimClipStart(tr.ID, c.ID, tt.start); err != nil {
				t.Fatalf("TrimClipStart() error = %v", err)
			}
			got := clipOf(t, e, c.ID)
			if !approx(got.Start, tt.wantStart) || !approx(got.End(), 5) {
				t.Errorf("bounds = (%v, end %v), want (%v, end 5)", got.Start, got.End(), tt.wantStart)
			}
		})
	}
}

func TestTrimClipStart_OffGridEnd(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	c, err := e.AddClip(tr.ID, ClipSpec{Start: 0.5, Duration: 3})
	if err != nil {
		t.Fatalf("AddClip() error = %v", err)
	}
	e.SetSnapToGrid(true)
	e.SetGridSize(1)

	if err := e.TrimClipStart(tr.ID, c.ID, 1.4); err != nil {
		t.Fatalf("TrimClipStart() error = %v", err)
	}
	got := clipOf(t, e, c.ID)
	if got.Start != 1 || !approx(got.End(), 3.5) {
		t.Errorf("bounds = (%v, end %v), want (1, end 3.5)", got.Start, got.End())
	}
}

func TestClamps_RejectInfinity(t *testing.T) {
	e, tr, c := newTestEngine(t)

	if err := e.MoveClip(tr.ID, c.ID, math.Inf(1)); err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}
	if got := clipOf(t, e, c.ID).Start; got != 0 {
		t.Errorf("Start after +Inf = %v, want 0", got)
	}
	if err := e.ResizeClip(tr.ID, c.ID, math.Inf(1)); err != nil {
		t.Fatalf("ResizeClip() error = %v", err)
	}
	if got := clipOf(t, e, c.ID).Duration; got != MinClipDuration {
		t.Errorf("Duration after +Inf = %v, want %v", got, MinClipDuration)
	}
	if err := e.SetClipBounds(tr.ID, c.ID, math.Inf(-1), math.Inf(-1)); err != nil {
		t.Fatalf("SetClipBounds() error = %v", err)
	}
	got := clipOf(t, e, c.ID)
	if math.IsInf(got.Start, 0) || math.IsInf(got.Duration, 0) {
		t.Errorf("bounds = (%v, %v), want finite", got.Start, got.Duration)
	}
	if math.IsInf(e.ContentEnd(), 0) {
		t.Error("ContentEnd() is infinite")
	}
}

func TestSetZoom_Clamps(t *testing.T) {
	e := New(Options{})
	tests := []struct {
		in, want float64
	}{
		{15, 10},
		{-2, 0.1},
		{2.5, 2.5},
	}
	for _, tt := range tests {
		if got := e.SetZoom(tt.in); got != tt.want {
			t.Errorf("SetZoom(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInvalidReferences_NoOp(t *testing.T) {
	e, tr, c := newTestEngine(t)
	before := e.State()
	entries := len(e.History())

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"move unknown clip", func() error { return e.MoveClip(tr.ID, "nope", 1) }, ErrClipNotFound},
		{"move on unknown track", func() error { return e.MoveClip("nope", c.ID, 1) }, ErrTrackNotFound},
		{"resize unknown clip", func() error { return e.ResizeClip(tr.ID, "nope", 1) }, ErrClipNotFound},
		{"remove unknown track", func() error { return e.RemoveTrack("nope") }, ErrTrackNotFound},
		{"remove unknown keyframe", func() error { return e.RemoveKeyframe(c.ID, "nope") }, ErrKeyframeNotFound},
		{"remove unknown effect", func() error { return e.RemoveEffect(c.ID, "nope") }, ErrEffectNotFound},
		{"remove unknown marker", func() error { return e.RemoveMarker("nope") }, ErrMarkerNotFound},
		{"select unknown clip", func() error { return e.SelectClip("nope", false) }, ErrClipNotFound},
		{"split outside clip", func() error { _, err := e.SplitClip(tr.ID, c.ID, 100); return err }, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var ref *RefError
			if !errors.As(err, &ref) {
				t.Errorf("error %T is not a *RefError", err)
			}
		})
	}

	if !reflect.DeepEqual(e.State(), before) {
		t.Error("state changed after rejected operations")
	}
	if got := len(e.History()); got != entries {
		t.Errorf("len(History()) = %d, want %d", got, entries)
	}
}

func TestLockedTrackAndClip(t *testing.T) {
	e, tr, c := newTestEngine(t)

	if err := e.SetClipLocked(tr.ID, c.ID, true); err != nil {
		t.Fatalf("SetClipLocked() error = %v", err)
	}
	if err := e.MoveClip(tr.ID, c.ID, 8); !errors.Is(err, ErrLocked) {
		t.Errorf("MoveClip on locked clip error = %v, want ErrLocked", err)
	}
	if err := e.SetClipLocked(tr.ID, c.ID, false); err != nil {
		t.Fatalf("unlock clip error = %v", err)
	}

	locked := true
	if err := e.UpdateTrack(tr.ID, TrackPatch{Locked: &locked}); err != nil {
		t.Fatalf("lock track error = %v", err)
	}
	if _, err := e.AddClip(tr.ID, ClipSpec{Start: 1}); !errors.Is(err, ErrLocked) {
		t.Errorf("AddClip on locked track error = %v, want ErrLocked", err)
	}
	name := "renamed"
	if err := e.UpdateTrack(tr.ID, TrackPatch{Name: &name}); !errors.Is(err, ErrLocked) {
		t.Errorf("rename locked track error = %v, want ErrLocked", err)
	}

	unlocked := false
	if err := e.UpdateTrack(tr.ID, TrackPatch{Locked: &unlocked, Name: &name}); err != nil {
		t.Fatalf("unlock and rename error = %v", err)
	}
	if got, _ := e.Track(tr.ID); got.Name != "renamed" || got.Locked {
		t.Errorf("track = %+v, want unlocked and renamed", got)
	}
}

func TestUpdateTrack_Volume(t *testing.T) {
	e := New(Options{})
	audio, _ := e.AddTrack(TrackAudio, "")
	video, _ := e.AddTrack(TrackVideo, "")

	loud := 3.0
	if err := e.UpdateTrack(audio.ID, TrackPatch{Volume: &loud}); err != nil {
		t.Fatalf("UpdateTrack() error = %v", err)
	}
	if got, _ := e.Track(audio.ID); *got.Volume != 1 {
		t.Errorf("Volume = %v, want clamped to 1", *got.Volume)
	}
	if err := e.UpdateTrack(video.ID, TrackPatch{Volume: &loud}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("volume on video track error = %v, want ErrInvalidValue", err)
	}
}

func TestMoveTrack(t *testing.T) {
	e := New(Options{})
	a, _ := e.AddTrack(TrackVideo, "a")
	b, _ := e.AddTrack(TrackAudio, "b")
	c, _ := e.AddTrack(TrackText, "c")

	if err := e.MoveTrack(c.ID, 0); err != nil {
		t.Fatalf("MoveTrack() error = %v", err)
	}
	var got []string
	for _, tr := range e.Tracks() {
		got = append(got, tr.ID)
	}
	want := []string{c.ID, a.ID, b.ID}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	if err := e.MoveTrack(c.ID, 99); err != nil {
		t.Fatalf("MoveTrack() error = %v", err)
	}
	if e.TrackIndex(c.ID) != 2 {
		t.Errorf("TrackIndex = %d, want 2", e.TrackIndex(c.ID))
	}
}

func TestUndoRedo_RestoresExactState(t *testing.T) {
	e, tr, c := newTestEngine(t)
	if _, err := e.AddKeyframe(c.ID, 3, map[string]any{"opacity": 0.5}); err != nil {
		t.Fatalf("AddKeyframe() error = %v", err)
	}
	e.AddMarker(4, "chapter", "Intro")
	before := e.State()

	if err := e.MoveClip(tr.ID, c.ID, 12); err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}
	after := e.State()

	if !e.Undo() {
		t.Fatal("Undo() = false")
	}
	if !reflect.DeepEqual(e.State(), before) {
		t.Errorf("state after undo differs from state before the move")
	}
	if !e.Redo() {
		t.Fatal("Redo() = false")
	}
	if !reflect.DeepEqual(e.State(), after) {
		t.Errorf("state after redo differs from state after the move")
	}
}

func TestUndo_Boundaries(t *testing.T) {
	e := New(Options{})
	if e.Undo() {
		t.Error("Undo() on baseline should be a no-op")
	}
	e.AddTrack(TrackVideo, "")
	if !e.Undo() {
		t.Fatal("Undo() = false")
	}
	if len(e.Tracks()) != 0 {
		t.Errorf("tracks after undo = %d, want 0", len(e.Tracks()))
	}
	if e.Undo() {
		t.Error("second Undo() should be a no-op")
	}

	e.Redo()
	e.SetZoom(2)
	if e.CanRedo() {
		t.Error("a new mutation should discard the redo branch")
	}
}

func TestUndo_PrunesSelection(t *testing.T) {
	e, _, _ := newTestEngine(t)
	tr2, _ := e.AddTrack(TrackVideo, "")
	c2, _ := e.AddClip(tr2.ID, ClipSpec{Start: 0, Duration: 1})
	if err := e.SelectClip(c2.ID, false); err != nil {
		t.Fatalf("SelectClip() error = %v", err)
	}

	e.Undo() // removes c2

	if got := e.SelectedClipIDs(); len(got) != 0 {
		t.Errorf("SelectedClipIDs() = %v, want empty", got)
	}
}

func TestHistory_Capacity(t *testing.T) {
	e := New(Options{HistoryCapacity: 5})
	for i := 0; i < 10; i++ {
		e.SetZoom(float64(i + 1))
	}
	if got := len(e.History()); got != 5 {
		t.Errorf("len(History()) = %d, want 5", got)
	}
}

func TestSelection(t *testing.T) {
	e, tr, c := newTestEngine(t)
	c2, _ := e.AddClip(tr.ID, ClipSpec{Start: 10, Duration: 2})
	entries := len(e.History())

	e.SelectClip(c.ID, false)
	e.SelectClip(c2.ID, true)
	if got := e.SelectedClipIDs(); !reflect.DeepEqual(got, []string{c.ID, c2.ID}) {
		t.Errorf("SelectedClipIDs() = %v", got)
	}
	if !clipOf(t, e, c.ID).Selected {
		t.Error("Clip.Selected should mirror the selection set")
	}

	e.SelectClip(c.ID, true)
	if got := e.SelectedClipIDs(); !reflect.DeepEqual(got, []string{c2.ID}) {
		t.Errorf("after toggle SelectedClipIDs() = %v", got)
	}

	e.SelectClip(c.ID, false)
	if got := e.SelectedClipIDs(); !reflect.DeepEqual(got, []string{c.ID}) {
		t.Errorf("single select SelectedClipIDs() = %v", got)
	}

	e.ClearSelection()
	if len(e.SelectedClipIDs()) != 0 {
		t.Error("ClearSelection() left clips selected")
	}
	if got := len(e.History()); got != entries {
		t.Errorf("selection changes recorded %d history entries", got-entries)
	}
}

func TestDuplicateSelection(t *testing.T) {
	e, tr, c := newTestEngine(t)
	kf, _ := e.AddKeyframe(c.ID, 2.5, map[string]any{"x": 1.0})
	fx, _ := e.AddEffect(c.ID, EffectSpec{Type: EffectFilter, Name: "blur"})
	e.SelectClip(c.ID, false)
	entries := len(e.History())

	copies := e.DuplicateSelection()
	if len(copies) != 1 {
		t.Fatalf("len(copies) = %d, want 1", len(copies))
	}
	dup := copies[0]
	if dup.ID == c.ID {
		t.Error("copy reuses the original id")
	}
	if dup.Start != 6 || dup.Duration != 3 {
		t.Errorf("copy bounds = (%v, %v), want (6, 3)", dup.Start, dup.Duration)
	}
	if len(dup.Keyframes) != 1 || dup.Keyframes[0].ID == kf.ID || dup.Keyframes[0].Time != 6.5 {
		t.Errorf("copy keyframes = %+v", dup.Keyframes)
	}
	if len(dup.Effects) != 1 || dup.Effects[0].ID == fx.ID {
		t.Errorf("copy effects = %+v", dup.Effects)
	}
	if len(e.SelectedClipIDs()) != 0 {
		t.Error("default policy should clear the selection")
	}
	if got, _ := e.Track(tr.ID); len(got.Clips) != 2 {
		t.Errorf("len(Clips) = %d, want 2", len(got.Clips))
	}
	if got := len(e.History()); got != entries+1 {
		t.Errorf("duplicate recorded %d entries, want 1", got-entries)
	}
}

func TestDuplicateSelection_Policies(t *testing.T) {
	tests := []struct {
		policy DuplicatePolicy
		want   func(orig, dup string) []string
	}{
		{SelectCopies, func(_, dup string) []string { return []string{dup} }},
		{KeepOriginals, func(orig, _ string) []string { return []string{orig} }},
	}
	for _, tt := range tests {
		e := New(Options{DuplicatePolicy: tt.policy})
		tr, _ := e.AddTrack(TrackVideo, "")
		c, _ := e.AddClip(tr.ID, ClipSpec{Start: 0, Duration: 1})
		e.SelectClip(c.ID, false)

		copies := e.DuplicateSelection()
		want := tt.want(c.ID, copies[0].ID)
		if got := e.SelectedClipIDs(); !reflect.DeepEqual(got, want) {
			t.Errorf("policy %d: selection = %v, want %v", tt.policy, got, want)
		}
	}
}

func TestDuplicateSelection_Empty(t *testing.T) {
	e, _, _ := newTestEngine(t)
	entries := len(e.History())
	if got := e.DuplicateSelection(); got != nil {
		t.Errorf("DuplicateSelection() = %v, want nil", got)
	}
	if len(e.History()) != entries {
		t.Error("empty duplicate should not record history")
	}
}

func TestDeleteSelection(t *testing.T) {
	e, tr, c := newTestEngine(t)
	tr2, _ := e.AddTrack(TrackAudio, "")
	c2, _ := e.AddClip(tr2.ID, ClipSpec{Start: 1, Duration: 2})
	keep, _ := e.AddClip(tr.ID, ClipSpec{Start: 20, Duration: 1})
	e.SelectClip(c.ID, false)
	e.SelectClip(c2.ID, true)

	if n := e.DeleteSelection(); n != 2 {
		t.Fatalf("DeleteSelection() = %d, want 2", n)
	}
	if _, _, ok := e.FindClip(c.ID); ok {
		t.Error("selected clip on first track survived")
	}
	if _, _, ok := e.FindClip(c2.ID); ok {
		t.Error("selected clip on second track survived")
	}
	if _, _, ok := e.FindClip(keep.ID); !ok {
		t.Error("unselected clip was removed")
	}
	if len(e.SelectedClipIDs()) != 0 {
		t.Error("selection not cleared")
	}
}

func TestRemoveTrack_PrunesSelection(t *testing.T) {
	e, tr, c := newTestEngine(t)
	e.SelectClip(c.ID, false)
	if err := e.RemoveTrack(tr.ID); err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}
	if len(e.SelectedClipIDs()) != 0 {
		t.Error("selection still references a removed clip")
	}
}

func TestMoveClipToTrack(t *testing.T) {
	e, tr, c := newTestEngine(t)
	dst, _ := e.AddTrack(TrackVideo, "")

	if err := e.MoveClipToTrack(tr.ID, c.ID, dst.ID, 7); err != nil {
		t.Fatalf("MoveClipToTrack() error = %v", err)
	}
	trackID, got, ok := e.FindClip(c.ID)
	if !ok || trackID != dst.ID || got.Start != 7 {
		t.Errorf("clip on %s at %v, want %s at 7", trackID, got.Start, dst.ID)
	}
	if src, _ := e.Track(tr.ID); len(src.Clips) != 0 {
		t.Error("clip still present on source track")
	}
}

func TestSplitClip(t *testing.T) {
	e, tr, c := newTestEngine(t)
	e.AddKeyframe(c.ID, 2.5, map[string]any{"x": 0.0})
	e.AddKeyframe(c.ID, 4, map[string]any{"x": 1.0})
	e.AddEffect(c.ID, EffectSpec{Type: EffectFilter})

	right, err := e.SplitClip(tr.ID, c.ID, 3)
	if err != nil {
		t.Fatalf("SplitClip() error = %v", err)
	}
	left := clipOf(t, e, c.ID)
	if left.Start != 2 || left.Duration != 1 {
		t.Errorf("left = (%v, %v), want (2, 1)", left.Start, left.Duration)
	}
	if right.Start != 3 || right.Duration != 2 {
		t.Errorf("right = (%v, %v), want (3, 2)", right.Start, right.Duration)
	}
	if len(left.Keyframes) != 1 || len(right.Keyframes) != 1 {
		t.Errorf("keyframes split %d/%d, want 1/1", len(left.Keyframes), len(right.Keyframes))
	}
	if len(left.Effects) != 1 || left.Effects[0].Duration != 1 {
		t.Errorf("left effects = %+v", left.Effects)
	}
	if len(right.Effects) != 1 || right.Effects[0].Start != 0 || right.Effects[0].Duration != 2 {
		t.Errorf("right effects = %+v", right.Effects)
	}
}

func TestAddKeyframe_ClampsIntoClip(t *testing.T) {
	e, _, c := newTestEngine(t) // clip spans [2, 5)

	tests := []struct {
		name string
		at   float64
		want float64
	}{
		{"before start", 0, 2},
		{"inside", 3.5, 3.5},
		{"past end", 10, 5 - keyframeEpsilon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := e.AddKeyframe(c.ID, tt.at, nil)
			if err != nil {
				t.Fatalf("AddKeyframe() error = %v", err)
			}
			if !approx(k.Time, tt.want) {
				t.Errorf("Time = %v, want %v", k.Time, tt.want)
			}
			if k.Easing != EaseLinear || k.Interpolation != InterpLinear {
				t.Errorf("defaults = %s/%s", k.Easing, k.Interpolation)
			}
		})
	}

	kfs := clipOf(t, e, c.ID).Keyframes
	for i := 1; i < len(kfs); i++ {
		if kfs[i-1].Time > kfs[i].Time {
			t.Fatalf("keyframes not sorted: %v then %v", kfs[i-1].Time, kfs[i].Time)
		}
	}
}

func TestUpdateAndMoveKeyframe(t *testing.T) {
	e, _, c := newTestEngine(t)
	a, _ := e.AddKeyframe(c.ID, 2, map[string]any{"x": 1.0})
	b, _ := e.AddKeyframe(c.ID, 4, map[string]any{"x": 2.0})

	ease := EaseInOut
	if err := e.UpdateKeyframe(c.ID, a.ID, KeyframePatch{Properties: map[string]any{"y": 3.0}, Easing: &ease}); err != nil {
		t.Fatalf("UpdateKeyframe() error = %v", err)
	}
	bad := Easing("wobble")
	if err := e.UpdateKeyframe(c.ID, a.ID, KeyframePatch{Easing: &bad}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("invalid easing error = %v, want ErrInvalidValue", err)
	}

	if err := e.MoveKeyframe(c.ID, a.ID, 4.5); err != nil {
		t.Fatalf("MoveKeyframe() error = %v", err)
	}
	kfs := clipOf(t, e, c.ID).Keyframes
	if kfs[0].ID != b.ID || kfs[1].ID != a.ID {
		t.Errorf("keyframes not re-sorted after move")
	}
	want := map[string]any{"x": 1.0, "y": 3.0}
	if !reflect.DeepEqual(kfs[1].Properties, want) || kfs[1].Easing != EaseInOut {
		t.Errorf("updated keyframe = %+v", kfs[1])
	}
}

func TestPropertiesAt(t *testing.T) {
	e, _, c := newTestEngine(t)
	e.AddKeyframe(c.ID, 2, map[string]any{"opacity": 0.0})
	e.AddKeyframe(c.ID, 4, map[string]any{"opacity": 1.0})

	props, err := e.PropertiesAt(c.ID, 3)
	if err != nil {
		t.Fatalf("PropertiesAt() error = %v", err)
	}
	if got := props["opacity"].(float64); !approx(got, 0.5) {
		t.Errorf("opacity = %v, want 0.5", got)
	}
}

func TestEffects(t *testing.T) {
	e, _, c := newTestEngine(t)

	fx, err := e.AddEffect(c.ID, EffectSpec{Type: EffectTransition, Start: 1, Duration: 10})
	if err != nil {
		t.Fatalf("AddEffect() error = %v", err)
	}
	if fx.Start != 1 || fx.Duration != 2 || !fx.Enabled {
		t.Errorf("effect = %+v, want window (1, 2) and enabled", fx)
	}
	if _, err := e.AddEffect(c.ID, EffectSpec{Type: "sparkle"}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("unknown effect type error = %v", err)
	}

	off := false
	if err := e.UpdateEffect(c.ID, fx.ID, EffectPatch{Enabled: &off, Params: map[string]any{"radius": 4.0}}); err != nil {
		t.Fatalf("UpdateEffect() error = %v", err)
	}
	got := clipOf(t, e, c.ID).Effects[0]
	if got.Enabled || got.Params["radius"] != 4.0 {
		t.Errorf("updated effect = %+v", got)
	}

	if err := e.RemoveEffect(c.ID, fx.ID); err != nil {
		t.Fatalf("RemoveEffect() error = %v", err)
	}
	if len(clipOf(t, e, c.ID).Effects) != 0 {
		t.Error("effect not removed")
	}
}

func TestMarkers_Sorted(t *testing.T) {
	e := New(Options{Duration: 20})
	e.AddMarker(10, "", "b")
	first := e.AddMarker(2, "chapter", "a")
	e.AddMarker(50, "", "clamped")

	ms := e.Markers()
	if len(ms) != 3 || ms[0].ID != first.ID || ms[2].Time != 20 {
		t.Fatalf("markers = %+v", ms)
	}
	if ms[1].Category != DefaultMarkerCategory {
		t.Errorf("Category = %q, want %q", ms[1].Category, DefaultMarkerCategory)
	}
	if m, ok := e.NextMarker(2); !ok || m.Time != 10 {
		t.Errorf("NextMarker(2) = %+v, %v", m, ok)
	}
	if err := e.RemoveMarker(first.ID); err != nil {
		t.Fatalf("RemoveMarker() error = %v", err)
	}
	if len(e.Markers()) != 2 {
		t.Error("marker not removed")
	}
}

func TestTxn_CoalescesIntoOneEntry(t *testing.T) {
	e, tr, c := newTestEngine(t)
	entries := len(e.History())

	txn := e.Begin("Drag clip")
	for _, x := range []float64{3, 4, 5, 6} {
		if err := txn.Do(func() error { return e.MoveClip(tr.ID, c.ID, x) }); err != nil {
			t.Fatalf("MoveClip() error = %v", err)
		}
	}
	if got := len(e.History()); got != entries {
		t.Fatalf("history grew during a transaction: %d", got-entries)
	}
	if !txn.Commit() {
		t.Fatal("Commit() = false")
	}
	if got := len(e.History()); got != entries+1 {
		t.Errorf("history grew by %d, want 1", got-entries)
	}

	e.Undo()
	if got := clipOf(t, e, c.ID).Start; got != 2 {
		t.Errorf("Start after undo = %v, want 2", got)
	}
}

func TestTxn_NoChangeRecordsNothing(t *testing.T) {
	e, tr, c := newTestEngine(t)
	entries := len(e.History())

	txn := e.Begin("Drag clip")
	txn.Do(func() error {
		e.MoveClip(tr.ID, c.ID, 9)
		return e.MoveClip(tr.ID, c.ID, 2)
	})
	if txn.Commit() {
		t.Error("Commit() = true for a gesture that ended where it began")
	}
	if len(e.History()) != entries {
		t.Error("history recorded a no-op gesture")
	}
}

func TestTxn_Rollback(t *testing.T) {
	e, tr, c := newTestEngine(t)
	before := e.State()

	txn := e.Begin("Resize clip")
	txn.Do(func() error { return e.ResizeClip(tr.ID, c.ID, 9) })
	txn.Rollback()

	if !reflect.DeepEqual(e.State(), before) {
		t.Error("rollback did not restore the pre-transaction state")
	}
	if txn.Active() || txn.Commit() {
		t.Error("rolled-back transaction still active")
	}
	if err := txn.Do(func() error { return nil }); !errors.Is(err, ErrTxnClosed) {
		t.Errorf("Do() on a closed transaction error = %v, want ErrTxnClosed", err)
	}
}

func TestTxn_OutsideMutationSettlesTxn(t *testing.T) {
	e, tr, c := newTestEngine(t)
	other, err := e.AddTrack(TrackAudio, "Music")
	if err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	entries := len(e.History())
	var aborted []string
	e.Subscribe(func(ev Event) {
		if ev.Kind == EventGestureAborted {
			aborted = append(aborted, ev.Label)
		}
	})

	txn := e.Begin("Drag clip")
	txn.Do(func() error { return e.MoveClip(tr.ID, c.ID, 8) })
	if err := e.RemoveTrack(other.ID); err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}

	if txn.Active() {
		t.Fatal("transaction still open after an outside mutation")
	}
	if len(aborted) != 1 || aborted[0] != "Drag clip" {
		t.Errorf("aborted events = %v", aborted)
	}
	h := e.History()
	if len(h) != entries+2 {
		t.Fatalf("history grew by %d, want 2", len(h)-entries)
	}
	if h[len(h)-2].Label != "Drag clip" || h[len(h)-1].Label != "Remove track" {
		t.Errorf("history tail = %q, %q", h[len(h)-2].Label, h[len(h)-1].Label)
	}

	// Finishing the stale transaction changes nothing.
	txn.Rollback()
	if txn.Commit() {
		t.Error("Commit() on a settled transaction = true")
	}
	if _, ok := e.Track(other.ID); ok {
		t.Error("rollback resurrected the removed track")
	}
	if got := clipOf(t, e, c.ID).Start; got != 8 {
		t.Errorf("Start = %v, want the dragged position 8", got)
	}

	// Undo steps back through the removal and then the drag.
	e.Undo()
	if _, ok := e.Track(other.ID); !ok {
		t.Error("first undo should restore the track")
	}
	if got := clipOf(t, e, c.ID).Start; got != 8 {
		t.Errorf("Start after first undo = %v, want 8", got)
	}
	e.Undo()
	if got := clipOf(t, e, c.ID).Start; got != 2 {
		t.Errorf("Start after second undo = %v, want 2", got)
	}
}

func TestTxn_OutsideMutationBeforeAnyChange(t *testing.T) {
	e, tr, c := newTestEngine(t)
	entries := len(e.History())

	txn := e.Begin("Drag clip")
	if err := e.MoveClip(tr.ID, c.ID, 6); err != nil {
		t.Fatalf("MoveClip() error = %v", err)
	}
	if txn.Active() {
		t.Error("transaction still open")
	}
	h := e.History()
	if len(h) != entries+1 || h[len(h)-1].Label != "Move clip" {
		t.Errorf("history grew by %d, want only the move", len(h)-entries)
	}
}

func TestUndo_AbortsOpenTxn(t *testing.T) {
	e, tr, c := newTestEngine(t)
	var aborted []string
	e.Subscribe(func(ev Event) {
		if ev.Kind == EventGestureAborted {
			aborted = append(aborted, ev.Label)
		}
	})

	txn := e.Begin("Drag clip")
	txn.Do(func() error { return e.MoveClip(tr.ID, c.ID, 15) })
	e.Undo()

	if txn.Active() {
		t.Error("transaction still active after undo")
	}
	if len(aborted) != 1 || aborted[0] != "Drag clip" {
		t.Errorf("aborted events = %v", aborted)
	}
	// The drag was rolled back and then the AddClip entry was undone.
	if _, _, ok := e.FindClip(c.ID); ok {
		t.Error("undo should have removed the clip after rolling back the drag")
	}
}

func TestBegin_SettlesPreviousTxn(t *testing.T) {
	e, tr, c := newTestEngine(t)
	entries := len(e.History())

	first := e.Begin("Drag clip")
	first.Do(func() error { return e.MoveClip(tr.ID, c.ID, 11) })
	second := e.Begin("Resize clip")

	if first.Active() || !second.Active() {
		t.Error("a new transaction should replace the open one")
	}
	if got := clipOf(t, e, c.ID).Start; got != 11 {
		t.Errorf("Start = %v, want the first transaction kept at 11", got)
	}
	if got := len(e.History()); got != entries+1 {
		t.Errorf("history grew by %d, want 1", got-entries)
	}
	second.Rollback()
	if got := clipOf(t, e, c.ID).Start; got != 11 {
		t.Errorf("Start after rolling back the second = %v, want 11", got)
	}
}

func TestPlaybackPassthrough(t *testing.T) {
	e := New(Options{Duration: 10})
	entries := len(e.History())

	var ticks int
	e.Subscribe(func(ev Event) {
		if ev.Kind == EventPlaybackTick {
			ticks++
		}
	})

	e.Seek(9)
	e.SetPlaybackRate(2)
	e.Play()
	res := e.Tick(0.5)
	if !res.Ended || res.Time != 10 {
		t.Errorf("Tick() = %+v, want ended at 10", res)
	}
	if e.Playback().State != playback.Stopped {
		t.Errorf("state = %v, want stopped", e.Playback().State)
	}
	if ticks != 2 {
		t.Errorf("tick events = %d, want 2", ticks)
	}
	if len(e.History()) != entries {
		t.Error("playback changes must not record history")
	}
}

func TestSetDuration_ReclampsPlayhead(t *testing.T) {
	e := New(Options{Duration: 30})
	e.Seek(25)
	e.SetDuration(20)
	if got := e.Playback().CurrentTime; got != 20 {
		t.Errorf("CurrentTime = %v, want 20", got)
	}
}

func TestLoad_ResetsHistoryAndSelection(t *testing.T) {
	src, _, c := newTestEngine(t)
	src.SetPlaybackRate(2)
	src.SetLoop(true)
	state := src.ExportSnapshot()

	e := New(Options{})
	e.AddTrack(TrackAudio, "")
	e.Load(state)

	if !reflect.DeepEqual(e.State(), state) {
		t.Errorf("loaded state differs from exported state")
	}
	if len(e.History()) != 1 || e.CanUndo() {
		t.Error("Load should leave a single baseline entry")
	}
	if err := e.SelectClip(c.ID, false); err != nil {
		t.Errorf("loaded clip not addressable: %v", err)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	e := New(Options{})
	var n int
	unsub := e.Subscribe(func(Event) { n++ })
	e.AddTrack(TrackVideo, "")
	seen := n
	if seen == 0 {
		t.Fatal("listener saw no events")
	}
	unsub()
	e.AddTrack(TrackVideo, "")
	if n != seen {
		t.Error("listener called after unsubscribe")
	}
}
