package api

import (
	"net/http"
	"testing"

	"github.com/heimdex/heimdex-timeline/internal/playback"
)

func TestPlayback(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)

	var st playback.Status
	env.mustDo(t, http.MethodPost, f.path("/playback/seek"), SeekRequest{Time: 3}, http.StatusOK, &st)
	if st.CurrentTime != 3 || st.Playing {
		t.Errorf("after seek = %+v", st)
	}

	env.mustDo(t, http.MethodPost, f.path("/playback/play"), nil, http.StatusOK, &st)
	if !st.Playing {
		t.Fatal("play did not start playback")
	}
	env.mustDo(t, http.MethodPost, f.path("/playback/toggle"), nil, http.StatusOK, &st)
	if st.Playing {
		t.Fatal("toggle did not pause playback")
	}
	if st.CurrentTime < 3 {
		t.Errorf("playhead moved backwards: %v", st.CurrentTime)
	}

	rate, loop := 2.0, true
	env.mustDo(t, http.MethodPut, f.path("/playback/settings"), PlaybackSettingsRequest{Rate: &rate, Loop: &loop}, http.StatusOK, &st)
	if st.Rate != 2 || !st.Loop {
		t.Errorf("settings = %+v", st)
	}
	bad := -1.0
	env.mustDo(t, http.MethodPut, f.path("/playback/settings"), PlaybackSettingsRequest{Rate: &bad}, http.StatusBadRequest, nil)

	env.mustDo(t, http.MethodPost, f.path("/playback/stop"), nil, http.StatusOK, &st)
	if st.Playing || st.CurrentTime != 0 {
		t.Errorf("after stop = %+v", st)
	}
	env.mustDo(t, http.MethodGet, f.path("/playback"), nil, http.StatusOK, &st)
	if st.Duration != 60 {
		t.Errorf("duration = %v, want 60", st.Duration)
	}
}

func TestGestures_DragRecordsOneEntry(t *testing.T) {
	env := newTestEnv(t)
	// At zoom 1 a second is 100px and the first lane spans y 0..60, so the
	// clip occupies x 200..400.
	f := env.newFixture(t, 2, 2)

	var before HistoryResponse
	env.mustDo(t, http.MethodGet, f.path("/history"), nil, http.StatusOK, &before)

	var g GestureResponse
	env.mustDo(t, http.MethodPost, f.path("/gestures/down"), PointerRequest{X: 300, Y: 30}, http.StatusOK, &g)
	if g.Mode != "dragging" || g.ClipID != f.clipID || g.TrackID != f.trackID {
		t.Fatalf("down = %+v", g)
	}
	env.mustDo(t, http.MethodPost, f.path("/gestures/move"), PointerRequest{X: 350, Y: 30}, http.StatusOK, nil)
	env.mustDo(t, http.MethodPost, f.path("/gestures/move"), PointerRequest{X: 400, Y: 30}, http.StatusOK, nil)
	env.mustDo(t, http.MethodPost, f.path("/gestures/up"), nil, http.StatusOK, &g)
	if g.Mode != "idle" || !g.Recorded {
		t.Fatalf("up = %+v", g)
	}

	var st StateResponse
	env.mustDo(t, http.MethodGet, f.path("/state"), nil, http.StatusOK, &st)
	if got := st.Document.Tracks[0].Items[0].Start; got != 3 {
		t.Errorf("start = %v, want 3", got)
	}
	if len(st.History.Entries) != len(before.Entries)+1 {
		t.Errorf("history grew by %d, want 1", len(st.History.Entries)-len(before.Entries))
	}
}

func TestGestures_ResizeAndCancel(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 2, 2)

	var g GestureResponse
	env.mustDo(t, http.MethodPost, f.path("/gestures/down"), PointerRequest{X: 398, Y: 30}, http.StatusOK, &g)
	if g.Mode != "resizing" || g.Edge != "end" {
		t.Fatalf("down on right edge = %+v", g)
	}
	env.mustDo(t, http.MethodPost, f.path("/gestures/move"), PointerRequest{X: 498, Y: 30}, http.StatusOK, nil)

	var st StateResponse
	env.mustDo(t, http.MethodGet, f.path("/state"), nil, http.StatusOK, &st)
	if got := st.Document.Tracks[0].Items[0].Duration; got != 3 {
		t.Errorf("live duration = %v, want 3", got)
	}

	env.mustDo(t, http.MethodPost, f.path("/gestures/cancel"), nil, http.StatusOK, &g)
	if g.Mode != "idle" {
		t.Errorf("after cancel = %+v", g)
	}
	env.mustDo(t, http.MethodGet, f.path("/state"), nil, http.StatusOK, &st)
	if got := st.Document.Tracks[0].Items[0].Duration; got != 2 {
		t.Errorf("duration after cancel = %v, want 2", got)
	}
}

func TestGestures_MissAndViewport(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 2, 2)

	var g GestureResponse
	env.mustDo(t, http.MethodPost, f.path("/gestures/down"), PointerRequest{X: 50, Y: 30}, http.StatusOK, &g)
	if g.Mode != "idle" || g.ClipID != "" {
		t.Errorf("down on empty space = %+v", g)
	}

	// With a 40px header the lane moves down to y 40..100.
	env.mustDo(t, http.MethodPut, f.path("/gestures/viewport"), GestureViewportRequest{HeaderHeight: 40}, http.StatusOK, nil)
	env.mustDo(t, http.MethodPost, f.path("/gestures/down"), PointerRequest{X: 300, Y: 30}, http.StatusOK, &g)
	if g.Mode != "idle" {
		t.Errorf("down in header = %+v", g)
	}
	env.mustDo(t, http.MethodPost, f.path("/gestures/down"), PointerRequest{X: 300, Y: 70}, http.StatusOK, &g)
	if g.Mode != "dragging" {
		t.Errorf("down in shifted lane = %+v", g)
	}
	env.mustDo(t, http.MethodPost, f.path("/gestures/up"), nil, http.StatusOK, &g)
	if g.Recorded {
		t.Error("gesture without movement should not record history")
	}
}

func TestGestures_LockedClip(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 2, 2)

	locked := true
	env.mustDo(t, http.MethodPatch, f.clipPath(""), UpdateClipRequest{Locked: &locked}, http.StatusOK, nil)
	env.mustDo(t, http.MethodPost, f.path("/gestures/down"), PointerRequest{X: 300, Y: 30}, http.StatusLocked, nil)
}
