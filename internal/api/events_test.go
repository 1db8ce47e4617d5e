package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func dialEvents(t *testing.T, srv *httptest.Server, projectID, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/projects/" + projectID + "/events?token=" + token
	return websocket.DefaultDialer.Dial(url, header)
}

func TestEvents_StreamsEngineEvents(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := dialEvents(t, srv, f.projectID, env.token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription is registered before the upgrade completes.
	env.mustDo(t, http.MethodPost, f.path("/markers"), AddMarkerRequest{Time: 4, Label: "beat"}, http.StatusCreated, nil)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var kinds []timeline.EventKind
	for len(kinds) < 2 {
		var msg EventMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read event: %v (got %v)", err, kinds)
		}
		if msg.ProjectID != f.projectID {
			t.Errorf("project_id = %q", msg.ProjectID)
		}
		kinds = append(kinds, msg.Kind)
	}
	if kinds[0] != timeline.EventMarkersChanged || kinds[1] != timeline.EventHistory {
		t.Errorf("events = %v, want [markers history]", kinds)
	}
}

func TestEvents_ClosedWithSession(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := dialEvents(t, srv, f.projectID, env.token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	env.mustDo(t, http.MethodPost, f.path("/close?discard=true"), nil, http.StatusNoContent, nil)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Errorf("read error = %v, want going-away close", err)
			}
			return
		}
	}
}

func TestEvents_Rejections(t *testing.T) {
	env := newTestEnv(t)
	f := env.newFixture(t, 0, 2)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	_, resp, err := dialEvents(t, srv, f.projectID, "wrong", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: err = %v, resp = %v", err, resp)
	}

	_, resp, err = dialEvents(t, srv, "missing", env.token, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown project: err = %v, resp = %v", err, resp)
	}

	header := http.Header{"Origin": {"https://evil.com"}}
	_, resp, err = dialEvents(t, srv, f.projectID, env.token, header)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign origin: err = %v, resp = %v", err, resp)
	}
}
