package api

import (
	"errors"
	"net/http"

	"github.com/heimdex/heimdex-timeline/internal/gesture"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

func playbackStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			return e.Playback(), nil
		})
	}
}

// playbackActionHandler runs a transport command and answers with the
// resulting playback status. The session clock follows the playing state.
func playbackActionHandler(cfg ServerConfig, action func(*timeline.Engine)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			action(e)
			return e.Playback(), nil
		})
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if !decodeBody(w, r, &req) {
			return
		}
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			e.Seek(req.Time)
			return e.Playback(), nil
		})
	}
}

func playbackSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlaybackSettingsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Rate != nil && *req.Rate <= 0 {
			WriteError(w, http.StatusBadRequest, "rate must be positive", "BAD_REQUEST")
			return
		}
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			if req.Rate != nil {
				e.SetPlaybackRate(*req.Rate)
			}
			if req.Loop != nil {
				e.SetLoop(*req.Loop)
			}
			return e.Playback(), nil
		})
	}
}

func gestureResponse(c *gesture.Controller) GestureResponse {
	trackID, clipID := c.Target()
	return GestureResponse{
		Mode:    c.Mode().String(),
		TrackID: trackID,
		ClipID:  clipID,
	}
}

// gestureHandler runs fn against the session's gesture controller and
// answers with the controller state.
func gestureHandler(cfg ServerConfig, fn func(c *gesture.Controller) (GestureResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(cfg, w, r)
		if !ok {
			return
		}
		var resp GestureResponse
		err := s.Gesture(func(c *gesture.Controller) error {
			var err error
			resp, err = fn(c)
			return err
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func gestureViewportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GestureViewportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		gestureHandler(cfg, func(c *gesture.Controller) (GestureResponse, error) {
			c.SetViewport(req.HeaderHeight, req.ScrollX, req.ScrollY)
			return gestureResponse(c), nil
		})(w, r)
	}
}

// pointerDownHandler starts a drag or resize on the clip under the pointer.
// Pressing on empty space is not an error and leaves the controller idle.
func pointerDownHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PointerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		gestureHandler(cfg, func(c *gesture.Controller) (GestureResponse, error) {
			hit, err := c.PointerDown(req.X, req.Y)
			if errors.Is(err, timeline.ErrClipNotFound) && hit.ClipID == "" {
				return gestureResponse(c), nil
			}
			if err != nil {
				return GestureResponse{}, err
			}
			resp := gestureResponse(c)
			if hit.Resize {
				resp.Edge = hit.Edge.String()
			}
			return resp, nil
		})(w, r)
	}
}

func pointerMoveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PointerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		gestureHandler(cfg, func(c *gesture.Controller) (GestureResponse, error) {
			if err := c.Move(req.X, req.Y); err != nil {
				return GestureResponse{}, err
			}
			return gestureResponse(c), nil
		})(w, r)
	}
}

func pointerUpHandler(cfg ServerConfig) http.HandlerFunc {
	return gestureHandler(cfg, func(c *gesture.Controller) (GestureResponse, error) {
		recorded := c.End()
		resp := gestureResponse(c)
		resp.Recorded = recorded
		return resp, nil
	})
}

func pointerCancelHandler(cfg ServerConfig) http.HandlerFunc {
	return gestureHandler(cfg, func(c *gesture.Controller) (GestureResponse, error) {
		c.Cancel()
		return gestureResponse(c), nil
	})
}
