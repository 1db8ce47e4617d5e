package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// mutate runs fn against the session engine. A nil result is answered with
// 204.
func mutate(cfg ServerConfig, w http.ResponseWriter, r *http.Request, status int, fn func(e *timeline.Engine) (any, error)) {
	s, ok := sessionFor(cfg, w, r)
	if !ok {
		return
	}
	var out any
	err := s.Do(func(e *timeline.Engine) error {
		var err error
		out, err = fn(e)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if out == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, status, out)
}

// inTxn applies fn as a single history entry, rolling back on error.
func inTxn(e *timeline.Engine, label string, fn func() error) error {
	tx := e.Begin(label)
	if err := tx.Do(fn); err != nil {
		tx.Rollback()
		return err
	}
	tx.Commit()
	return nil
}

func queryTime(w http.ResponseWriter, r *http.Request) (float64, bool) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		WriteError(w, http.StatusBadRequest, "t is required", "BAD_REQUEST")
		return 0, false
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "t must be a number", "BAD_REQUEST")
		return 0, false
	}
	return t, true
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddTrackRequest
		if !decodeBody(w, r, &req) {
			return
		}
		mutate(cfg, w, r, http.StatusCreated, func(e *timeline.Engine) (any, error) {
			t, err := e.AddTrack(timeline.TrackKind(req.Kind), req.Name)
			if err != nil {
				return nil, err
			}
			return export.EncodeTrack(t), nil
		})
	}
}

func updateTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateTrackRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "trackID")
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			if err := e.UpdateTrack(id, req.patch()); err != nil {
				return nil, err
			}
			t, _ := e.Track(id)
			return export.EncodeTrack(t), nil
		})
	}
}

func removeTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "trackID")
		mutate(cfg, w, r, http.StatusNoContent, func(e *timeline.Engine) (any, error) {
			return nil, e.RemoveTrack(id)
		})
	}
}

func moveTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveTrackRequest
		if !decodeBody(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "trackID")
		mutate(cfg, w, r, http.StatusNoContent, func(e *timeline.Engine) (any, error) {
			return nil, e.MoveTrack(id, req.Index)
		})
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		trackID := chi.URLParam(r, "trackID")
		mutate(cfg, w, r, http.StatusCreated, func(e *timeline.Engine) (any, error) {
			c, err := e.AddClip(trackID, timeline.ClipSpec{
				Start:    req.Start,
				Duration: req.Duration,
				Content:  req.Content,
				Locked:   req.Locked,
			})
			if err != nil {
				return nil, err
			}
			return export.EncodeClip(c), nil
		})
	}
}

// updateClipHandler applies a clip patch as one undoable edit. Unlocking
// happens first and locking last so a single request can do both.
func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		trackID := chi.URLParam(r, "trackID")
		clipID := chi.URLParam(r, "clipID")

		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			owner, c, ok := e.FindClip(clipID)
			if !ok || owner != trackID {
				return nil, &timeline.RefError{Op: "update clip", ID: clipID, Err: timeline.ErrClipNotFound}
			}
			err := inTxn(e, "Edit clip", func() error {
				if req.Locked != nil && !*req.Locked {
					if err := e.SetClipLocked(trackID, clipID, false); err != nil {
						return err
					}
				}
				start, dur := c.Start, c.Duration
				if req.Start != nil {
					start = *req.Start
				}
				if req.Duration != nil {
					dur = *req.Duration
				}
				current := trackID
				if req.TrackID != nil && *req.TrackID != trackID {
					if err := e.MoveClipToTrack(trackID, clipID, *req.TrackID, start); err != nil {
						return err
					}
					current = *req.TrackID
				}
				if req.Start != nil || req.Duration != nil {
					if err := e.SetClipBounds(current, clipID, start, dur); err != nil {
						return err
					}
				}
				if req.Content != nil {
					if err := e.SetClipContent(current, clipID, *req.Content); err != nil {
						return err
					}
				}
				if req.Locked != nil && *req.Locked {
					return e.SetClipLocked(current, clipID, true)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			_, c, _ = e.FindClip(clipID)
			return export.EncodeClip(c), nil
		})
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := chi.URLParam(r, "trackID")
		clipID := chi.URLParam(r, "clipID")
		mutate(cfg, w, r, http.StatusNoContent, func(e *timeline.Engine) (any, error) {
			return nil, e.RemoveClip(trackID, clipID)
		})
	}
}

func splitClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		trackID := chi.URLParam(r, "trackID")
		clipID := chi.URLParam(r, "clipID")
		mutate(cfg, w, r, http.StatusCreated, func(e *timeline.Engine) (any, error) {
			right, err := e.SplitClip(trackID, clipID, req.At)
			if err != nil {
				return nil, err
			}
			_, left, _ := e.FindClip(clipID)
			return SplitClipResponse{Left: export.EncodeClip(left), Right: export.EncodeClip(right)}, nil
		})
	}
}

func selectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if (req.ClipID == "") == (req.KeyframeID == "") {
			WriteError(w, http.StatusBadRequest, "exactly one of clip_id or keyframe_id is required", "BAD_REQUEST")
			return
		}
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			var err error
			if req.ClipID != "" {
				err = e.SelectClip(req.ClipID, req.Additive)
			} else {
				err = e.SelectKeyframe(req.KeyframeID, req.Additive)
			}
			if err != nil {
				return nil, err
			}
			return selectionResponse(e), nil
		})
	}
}

func clearSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			e.ClearSelection()
			return selectionResponse(e), nil
		})
	}
}

func duplicateSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusCreated, func(e *timeline.Engine) (any, error) {
			copies := e.DuplicateSelection()
			resp := DuplicateResponse{Clips: make([]export.ItemDoc, len(copies))}
			for i, c := range copies {
				resp.Clips[i] = export.EncodeClip(c)
			}
			return resp, nil
		})
	}
}

func deleteSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			return DeleteSelectionResponse{Deleted: e.DeleteSelection()}, nil
		})
	}
}

func addKeyframeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddKeyframeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID := chi.URLParam(r, "clipID")
		mutate(cfg, w, r, http.StatusCreated, func(e *timeline.Engine) (any, error) {
			k, err := e.AddKeyframe(clipID, req.Time, req.Properties)
			if err != nil {
				return nil, err
			}
			return export.EncodeKeyframe(k), nil
		})
	}
}

func updateKeyframeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateKeyframeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID := chi.URLParam(r, "clipID")
		keyframeID := chi.URLParam(r, "keyframeID")

		patch := timeline.KeyframePatch{
			Properties:        req.Properties,
			ReplaceProperties: req.ReplaceProperties,
		}
		if req.Easing != nil {
			ease := timeline.Easing(*req.Easing)
			patch.Easing = &ease
		}
		if req.Interpolation != nil {
			interp := timeline.Interpolation(*req.Interpolation)
			patch.Interpolation = &interp
		}
		touchesPatch := req.Properties != nil || req.ReplaceProperties || req.Easing != nil || req.Interpolation != nil

		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			err := inTxn(e, "Edit keyframe", func() error {
				if touchesPatch {
					if err := e.UpdateKeyframe(clipID, keyframeID, patch); err != nil {
						return err
					}
				}
				if req.Time != nil {
					return e.MoveKeyframe(clipID, keyframeID, *req.Time)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			_, c, _ := e.FindClip(clipID)
			for _, k := range c.Keyframes {
				if k.ID == keyframeID {
					return export.EncodeKeyframe(k), nil
				}
			}
			return nil, &timeline.RefError{Op: "update keyframe", ID: keyframeID, Err: timeline.ErrKeyframeNotFound}
		})
	}
}

func removeKeyframeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		keyframeID := chi.URLParam(r, "keyframeID")
		mutate(cfg, w, r, http.StatusNoContent, func(e *timeline.Engine) (any, error) {
			return nil, e.RemoveKeyframe(clipID, keyframeID)
		})
	}
}

// propertiesHandler evaluates the interpolated keyframe properties of a
// clip at absolute time t.
func propertiesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := queryTime(w, r)
		if !ok {
			return
		}
		clipID := chi.URLParam(r, "clipID")
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			props, err := e.PropertiesAt(clipID, t)
			if err != nil {
				return nil, err
			}
			if props == nil {
				props = map[string]any{}
			}
			return PropertiesResponse{ClipID: clipID, Time: t, Properties: props}, nil
		})
	}
}

func addEffectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddEffectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID := chi.URLParam(r, "clipID")
		mutate(cfg, w, r, http.StatusCreated, func(e *timeline.Engine) (any, error) {
			fx, err := e.AddEffect(clipID, timeline.EffectSpec{
				Name:     req.Name,
				Type:     timeline.EffectType(req.Type),
				Params:   req.Params,
				Start:    req.Start,
				Duration: req.Duration,
				Enabled:  req.Enabled,
			})
			if err != nil {
				return nil, err
			}
			return export.EncodeEffect(fx), nil
		})
	}
}

func updateEffectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateEffectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID := chi.URLParam(r, "clipID")
		effectID := chi.URLParam(r, "effectID")
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			err := e.UpdateEffect(clipID, effectID, timeline.EffectPatch{
				Name:     req.Name,
				Enabled:  req.Enabled,
				Params:   req.Params,
				Start:    req.Start,
				Duration: req.Duration,
			})
			if err != nil {
				return nil, err
			}
			_, c, _ := e.FindClip(clipID)
			for _, fx := range c.Effects {
				if fx.ID == effectID {
					return export.EncodeEffect(fx), nil
				}
			}
			return nil, &timeline.RefError{Op: "update effect", ID: effectID, Err: timeline.ErrEffectNotFound}
		})
	}
}

func removeEffectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clipID := chi.URLParam(r, "clipID")
		effectID := chi.URLParam(r, "effectID")
		mutate(cfg, w, r, http.StatusNoContent, func(e *timeline.Engine) (any, error) {
			return nil, e.RemoveEffect(clipID, effectID)
		})
	}
}

func markersResponse(e *timeline.Engine) MarkersResponse {
	markers := e.Markers()
	resp := MarkersResponse{Markers: make([]export.MarkerDoc, len(markers))}
	for i, m := range markers {
		resp.Markers[i] = export.EncodeMarker(m)
	}
	return resp
}

func listMarkersHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			return markersResponse(e), nil
		})
	}
}

func addMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddMarkerRequest
		if !decodeBody(w, r, &req) {
			return
		}
		mutate(cfg, w, r, http.StatusCreated, func(e *timeline.Engine) (any, error) {
			return export.EncodeMarker(e.AddMarker(req.Time, req.Category, req.Label)), nil
		})
	}
}

func removeMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "markerID")
		mutate(cfg, w, r, http.StatusNoContent, func(e *timeline.Engine) (any, error) {
			return nil, e.RemoveMarker(id)
		})
	}
}

// adjacentMarkerHandler finds the first marker strictly after (next) or
// before (prev) time t.
func adjacentMarkerHandler(cfg ServerConfig, next bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, ok := queryTime(w, r)
		if !ok {
			return
		}
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			var m timeline.Marker
			var found bool
			if next {
				m, found = e.NextMarker(t)
			} else {
				m, found = e.PrevMarker(t)
			}
			if !found {
				return nil, &timeline.RefError{Op: "adjacent marker", ID: r.URL.Query().Get("t"), Err: timeline.ErrMarkerNotFound}
			}
			return export.EncodeMarker(m), nil
		})
	}
}

func viewportResponse(e *timeline.Engine) ViewportResponse {
	vp := e.Viewport()
	layout := e.Layout()
	return ViewportResponse{
		Zoom:         vp.Zoom,
		SnapToGrid:   vp.SnapToGrid,
		GridSize:     vp.GridSize,
		Duration:     e.Duration(),
		PixelsPerSec: layout.PixelsPerSecond * vp.Zoom,
	}
}

func getViewportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			return viewportResponse(e), nil
		})
	}
}

// viewportHandler updates zoom, grid and duration as one history entry.
// Out-of-range values are clamped by the engine; a non-positive duration
// rejects the whole request.
func viewportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ViewportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			err := inTxn(e, "Viewport", func() error {
				if req.Zoom != nil {
					e.SetZoom(*req.Zoom)
				}
				if req.SnapToGrid != nil {
					e.SetSnapToGrid(*req.SnapToGrid)
				}
				if req.GridSize != nil {
					e.SetGridSize(*req.GridSize)
				}
				if req.Duration != nil {
					if *req.Duration <= 0 {
						return fmt.Errorf("viewport: duration must be positive: %w", timeline.ErrInvalidValue)
					}
					e.SetDuration(*req.Duration)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return viewportResponse(e), nil
		})
	}
}

func undoHandler(cfg ServerConfig, undo bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			var applied bool
			if undo {
				applied = e.Undo()
			} else {
				applied = e.Redo()
			}
			return UndoResponse{Applied: applied, HistoryResponse: historyResponse(e)}, nil
		})
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutate(cfg, w, r, http.StatusOK, func(e *timeline.Engine) (any, error) {
			return historyResponse(e), nil
		})
	}
}
