// Package session keeps open timeline engines in memory and serializes
// access to each one.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/gesture"
	"github.com/heimdex/heimdex-timeline/internal/playback"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// DefaultSubscriberBuffer is the event channel size used when Subscribe is
// given a non-positive buffer.
const DefaultSubscriberBuffer = 64

// Session owns one engine. Every engine and gesture call goes through Do or
// Gesture, which hold the session lock.
type Session struct {
	id     string
	logger *slog.Logger

	mu       sync.Mutex
	engine   *timeline.Engine
	gestures *gesture.Controller
	meta     export.Project
	revision int
	dirty    bool

	clock  *playback.Clock
	cancel context.CancelFunc
	done   chan struct{}

	subsMu  sync.Mutex
	subs    map[uint64]chan timeline.Event
	nextSub uint64
	dropped uint64
}

func newSession(parent context.Context, id string, opts timeline.Options, tick time.Duration, logger *slog.Logger) *Session {
	opts.Logger = logger
	s := &Session{
		id:     id,
		logger: logger,
		engine: timeline.New(opts),
		subs:   make(map[uint64]chan timeline.Event),
		done:   make(chan struct{}),
	}
	s.gestures = gesture.NewController(s.engine)
	s.engine.Subscribe(s.onEvent)

	s.clock = playback.NewClock(tick, s.onTick, logger)
	s.clock.Pause()

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.clock.Start(ctx)
	}()
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Do runs fn with exclusive access to the engine.
func (s *Session) Do(fn func(e *timeline.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// Gesture runs fn with exclusive access to the gesture controller.
func (s *Session) Gesture(fn func(c *gesture.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.gestures)
}

// Load replaces the engine state with a decoded document.
func (s *Session) Load(imp *export.Imported, revision int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gestures.Cancel()
	s.engine.Load(imp.State)
	s.meta = imp.Project
	s.revision = revision
	s.dirty = false
}

// Snapshot returns the state to persist along with the document metadata and
// the revision it was loaded or last saved at.
func (s *Session) Snapshot() (timeline.State, export.Project, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ExportSnapshot(), s.meta, s.revision
}

func (s *Session) SetMeta(meta export.Project) {
	s.mu.Lock()
	s.meta = meta
	s.dirty = true
	s.mu.Unlock()
}

func (s *Session) Meta() export.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// MarkSaved records a successful save at revision.
func (s *Session) MarkSaved(revision int) {
	s.mu.Lock()
	s.revision = revision
	s.dirty = false
	s.mu.Unlock()
}

// Dirty reports unsaved history changes since the last load or save.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Subscribe returns a channel of engine events. Events are dropped for a
// subscriber whose buffer is full. The returned func unsubscribes and closes
// the channel.
func (s *Session) Subscribe(buffer int) (<-chan timeline.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan timeline.Event, buffer)

	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
			s.subsMu.Unlock()
		})
	}
}

// onEvent runs under s.mu because the engine only emits from inside Do,
// Gesture, Load or onTick.
func (s *Session) onEvent(ev timeline.Event) {
	switch ev.Kind {
	case timeline.EventHistory:
		s.dirty = true
	case timeline.EventPlaybackState:
		if ev.Playing {
			s.clock.Resume()
		} else {
			s.clock.Pause()
		}
	case timeline.EventLoaded:
		s.clock.Pause()
	}
	s.broadcast(ev)
}

func (s *Session) broadcast(ev timeline.Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.dropped++
			if s.dropped%100 == 1 {
				s.logger.Warn("dropping events for slow subscriber", "project_id", s.id, "dropped", s.dropped)
			}
		}
	}
}

func (s *Session) onTick(elapsed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.Playback().Playing {
		s.engine.Tick(elapsed)
	}
}

// Close stops the playback clock and closes every subscriber channel.
func (s *Session) Close() {
	s.cancel()
	<-s.done

	s.mu.Lock()
	s.gestures.Close()
	s.mu.Unlock()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}
