// Package playback advances a logical playhead at wall-clock rate scaled by a
// playback speed multiplier. The Scheduler is host-agnostic: the host calls
// Tick with real elapsed seconds, either from its own animation loop or from
// the ticker-driven Clock in this package.
package playback

import "math"

const (
	MinRate     = 0.1
	MaxRate     = 8.0
	DefaultRate = 1.0
)

type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State       State   `json:"-"`
	Playing     bool    `json:"playing"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Rate        float64 `json:"rate"`
	Loop        bool    `json:"loop"`
}

// TickResult reports what a single Tick did.
type TickResult struct {
	Advanced bool    // current time moved
	Wrapped  bool    // loop wrapped to 0
	Ended    bool    // reached the end and stopped
	Time     float64 // current time after the tick
}

// Scheduler is the playhead state machine. It is not safe for concurrent use.
type Scheduler struct {
	state    State
	current  float64
	duration float64
	rate     float64
	loop     bool
}

func NewScheduler(duration float64) *Scheduler {
	if duration < 0 {
		duration = 0
	}
	return &Scheduler{duration: duration, rate: DefaultRate}
}

func (s *Scheduler) Status() Status {
	return Status{
		State:       s.state,
		Playing:     s.state == Playing,
		CurrentTime: s.current,
		Duration:    s.duration,
		Rate:        s.rate,
		Loop:        s.loop,
	}
}

func (s *Scheduler) State() State { return s.state }
func (s *Scheduler) CurrentTime() float64 { return s.current }
func (s *Scheduler) Duration() float64 { return s.duration }
func (s *Scheduler) Rate() float64 { return s.rate }
func (s *Scheduler) Loop() bool { return s.loop }
func (s *Scheduler) IsPlaying() bool { return s.state == Playing }

// Play starts playback. Playing from the very end of a non-looping timeline
// starts over from zero. It reports whether the state changed.
func (s *Scheduler) Play() bool {
	if s.state == Playing || s.duration <= 0 {
		return false
	}
	if s.current >= s.duration {
		s.current = 0
	}
	s.state = Playing
	return true
}

// Pause stops advancing without moving the playhead.
func (s *Scheduler) Pause() bool {
	if s.state == Stopped {
		return false
	}
	s.state = Stopped
	return true
}

// Stop pauses and rewinds to zero.
func (s *Scheduler) Stop() {
	s.state = Stopped
	s.current = 0
}

func (s *Scheduler) Toggle() State {
	if s.state == Playing {
		s.Pause()
	} else {
		s.Play()
	}
	return s.state
}

// Seek moves the playhead, clamped to [0, duration], in either state.
func (s *Scheduler) Seek(t float64) float64 {
	if math.IsNaN(t) {
		t = 0
	}
	s.current = clamp(t, 0, s.duration)
	return s.current
}

func (s *Scheduler) SetRate(rate float64) float64 {
	if math.IsNaN(rate) {
		rate = DefaultRate
	}
	s.rate = clamp(rate, MinRate, MaxRate)
	return s.rate
}

func (s *Scheduler) SetLoop(loop bool) {
	s.loop = loop
}

// SetDuration changes the timeline bound and re-clamps the playhead.
func (s *Scheduler) SetDuration(d float64) {
	if d < 0 || math.IsNaN(d) {
		d = 0
	}
	s.duration = d
	if s.current > d {
		s.current = d
	}
	if d == 0 {
		s.state = Stopped
	}
}

// Tick advances the playhead by elapsed real seconds scaled by the rate.
// It is a no-op while stopped or for non-positive elapsed values.
func (s *Scheduler) Tick(elapsed float64) TickResult {
	if s.state != Playing || elapsed <= 0 || math.IsNaN(elapsed) {
		return TickResult{Time: s.current}
	}

	next := s.current + elapsed*s.rate
	res := TickResult{Advanced: true}

	if next >= s.duration {
		if s.loop && s.duration > 0 {
			next = 0
			res.Wrapped = true
		} else {
			next = s.duration
			s.state = Stopped
			res.Ended = true
		}
	}

	s.current = next
	res.Time = next
	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
