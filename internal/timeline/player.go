package timeline

import "github.com/heimdex/heimdex-timeline/internal/playback"

// Playback state is not part of history; these calls never record entries.

func (e *Engine) Playback() playback.Status {
	return e.player.Status()
}

func (e *Engine) emitPlaybackState() {
	e.events.emit(Event{
		Kind:    EventPlaybackState,
		Time:    e.player.CurrentTime(),
		Playing: e.player.IsPlaying(),
	})
}

func (e *Engine) Play() {
	if e.player.Play() {
		e.emitPlaybackState()
	}
}

func (e *Engine) Pause() {
	if e.player.Pause() {
		e.emitPlaybackState()
	}
}

func (e *Engine) Stop() {
	e.player.Stop()
	e.emitPlaybackState()
}

func (e *Engine) TogglePlay() bool {
	e.player.Toggle()
	e.emitPlaybackState()
	return e.player.IsPlaying()
}

func (e *Engine) Seek(t float64) float64 {
	got := e.player.Seek(t)
	e.events.emit(Event{Kind: EventPlaybackTick, Time: got, Playing: e.player.IsPlaying()})
	return got
}

func (e *Engine) SetPlaybackRate(rate float64) float64 {
	got := e.player.SetRate(rate)
	e.emitPlaybackState()
	return got
}

func (e *Engine) SetLoop(loop bool) {
	e.player.SetLoop(loop)
	e.emitPlaybackState()
}

// Tick advances the playhead by elapsed wall-clock seconds. A tick event is
// emitted when the playhead moved; reaching the end also emits a state
// event.
func (e *Engine) Tick(elapsed float64) playback.TickResult {
	res := e.player.Tick(elapsed)
	if res.Advanced {
		e.events.emit(Event{Kind: EventPlaybackTick, Time: res.Time, Playing: e.player.IsPlaying()})
	}
	if res.Ended {
		e.emitPlaybackState()
	}
	return res
}
