// Package export converts timeline state to and from portable project
// documents (JSON or YAML) and writes edit decision lists.
package export

import "time"

// Version is the document schema version written by Encode. Decode accepts
// any 1.x document.
const Version = "1.0"

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatEDL  Format = "edl"
)

// ParseFormat maps a request value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "", "json":
		return FormatJSON, true
	case "yaml", "yml":
		return FormatYAML, true
	case "edl":
		return FormatEDL, true
	}
	return "", false
}

func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatEDL:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

type Resolution struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type Document struct {
	Version        string         `json:"version" yaml:"version"`
	Metadata       Metadata       `json:"metadata" yaml:"metadata"`
	RenderSettings RenderSettings `json:"renderSettings" yaml:"renderSettings"`
	Tracks         []TrackDoc     `json:"tracks" yaml:"tracks"`
	Markers        []MarkerDoc    `json:"markers" yaml:"markers"`
	Timeline       TimelineDoc    `json:"timeline" yaml:"timeline"`
}

type Metadata struct {
	Name       string     `json:"name" yaml:"name"`
	Duration   float64    `json:"duration" yaml:"duration"`
	FPS        float64    `json:"fps" yaml:"fps"`
	Resolution Resolution `json:"resolution" yaml:"resolution"`
	ExportedAt time.Time  `json:"exportedAt" yaml:"exportedAt"`
	TrackCount int        `json:"trackCount" yaml:"trackCount"`
	ClipCount  int        `json:"clipCount" yaml:"clipCount"`
}

type RenderSettings struct {
	Resolution      Resolution `json:"resolution" yaml:"resolution"`
	FPS             float64    `json:"fps" yaml:"fps"`
	Format          string     `json:"format" yaml:"format"`
	Quality         string     `json:"quality" yaml:"quality"`
	AudioSampleRate int        `json:"audioSampleRate" yaml:"audioSampleRate"`
	AudioBitrate    int        `json:"audioBitrate" yaml:"audioBitrate"`
}

// DefaultRenderSettings is 1080p30 H.264 with 48 kHz / 192 kbps audio.
func DefaultRenderSettings() RenderSettings {
	return RenderSettings{
		Resolution:      Resolution{Width: 1920, Height: 1080},
		FPS:             30,
		Format:          "mp4",
		Quality:         "high",
		AudioSampleRate: 48000,
		AudioBitrate:    192,
	}
}

type TrackDoc struct {
	ID        string    `json:"id" yaml:"id"`
	Type      string    `json:"type" yaml:"type"`
	Name      string    `json:"name" yaml:"name"`
	Color     string    `json:"color" yaml:"color"`
	Visible   bool      `json:"visible" yaml:"visible"`
	Locked    bool      `json:"locked" yaml:"locked"`
	Volume    *float64  `json:"volume,omitempty" yaml:"volume,omitempty"`
	Height    float64   `json:"height,omitempty" yaml:"height,omitempty"`
	Collapsed bool      `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
	Items     []ItemDoc `json:"items" yaml:"items"`
}

// ItemDoc is one clip. AbsoluteStart and AbsoluteEnd are derived on export
// and ignored on import.
type ItemDoc struct {
	ID            string        `json:"id" yaml:"id"`
	Start         float64       `json:"start" yaml:"start"`
	Duration      float64       `json:"duration" yaml:"duration"`
	Content       string        `json:"content" yaml:"content"`
	AbsoluteStart float64       `json:"absoluteStart" yaml:"absoluteStart"`
	AbsoluteEnd   float64       `json:"absoluteEnd" yaml:"absoluteEnd"`
	Locked        bool          `json:"locked,omitempty" yaml:"locked,omitempty"`
	Keyframes     []KeyframeDoc `json:"keyframes" yaml:"keyframes"`
	Effects       []EffectDoc   `json:"effects" yaml:"effects"`
}

type KeyframeDoc struct {
	ID            string         `json:"id" yaml:"id"`
	Time          float64        `json:"time" yaml:"time"`
	Properties    map[string]any `json:"properties" yaml:"properties"`
	Easing        string         `json:"easing" yaml:"easing"`
	Interpolation string         `json:"interpolation" yaml:"interpolation"`
}

type EffectDoc struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Type     string         `json:"type" yaml:"type"`
	Enabled  bool           `json:"enabled" yaml:"enabled"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Start    float64        `json:"start" yaml:"start"`
	Duration float64        `json:"duration" yaml:"duration"`
}

type MarkerDoc struct {
	ID       string  `json:"id" yaml:"id"`
	Time     float64 `json:"time" yaml:"time"`
	Category string  `json:"category" yaml:"category"`
	Label    string  `json:"label" yaml:"label"`
}

type TimelineDoc struct {
	CurrentTime  float64 `json:"currentTime" yaml:"currentTime"`
	Zoom         float64 `json:"zoom" yaml:"zoom"`
	SnapToGrid   bool    `json:"snapToGrid" yaml:"snapToGrid"`
	GridSize     float64 `json:"gridSize" yaml:"gridSize"`
	PlaybackRate float64 `json:"playbackRate" yaml:"playbackRate"`
	Loop         bool    `json:"loop" yaml:"loop"`
}

// Project carries the document-level settings that live outside the
// engine.
type Project struct {
	Name           string
	RenderSettings RenderSettings
}
