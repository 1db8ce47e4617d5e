// Package config provides configuration for the timeline service and the
// terminal host. Defaults are overlaid by an optional YAML file
// (TIMELINE_CONFIG) and then by TIMELINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort               = 8788
	DefaultLogLevel           = "info"
	DefaultDataDir            = ".heimdex-timeline"
	DefaultHistoryCapacity    = 50
	DefaultMinZoom            = 0.1
	DefaultMaxZoom            = 10.0
	DefaultPlaybackTick       = 100 * time.Millisecond
	DefaultDuplicatePolicy    = "deselect-all"
	DefaultTimelineDuration   = 60.0
	DefaultRenderPollInterval = 5 * time.Second
	DefaultRenderConcurrency  = 4

	// Environment variable names
	EnvConfigFile         = "TIMELINE_CONFIG"
	EnvPort               = "TIMELINE_PORT"
	EnvLogLevel           = "TIMELINE_LOG_LEVEL"
	EnvDataDir            = "TIMELINE_DATA_DIR"
	EnvHistoryCapacity    = "TIMELINE_HISTORY_CAPACITY"
	EnvMinZoom            = "TIMELINE_MIN_ZOOM"
	EnvMaxZoom            = "TIMELINE_MAX_ZOOM"
	EnvPlaybackTick       = "TIMELINE_PLAYBACK_TICK"
	EnvDuplicatePolicy    = "TIMELINE_DUPLICATE_POLICY"
	EnvTimelineDuration   = "TIMELINE_DEFAULT_DURATION"
	EnvRenderURL          = "TIMELINE_RENDER_URL"
	EnvRenderToken        = "TIMELINE_RENDER_TOKEN"
	EnvRenderPollInterval = "TIMELINE_RENDER_POLL_INTERVAL"
	EnvRenderConcurrency  = "TIMELINE_RENDER_CONCURRENCY"
	EnvHeadless           = "TIMELINE_HEADLESS"

	// Database filename
	DBFilename = "timeline.db"
)

var duplicatePolicies = map[string]bool{
	"deselect-all":   true,
	"select-copies":  true,
	"keep-originals": true,
}

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	AssetsDir() string
	ExportsDir() string
	LogPath() string
	HistoryCapacity() int
	MinZoom() float64
	MaxZoom() float64
	PlaybackTick() time.Duration
	DuplicatePolicy() string
	TimelineDuration() float64
	RenderURL() string
	RenderToken() string
	RenderPollInterval() time.Duration
	RenderConcurrency() int
	Headless() bool
}

// fileConfig mirrors the YAML file. Zero values leave the default in
// place.
type fileConfig struct {
	Port             int     `yaml:"port"`
	LogLevel         string  `yaml:"log_level"`
	DataDir          string  `yaml:"data_dir"`
	HistoryCapacity  int     `yaml:"history_capacity"`
	MinZoom          float64 `yaml:"min_zoom"`
	MaxZoom          float64 `yaml:"max_zoom"`
	PlaybackTick     string  `yaml:"playback_tick"`
	DuplicatePolicy  string  `yaml:"duplicate_policy"`
	TimelineDuration float64 `yaml:"default_duration"`
	Headless         bool    `yaml:"headless"`
	Render           struct {
		URL          string `yaml:"url"`
		Token        string `yaml:"token"`
		PollInterval string `yaml:"poll_interval"`
		Concurrency  int    `yaml:"concurrency"`
	} `yaml:"render"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port               int
	logLevel           string
	dataDir            string
	historyCapacity    int
	minZoom            float64
	maxZoom            float64
	playbackTick       time.Duration
	duplicatePolicy    string
	timelineDuration   float64
	renderURL          string
	renderToken        string
	renderPollInterval time.Duration
	renderConcurrency  int
	headless           bool
}

// New creates a config from defaults, the optional YAML file and
// environment variable overrides, in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:               DefaultPort,
		logLevel:           DefaultLogLevel,
		dataDir:            defaultDataDir(),
		historyCapacity:    DefaultHistoryCapacity,
		minZoom:            DefaultMinZoom,
		maxZoom:            DefaultMaxZoom,
		playbackTick:       DefaultPlaybackTick,
		duplicatePolicy:    DefaultDuplicatePolicy,
		timelineDuration:   DefaultTimelineDuration,
		renderPollInterval: DefaultRenderPollInterval,
		renderConcurrency:  DefaultRenderConcurrency,
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *EnvConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.HistoryCapacity != 0 {
		c.historyCapacity = fc.HistoryCapacity
	}
	if fc.MinZoom != 0 {
		c.minZoom = fc.MinZoom
	}
	if fc.MaxZoom != 0 {
		c.maxZoom = fc.MaxZoom
	}
	if fc.PlaybackTick != "" {
		d, err := time.ParseDuration(fc.PlaybackTick)
		if err != nil {
			return fmt.Errorf("invalid playback_tick: %w", err)
		}
		c.playbackTick = d
	}
	if fc.DuplicatePolicy != "" {
		c.duplicatePolicy = fc.DuplicatePolicy
	}
	if fc.TimelineDuration != 0 {
		c.timelineDuration = fc.TimelineDuration
	}
	c.headless = c.headless || fc.Headless
	if fc.Render.URL != "" {
		c.renderURL = fc.Render.URL
	}
	if fc.Render.Token != "" {
		c.renderToken = fc.Render.Token
	}
	if fc.Render.PollInterval != "" {
		d, err := time.ParseDuration(fc.Render.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid render.poll_interval: %w", err)
		}
		c.renderPollInterval = d
	}
	if fc.Render.Concurrency != 0 {
		c.renderConcurrency = fc.Render.Concurrency
	}
	return nil
}

func (c *EnvConfig) loadEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if err := envInt(EnvHistoryCapacity, &c.historyCapacity); err != nil {
		return err
	}
	if err := envFloat(EnvMinZoom, &c.minZoom); err != nil {
		return err
	}
	if err := envFloat(EnvMaxZoom, &c.maxZoom); err != nil {
		return err
	}
	if err := envDuration(EnvPlaybackTick, &c.playbackTick); err != nil {
		return err
	}
	if dp := os.Getenv(EnvDuplicatePolicy); dp != "" {
		c.duplicatePolicy = dp
	}
	if err := envFloat(EnvTimelineDuration, &c.timelineDuration); err != nil {
		return err
	}
	if u := os.Getenv(EnvRenderURL); u != "" {
		c.renderURL = u
	}
	if tok := os.Getenv(EnvRenderToken); tok != "" {
		c.renderToken = tok
	}
	if err := envDuration(EnvRenderPollInterval, &c.renderPollInterval); err != nil {
		return err
	}
	if err := envInt(EnvRenderConcurrency, &c.renderConcurrency); err != nil {
		return err
	}
	if h := os.Getenv(EnvHeadless); h != "" {
		b, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = b
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envFloat(name string, dst *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = f
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

func (c *EnvConfig) validate() error {
	var errs []error
	if c.port < 1 || c.port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}
	if c.historyCapacity < 1 {
		errs = append(errs, errors.New("history capacity must be at least 1"))
	}
	if c.minZoom <= 0 || c.maxZoom <= c.minZoom {
		errs = append(errs, fmt.Errorf("zoom bounds must satisfy 0 < min < max, got [%v, %v]", c.minZoom, c.maxZoom))
	}
	if c.playbackTick < 10*time.Millisecond {
		errs = append(errs, errors.New("playback tick must be at least 10ms"))
	}
	if !duplicatePolicies[c.duplicatePolicy] {
		errs = append(errs, fmt.Errorf("unknown duplicate policy %q", c.duplicatePolicy))
	}
	if c.timelineDuration <= 0 {
		errs = append(errs, errors.New("default duration must be positive"))
	}
	if c.renderPollInterval <= 0 {
		errs = append(errs, errors.New("render poll interval must be positive"))
	}
	if c.renderConcurrency < 1 {
		errs = append(errs, errors.New("render concurrency must be at least 1"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// AssetsDir is where imported media is stored when no render service is
// configured.
func (c *EnvConfig) AssetsDir() string {
	return filepath.Join(c.dataDir, "assets")
}

func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// LogPath is the log file used by the terminal host, which owns stdout.
func (c *EnvConfig) LogPath() string {
	return filepath.Join(c.dataDir, "timeline-tui.log")
}

func (c *EnvConfig) HistoryCapacity() int { return c.historyCapacity }
func (c *EnvConfig) MinZoom() float64 { return c.minZoom }
func (c *EnvConfig) MaxZoom() float64 { return c.maxZoom }
func (c *EnvConfig) PlaybackTick() time.Duration { return c.playbackTick }
func (c *EnvConfig) DuplicatePolicy() string { return c.duplicatePolicy }
func (c *EnvConfig) TimelineDuration() float64 { return c.timelineDuration }
func (c *EnvConfig) RenderURL() string { return c.renderURL }
func (c *EnvConfig) RenderToken() string { return c.renderToken }
func (c *EnvConfig) RenderPollInterval() time.Duration { return c.renderPollInterval }
func (c *EnvConfig) RenderConcurrency() int { return c.renderConcurrency }
func (c *EnvConfig) Headless() bool { return c.headless }

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
