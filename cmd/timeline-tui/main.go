package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/heimdex/heimdex-timeline/internal/config"
	"github.com/heimdex/heimdex-timeline/internal/export"
	"github.com/heimdex/heimdex-timeline/internal/logging"
	"github.com/heimdex/heimdex-timeline/internal/timeline"
	"github.com/heimdex/heimdex-timeline/internal/tui"
)

const usage = `usage: timeline-tui [document.json|document.yaml]

Opens the document, or creates it on first save when it does not exist.
Without an argument a demo timeline is opened and saving is disabled.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run(args []string) error {
	if len(args) > 1 || (len(args) == 1 && (args[0] == "-h" || args[0] == "--help")) {
		fmt.Println(usage)
		return nil
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// The terminal owns stdout, so logs go to a file.
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.LogLevel())

	engine := timeline.New(timeline.Options{
		HistoryCapacity: cfg.HistoryCapacity(),
		MinZoom:         cfg.MinZoom(),
		MaxZoom:         cfg.MaxZoom(),
		DuplicatePolicy: timeline.ParseDuplicatePolicy(cfg.DuplicatePolicy()),
		Duration:        cfg.TimelineDuration(),
		Logger:          logger,
	})
	project := export.Project{Name: "demo", RenderSettings: export.DefaultRenderSettings()}

	var path string
	if len(args) == 1 {
		path = args[0]
		project.Name = trimExt(filepath.Base(path))
		imp, err := tui.Load(path)
		switch {
		case err == nil:
			engine.Load(imp.State)
			name := project.Name
			project = imp.Project
			if project.Name == "" {
				project.Name = name
			}
			logger.Info("document opened", "path", path)
		case errors.Is(err, fs.ErrNotExist):
			logger.Info("new document", "path", path)
		default:
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
	} else {
		seedDemo(engine)
	}

	logger.Info("starting terminal host", "version", config.Version)
	return tui.Run(tui.Config{
		Engine:  engine,
		Project: project,
		Path:    path,
		Tick:    cfg.PlaybackTick(),
		Logger:  logger,
	})
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// seedDemo builds a small three-lane timeline and resets history so the
// demo opens clean.
func seedDemo(e *timeline.Engine) {
	video, _ := e.AddTrack(timeline.TrackVideo, "Video")
	audio, _ := e.AddTrack(timeline.TrackAudio, "Music")
	text, _ := e.AddTrack(timeline.TrackText, "Titles")

	intro, _ := e.AddClip(video.ID, timeline.ClipSpec{Start: 0, Duration: 4, Content: "asset://intro.mp4"})
	e.AddClip(video.ID, timeline.ClipSpec{Start: 4, Duration: 8, Content: "asset://main.mp4"})
	e.AddClip(video.ID, timeline.ClipSpec{Start: 12, Duration: 3, Content: "asset://outro.mp4"})
	e.AddClip(audio.ID, timeline.ClipSpec{Start: 0, Duration: 15, Content: "asset://theme.wav"})
	e.AddClip(text.ID, timeline.ClipSpec{Start: 0.5, Duration: 3, Content: "Welcome"})

	e.AddKeyframe(intro.ID, 0, map[string]any{"opacity": 0.0})
	e.AddKeyframe(intro.ID, 1, map[string]any{"opacity": 1.0})
	e.AddMarker(4, "chapter", "Main")
	e.AddMarker(12, "chapter", "Outro")

	e.Load(e.ExportSnapshot())
}
