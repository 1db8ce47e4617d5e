package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/heimdex/heimdex-timeline/internal/timeline"
)

// EDLEvent is one cut in an edit decision list. Times are in seconds.
type EDLEvent struct {
	Name      string
	MediaPath string
	Channel   string // "V" or "A"
	SourceIn  float64
	SourceOut float64
	RecordIn  float64
	RecordOut float64
}

// Events lists the clips of every visible video, image and audio track in
// record order. Text and effect tracks have no media and are skipped.
func Events(st timeline.State) []EDLEvent {
	var events []EDLEvent
	for _, t := range st.Tracks {
		if !t.Visible {
			continue
		}
		var channel string
		switch t.Kind {
		case timeline.TrackVideo, timeline.TrackImage:
			channel = "V"
		case timeline.TrackAudio:
			channel = "A"
		default:
			continue
		}
		for _, c := range t.SortedClips() {
			name := SanitizeName(c.Content, 64)
			if name == "" {
				name = c.ID
			}
			events = append(events, EDLEvent{
				Name:      name,
				MediaPath: c.Content,
				Channel:   channel,
				SourceIn:  0,
				SourceOut: c.Duration,
				RecordIn:  c.Start,
				RecordOut: c.End(),
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].RecordIn < events[j].RecordIn })
	return events
}

// GenerateEDL renders events as a CMX3600 list. 29.97 and 59.94 are
// flagged as drop frame.
func GenerateEDL(events []EDLEvent, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, ev := range events {
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", ev.Channel,
				timecode(ev.SourceIn, fps), timecode(ev.SourceOut, fps),
				timecode(ev.RecordIn, fps), timecode(ev.RecordOut, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.Name),
		)
		if ev.MediaPath != "" {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", ev.MediaPath))
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func timecode(seconds float64, fps int) string {
	return msToTimecode(int(math.Round(seconds*1000)), fps)
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
