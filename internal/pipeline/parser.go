package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

// Stage classifies where in the pipeline a progress line originated.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageTranscoding Stage = "transcoding"
)

// Event is a normalized progress tuple parsed from one output line.
type Event struct {
	Stage      Stage
	Percent    float64
	HasPercent bool
	ETASeconds *int
}

var (
	reANSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)
	rePct  = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reETA  = regexp.MustCompile(`\bETA\s+([0-9]+(?::[0-9]{2})+)\b`)
	reFrag = regexp.MustCompile(`\(frag\s+([0-9]+)/([0-9]+)\)`)
	// ffmpeg writes progress to stderr as "... time=00:01:23.45 ... speed=1.2x".
	reFFTime = regexp.MustCompile(`\btime=\d{2}:\d{2}:\d{2}\.\d+`)
	reFFSpd  = regexp.MustCompile(`\bspeed=\s*[0-9.]+x`)
)

// Transcode-phase postprocessor prefixes emitted by yt-dlp.
var transcodePrefixes = []string{
	"[Merger]", "[ExtractAudio]", "[VideoConvertor]", "[VideoRemuxer]",
	"[FixupM3u8]", "[FixupM4a]", "[ffmpeg]",
}

// Parse converts one raw pipeline output line into a progress event.
// The second return is false for lines that carry no progress
// information (metadata extraction, warnings, blank lines).
func Parse(stream Stream, line string) (Event, bool) {
	l := strings.TrimSpace(reANSI.ReplaceAllString(line, ""))
	if l == "" {
		return Event{}, false
	}

	for _, prefix := range transcodePrefixes {
		if strings.HasPrefix(l, prefix) {
			return Event{Stage: StageTranscoding}, true
		}
	}
	if stream == StreamStderr && reFFTime.MatchString(l) && reFFSpd.MatchString(l) {
		// ffmpeg reports elapsed media time, not a ratio; the stage
		// change alone is the signal.
		return Event{Stage: StageTranscoding}, true
	}

	if !strings.HasPrefix(l, "[download]") {
		return Event{}, false
	}
	ev := Event{Stage: StageDownloading}
	if m := rePct.FindStringSubmatch(l); len(m) > 1 {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			ev.Percent = pct
			ev.HasPercent = true
		}
	}
	// Fragmented (HLS) downloads may omit a percent; fall back to the
	// fragment ratio the same way the tool's own display does.
	if !ev.HasPercent {
		if m := reFrag.FindStringSubmatch(l); len(m) > 2 {
			idx, err1 := strconv.ParseFloat(m[1], 64)
			total, err2 := strconv.ParseFloat(m[2], 64)
			if err1 == nil && err2 == nil && total > 0 {
				ev.Percent = idx / total * 100
				ev.HasPercent = true
			}
		}
	}
	if m := reETA.FindStringSubmatch(l); len(m) > 1 {
		if secs, ok := parseClock(m[1]); ok {
			ev.ETASeconds = &secs
		}
	}
	return ev, true
}

// parseClock converts "SS", "MM:SS", or "HH:MM:SS" into seconds.
// Minute and second fields must stay under 60; only the leading field
// is unbounded.
func parseClock(v string) (int, bool) {
	parts := strings.Split(v, ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		if i > 0 && n > 59 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
