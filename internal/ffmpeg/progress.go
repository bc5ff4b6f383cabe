package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"abrpack/internal/logging"
)

// ProgressEvent reports encoder progress for one job.
type ProgressEvent struct {
	// Elapsed is the media time the encoder has processed, in seconds.
	Elapsed float64
	// Percent is elapsed relative to the probed source duration, clamped to
	// [0,100] and monotonically non-decreasing per job.
	Percent float64
}

// Monitor parses an encoder's line-oriented diagnostic stream into
// rate-limited progress events. ffmpeg's stderr is chatty and unstructured;
// a line counts as progress only when it carries both a time= and a bitrate=
// token, which rejects unrelated diagnostics that happen to mention times.
// Lines that look like errors are surfaced as warnings only; the process
// exit status is the sole success signal.
type Monitor struct {
	duration    float64
	lastPercent float64
	sampler     *logging.ProgressSampler
	onEvent     func(ProgressEvent)
	onWarning   func(line string)
}

// NewMonitor constructs a monitor for a job whose source runs for the given
// duration in seconds. Either callback may be nil.
func NewMonitor(duration float64, onEvent func(ProgressEvent), onWarning func(string)) *Monitor {
	return &Monitor{
		duration:  duration,
		sampler:   logging.NewProgressSampler(5),
		onEvent:   onEvent,
		onWarning: onWarning,
	}
}

// Consume reads the stream line by line until EOF, feeding callbacks.
// It is intended to run on its own goroutine while the caller awaits the
// process, so a blocking read here never stalls the job's join point.
func (m *Monitor) Consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.observe(scanner.Text())
	}
	return scanner.Err()
}

// Percent returns the highest percent observed so far.
func (m *Monitor) Percent() float64 {
	if m == nil {
		return 0
	}
	return m.lastPercent
}

func (m *Monitor) observe(line string) {
	if isErrorLine(line) && m.onWarning != nil {
		m.onWarning(line)
	}
	elapsed, ok := parseProgressLine(line)
	if !ok {
		return
	}

	percent := 0.0
	if m.duration > 0 {
		percent = elapsed / m.duration * 100
	}
	if percent > 100 {
		percent = 100
	}
	if percent < m.lastPercent {
		percent = m.lastPercent
	}
	m.lastPercent = percent

	if m.onEvent != nil && m.sampler.ShouldLog(percent) {
		m.onEvent(ProgressEvent{Elapsed: elapsed, Percent: percent})
	}
}

// parseProgressLine extracts the elapsed seconds from an encoder progress
// line, or reports false for anything else.
func parseProgressLine(line string) (float64, bool) {
	if !strings.Contains(line, "time=") || !strings.Contains(line, "bitrate=") {
		return 0, false
	}
	rest := line[strings.Index(line, "time=")+len("time="):]
	token := rest
	if idx := strings.IndexFunc(rest, isSpace); idx >= 0 {
		token = rest[:idx]
	}
	return parseClock(token)
}

// parseClock converts an H:MM:SS.ms-shaped token to seconds.
func parseClock(token string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(token), ":")
	if len(parts) < 3 {
		return 0, false
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

func isErrorLine(line string) bool {
	return strings.Contains(line, "error") || strings.Contains(line, "Error")
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
