package ffmpeg

import (
	"strings"
	"testing"
)

func TestMonitorParsesProgressLines(t *testing.T) {
	var events []ProgressEvent
	monitor := NewMonitor(120, func(ev ProgressEvent) { events = append(events, ev) }, nil)

	stream := strings.Join([]string{
		"frame=  100 fps= 25 q=28.0 size=     512kB time=00:00:30.00 bitrate= 139.8kbits/s speed=1.2x",
		"frame=  200 fps= 25 q=28.0 size=    1024kB time=00:01:00.00 bitrate= 139.8kbits/s speed=1.2x",
		"frame=  400 fps= 25 q=28.0 size=    2048kB time=00:02:00.00 bitrate= 139.8kbits/s speed=1.2x",
	}, "\n")

	if err := monitor.Consume(strings.NewReader(stream)); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if events[0].Percent != 25 || events[0].Elapsed != 30 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[2].Percent != 100 {
		t.Fatalf("expected final event at 100%%, got %+v", events[2])
	}
}

func TestMonitorRequiresBothProgressTokens(t *testing.T) {
	var events []ProgressEvent
	monitor := NewMonitor(120, func(ev ProgressEvent) { events = append(events, ev) }, nil)

	stream := strings.Join([]string{
		"Duration: 00:02:00.00, start: 0.000000, bitrate: 1000 kb/s",
		"frame=  100 time=00:00:30.00 speed=1.2x",
		"bitrate= 139.8kbits/s only",
	}, "\n")

	if err := monitor.Consume(strings.NewReader(stream)); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events from non-progress lines, got %v", events)
	}
}

func TestMonitorClampsOvershoot(t *testing.T) {
	monitor := NewMonitor(100, nil, nil)

	stream := "frame=1 time=00:02:30.00 bitrate= 139.8kbits/s\n"
	if err := monitor.Consume(strings.NewReader(stream)); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if monitor.Percent() != 100 {
		t.Fatalf("expected percent clamped to 100, got %v", monitor.Percent())
	}
}

func TestMonitorPercentNeverDecreases(t *testing.T) {
	var events []ProgressEvent
	monitor := NewMonitor(100, func(ev ProgressEvent) { events = append(events, ev) }, nil)

	stream := strings.Join([]string{
		"frame=1 time=00:01:00.00 bitrate= 100kbits/s",
		"frame=2 time=00:00:10.00 bitrate= 100kbits/s",
	}, "\n")
	if err := monitor.Consume(strings.NewReader(stream)); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if monitor.Percent() != 60 {
		t.Fatalf("expected percent to hold at 60, got %v", monitor.Percent())
	}
	for _, ev := range events {
		if ev.Percent < 60 && ev.Elapsed == 10 {
			t.Fatalf("regressing timestamp produced a lower percent: %+v", ev)
		}
	}
}

func TestMonitorSamplesEveryFivePoints(t *testing.T) {
	var events []ProgressEvent
	monitor := NewMonitor(1000, func(ev ProgressEvent) { events = append(events, ev) }, nil)

	// 1% steps: only every fifth crossing should emit.
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, progressLine(float64(i*10)))
	}
	if err := monitor.Consume(strings.NewReader(strings.Join(lines, "\n"))); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 sampled events for 20%% in 1%% steps, got %d", len(events))
	}
	for i, want := range []float64{1, 5, 10, 15, 20} {
		if events[i].Percent != want {
			t.Fatalf("event %d: expected %v%%, got %v%%", i, want, events[i].Percent)
		}
	}
}

func TestMonitorSurfacesErrorLinesAsWarnings(t *testing.T) {
	var warnings []string
	monitor := NewMonitor(120, nil, func(line string) { warnings = append(warnings, line) })

	stream := strings.Join([]string{
		"[libx264 @ 0x55] Error while decoding frame",
		"frame=1 time=00:00:30.00 bitrate= 100kbits/s",
	}, "\n")
	if err := monitor.Consume(strings.NewReader(stream)); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if monitor.Percent() != 25 {
		t.Fatalf("warning must not block later progress, percent=%v", monitor.Percent())
	}
}

func TestMonitorZeroDuration(t *testing.T) {
	monitor := NewMonitor(0, nil, nil)
	if err := monitor.Consume(strings.NewReader(progressLine(30))); err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if monitor.Percent() != 0 {
		t.Fatalf("expected zero percent with unknown duration, got %v", monitor.Percent())
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		token string
		want  float64
		ok    bool
	}{
		{"00:02:00.50", 120.5, true},
		{"01:00:00.00", 3600, true},
		{"00:30", 0, false},
		{"aa:bb:cc", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseClock(tc.token)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseClock(%q) = %v,%v want %v,%v", tc.token, got, ok, tc.want, tc.ok)
		}
	}
}

func progressLine(elapsed float64) string {
	hours := int(elapsed) / 3600
	minutes := (int(elapsed) % 3600) / 60
	seconds := elapsed - float64(hours*3600+minutes*60)
	return "frame=1 fps=25 time=" +
		pad(hours) + ":" + pad(minutes) + ":" + padSeconds(seconds) +
		" bitrate= 100kbits/s speed=1x"
}

func pad(v int) string {
	if v < 10 {
		return "0" + string(rune('0'+v))
	}
	return string(rune('0'+v/10)) + string(rune('0'+v%10))
}

func padSeconds(v float64) string {
	whole := int(v)
	return pad(whole) + ".00"
}
