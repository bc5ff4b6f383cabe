// Package ladder defines the ordered quality rung table driving transcoding
// and packaging. Rung order is significant: renditions and manifest variants
// are always emitted in ladder order.
package ladder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Rung describes one target rendition.
type Rung struct {
	// Label names the rung (e.g. "1080p") and qualifies every artifact the
	// rung produces.
	Label string
	// Resolution is the target frame size in "WxH" form.
	Resolution string
	// Bitrate is the target video bitrate in encoder notation (e.g. "5M").
	Bitrate string
	// Bandwidth is the peak bandwidth advertised for the rung in the master
	// manifest, in bits per second.
	Bandwidth int
}

// Ladder is an ordered, immutable set of rungs.
type Ladder []Rung

// Fallback attributes advertised for a rendition whose label is not part of
// the ladder. Kept deliberately conservative so unknown variants do not starve
// clients on slow links.
const (
	FallbackBandwidth  = 500000
	FallbackResolution = "640x360"
)

// Default returns the stock three-rung ladder.
func Default() Ladder {
	return Ladder{
		{Label: "1080p", Resolution: "1920x1080", Bitrate: "5M", Bandwidth: 5000000},
		{Label: "720p", Resolution: "1280x720", Bitrate: "2.5M", Bandwidth: 2500000},
		{Label: "480p", Resolution: "854x480", Bitrate: "1M", Bandwidth: 1000000},
	}
}

// Validate checks the ladder is usable: at least one rung, unique non-empty
// labels, WxH resolutions, non-empty bitrates, and positive bandwidths.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return errors.New("ladder must contain at least one rung")
	}
	seen := make(map[string]struct{}, len(l))
	for i, rung := range l {
		label := strings.TrimSpace(rung.Label)
		if label == "" {
			return fmt.Errorf("ladder rung %d: label must be set", i+1)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("ladder rung %d: duplicate label %q", i+1, label)
		}
		seen[label] = struct{}{}
		if !validResolution(rung.Resolution) {
			return fmt.Errorf("ladder rung %q: resolution must be WxH, got %q", label, rung.Resolution)
		}
		if strings.TrimSpace(rung.Bitrate) == "" {
			return fmt.Errorf("ladder rung %q: bitrate must be set", label)
		}
		if rung.Bandwidth <= 0 {
			return fmt.Errorf("ladder rung %q: bandwidth must be positive", label)
		}
	}
	return nil
}

// Lookup returns the rung with the given label.
func (l Ladder) Lookup(label string) (Rung, bool) {
	label = strings.TrimSpace(label)
	for _, rung := range l {
		if rung.Label == label {
			return rung, true
		}
	}
	return Rung{}, false
}

// Labels returns the rung labels in ladder order.
func (l Ladder) Labels() []string {
	labels := make([]string, 0, len(l))
	for _, rung := range l {
		labels = append(labels, rung.Label)
	}
	return labels
}

// VariantAttributes returns the bandwidth and resolution to advertise for a
// label. Labels outside the ladder fall back to conservative defaults rather
// than failing.
func (l Ladder) VariantAttributes(label string) (bandwidth int, resolution string) {
	if rung, ok := l.Lookup(label); ok {
		return rung.Bandwidth, rung.Resolution
	}
	return FallbackBandwidth, FallbackResolution
}

func validResolution(value string) bool {
	parts := strings.Split(strings.TrimSpace(value), "x")
	if len(parts) != 2 {
		return false
	}
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return false
		}
	}
	return true
}
