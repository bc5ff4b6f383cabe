package ladder_test

import (
	"strings"
	"testing"

	"abrpack/internal/ladder"
)

func TestDefaultLadderIsValidAndOrdered(t *testing.T) {
	l := ladder.Default()
	if err := l.Validate(); err != nil {
		t.Fatalf("default ladder invalid: %v", err)
	}
	want := []string{"1080p", "720p", "480p"}
	got := l.Labels()
	if len(got) != len(want) {
		t.Fatalf("unexpected label count: %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("label %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestValidateRejectsBadRungs(t *testing.T) {
	cases := []struct {
		name string
		l    ladder.Ladder
		want string
	}{
		{"empty", ladder.Ladder{}, "at least one rung"},
		{
			"missing label",
			ladder.Ladder{{Resolution: "1280x720", Bitrate: "2.5M", Bandwidth: 2500000}},
			"label must be set",
		},
		{
			"duplicate label",
			ladder.Ladder{
				{Label: "720p", Resolution: "1280x720", Bitrate: "2.5M", Bandwidth: 2500000},
				{Label: "720p", Resolution: "1280x720", Bitrate: "2M", Bandwidth: 2000000},
			},
			"duplicate label",
		},
		{
			"bad resolution",
			ladder.Ladder{{Label: "720p", Resolution: "1280p", Bitrate: "2.5M", Bandwidth: 2500000}},
			"resolution must be WxH",
		},
		{
			"zero bandwidth",
			ladder.Ladder{{Label: "720p", Resolution: "1280x720", Bitrate: "2.5M"}},
			"bandwidth must be positive",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.l.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q missing %q", err, tc.want)
			}
		})
	}
}

func TestVariantAttributesFallsBackForUnknownLabel(t *testing.T) {
	l := ladder.Default()

	bandwidth, resolution := l.VariantAttributes("1080p")
	if bandwidth != 5000000 || resolution != "1920x1080" {
		t.Fatalf("unexpected attributes: %d %s", bandwidth, resolution)
	}

	bandwidth, resolution = l.VariantAttributes("2160p")
	if bandwidth != ladder.FallbackBandwidth || resolution != ladder.FallbackResolution {
		t.Fatalf("expected fallback attributes, got %d %s", bandwidth, resolution)
	}
}

func TestLookup(t *testing.T) {
	l := ladder.Default()
	rung, ok := l.Lookup("480p")
	if !ok {
		t.Fatal("expected 480p rung")
	}
	if rung.Bitrate != "1M" {
		t.Fatalf("unexpected bitrate: %q", rung.Bitrate)
	}
	if _, ok := l.Lookup("144p"); ok {
		t.Fatal("unexpected lookup hit")
	}
}
