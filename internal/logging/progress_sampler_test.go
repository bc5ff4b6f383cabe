package logging

import "testing"

func TestProgressSamplerEmitsOnBucketBoundaries(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0) {
		t.Fatal("expected first sample to emit")
	}
	if s.ShouldLog(2) {
		t.Fatal("expected sub-bucket advance to be suppressed")
	}
	if s.ShouldLog(4.9) {
		t.Fatal("expected sub-bucket advance to be suppressed")
	}
	if !s.ShouldLog(5.1) {
		t.Fatal("expected bucket crossing to emit")
	}
	if !s.ShouldLog(23) {
		t.Fatal("expected multi-bucket jump to emit")
	}
	if s.ShouldLog(24) {
		t.Fatal("expected same bucket to be suppressed")
	}
}

func TestProgressSamplerClampsAtHundred(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(100) {
		t.Fatal("expected 100 to emit")
	}
	if s.ShouldLog(250) {
		t.Fatal("expected values beyond 100 to share the final bucket")
	}
}

func TestProgressSamplerIgnoresUnknownPercent(t *testing.T) {
	s := NewProgressSampler(5)
	if s.ShouldLog(-1) {
		t.Fatal("expected unknown percent to be suppressed")
	}
	s.Reset()
	if !s.ShouldLog(0) {
		t.Fatal("expected emit after reset")
	}
}
