package hls

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"abrpack/internal/ffmpeg"
	"abrpack/internal/ladder"
	"abrpack/internal/services"
	"abrpack/internal/transcode"
)

type fakeSegmenter struct {
	mu    sync.Mutex
	specs []ffmpeg.SegmentSpec
	fail  map[string]error
}

func (f *fakeSegmenter) Encode(ctx context.Context, spec ffmpeg.EncodeSpec, monitor *ffmpeg.Monitor) error {
	return nil
}

func (f *fakeSegmenter) Segment(ctx context.Context, spec ffmpeg.SegmentSpec) error {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()
	if err, ok := f.fail[spec.InputPath]; ok {
		return err
	}
	return nil
}

func renditions() []transcode.Rendition {
	rungs := ladder.Default()
	return []transcode.Rendition{
		{Rung: rungs[0], Path: "/work/source_1080p.mp4"},
		{Rung: rungs[1], Path: "/work/source_720p.mp4"},
		{Rung: rungs[2], Path: "/work/source_480p.mp4"},
	}
}

func TestPackageSegmentsEveryRenditionInOrder(t *testing.T) {
	dir := t.TempDir()
	segmenter := &fakeSegmenter{}

	bundle, err := NewPackager(segmenter, nil).Package(context.Background(), dir, renditions())
	if err != nil {
		t.Fatalf("Package returned error: %v", err)
	}

	if len(segmenter.specs) != 3 {
		t.Fatalf("expected 3 segment invocations, got %d", len(segmenter.specs))
	}
	wantLabels := []string{"1080p", "720p", "480p"}
	for i, label := range wantLabels {
		spec := segmenter.specs[i]
		if spec.PlaylistPath != filepath.Join(dir, label+".m3u8") {
			t.Fatalf("segment %d: unexpected playlist %q", i, spec.PlaylistPath)
		}
		if spec.SegmentPattern != filepath.Join(dir, label+"_segment_%03d.ts") {
			t.Fatalf("segment %d: unexpected pattern %q", i, spec.SegmentPattern)
		}
		if spec.AudioCodec != "aac" || spec.SegmentSeconds != 4 {
			t.Fatalf("segment %d: unexpected codec/duration %+v", i, spec)
		}
	}
	if len(bundle.MediaPlaylists) != 3 {
		t.Fatalf("expected 3 media playlists, got %v", bundle.MediaPlaylists)
	}
	if bundle.MasterPath != filepath.Join(dir, "master.m3u8") {
		t.Fatalf("unexpected master path %q", bundle.MasterPath)
	}
}

func TestPackageWritesMasterManifestInLadderOrder(t *testing.T) {
	dir := t.TempDir()

	bundle, err := NewPackager(&fakeSegmenter{}, nil).Package(context.Background(), dir, renditions())
	if err != nil {
		t.Fatalf("Package returned error: %v", err)
	}

	body, err := os.ReadFile(bundle.MasterPath)
	if err != nil {
		t.Fatalf("read master manifest: %v", err)
	}
	want := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\n1080p.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720\n720p.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=854x480\n480p.m3u8\n"
	if string(body) != want {
		t.Fatalf("manifest mismatch\n got: %q\nwant: %q", body, want)
	}
}

func TestPackageFailsFastAndSkipsMaster(t *testing.T) {
	dir := t.TempDir()
	segmenter := &fakeSegmenter{fail: map[string]error{
		"/work/source_720p.mp4": services.Wrap(services.ErrPackage, "", "ffmpeg segment", services.ExitDetail(1, ""), errors.New("exit status 1")),
	}}

	_, err := NewPackager(segmenter, nil).Package(context.Background(), dir, renditions())
	if err == nil {
		t.Fatal("expected error when segmentation fails")
	}
	if !errors.Is(err, services.ErrPackage) {
		t.Fatalf("expected package marker, got %v", err)
	}
	if got := services.StageOf(err); got != "package:720p" {
		t.Fatalf("expected stage package:720p, got %q", got)
	}
	if len(segmenter.specs) != 2 {
		t.Fatalf("expected fail-fast after 720p, got %d invocations", len(segmenter.specs))
	}
	if _, statErr := os.Stat(filepath.Join(dir, "master.m3u8")); !os.IsNotExist(statErr) {
		t.Fatal("master manifest must not exist after a failed bundle")
	}
}

func TestPackageHonorsOptions(t *testing.T) {
	dir := t.TempDir()
	segmenter := &fakeSegmenter{}

	packager := NewPackager(segmenter, nil,
		WithSegmentSeconds(6),
		WithAudioCodec("libopus"),
		WithMasterName("index.m3u8"))
	bundle, err := packager.Package(context.Background(), dir, renditions()[:1])
	if err != nil {
		t.Fatalf("Package returned error: %v", err)
	}
	if segmenter.specs[0].SegmentSeconds != 6 || segmenter.specs[0].AudioCodec != "libopus" {
		t.Fatalf("options not applied: %+v", segmenter.specs[0])
	}
	if bundle.MasterPath != filepath.Join(dir, "index.m3u8") {
		t.Fatalf("unexpected master path %q", bundle.MasterPath)
	}
}

func TestMasterManifestFallbackAttributes(t *testing.T) {
	rung := ladder.Rung{Label: "special", Resolution: ladder.FallbackResolution, Bandwidth: ladder.FallbackBandwidth, Bitrate: "500k"}
	body := MasterManifest([]transcode.Rendition{{Rung: rung, Path: "/work/special.mp4"}})
	want := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360\nspecial.m3u8\n"
	if body != want {
		t.Fatalf("manifest mismatch\n got: %q\nwant: %q", body, want)
	}
}

func TestPackageRejectsEmptyRenditions(t *testing.T) {
	_, err := NewPackager(&fakeSegmenter{}, nil).Package(context.Background(), t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error for empty rendition set")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}
