package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"abrpack/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantOutput := filepath.Join(tempHome, ".local", "share", "abrpack", "output")
	if cfg.Paths.OutputDir != wantOutput {
		t.Fatalf("unexpected output dir: got %q want %q", cfg.Paths.OutputDir, wantOutput)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected tool binaries: %q %q", cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
	if cfg.Transcode.Codec != "libx264" || cfg.Transcode.Container != "mp4" {
		t.Fatalf("unexpected transcode defaults: %+v", cfg.Transcode)
	}
	if cfg.HLS.SegmentSeconds != 4 || cfg.HLS.AudioCodec != "aac" {
		t.Fatalf("unexpected hls defaults: %+v", cfg.HLS)
	}
	if cfg.HLS.MasterPlaylist != "master.m3u8" {
		t.Fatalf("unexpected master playlist: %q", cfg.HLS.MasterPlaylist)
	}

	l := cfg.Ladder()
	if len(l) != 3 {
		t.Fatalf("expected 3 default rungs, got %d", len(l))
	}
	if l[0].Label != "1080p" || l[2].Label != "480p" {
		t.Fatalf("unexpected ladder order: %v", l.Labels())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "abrpack.toml")

	type payload struct {
		Transcode struct {
			Codec       string `toml:"codec"`
			Container   string `toml:"container"`
			MaxParallel int    `toml:"max_parallel"`
		} `toml:"transcode"`
		Ladder []config.Rung `toml:"ladder"`
	}
	custom := payload{}
	custom.Transcode.Codec = "libx265"
	custom.Transcode.Container = ".mkv"
	custom.Transcode.MaxParallel = 2
	custom.Ladder = []config.Rung{
		{Label: "720p", Resolution: "1280x720", Bitrate: "2.5M", Bandwidth: 2500000},
	}

	raw, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(configPath, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Transcode.Codec != "libx265" {
		t.Fatalf("unexpected codec: %q", cfg.Transcode.Codec)
	}
	if cfg.Transcode.Container != "mkv" {
		t.Fatalf("expected container extension normalized, got %q", cfg.Transcode.Container)
	}
	if cfg.Transcode.MaxParallel != 2 {
		t.Fatalf("unexpected max parallel: %d", cfg.Transcode.MaxParallel)
	}
	if got := cfg.Ladder().Labels(); len(got) != 1 || got[0] != "720p" {
		t.Fatalf("unexpected ladder: %v", got)
	}
}

func TestLoadRejectsInvalidLadder(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "abrpack.toml")
	body := strings.Join([]string{
		"[[ladder]]",
		`label = "720p"`,
		`resolution = "1280x720"`,
		`bitrate = "2.5M"`,
		"bandwidth = 0",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "bandwidth must be positive") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsMasterPlaylistWithPathSeparator(t *testing.T) {
	cfg := config.Default()
	cfg.HLS.MasterPlaylist = "nested/master.m3u8"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if len(cfg.Ladder()) != 3 {
		t.Fatalf("expected sample ladder to have 3 rungs, got %d", len(cfg.Ladder()))
	}
}
