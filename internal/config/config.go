package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"abrpack/internal/ladder"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Tools names the external binaries the pipeline invokes.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Transcode contains encoder settings shared by all rungs.
type Transcode struct {
	Codec       string `toml:"codec"`
	Container   string `toml:"container"`
	MaxParallel int    `toml:"max_parallel"`
}

// HLS contains packaging settings.
type HLS struct {
	SegmentSeconds int    `toml:"segment_seconds"`
	AudioCodec     string `toml:"audio_codec"`
	MasterPlaylist string `toml:"master_playlist"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Rung mirrors ladder.Rung for TOML decoding.
type Rung struct {
	Label      string `toml:"label"`
	Resolution string `toml:"resolution"`
	Bitrate    string `toml:"bitrate"`
	Bandwidth  int    `toml:"bandwidth"`
}

// Config encapsulates all configuration values for abrpack.
//
// Sections by subsystem:
//   - Paths: output and log directories
//   - Tools: ffmpeg/ffprobe binary names or paths
//   - Transcode: codec, container, and parallelism bound
//   - HLS: segment duration, audio codec, master playlist name
//   - Ladder: ordered quality rungs
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Tools     Tools     `toml:"tools"`
	Transcode Transcode `toml:"transcode"`
	HLS       HLS       `toml:"hls"`
	Rungs     []Rung    `toml:"ladder"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/abrpack/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// A ladder in the file replaces the default one wholesale; decoding
		// into the pre-populated slice would merge the two.
		defaultRungs := cfg.Rungs
		cfg.Rungs = nil

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if len(cfg.Rungs) == 0 {
			cfg.Rungs = defaultRungs
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("abrpack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.OutputDir, &c.Paths.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Transcode.Codec = strings.TrimSpace(c.Transcode.Codec)
	c.Transcode.Container = strings.TrimPrefix(strings.TrimSpace(c.Transcode.Container), ".")
	c.HLS.AudioCodec = strings.TrimSpace(c.HLS.AudioCodec)
	c.HLS.MasterPlaylist = strings.TrimSpace(c.HLS.MasterPlaylist)
	return nil
}

// EnsureDirectories creates the output and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Ladder returns the configured quality ladder in declared order.
func (c *Config) Ladder() ladder.Ladder {
	rungs := make(ladder.Ladder, 0, len(c.Rungs))
	for _, r := range c.Rungs {
		rungs = append(rungs, ladder.Rung{
			Label:      strings.TrimSpace(r.Label),
			Resolution: strings.TrimSpace(r.Resolution),
			Bitrate:    strings.TrimSpace(r.Bitrate),
			Bandwidth:  r.Bandwidth,
		})
	}
	return rungs
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if c == nil || c.Tools.FFmpeg == "" {
		return "ffmpeg"
	}
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable name.
func (c *Config) FFprobeBinary() string {
	if c == nil || c.Tools.FFprobe == "" {
		return "ffprobe"
	}
	return c.Tools.FFprobe
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
