// Package probe extracts container-level metadata from media files via
// ffprobe without transcoding anything.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"abrpack/internal/services"
)

var commandContext = exec.CommandContext

// Prober obtains source media metadata.
type Prober interface {
	// Duration returns the container duration in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}

// Option configures the CLI prober.
type Option func(*CLI)

// WithBinary overrides the default ffprobe binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffprobe command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI prober using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Duration asks ffprobe for the container duration alone, as a bare decimal
// on stdout. The duration must be known before any encoder is spawned, so
// failures here are cheap preconditions rather than wasted encodes.
func (c *CLI) Duration(ctx context.Context, path string) (float64, error) {
	if strings.TrimSpace(path) == "" {
		return 0, services.Wrap(services.ErrProbe, "probe", "ffprobe duration", "input path required", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return 0, services.Wrap(services.ErrProbe, "probe", "ffprobe duration", "source not accessible", err)
	}

	args := []string{
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	}
	cmd := commandContext(ctx, c.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		detail := "ffprobe exited abnormally"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				detail = msg
			}
		}
		return 0, services.Wrap(services.ErrProbe, "probe", "ffprobe duration", detail, err)
	}

	raw := strings.TrimSpace(string(out))
	duration, parseErr := strconv.ParseFloat(raw, 64)
	if parseErr != nil {
		return 0, services.Wrap(services.ErrProbe, "probe", "parse duration",
			fmt.Sprintf("unparseable ffprobe output %q", raw), parseErr)
	}
	if duration <= 0 {
		return 0, services.Wrap(services.ErrProbe, "probe", "parse duration",
			fmt.Sprintf("non-positive duration %v", duration), nil)
	}
	return duration, nil
}

// Info returns the full ffprobe format/stream report as raw JSON. Used by the
// probe CLI command; the pipeline itself only needs Duration.
func (c *CLI) Info(ctx context.Context, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, services.Wrap(services.ErrProbe, "probe", "ffprobe info", "source not accessible", err)
	}
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	cmd := commandContext(ctx, c.binary, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, services.Wrap(services.ErrProbe, "probe", "ffprobe info", "ffprobe exited abnormally", err)
	}
	return out, nil
}

var _ Prober = (*CLI)(nil)
