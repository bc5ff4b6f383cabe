// Package ffmpeg wraps the ffmpeg command line for encoding renditions and
// segmenting them into HLS. The argument lists are the contract here, not the
// tool name: any binary honoring them can be substituted via WithBinary.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"abrpack/internal/services"
)

var commandContext = exec.CommandContext

// EncodeSpec describes one rendition encode.
type EncodeSpec struct {
	InputPath  string
	OutputPath string
	Resolution string
	Bitrate    string
	Codec      string
}

// SegmentSpec describes the HLS segmentation of one rendition. Video is
// stream-copied; audio is re-encoded to AudioCodec.
type SegmentSpec struct {
	InputPath      string
	PlaylistPath   string
	SegmentPattern string
	AudioCodec     string
	SegmentSeconds int
}

// Runner defines the encoder/segmenter behaviour the pipeline depends on.
type Runner interface {
	Encode(ctx context.Context, spec EncodeSpec, monitor *Monitor) error
	Segment(ctx context.Context, spec SegmentSpec) error
}

// Option configures the CLI runner.
type Option func(*CLI)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI invokes the ffmpeg binary.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI runner using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode runs one rendition encode to completion. The monitor, when present,
// consumes the process's stderr on a dedicated goroutine so progress parsing
// never blocks the wait below. Only the exit status decides success.
func (c *CLI) Encode(ctx context.Context, spec EncodeSpec, monitor *Monitor) error {
	if err := validateEncodeSpec(spec); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", spec.InputPath,
		"-s", spec.Resolution,
		"-b:v", spec.Bitrate,
		"-c:v", spec.Codec,
		spec.OutputPath,
	}
	cmd := commandContext(ctx, c.binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrSpawn, "", "ffmpeg encode", "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrSpawn, "", "ffmpeg encode", "failed to start encoder", err)
	}

	done := make(chan error, 1)
	go func() {
		if monitor == nil {
			_, copyErr := io.Copy(io.Discard, stderr)
			done <- copyErr
			return
		}
		done <- monitor.Consume(stderr)
	}()

	readErr := <-done
	waitErr := cmd.Wait()
	if waitErr != nil {
		return services.Wrap(services.ErrEncode, "", "ffmpeg encode", exitDetail(waitErr), waitErr)
	}
	if readErr != nil {
		return services.Wrap(services.ErrEncode, "", "ffmpeg encode", "read encoder diagnostics", readErr)
	}
	return nil
}

// Segment packages one rendition into HLS segments plus its media playlist.
func (c *CLI) Segment(ctx context.Context, spec SegmentSpec) error {
	if err := validateSegmentSpec(spec); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", spec.InputPath,
		"-c:v", "copy",
		"-c:a", spec.AudioCodec,
		"-f", "hls",
		"-hls_time", strconv.Itoa(spec.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", spec.SegmentPattern,
		spec.PlaylistPath,
	}
	cmd := commandContext(ctx, c.binary, args...)
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrSpawn, "", "ffmpeg segment", "failed to start segmenter", err)
	}
	if err := cmd.Wait(); err != nil {
		return services.Wrap(services.ErrPackage, "", "ffmpeg segment", exitDetail(err), err)
	}
	return nil
}

func validateEncodeSpec(spec EncodeSpec) error {
	required := []struct{ name, value string }{
		{"input path", spec.InputPath},
		{"output path", spec.OutputPath},
		{"resolution", spec.Resolution},
		{"bitrate", spec.Bitrate},
		{"codec", spec.Codec},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return services.Wrap(services.ErrConfiguration, "", "ffmpeg encode", field.name+" required", nil)
		}
	}
	return nil
}

func validateSegmentSpec(spec SegmentSpec) error {
	required := []struct{ name, value string }{
		{"input path", spec.InputPath},
		{"playlist path", spec.PlaylistPath},
		{"segment pattern", spec.SegmentPattern},
		{"audio codec", spec.AudioCodec},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return services.Wrap(services.ErrConfiguration, "", "ffmpeg segment", field.name+" required", nil)
		}
	}
	if spec.SegmentSeconds <= 0 {
		return services.Wrap(services.ErrConfiguration, "", "ffmpeg segment", "segment duration must be positive", nil)
	}
	return nil
}

// exitDetail distinguishes signal-terminated encoders from plain non-zero
// exits in the surfaced message.
func exitDetail(waitErr error) string {
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return services.ExitDetail(-1, status.Signal().String())
		}
		return services.ExitDetail(exitErr.ExitCode(), "")
	}
	return fmt.Sprintf("wait failed: %v", waitErr)
}

var _ Runner = (*CLI)(nil)
