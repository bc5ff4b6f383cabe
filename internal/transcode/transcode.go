// Package transcode fans one source file out into every rung of the quality
// ladder, running a bounded number of encoder subprocesses at once and
// enforcing all-or-nothing completion across the set.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"abrpack/internal/ffmpeg"
	"abrpack/internal/ladder"
	"abrpack/internal/logging"
	"abrpack/internal/services"
)

// Status tracks one encode job through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Rendition pairs a ladder rung with the encoded file it produced. The rung
// travels with the path so downstream packaging never has to recover variant
// attributes from filenames.
type Rendition struct {
	Rung ladder.Rung
	Path string
}

// Request describes one fan-out transcode.
type Request struct {
	InputPath string
	OutputDir string
	// Prefix names the rendition files: {Prefix}_{label}.{Container}.
	Prefix    string
	Container string
	Codec     string
	// Duration is the probed source duration in seconds, used for progress.
	Duration float64
	Ladder   ladder.Ladder
}

// JobResult records the terminal state of one rung's encode.
type JobResult struct {
	Rung       ladder.Rung
	OutputPath string
	Status     Status
	Err        error
}

// Coordinator runs ladder encodes in parallel.
type Coordinator struct {
	runner      ffmpeg.Runner
	logger      *slog.Logger
	maxParallel int
}

// NewCoordinator constructs a coordinator. maxParallel bounds concurrent
// encoder subprocesses; zero means one per rung.
func NewCoordinator(runner ffmpeg.Runner, logger *slog.Logger, maxParallel int) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		runner:      runner,
		logger:      logger.With(logging.String(logging.FieldComponent, "transcode")),
		maxParallel: maxParallel,
	}
}

// Run encodes every rung and returns the renditions in ladder order. If any
// rung fails, the remaining encoders are cancelled, every job is still joined,
// and the error reflects the first failing rung in ladder order.
func (c *Coordinator) Run(ctx context.Context, req Request) ([]Rendition, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	limit := c.maxParallel
	if limit <= 0 || limit > len(req.Ladder) {
		limit = len(req.Ladder)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]JobResult, len(req.Ladder))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, rung := range req.Ladder {
		results[i] = JobResult{Rung: rung, OutputPath: outputPath(req, rung.Label), Status: StatusPending}

		wg.Add(1)
		go func(i int, rung ladder.Rung) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				results[i].Status = StatusFailed
				results[i].Err = services.Wrap(services.ErrEncode, stageFor(rung.Label), "encode "+rung.Label, "cancelled before start", runCtx.Err())
				return
			}

			results[i].Status = StatusRunning
			err := c.encodeRung(runCtx, req, rung, results[i].OutputPath)
			if err != nil {
				if runCtx.Err() != nil {
					// The encoder died because a sibling already failed and
					// tore the group down, not on its own account.
					err = services.Wrap(services.ErrEncode, stageFor(rung.Label), "encode "+rung.Label, "cancelled", context.Canceled)
				}
				results[i].Status = StatusFailed
				results[i].Err = services.Tag(err, stageFor(rung.Label))
				cancel()
				return
			}
			results[i].Status = StatusSucceeded
		}(i, rung)
	}
	wg.Wait()

	if err := firstFailure(results); err != nil {
		c.logger.Error("transcode failed",
			logging.String(logging.FieldStage, services.StageOf(err)),
			logging.Error(err))
		return nil, err
	}

	renditions := make([]Rendition, 0, len(results))
	for _, res := range results {
		renditions = append(renditions, Rendition{Rung: res.Rung, Path: res.OutputPath})
	}
	return renditions, nil
}

// firstFailure picks the error to surface for the whole fan-out: the first
// rung in ladder order that failed on its own. Siblings cancelled in response
// to that failure never mask it, even when they sit earlier in the ladder.
func firstFailure(results []JobResult) error {
	var cancelled error
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		if errors.Is(res.Err, context.Canceled) {
			if cancelled == nil {
				cancelled = res.Err
			}
			continue
		}
		return res.Err
	}
	return cancelled
}

func (c *Coordinator) encodeRung(ctx context.Context, req Request, rung ladder.Rung, outPath string) error {
	logger := c.logger.With(logging.String(logging.FieldRung, rung.Label))
	logger.Info("encode started",
		logging.String("resolution", rung.Resolution),
		logging.String("bitrate", rung.Bitrate),
		logging.String("output", outPath))

	monitor := ffmpeg.NewMonitor(req.Duration,
		func(ev ffmpeg.ProgressEvent) {
			logger.Info("encode progress",
				logging.Float64("percent", ev.Percent),
				logging.Float64("elapsed_seconds", ev.Elapsed))
		},
		func(line string) {
			logger.Warn("encoder diagnostic", logging.String("line", strings.TrimSpace(line)))
		})

	spec := ffmpeg.EncodeSpec{
		InputPath:  req.InputPath,
		OutputPath: outPath,
		Resolution: rung.Resolution,
		Bitrate:    rung.Bitrate,
		Codec:      req.Codec,
	}
	if err := c.runner.Encode(ctx, spec, monitor); err != nil {
		return err
	}
	logger.Info("encode completed", logging.Float64("percent", monitor.Percent()))
	return nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.InputPath) == "" {
		return services.Wrap(services.ErrConfiguration, "", "transcode", "input path required", nil)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return services.Wrap(services.ErrConfiguration, "", "transcode", "output directory required", nil)
	}
	if strings.TrimSpace(req.Prefix) == "" {
		return services.Wrap(services.ErrConfiguration, "", "transcode", "output prefix required", nil)
	}
	if strings.TrimSpace(req.Codec) == "" {
		return services.Wrap(services.ErrConfiguration, "", "transcode", "codec required", nil)
	}
	if err := req.Ladder.Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "", "transcode", "invalid ladder", err)
	}
	return nil
}

func outputPath(req Request, label string) string {
	container := strings.TrimPrefix(req.Container, ".")
	if container == "" {
		container = "mp4"
	}
	return filepath.Join(req.OutputDir, fmt.Sprintf("%s_%s.%s", req.Prefix, label, container))
}

func stageFor(label string) string {
	return "transcode:" + label
}
