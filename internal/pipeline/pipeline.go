// Package pipeline orchestrates a full transcode run: probe the source,
// fan out ladder encodes, package the renditions as HLS, and write the master
// manifest. A run either produces a complete bundle or nothing referenced by
// a manifest.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"abrpack/internal/catalog"
	"abrpack/internal/config"
	"abrpack/internal/ffmpeg"
	"abrpack/internal/fileutil"
	"abrpack/internal/hls"
	"abrpack/internal/ladder"
	"abrpack/internal/logging"
	"abrpack/internal/probe"
	"abrpack/internal/services"
	"abrpack/internal/transcode"
)

// lockFileName guards a destination directory against concurrent runs.
const lockFileName = ".abrpack.lock"

// Request names a source file and where the bundle should land.
type Request struct {
	SourcePath string
	// DestDir overrides the configured output directory when set. The bundle
	// is written to a per-source subdirectory beneath it.
	DestDir string
}

// Result reports a completed run.
type Result struct {
	RequestID      string
	SourcePath     string
	DestDir        string
	Duration       float64
	Renditions     []transcode.Rendition
	MediaPlaylists []string
	MasterManifest string
	Elapsed        time.Duration
}

// Orchestrator wires the probe, transcode, and packaging stages together.
type Orchestrator struct {
	cfg    *config.Config
	prober probe.Prober
	runner ffmpeg.Runner
	store  *catalog.Store
	logger *slog.Logger
	ladder ladder.Ladder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProber overrides the ffprobe client.
func WithProber(p probe.Prober) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.prober = p
		}
	}
}

// WithRunner overrides the ffmpeg client.
func WithRunner(r ffmpeg.Runner) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.runner = r
		}
	}
}

// WithCatalog attaches a results catalog. Without one, completed bundles are
// simply not recorded.
func WithCatalog(store *catalog.Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// New constructs an orchestrator from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:    cfg,
		prober: probe.NewCLI(probe.WithBinary(cfg.FFprobeBinary())),
		runner: ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary())),
		logger: logger.With(logging.String(logging.FieldComponent, "pipeline")),
		ladder: cfg.Ladder(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the whole pipeline for one source file. Stages run strictly in
// order and the first failure aborts the run; nothing is retried.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	logger := o.logger.With(logging.String(logging.FieldRequestID, requestID))

	source, destDir, err := o.resolveRequest(req)
	if err != nil {
		return nil, err
	}
	logger.Info("run started",
		logging.String("source", source),
		logging.String("destination", destDir),
		logging.Any("ladder", o.ladder.Labels()))

	if err := fileutil.EnsureDir(destDir); err != nil {
		return nil, services.Wrap(services.ErrInput, "input", "prepare destination", destDir, err)
	}
	lock := flock.New(filepath.Join(destDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "input", "lock destination", destDir, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrInput, "input", "lock destination",
			"another run is writing to "+destDir, nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	duration, err := o.probeStage(ctx, logger, source)
	if err != nil {
		return nil, err
	}

	renditions, err := o.transcodeStage(ctx, logger, source, destDir, duration)
	if err != nil {
		return nil, err
	}

	bundle, err := o.packageStage(ctx, logger, destDir, renditions)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RequestID:      requestID,
		SourcePath:     source,
		DestDir:        destDir,
		Duration:       duration,
		Renditions:     renditions,
		MediaPlaylists: bundle.MediaPlaylists,
		MasterManifest: bundle.MasterPath,
		Elapsed:        time.Since(started),
	}
	o.record(ctx, logger, result)

	logger.Info("run completed",
		logging.String("master_manifest", result.MasterManifest),
		logging.Int("renditions", len(result.Renditions)),
		logging.Duration("elapsed", result.Elapsed))
	return result, nil
}

// resolveRequest validates the source before any subprocess is spawned.
func (o *Orchestrator) resolveRequest(req Request) (source, destDir string, err error) {
	source = strings.TrimSpace(req.SourcePath)
	if source == "" {
		return "", "", services.Wrap(services.ErrInput, "input", "validate source", "source path required", nil)
	}
	source, err = filepath.Abs(source)
	if err != nil {
		return "", "", services.Wrap(services.ErrInput, "input", "validate source", req.SourcePath, err)
	}
	info, statErr := os.Stat(source)
	if statErr != nil {
		return "", "", services.Wrap(services.ErrInput, "input", "validate source", "source not accessible", statErr)
	}
	if info.IsDir() {
		return "", "", services.Wrap(services.ErrInput, "input", "validate source", "source is a directory", nil)
	}

	base := strings.TrimSpace(req.DestDir)
	if base == "" {
		base = o.cfg.Paths.OutputDir
	}
	destDir = filepath.Join(base, sourcePrefix(source))
	return source, destDir, nil
}

func (o *Orchestrator) probeStage(ctx context.Context, logger *slog.Logger, source string) (float64, error) {
	stageStart := time.Now()
	logger.Info("stage started", logging.String(logging.FieldStage, "probe"))

	duration, err := o.prober.Duration(ctx, source)
	if err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldStage, "probe"),
			logging.Error(err))
		return 0, services.Tag(err, "probe")
	}
	logger.Info("stage completed",
		logging.String(logging.FieldStage, "probe"),
		logging.Float64("duration_seconds", duration),
		logging.Duration("elapsed", time.Since(stageStart)))
	return duration, nil
}

func (o *Orchestrator) transcodeStage(ctx context.Context, logger *slog.Logger, source, destDir string, duration float64) ([]transcode.Rendition, error) {
	stageStart := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldStage, "transcode"),
		logging.Int("max_parallel", o.cfg.Transcode.MaxParallel))

	coordinator := transcode.NewCoordinator(o.runner, logger, o.cfg.Transcode.MaxParallel)
	renditions, err := coordinator.Run(ctx, transcode.Request{
		InputPath: source,
		OutputDir: destDir,
		Prefix:    sourcePrefix(source),
		Container: o.cfg.Transcode.Container,
		Codec:     o.cfg.Transcode.Codec,
		Duration:  duration,
		Ladder:    o.ladder,
	})
	if err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldStage, services.StageOf(err)),
			logging.Error(err))
		return nil, err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldStage, "transcode"),
		logging.Int("renditions", len(renditions)),
		logging.Duration("elapsed", time.Since(stageStart)))
	return renditions, nil
}

func (o *Orchestrator) packageStage(ctx context.Context, logger *slog.Logger, destDir string, renditions []transcode.Rendition) (*hls.Bundle, error) {
	stageStart := time.Now()
	logger.Info("stage started", logging.String(logging.FieldStage, "package"))

	packager := hls.NewPackager(o.runner, logger,
		hls.WithSegmentSeconds(o.cfg.HLS.SegmentSeconds),
		hls.WithAudioCodec(o.cfg.HLS.AudioCodec),
		hls.WithMasterName(o.cfg.HLS.MasterPlaylist))
	bundle, err := packager.Package(ctx, destDir, renditions)
	if err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldStage, services.StageOf(err)),
			logging.Error(err))
		return nil, err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldStage, "package"),
		logging.Int("playlists", len(bundle.MediaPlaylists)),
		logging.Duration("elapsed", time.Since(stageStart)))
	return bundle, nil
}

// record stores the completed bundle in the catalog. Catalog trouble never
// fails a run that already produced a valid bundle.
func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, result *Result) {
	if o.store == nil {
		return
	}
	labels := make([]string, 0, len(result.Renditions))
	for _, rendition := range result.Renditions {
		labels = append(labels, rendition.Rung.Label)
	}
	_, err := o.store.Add(ctx, catalog.Record{
		RequestID:       result.RequestID,
		SourcePath:      result.SourcePath,
		DestDir:         result.DestDir,
		MasterPath:      result.MasterManifest,
		DurationSeconds: result.Duration,
		Rungs:           strings.Join(labels, ","),
	})
	if err != nil {
		logger.Warn("catalog record failed", logging.Error(err))
	}
}

// sourcePrefix derives the bundle prefix from the source filename.
func sourcePrefix(source string) string {
	base := filepath.Base(source)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		return fmt.Sprintf("bundle-%d", time.Now().Unix())
	}
	return base
}
