// Package hls segments encoded renditions into HLS media playlists and writes
// the master manifest that ties them together. Variant attributes come from
// the rung carried with each rendition, never from filenames.
package hls

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"abrpack/internal/ffmpeg"
	"abrpack/internal/fileutil"
	"abrpack/internal/logging"
	"abrpack/internal/services"
	"abrpack/internal/transcode"
)

// Bundle lists the artifacts one packaging run produced.
type Bundle struct {
	// MediaPlaylists holds the per-rendition playlist paths in input order.
	MediaPlaylists []string
	// MasterPath is the master manifest written after every rendition
	// segmented successfully.
	MasterPath string
}

// Option configures a Packager.
type Option func(*Packager)

// WithSegmentSeconds overrides the target segment duration.
func WithSegmentSeconds(seconds int) Option {
	return func(p *Packager) {
		if seconds > 0 {
			p.segmentSeconds = seconds
		}
	}
}

// WithAudioCodec overrides the audio codec renditions are re-encoded to.
func WithAudioCodec(codec string) Option {
	return func(p *Packager) {
		if strings.TrimSpace(codec) != "" {
			p.audioCodec = codec
		}
	}
}

// WithMasterName overrides the master manifest filename.
func WithMasterName(name string) Option {
	return func(p *Packager) {
		if strings.TrimSpace(name) != "" {
			p.masterName = name
		}
	}
}

// Packager turns renditions into HLS output under a destination directory.
type Packager struct {
	runner         ffmpeg.Runner
	logger         *slog.Logger
	segmentSeconds int
	audioCodec     string
	masterName     string
}

// NewPackager constructs a packager with 4-second segments, AAC audio and a
// master.m3u8 manifest unless overridden.
func NewPackager(runner ffmpeg.Runner, logger *slog.Logger, opts ...Option) *Packager {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Packager{
		runner:         runner,
		logger:         logger.With(logging.String(logging.FieldComponent, "hls")),
		segmentSeconds: 4,
		audioCodec:     "aac",
		masterName:     "master.m3u8",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package segments every rendition in order and then writes the master
// manifest. The first segmentation failure aborts the run before the master
// is written, so a manifest on disk always references a complete bundle.
func (p *Packager) Package(ctx context.Context, destDir string, renditions []transcode.Rendition) (*Bundle, error) {
	if strings.TrimSpace(destDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "hls package", "destination directory required", nil)
	}
	if len(renditions) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "hls package", "no renditions to package", nil)
	}
	if err := fileutil.EnsureDir(destDir); err != nil {
		return nil, services.Wrap(services.ErrPackage, "package:"+renditions[0].Rung.Label, "hls package", "create destination directory", err)
	}

	bundle := &Bundle{MediaPlaylists: make([]string, 0, len(renditions))}
	for _, rendition := range renditions {
		label := rendition.Rung.Label
		playlist := filepath.Join(destDir, label+".m3u8")
		spec := ffmpeg.SegmentSpec{
			InputPath:      rendition.Path,
			PlaylistPath:   playlist,
			SegmentPattern: filepath.Join(destDir, label+"_segment_%03d.ts"),
			AudioCodec:     p.audioCodec,
			SegmentSeconds: p.segmentSeconds,
		}
		p.logger.Info("segmenting rendition",
			logging.String(logging.FieldRung, label),
			logging.String("playlist", playlist))
		if err := p.runner.Segment(ctx, spec); err != nil {
			return nil, services.Tag(err, "package:"+label)
		}
		bundle.MediaPlaylists = append(bundle.MediaPlaylists, playlist)
	}

	masterPath, err := p.writeMaster(destDir, renditions)
	if err != nil {
		return nil, err
	}
	bundle.MasterPath = masterPath
	return bundle, nil
}

// MasterManifest renders the master playlist body. Variants appear in input
// order with one EXT-X-STREAM-INF entry each, referencing the media playlist
// by relative filename.
func MasterManifest(renditions []transcode.Rendition) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, rendition := range renditions {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n",
			rendition.Rung.Bandwidth, rendition.Rung.Resolution)
		b.WriteString(rendition.Rung.Label + ".m3u8\n")
	}
	return b.String()
}

func (p *Packager) writeMaster(destDir string, renditions []transcode.Rendition) (string, error) {
	path := filepath.Join(destDir, p.masterName)
	if err := fileutil.WriteFileAtomic(path, []byte(MasterManifest(renditions)), 0o644); err != nil {
		return "", services.Wrap(services.ErrManifestWrite, "manifest_write", "write master manifest", path, err)
	}
	p.logger.Info("master manifest written",
		logging.String("path", path),
		logging.Int("variants", len(renditions)))
	return path, nil
}
