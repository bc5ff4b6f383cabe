package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateHLS(); err != nil {
		return err
	}
	if err := c.Ladder().Validate(); err != nil {
		return fmt.Errorf("ladder: %w", err)
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.FFmpeg == "" {
		return errors.New("tools.ffmpeg must be set")
	}
	if c.Tools.FFprobe == "" {
		return errors.New("tools.ffprobe must be set")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.Codec == "" {
		return errors.New("transcode.codec must be set")
	}
	if c.Transcode.Container == "" {
		return errors.New("transcode.container must be set")
	}
	if c.Transcode.MaxParallel < 0 {
		return errors.New("transcode.max_parallel must be >= 0 (0 means one task per rung)")
	}
	return nil
}

func (c *Config) validateHLS() error {
	if c.HLS.SegmentSeconds <= 0 {
		return errors.New("hls.segment_seconds must be positive")
	}
	if c.HLS.AudioCodec == "" {
		return errors.New("hls.audio_codec must be set")
	}
	master := strings.TrimSpace(c.HLS.MasterPlaylist)
	if master == "" {
		return errors.New("hls.master_playlist must be set")
	}
	if strings.ContainsAny(master, "/\\") {
		return errors.New("hls.master_playlist must be a bare filename")
	}
	return nil
}
