package config

const (
	defaultOutputDir      = "~/.local/share/abrpack/output"
	defaultLogDir         = "~/.local/share/abrpack/logs"
	defaultCodec          = "libx264"
	defaultContainer      = "mp4"
	defaultAudioCodec     = "aac"
	defaultSegmentSeconds = 4
	defaultMasterPlaylist = "master.m3u8"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Transcode: Transcode{
			Codec:     defaultCodec,
			Container: defaultContainer,
		},
		HLS: HLS{
			SegmentSeconds: defaultSegmentSeconds,
			AudioCodec:     defaultAudioCodec,
			MasterPlaylist: defaultMasterPlaylist,
		},
		Rungs: []Rung{
			{Label: "1080p", Resolution: "1920x1080", Bitrate: "5M", Bandwidth: 5000000},
			{Label: "720p", Resolution: "1280x720", Bitrate: "2.5M", Bandwidth: 2500000},
			{Label: "480p", Resolution: "854x480", Bitrate: "1M", Bandwidth: 1000000},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
