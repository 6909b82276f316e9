package ffmpeg

import "time"

// MediaInfo contains metadata about an audio or video file
type MediaInfo struct {
	FilePath     string
	Duration     time.Duration
	Width        int
	Height       int
	FPS          float64
	Bitrate      int64
	VideoCodec   string
	HasVideo     bool
	HasAudio     bool
	AudioCodec   string
	SampleRate   int
	Channels     int
	AudioBitrate int64
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF         = 23
	DefaultPreset      = "medium"
	DefaultVideoCodec  = "libx264"
	DefaultAudioCodec  = "aac"
	DefaultPixelFormat = "yuv420p"
	DefaultSampleRate  = 44100
	DefaultChannels    = 2
	DefaultFPS         = 24
)

// StillOptions configures rendering one still frame over one audio clip.
type StillOptions struct {
	// Image is the full-size frame, already at the output resolution.
	Image string
	// Overlay is an optional transparent PNG composited at 0,0.
	Overlay  string
	Audio    string
	Output   string
	Duration time.Duration

	Width  int
	Height int
	FPS    float64
	Preset string
	CRF    int

	ProgressFunc ProgressFunc
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)
