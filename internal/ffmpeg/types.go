package ffmpeg

import "time"

// MediaInfo contains metadata about a media file as reported by ffprobe.
// Still images report a video stream with a zero or near-zero duration.
type MediaInfo struct {
	FilePath      string
	FormatName    string
	Duration      time.Duration // container duration
	VideoDuration time.Duration // first video stream's own length, 0 if unreported
	Width         int
	Height        int
	Rotation      int // degrees, normalized to 0, 90, 180 or 270
	FPS           float64
	Bitrate       int64
	HasVideo      bool
	VideoCodec    string
	HasAudio      bool
	AudioCodec    string
	AudioBitrate  int64
}

// DisplaySize returns the frame size after ffmpeg's automatic rotation.
func (m *MediaInfo) DisplaySize() (int, int) {
	if m.Rotation == 90 || m.Rotation == 270 {
		return m.Height, m.Width
	}
	return m.Width, m.Height
}

// PictureDuration is how long the file shows moving pictures: the video
// stream length when known, else the container duration.
func (m *MediaInfo) PictureDuration() time.Duration {
	if m.VideoDuration > 0 {
		return m.VideoDuration
	}
	return m.Duration
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame      int
	FPS        float64
	Bitrate    string
	OutTime    time.Duration
	Speed      string
	Percentage float64
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called once per ffmpeg progress block.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultPixFmt     = "yuv420p"
	DefaultFrameRate  = 24

	// stderrTail is how many ffmpeg stderr lines an ExitError carries.
	stderrTail = 20
)
