package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// RenderOptions configures a composed render: segments concatenated onto
// one canvas, optionally with a single external audio stream.
type RenderOptions struct {
	Segments []Segment
	Canvas   Canvas
	FPS      int
	Audio    *AudioSegment // nil renders without an audio stream
	Output   string
	// Format is the ffmpeg muxer. Empty infers it from the extension of
	// FormatHint, then of Output.
	Format     string
	FormatHint string
	VideoCodec string
	AudioCodec string
	CRF        int
	Preset     string
	// TotalDuration in seconds, used for progress percentages.
	TotalDuration float64
	ProgressFunc  ProgressFunc
}

// Render performs the composed render in a single ffmpeg invocation.
func (e *Executor) Render(ctx context.Context, opts RenderOptions) error {
	args, err := BuildRenderArgs(opts)
	if err != nil {
		return fmt.Errorf("invalid render options: %w", err)
	}

	e.logger.Info().
		Int("segments", len(opts.Segments)).
		Int("width", opts.Canvas.Width).
		Int("height", opts.Canvas.Height).
		Int("fps", opts.FPS).
		Bool("audio", opts.Audio != nil).
		Str("output", opts.Output).
		Msg("starting render")

	progress := opts.ProgressFunc
	if progress != nil && opts.TotalDuration > 0 {
		total := opts.TotalDuration
		progress = func(p *Progress) {
			p.Percentage = 100 * p.OutTime.Seconds() / total
			if p.Percentage > 100 {
				p.Percentage = 100
			}
			opts.ProgressFunc(p)
		}
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: progress,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("render output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("render completed")
	return nil
}

// BuildRenderArgs turns RenderOptions into ffmpeg arguments (without the
// global flags Run prepends).
func BuildRenderArgs(opts RenderOptions) ([]string, error) {
	if err := validateRenderOptions(opts); err != nil {
		return nil, err
	}

	var args []string
	for _, seg := range opts.Segments {
		args = append(args, seg.inputArgs(opts.FPS)...)
	}
	if opts.Audio != nil {
		args = append(args, opts.Audio.inputArgs()...)
	}

	args = append(args,
		"-filter_complex", concatGraph(opts.Segments, opts.Canvas, opts.FPS, opts.Audio),
		"-map", "[vout]",
	)

	videoCodec := opts.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	crf := opts.CRF
	if crf == 0 {
		crf = DefaultCRF
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	args = append(args,
		"-c:v", videoCodec,
		"-crf", strconv.Itoa(crf),
		"-preset", preset,
		"-pix_fmt", DefaultPixFmt,
		"-r", strconv.Itoa(opts.FPS),
	)

	if opts.Audio != nil {
		audioCodec := opts.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-map", "[aout]", "-c:a", audioCodec)
	} else {
		args = append(args, "-an")
	}

	format := opts.Format
	if format == "" {
		hint := opts.FormatHint
		if hint == "" {
			hint = opts.Output
		}
		format = MuxerForPath(hint)
	}
	if format == "mp4" || format == "mov" {
		args = append(args, "-movflags", "+faststart")
	}

	args = append(args, "-f", format, opts.Output)
	return args, nil
}

// MuxerForPath maps an output file extension to an ffmpeg muxer name.
func MuxerForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mov":
		return "mov"
	case ".mkv":
		return "matroska"
	case ".webm":
		return "webm"
	case ".m4v":
		return "ipod"
	default:
		return "mp4"
	}
}

// validateRenderOptions validates the render options
func validateRenderOptions(opts RenderOptions) error {
	if len(opts.Segments) == 0 {
		return fmt.Errorf("at least one segment is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.FPS <= 0 {
		return fmt.Errorf("frame rate must be positive")
	}
	if opts.Canvas.Width <= 0 || opts.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size must be positive")
	}
	if opts.CRF < 0 || opts.CRF > 51 {
		return fmt.Errorf("CRF must be between 0 and 51")
	}
	for _, seg := range opts.Segments {
		if err := seg.validate(); err != nil {
			return err
		}
	}
	if opts.Audio != nil {
		if err := opts.Audio.validate(); err != nil {
			return err
		}
	}
	return nil
}
