// Package audio selects the background track segment for an assembled video.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/keagan/instavideo/internal/ffmpeg"
	"github.com/keagan/instavideo/internal/logging"
)

// Track is the audio source of one job and the window selected from it.
type Track struct {
	Path        string
	RawDuration float64
	Start       float64
	End         float64
}

// Length is the selected window length in seconds.
func (t *Track) Length() float64 { return t.End - t.Start }

// Segment describes the selected window as a render input.
func (t *Track) Segment() *ffmpeg.AudioSegment {
	return &ffmpeg.AudioSegment{Path: t.Path, Start: t.Start, Duration: t.Length()}
}

// LoadError means the audio source is missing, unreadable or has no audio.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("audio load failed for %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var e *LoadError
	return errors.As(err, &e)
}

// ErrInvalidTarget is returned by Select for a target duration that is not
// a finite positive number of seconds.
var ErrInvalidTarget = errors.New("invalid target duration")

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// Mixer loads audio sources and aligns them with a video duration.
type Mixer struct {
	prober Prober
	sink   logging.Sink
}

// NewMixer creates a mixer. A nil sink discards diagnostics.
func NewMixer(prober Prober, sink logging.Sink) *Mixer {
	if sink == nil {
		sink = logging.Nop()
	}
	return &Mixer{prober: prober, sink: sink}
}

// Mix returns the track for target seconds of video, or nil when audio is
// disabled or no path is configured.
func (m *Mixer) Mix(ctx context.Context, enabled bool, path string, target float64) (*Track, error) {
	if !enabled || strings.TrimSpace(path) == "" {
		return nil, nil
	}
	return m.Select(ctx, path, target)
}

// Select loads path and picks [0, target) when the track is long enough,
// else the whole track [0, raw). A short track is not looped or padded; the
// video simply runs on without audio after it ends.
//
// target is the planned video length and must be finite and positive; any
// other value is a caller bug reported as ErrInvalidTarget, never as a
// LoadError.
func (m *Mixer) Select(ctx context.Context, path string, target float64) (*Track, error) {
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, target)
	}
	if strings.TrimSpace(path) == "" {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("empty path")}
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if fi.IsDir() {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	info, err := m.prober.Probe(ctx, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if !info.HasAudio {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("no audio stream")}
	}
	raw := info.Duration.Seconds()
	if raw <= 0 {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unusable duration %v", raw)}
	}

	track := &Track{
		Path:        path,
		RawDuration: raw,
		Start:       0,
		End:         math.Min(raw, target),
	}

	if raw < target {
		m.sink.Warn("audio shorter than video, remainder has no audio",
			"path", path,
			"audio_seconds", raw,
			"video_seconds", target,
			"uncovered_seconds", target-raw,
		)
	} else {
		m.sink.Info("audio segment selected", "path", path, "start", track.Start, "end", track.End)
	}
	return track, nil
}
