package clips

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/keagan/instavideo/internal/ffmpeg"
	"github.com/keagan/instavideo/internal/logging"
	"github.com/keagan/instavideo/internal/media"
	"github.com/keagan/instavideo/internal/randx"
)

// Policy holds the duration rules applied to each unit.
type Policy struct {
	ImageMin float64 // seconds an image stays on screen, lower bound
	ImageMax float64
	// Videos longer than TrimThreshold are cut to a random length in
	// [TrimMin, TrimMax] starting at 0; shorter ones play whole.
	TrimThreshold float64
	TrimMin       float64
	TrimMax       float64
}

// DefaultPolicy returns the stock durations.
func DefaultPolicy() Policy {
	return Policy{
		ImageMin:      2.0,
		ImageMax:      3.0,
		TrimThreshold: 10.0,
		TrimMin:       5.0,
		TrimMax:       10.0,
	}
}

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// ConstructionError means a unit could not be turned into a clip.
type ConstructionError struct {
	Path string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("clip construction failed for %s: %v", e.Path, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// IsConstructionError reports whether err is a ConstructionError.
func IsConstructionError(err error) bool {
	var e *ConstructionError
	return errors.As(err, &e)
}

// Builder turns classified units into clips.
type Builder struct {
	prober Prober
	rand   randx.Source
	policy Policy
	sink   logging.Sink
}

// NewBuilder creates a builder. A nil sink discards diagnostics.
func NewBuilder(prober Prober, src randx.Source, policy Policy, sink logging.Sink) *Builder {
	if sink == nil {
		sink = logging.Nop()
	}
	return &Builder{
		prober: prober,
		rand:   src,
		policy: policy,
		sink:   sink,
	}
}

// Build converts every unit, in order. The first failure aborts the whole
// set.
func (b *Builder) Build(ctx context.Context, units []media.Unit) ([]*Clip, error) {
	out := make([]*Clip, 0, len(units))
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clip, err := b.BuildOne(ctx, u)
		if err != nil {
			b.sink.Error("clip construction failed", "path", u.Path(), "kind", string(u.Kind()), "error", err.Error())
			return nil, err
		}
		out = append(out, clip)
	}
	return out, nil
}

// BuildOne converts a single unit.
func (b *Builder) BuildOne(ctx context.Context, u media.Unit) (*Clip, error) {
	switch unit := u.(type) {
	case media.Image:
		return b.buildImage(ctx, unit)
	case media.Video:
		return b.buildVideo(ctx, unit)
	default:
		return nil, &ConstructionError{Path: u.Path(), Err: fmt.Errorf("unsupported media kind %q", u.Kind())}
	}
}

func (b *Builder) buildImage(ctx context.Context, img media.Image) (*Clip, error) {
	info, err := b.prober.Probe(ctx, img.Path())
	if err != nil {
		return nil, &ConstructionError{Path: img.Path(), Err: err}
	}
	w, h := info.DisplaySize()
	if !info.HasVideo || w <= 0 || h <= 0 {
		return nil, &ConstructionError{Path: img.Path(), Err: fmt.Errorf("no decodable picture")}
	}

	clip := &Clip{
		ID:       uuid.NewString(),
		Unit:     img,
		Duration: randx.Uniform(b.rand, b.policy.ImageMin, b.policy.ImageMax),
		Width:    w,
		Height:   h,
	}
	b.sink.Info("image clip built", "path", img.Path(), "duration", clip.Duration, "width", w, "height", h)
	return clip, nil
}

func (b *Builder) buildVideo(ctx context.Context, vid media.Video) (*Clip, error) {
	once := &probeOnce{prober: b.prober}
	raw, err := vid.Duration(ctx, once)
	if err != nil {
		return nil, &ConstructionError{Path: vid.Path(), Err: err}
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw <= 0 {
		return nil, &ConstructionError{Path: vid.Path(), Err: fmt.Errorf("unusable duration %v", raw)}
	}
	w, h := once.info.DisplaySize()
	if !once.info.HasVideo || w <= 0 || h <= 0 {
		return nil, &ConstructionError{Path: vid.Path(), Err: fmt.Errorf("no video stream")}
	}

	clip := &Clip{
		ID:          uuid.NewString(),
		Unit:        vid,
		Duration:    raw,
		RawDuration: raw,
		Width:       w,
		Height:      h,
	}

	// The drawn length is the end of the window; the window always starts
	// at 0.
	if raw > b.policy.TrimThreshold {
		clip.Duration = randx.Uniform(b.rand, b.policy.TrimMin, b.policy.TrimMax)
		if clip.Duration > raw {
			clip.Duration = raw
		}
	}

	b.sink.Info("video clip built",
		"path", vid.Path(),
		"raw_duration", raw,
		"duration", clip.Duration,
		"trimmed", clip.Duration < raw,
		"width", w,
		"height", h,
	)
	return clip, nil
}

// probeOnce satisfies media.DurationProber while keeping the full probe
// result, so duration and frame size come from one ffprobe call.
type probeOnce struct {
	prober Prober
	info   *ffmpeg.MediaInfo
}

func (p *probeOnce) ProbeDuration(ctx context.Context, path string) (float64, error) {
	info, err := p.prober.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	p.info = info
	return info.PictureDuration().Seconds(), nil
}
