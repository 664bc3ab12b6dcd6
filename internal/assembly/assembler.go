// Package assembly turns a directory of classified media into one rendered
// video: clips are built, ordered, concatenated onto a common canvas, given
// an optional background track and encoded in a single ffmpeg pass.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/keagan/instavideo/internal/audio"
	"github.com/keagan/instavideo/internal/clips"
	"github.com/keagan/instavideo/internal/ffmpeg"
	"github.com/keagan/instavideo/internal/logging"
	"github.com/keagan/instavideo/internal/media"
	"github.com/keagan/instavideo/internal/metrics"
	"github.com/keagan/instavideo/internal/randx"
	"github.com/keagan/instavideo/pkg/util"
)

// Prober reads media metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// Renderer encodes a composed timeline.
type Renderer interface {
	Render(ctx context.Context, opts ffmpeg.RenderOptions) error
}

// Encoding carries encoder settings passed straight to ffmpeg. Zero values
// fall back to the ffmpeg package defaults.
type Encoding struct {
	VideoCodec string
	AudioCodec string
	CRF        int
	Preset     string
}

// Deps are the collaborators of an Assembler. Prober, Renderer and Rand are
// required.
type Deps struct {
	Prober   Prober
	Renderer Renderer
	Rand     randx.Source
	Policy   clips.Policy
	Encoding Encoding
	Sink     logging.Sink
	Observer Observer
	Metrics  *metrics.Metrics
}

// Options controls one assembly.
type Options struct {
	FrameRate    int
	AudioEnabled bool
	AudioPath    string
	Shuffle      bool
	// BestEffortAudio renders without audio instead of failing when the
	// audio source cannot be loaded.
	BestEffortAudio bool
}

// DefaultOptions returns 24 fps with audio enabled and no shuffle.
func DefaultOptions() Options {
	return Options{
		FrameRate:    ffmpeg.DefaultFrameRate,
		AudioEnabled: true,
	}
}

// RunOptions adds source selection to Options.
type RunOptions struct {
	Options
	SkipImages bool
	SkipVideos bool
}

// Assembler runs assembly jobs one at a time. It shares its random source
// between clip building and shuffling, so it must not be used from more
// than one goroutine; concurrent jobs each get their own Assembler.
type Assembler struct {
	deps    Deps
	builder *clips.Builder
	mixer   *audio.Mixer
}

// New creates an assembler.
func New(deps Deps) (*Assembler, error) {
	if deps.Prober == nil || deps.Renderer == nil || deps.Rand == nil {
		return nil, fmt.Errorf("assembly: prober, renderer and random source are required")
	}
	if deps.Sink == nil {
		deps.Sink = logging.Nop()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Policy == (clips.Policy{}) {
		deps.Policy = clips.DefaultPolicy()
	}

	return &Assembler{
		deps:    deps,
		builder: clips.NewBuilder(deps.Prober, deps.Rand, deps.Policy, deps.Sink),
		mixer:   audio.NewMixer(deps.Prober, deps.Sink),
	}, nil
}

// BuildClips classifies sourceDir and builds one clip per recognized file:
// images first, then videos, each in directory order.
func (a *Assembler) BuildClips(ctx context.Context, sourceDir string, skipImages, skipVideos bool) ([]*clips.Clip, error) {
	images, videos, err := media.Scan(sourceDir, skipImages, skipVideos)
	if err != nil {
		a.deps.Sink.Error("source directory unusable", "source", sourceDir, "error", err.Error())
		return nil, err
	}
	a.deps.Sink.Info("classified source",
		"source", sourceDir,
		"images", len(images),
		"videos", len(videos),
		"skip_images", skipImages,
		"skip_videos", skipVideos,
	)

	units := make([]media.Unit, 0, len(images)+len(videos))
	units = append(units, images...)
	units = append(units, videos...)

	built, err := a.builder.Build(ctx, units)
	if err != nil {
		return nil, err
	}
	for _, c := range built {
		a.deps.Metrics.ClipBuilt(string(c.Kind()))
	}
	return built, nil
}

// Assemble renders clips into outputPath and returns the path.
func (a *Assembler) Assemble(ctx context.Context, clipSet []*clips.Clip, outputPath string, opts Options) (string, error) {
	job, err := a.AssembleJob(ctx, clipSet, outputPath, opts)
	if err != nil {
		return "", err
	}
	return job.Output, nil
}

// Run builds clips from sourceDir and assembles them.
func (a *Assembler) Run(ctx context.Context, sourceDir, outputPath string, opts RunOptions) (*Job, error) {
	clipSet, err := a.BuildClips(ctx, sourceDir, opts.SkipImages, opts.SkipVideos)
	if err != nil {
		a.deps.Metrics.JobFinished(metrics.OutcomeFailed)
		return nil, err
	}
	return a.AssembleJob(ctx, clipSet, outputPath, opts.Options)
}

// AssembleJob is Assemble returning the finished (or failed) job for
// inspection. The job is returned even on error.
func (a *Assembler) AssembleJob(ctx context.Context, clipSet []*clips.Clip, outputPath string, opts Options) (*Job, error) {
	if opts.FrameRate == 0 {
		opts.FrameRate = ffmpeg.DefaultFrameRate
	}
	job := newJob(outputPath, opts.FrameRate, opts.AudioEnabled)
	a.deps.Metrics.StateEntered(string(StateCollecting))
	a.deps.Sink.Info("assembly started", "job_id", job.ID, "clips", len(clipSet), "output", outputPath)

	err := a.execute(ctx, job, clipSet, opts)
	if err != nil {
		failedIn := job.State
		job.Err = err
		_ = a.moveTo(job, StateFailed)
		a.deps.Metrics.JobFinished(metrics.OutcomeFailed)
		a.deps.Sink.Error("assembly failed", "job_id", job.ID, "state", string(failedIn), "error", err.Error())
		return job, err
	}

	a.deps.Metrics.JobFinished(metrics.OutcomeDone)
	return job, nil
}

func (a *Assembler) execute(ctx context.Context, job *Job, clipSet []*clips.Clip, opts Options) error {
	// Collecting
	if len(clipSet) == 0 {
		return ErrNoClips
	}
	if outputPathInvalid(job.Output) {
		return fmt.Errorf("output path is required")
	}
	if opts.FrameRate < 0 {
		return fmt.Errorf("invalid frame rate %d", opts.FrameRate)
	}
	for _, c := range clipSet {
		if err := checkClip(c); err != nil {
			return err
		}
	}
	job.Clips = clips.NewManager(clipSet...)

	// Ordering
	if err := a.moveTo(job, StateOrdering); err != nil {
		return err
	}
	if opts.Shuffle {
		job.Clips.Shuffle(a.deps.Rand)
	}

	// Concatenating
	if err := a.moveTo(job, StateConcatenating); err != nil {
		return err
	}
	job.Canvas = job.Clips.Canvas()
	job.Duration = job.Clips.TotalDuration()
	a.deps.Sink.Info("timeline planned",
		"job_id", job.ID,
		"clips", job.Clips.Len(),
		"seconds", job.Duration,
		"width", job.Canvas.Width,
		"height", job.Canvas.Height,
	)

	// Mixing
	if opts.AudioEnabled && opts.AudioPath != "" {
		if err := a.moveTo(job, StateMixing); err != nil {
			return err
		}
		track, err := a.mixer.Mix(ctx, opts.AudioEnabled, opts.AudioPath, job.Duration)
		switch {
		case err == nil:
			job.Audio = track
		case opts.BestEffortAudio && audio.IsLoadError(err):
			a.deps.Sink.Warn("audio unavailable, rendering without audio", "job_id", job.ID, "error", err.Error())
		default:
			return err
		}
	}

	// Rendering
	if err := a.moveTo(job, StateRendering); err != nil {
		return err
	}
	if err := a.render(ctx, job); err != nil {
		return err
	}

	a.verify(ctx, job)
	return a.moveTo(job, StateDone)
}

func (a *Assembler) moveTo(job *Job, next State) error {
	from := job.State
	if err := job.advance(next); err != nil {
		return err
	}
	a.deps.Metrics.StateEntered(string(next))
	a.deps.Sink.Info("job state changed", "job_id", job.ID, "from", string(from), "to", string(next))
	a.deps.Observer.OnStateChange(job, from, next)
	return nil
}

// render encodes into a pending file next to the output and renames it
// into place only after ffmpeg succeeded.
func (a *Assembler) render(ctx context.Context, job *Job) error {
	if err := util.EnsureDir(filepath.Dir(job.Output)); err != nil {
		return &RenderError{Path: job.Output, Err: err}
	}

	pending, err := renameio.NewPendingFile(job.Output,
		renameio.WithTempDir(filepath.Dir(job.Output)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return &RenderError{Path: job.Output, Err: fmt.Errorf("create pending output: %w", err)}
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			a.deps.Sink.Warn("cleanup pending output", "job_id", job.ID, "error", err.Error())
		}
	}()

	opts := ffmpeg.RenderOptions{
		Segments:      job.Clips.Segments(),
		Canvas:        job.Canvas,
		FPS:           job.FrameRate,
		Output:        pending.Name(),
		FormatHint:    job.Output,
		VideoCodec:    a.deps.Encoding.VideoCodec,
		AudioCodec:    a.deps.Encoding.AudioCodec,
		CRF:           a.deps.Encoding.CRF,
		Preset:        a.deps.Encoding.Preset,
		TotalDuration: job.Duration,
		ProgressFunc: func(p *ffmpeg.Progress) {
			a.deps.Observer.OnProgress(job, p)
		},
	}
	if job.Audio != nil {
		opts.Audio = job.Audio.Segment()
	}

	started := time.Now()
	if err := a.deps.Renderer.Render(ctx, opts); err != nil {
		return &RenderError{Path: job.Output, Err: err}
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &RenderError{Path: job.Output, Err: fmt.Errorf("commit output: %w", err)}
	}

	took := time.Since(started)
	a.deps.Metrics.Rendered(took, job.Duration)
	a.deps.Sink.Info("render committed", "job_id", job.ID, "output", job.Output, "took_seconds", took.Seconds())
	return nil
}

// verify probes the committed file and reports drift beyond one frame. The
// file is already in place, so problems here are only logged.
func (a *Assembler) verify(ctx context.Context, job *Job) {
	info, err := a.deps.Prober.Probe(ctx, job.Output)
	if err != nil {
		a.deps.Sink.Warn("could not probe rendered output", "job_id", job.ID, "output", job.Output, "error", err.Error())
		return
	}
	job.RenderedDuration = info.Duration.Seconds()

	drift := job.RenderedDuration - job.Duration
	if math.Abs(drift) > util.FrameDuration(job.FrameRate) {
		a.deps.Sink.Warn("rendered duration drifts from plan",
			"job_id", job.ID,
			"planned_seconds", job.Duration,
			"rendered_seconds", job.RenderedDuration,
			"drift_seconds", drift,
		)
	}
	if job.Audio == nil && info.HasAudio {
		a.deps.Sink.Warn("rendered output unexpectedly carries audio", "job_id", job.ID)
	}
}

func checkClip(c *clips.Clip) error {
	if c == nil || c.Unit == nil {
		return errors.New("nil clip in set")
	}
	if !(c.Duration > 0) {
		return &clips.ConstructionError{Path: c.Path(), Err: fmt.Errorf("non-positive duration %v", c.Duration)}
	}
	if c.Kind() == media.KindVideo && c.RawDuration > 0 && c.TrimEnd() > c.RawDuration+1e-9 {
		return &clips.ConstructionError{Path: c.Path(), Err: fmt.Errorf("trim window [%v, %v) exceeds source length %v", c.TrimStart, c.TrimEnd(), c.RawDuration)}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return &clips.ConstructionError{Path: c.Path(), Err: fmt.Errorf("unknown frame size")}
	}
	return nil
}

func outputPathInvalid(p string) bool {
	return p == "" || filepath.Base(p) == "." || filepath.Base(p) == string(filepath.Separator)
}
