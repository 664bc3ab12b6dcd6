package assembly

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keagan/instavideo/internal/audio"
	"github.com/keagan/instavideo/internal/clips"
	"github.com/keagan/instavideo/internal/ffmpeg"
	"github.com/keagan/instavideo/internal/media"
	"github.com/keagan/instavideo/internal/metrics"
	"github.com/keagan/instavideo/internal/randx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber answers from a table keyed by base name. Files nobody
// registered but that exist on disk are treated as rendered outputs.
type fakeProber struct {
	mu       sync.Mutex
	infos    map[string]*ffmpeg.MediaInfo
	rendered *ffmpeg.MediaInfo
}

func (p *fakeProber) Probe(_ context.Context, path string) (*ffmpeg.MediaInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, ok := p.infos[filepath.Base(path)]; ok {
		return info, nil
	}
	if p.rendered != nil {
		if _, err := os.Stat(path); err == nil {
			return p.rendered, nil
		}
	}
	return nil, errors.New("invalid data found when processing input")
}

// fakeRenderer records the options and writes a placeholder file.
type fakeRenderer struct {
	calls []ffmpeg.RenderOptions
	err   error
}

func (r *fakeRenderer) Render(_ context.Context, opts ffmpeg.RenderOptions) error {
	r.calls = append(r.calls, opts)
	if err := os.WriteFile(opts.Output, []byte("partial"), 0o644); err != nil {
		return err
	}
	return r.err
}

type recordingObserver struct {
	transitions []string
}

func (o *recordingObserver) OnStateChange(_ *Job, from, to State) {
	o.transitions = append(o.transitions, string(from)+"->"+string(to))
}

func (o *recordingObserver) OnProgress(*Job, *ffmpeg.Progress) {}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func video(s float64, w, h int) *ffmpeg.MediaInfo {
	return &ffmpeg.MediaInfo{Duration: seconds(s), Width: w, Height: h, HasVideo: true}
}

func image(w, h int) *ffmpeg.MediaInfo {
	return &ffmpeg.MediaInfo{Width: w, Height: h, HasVideo: true}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}
}

type fixture struct {
	src      string
	out      string
	prober   *fakeProber
	renderer *fakeRenderer
	observer *recordingObserver
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := t.TempDir()
	touch(t, src, "a.jpg", "b.jpg", "c.png", "short.mp4", "long.mp4", "notes.txt")

	return &fixture{
		src: src,
		out: filepath.Join(t.TempDir(), "nested", "final.mp4"),
		prober: &fakeProber{infos: map[string]*ffmpeg.MediaInfo{
			"a.jpg":     image(1080, 1080),
			"b.jpg":     image(800, 600),
			"c.png":     image(640, 480),
			"short.mp4": video(6, 1280, 720),
			"long.mp4":  video(15, 1920, 1080),
		}},
		renderer: &fakeRenderer{},
		observer: &recordingObserver{},
		metrics:  metrics.New(),
	}
}

func (f *fixture) assembler(t *testing.T, seed uint64) *Assembler {
	t.Helper()
	a, err := New(Deps{
		Prober:   f.prober,
		Renderer: f.renderer,
		Rand:     randx.New(seed),
		Observer: f.observer,
		Metrics:  f.metrics,
	})
	require.NoError(t, err)
	return a
}

func TestRunWithoutAudio(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, 7)

	opts := RunOptions{Options: DefaultOptions()}
	opts.AudioEnabled = false

	job, err := a.Run(context.Background(), f.src, f.out, opts)
	require.NoError(t, err)
	assert.Equal(t, StateDone, job.State)
	assert.Equal(t, []State{StateCollecting, StateOrdering, StateConcatenating, StateRendering, StateDone}, job.History())

	require.Equal(t, 5, job.Clips.Len())
	all := job.Clips.All()
	// Images first, then videos, in directory order.
	for i, kind := range []media.Kind{media.KindImage, media.KindImage, media.KindImage, media.KindVideo, media.KindVideo} {
		assert.Equal(t, kind, all[i].Kind())
	}

	var sum float64
	for _, c := range all {
		if c.Kind() == media.KindImage {
			assert.GreaterOrEqual(t, c.Duration, 2.0)
			assert.LessOrEqual(t, c.Duration, 3.0)
		}
		sum += c.Duration
	}
	// Directory order puts long.mp4 before short.mp4.
	assert.GreaterOrEqual(t, all[3].Duration, 5.0)
	assert.LessOrEqual(t, all[3].Duration, 10.0)
	assert.Zero(t, all[3].TrimStart)
	assert.Equal(t, 6.0, all[4].Duration, "videos under the cap play whole")
	assert.InDelta(t, sum, job.Duration, 1e-9)

	assert.Equal(t, ffmpeg.Canvas{Width: 1920, Height: 1080}, job.Canvas)

	require.Len(t, f.renderer.calls, 1)
	call := f.renderer.calls[0]
	assert.Nil(t, call.Audio)
	assert.Equal(t, 24, call.FPS)
	assert.Equal(t, f.out, call.FormatHint)
	assert.NotEqual(t, f.out, call.Output, "ffmpeg writes to a pending file")
	assert.Len(t, call.Segments, 5)

	assert.FileExists(t, f.out)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.JobsTotal.WithLabelValues(metrics.OutcomeDone)))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.ClipsBuiltTotal.WithLabelValues("image")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ClipsBuiltTotal.WithLabelValues("video")))
}

func TestRunWithAudio(t *testing.T) {
	f := newFixture(t)
	song := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(song, []byte("x"), 0o644))
	f.prober.infos["song.mp3"] = &ffmpeg.MediaInfo{Duration: seconds(120), HasAudio: true}

	opts := RunOptions{Options: DefaultOptions()}
	opts.AudioPath = song

	job, err := f.assembler(t, 3).Run(context.Background(), f.src, f.out, opts)
	require.NoError(t, err)
	assert.Contains(t, job.History(), StateMixing)

	require.NotNil(t, job.Audio)
	assert.Zero(t, job.Audio.Start)
	assert.InDelta(t, job.Duration, job.Audio.End, 1e-9)

	require.Len(t, f.renderer.calls, 1)
	require.NotNil(t, f.renderer.calls[0].Audio)
	assert.Equal(t, song, f.renderer.calls[0].Audio.Path)
}

func TestMissingAudioFailsUnlessBestEffort(t *testing.T) {
	f := newFixture(t)
	opts := RunOptions{Options: DefaultOptions()}
	opts.AudioPath = filepath.Join(t.TempDir(), "missing.mp3")

	job, err := f.assembler(t, 1).Run(context.Background(), f.src, f.out, opts)
	require.Error(t, err)
	assert.True(t, audio.IsLoadError(err))
	assert.Equal(t, StateFailed, job.State)
	assert.NoFileExists(t, f.out)
	assert.Empty(t, f.renderer.calls)

	opts.BestEffortAudio = true
	job, err = f.assembler(t, 1).Run(context.Background(), f.src, f.out, opts)
	require.NoError(t, err)
	assert.Nil(t, job.Audio)
	assert.FileExists(t, f.out)
}

func TestMissingDirectory(t *testing.T) {
	f := newFixture(t)
	_, err := f.assembler(t, 1).Run(context.Background(), filepath.Join(f.src, "nope"), f.out, RunOptions{Options: DefaultOptions()})

	require.Error(t, err)
	assert.True(t, media.IsDirectoryNotFound(err))
	assert.NoFileExists(t, f.out)
	assert.Empty(t, f.renderer.calls)
}

func TestCorruptVideoAbortsBeforeRender(t *testing.T) {
	f := newFixture(t)
	delete(f.prober.infos, "long.mp4")

	_, err := f.assembler(t, 1).Run(context.Background(), f.src, f.out, RunOptions{Options: DefaultOptions()})
	require.Error(t, err)
	assert.True(t, clips.IsConstructionError(err))
	assert.Empty(t, f.renderer.calls)
	assert.NoFileExists(t, f.out)
}

func TestRenderFailureLeavesNoOutput(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = errors.New("encoder exploded")

	opts := RunOptions{Options: DefaultOptions()}
	opts.AudioEnabled = false

	job, err := f.assembler(t, 1).Run(context.Background(), f.src, f.out, opts)
	require.Error(t, err)
	assert.True(t, IsRenderError(err))
	assert.ErrorContains(t, err, "encoder exploded")
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, err, job.Err)
	assert.NoFileExists(t, f.out)

	// The pending file is removed as well.
	entries, err := os.ReadDir(filepath.Dir(f.out))
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, []string{
		"collecting->ordering",
		"ordering->concatenating",
		"concatenating->rendering",
		"rendering->failed",
	}, f.observer.transitions)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.JobsTotal.WithLabelValues(metrics.OutcomeFailed)))
}

func TestEmptyClipSet(t *testing.T) {
	f := newFixture(t)
	job, err := f.assembler(t, 1).AssembleJob(context.Background(), nil, f.out, DefaultOptions())

	assert.ErrorIs(t, err, ErrNoClips)
	assert.Equal(t, []State{StateCollecting, StateFailed}, job.History())
}

func TestSkipBothKindsHasNothingToAssemble(t *testing.T) {
	f := newFixture(t)
	opts := RunOptions{Options: DefaultOptions(), SkipImages: true, SkipVideos: true}

	_, err := f.assembler(t, 1).Run(context.Background(), f.src, f.out, opts)
	assert.ErrorIs(t, err, ErrNoClips)
}

func TestShuffleIsSeedDeterministic(t *testing.T) {
	order := func(seed uint64) []string {
		f := newFixture(t)
		opts := RunOptions{Options: DefaultOptions()}
		opts.AudioEnabled = false
		opts.Shuffle = true

		job, err := f.assembler(t, seed).Run(context.Background(), f.src, f.out, opts)
		require.NoError(t, err)

		var names []string
		for _, c := range job.Clips.All() {
			names = append(names, filepath.Base(c.Path()))
		}
		return names
	}

	first := order(42)
	assert.Equal(t, first, order(42))
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg", "c.png", "short.mp4", "long.mp4"}, first)
}

func TestAssembleReturnsOutputPath(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, 5)

	built, err := a.BuildClips(context.Background(), f.src, false, true)
	require.NoError(t, err)
	require.Len(t, built, 3)

	opts := DefaultOptions()
	opts.AudioEnabled = false
	got, err := a.Assemble(context.Background(), built, f.out, opts)
	require.NoError(t, err)
	assert.Equal(t, f.out, got)
}

func TestRenderedDurationIsProbed(t *testing.T) {
	f := newFixture(t)
	f.prober.rendered = &ffmpeg.MediaInfo{Duration: seconds(12.5), HasVideo: true}

	opts := RunOptions{Options: DefaultOptions()}
	opts.AudioEnabled = false

	job, err := f.assembler(t, 1).Run(context.Background(), f.src, f.out, opts)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, job.RenderedDuration, 1e-9)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{Prober: &fakeProber{}, Rand: randx.New(1)})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "renderer"))
}
