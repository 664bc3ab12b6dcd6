package ffmpeg_test

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/keagan/instavideo/internal/ffmpeg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// local helper (cannot use unexported ones from ffmpeg package)
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping ffmpeg integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func newExecutor(t *testing.T) *ffmpeg.Executor {
	t.Helper()
	e, err := ffmpeg.New(zerolog.Nop(), ffmpeg.Options{})
	require.NoError(t, err)
	return e
}

// generate synthesizes a fixture with lavfi sources.
func generate(t *testing.T, e *ffmpeg.Executor, out string, args ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, e.Run(ctx, ffmpeg.RunOptions{Args: append(args, out)}))
}

func TestIntegrationProbeAndRender(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newExecutor(t)
	dir := t.TempDir()

	still := filepath.Join(dir, "still.png")
	generate(t, e, still, "-f", "lavfi", "-i", "color=c=red:s=321x241", "-frames:v", "1")

	clip := filepath.Join(dir, "clip.mp4")
	generate(t, e, clip, "-f", "lavfi", "-i", "testsrc=size=640x360:rate=30", "-t", "3", "-pix_fmt", "yuv420p")

	song := filepath.Join(dir, "song.m4a")
	generate(t, e, song, "-f", "lavfi", "-i", "sine=frequency=440", "-t", "10", "-c:a", "aac")

	ctx := context.Background()

	stillInfo, err := e.Probe(ctx, still)
	require.NoError(t, err)
	assert.Equal(t, 321, stillInfo.Width)
	assert.Equal(t, 241, stillInfo.Height)

	seconds, err := e.ProbeDuration(ctx, clip)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, seconds, 0.1)

	songInfo, err := e.Probe(ctx, song)
	require.NoError(t, err)
	assert.True(t, songInfo.HasAudio)

	out := filepath.Join(dir, "out.mp4")
	var updates int
	opts := ffmpeg.RenderOptions{
		Segments: []ffmpeg.Segment{
			{Path: still, Still: true, Duration: 1.5},
			{Path: clip, Start: 0.5, Duration: 2},
		},
		Canvas:        ffmpeg.CanvasFor([][2]int{{321, 241}, {640, 360}}),
		FPS:           24,
		Audio:         &ffmpeg.AudioSegment{Path: song, Duration: 3.5},
		Output:        out,
		Preset:        "ultrafast",
		TotalDuration: 3.5,
		ProgressFunc:  func(*ffmpeg.Progress) { updates++ },
	}
	require.NoError(t, e.Render(ctx, opts))

	info, err := e.Probe(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 360, info.Height)
	assert.True(t, info.HasAudio)
	assert.LessOrEqual(t, math.Abs(info.Duration.Seconds()-3.5), 1.0/24+0.05)
	assert.Positive(t, updates)
}

func TestIntegrationRenderWithoutAudio(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newExecutor(t)
	dir := t.TempDir()

	still := filepath.Join(dir, "a.png")
	generate(t, e, still, "-f", "lavfi", "-i", "color=c=blue:s=200x300", "-frames:v", "1")

	out := filepath.Join(dir, "silent.mp4")
	err := e.Render(context.Background(), ffmpeg.RenderOptions{
		Segments: []ffmpeg.Segment{{Path: still, Still: true, Duration: 2}},
		Canvas:   ffmpeg.CanvasFor([][2]int{{200, 300}}),
		FPS:      24,
		Output:   out,
		Preset:   "ultrafast",
	})
	require.NoError(t, err)

	info, err := e.Probe(context.Background(), out)
	require.NoError(t, err)
	assert.False(t, info.HasAudio)
	assert.InDelta(t, 2.0, info.Duration.Seconds(), 1.0/24+0.05)
}

func TestIntegrationRenderFailureReportsStderr(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newExecutor(t)

	err := e.Render(context.Background(), ffmpeg.RenderOptions{
		Segments: []ffmpeg.Segment{{Path: filepath.Join(t.TempDir(), "missing.mp4"), Duration: 1}},
		Canvas:   ffmpeg.Canvas{Width: 64, Height: 64},
		FPS:      24,
		Output:   filepath.Join(t.TempDir(), "out.mp4"),
	})
	require.Error(t, err)

	var exitErr *ffmpeg.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.NotEmpty(t, exitErr.Tail)
}

func TestIntegrationProbeRejectsGarbage(t *testing.T) {
	skipIfNoFFmpeg(t)
	e := newExecutor(t)

	_, err := e.Probe(context.Background(), filepath.Join(t.TempDir(), "nothing.mp4"))
	assert.Error(t, err)
}
