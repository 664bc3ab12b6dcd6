package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/keagan/instavideo/pkg/util"
	"github.com/rs/zerolog"
)

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// Options selects the binaries and encoder threading. Empty paths fall back
// to PATH lookup.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
}

// ExitError reports a failed ffmpeg run together with the tail of its stderr.
type ExitError struct {
	Tail []string
	Err  error
}

func (e *ExitError) Error() string {
	if len(e.Tail) == 0 {
		return fmt.Sprintf("ffmpeg execution failed: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg execution failed: %v: %s", e.Err, strings.Join(e.Tail, " | "))
}

func (e *ExitError) Unwrap() error { return e.Err }

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	ffmpegBin := strings.TrimSpace(opts.FFmpegPath)
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	ffmpegPath, err := exec.LookPath(ffmpegBin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found (%s): %w", ffmpegBin, err)
	}

	ffprobeBin := ResolveProbePath(opts.FFprobePath, ffmpegPath)
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	ffprobePath, err := exec.LookPath(ffprobeBin)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found (%s): %w", ffprobeBin, err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
	}, nil
}

// ResolveProbePath picks the ffprobe binary: an explicit path wins, then a
// sibling of an absolute ffmpeg path, else "" so the caller uses PATH.
func ResolveProbePath(ffprobeBin, ffmpegBin string) string {
	if p := strings.TrimSpace(ffprobeBin); p != "" {
		return p
	}

	ffmpegBin = strings.TrimSpace(ffmpegBin)
	if !filepath.IsAbs(ffmpegBin) {
		return ""
	}
	base := filepath.Base(ffmpegBin)
	if strings.TrimSuffix(base, filepath.Ext(base)) != "ffmpeg" {
		return ""
	}

	candidate := filepath.Join(filepath.Dir(ffmpegBin), strings.Replace(base, "ffmpeg", "ffprobe", 1))
	if util.FileExists(candidate) {
		return candidate
	}
	return ""
}

// Run executes ffmpeg with the given arguments. Progress blocks arrive on
// stdout, log lines on stderr; the last stderr lines are kept for errors.
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	baseArgs := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "info"}
	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", strconv.Itoa(e.threads))
	}
	baseArgs = append(baseArgs, "-progress", "pipe:1", "-nostats")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := NewLineRing(stderrTail)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			tail.Add(line)
			if opts.LogHandler != nil {
				opts.LogHandler(line)
			}
		}
	}()

	go func() {
		defer wg.Done()
		parseProgress(stdout, opts.ProgressHandler)
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ExitError{Tail: tail.Lines(), Err: err}
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// parseProgress reads "-progress" key=value blocks and emits one Progress
// per block.
func parseProgress(r io.Reader, handler ProgressFunc) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "frame":
			progressData.Frame, _ = strconv.Atoi(value)
		case "fps":
			progressData.FPS, _ = strconv.ParseFloat(value, 64)
		case "bitrate":
			progressData.Bitrate = value
		case "out_time":
			if d, err := util.ParseTimestamp(value); err == nil && d >= 0 {
				progressData.OutTime = d
			}
		case "speed":
			progressData.Speed = value
		case "progress":
			if handler != nil && progressData.Frame > 0 {
				handler(progressData)
			}
			progressData = &Progress{}
		}
	}
}
