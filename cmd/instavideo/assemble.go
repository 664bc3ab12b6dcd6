package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/keagan/instavideo/internal/assembly"
	"github.com/keagan/instavideo/internal/config"
	"github.com/keagan/instavideo/internal/ffmpeg"
	"github.com/keagan/instavideo/internal/logging"
	"github.com/keagan/instavideo/internal/metrics"
	"github.com/keagan/instavideo/internal/randx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// assembleFlags mirror config.AssemblyConfig; only flags the user set
// override the loaded config.
type assembleFlags struct {
	profile         string
	output          string
	fps             int
	audio           string
	noAudio         bool
	shuffle         bool
	seed            uint64
	skipImages      bool
	skipVideos      bool
	bestEffortAudio bool
	metricsTextfile string
}

func (f *assembleFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.fps, "fps", 0, "output frame rate (default from config)")
	fs.StringVar(&f.audio, "audio", "", "background audio file")
	fs.BoolVar(&f.noAudio, "no-audio", false, "render without audio")
	fs.BoolVar(&f.shuffle, "shuffle", false, "shuffle clip order")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed for durations and shuffle (0 = random)")
	fs.BoolVar(&f.skipImages, "skip-images", false, "ignore images")
	fs.BoolVar(&f.skipVideos, "skip-videos", false, "ignore videos")
	fs.BoolVar(&f.bestEffortAudio, "best-effort-audio", false, "render silently if the audio cannot be loaded")
	fs.StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
}

// resolve merges the config defaults with the flags the user changed.
func (f *assembleFlags) resolve(cmd *cobra.Command, cfg *config.Config) (assembly.RunOptions, uint64) {
	a := cfg.Assembly
	fs := cmd.Flags()

	opts := assembly.RunOptions{
		Options: assembly.Options{
			FrameRate:       a.FrameRate,
			AudioEnabled:    a.AudioEnabled,
			AudioPath:       a.AudioPath,
			Shuffle:         a.Shuffle,
			BestEffortAudio: a.BestEffortAudio,
		},
		SkipImages: a.SkipImages,
		SkipVideos: a.SkipVideos,
	}
	seed := a.Seed

	if fs.Changed("fps") {
		opts.FrameRate = f.fps
	}
	if fs.Changed("audio") {
		opts.AudioPath = f.audio
		opts.AudioEnabled = true
	}
	if f.noAudio {
		opts.AudioEnabled = false
	}
	if fs.Changed("shuffle") {
		opts.Shuffle = f.shuffle
	}
	if fs.Changed("seed") {
		seed = f.seed
	}
	if fs.Changed("skip-images") {
		opts.SkipImages = f.skipImages
	}
	if fs.Changed("skip-videos") {
		opts.SkipVideos = f.skipVideos
	}
	if fs.Changed("best-effort-audio") {
		opts.BestEffortAudio = f.bestEffortAudio
	}
	return opts, seed
}

func (f *assembleFlags) textfile(cfg *config.Config) string {
	if f.metricsTextfile != "" {
		return f.metricsTextfile
	}
	return cfg.Metrics.Textfile
}

func newExecutor(cfg *config.Config) (*ffmpeg.Executor, error) {
	return ffmpeg.New(logging.WithComponent("ffmpeg"), ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})
}

func newAssembler(cfg *config.Config, exec *ffmpeg.Executor, m *metrics.Metrics, logger zerolog.Logger, seed uint64) (*assembly.Assembler, error) {
	src := randx.NewUnseeded()
	if seed != 0 {
		src = randx.New(seed)
	}

	return assembly.New(assembly.Deps{
		Prober:   exec,
		Renderer: exec,
		Rand:     src,
		Encoding: assembly.Encoding{
			CRF:    cfg.FFmpeg.CRF,
			Preset: cfg.FFmpeg.Preset,
		},
		Sink:     logging.NewSink(logger),
		Observer: logObserver{logger: logger},
		Metrics:  m,
	})
}

// logObserver reports job events through zerolog. It holds no state, so
// batch jobs can share the type safely.
type logObserver struct {
	logger zerolog.Logger
}

func (o logObserver) OnStateChange(job *assembly.Job, from, to assembly.State) {
	o.logger.Debug().
		Str("job_id", job.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("state changed")
}

func (o logObserver) OnProgress(job *assembly.Job, p *ffmpeg.Progress) {
	o.logger.Debug().
		Str("job_id", job.ID).
		Float64("percent", p.Percentage).
		Dur("out_time", p.OutTime).
		Str("speed", p.Speed).
		Msg("rendering")
}

var assembleOpts assembleFlags

var assembleCmd = &cobra.Command{
	Use:   "assemble [dir]",
	Short: "Assemble one directory into a video",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		dir, err := profileDir(cfg, args, assembleOpts.profile)
		if err != nil {
			return err
		}
		opts, seed := assembleOpts.resolve(cmd, cfg)

		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}
		m := metrics.New()
		defer writeMetrics(m, assembleOpts.textfile(cfg))

		logger := logging.WithComponent("assembly")
		a, err := newAssembler(cfg, exec, m, logger, seed)
		if err != nil {
			return err
		}

		job, err := a.Run(cmd.Context(), dir, assembleOpts.output, opts)
		if err != nil {
			return err
		}
		log.Info().
			Str("output", job.Output).
			Int("clips", job.Clips.Len()).
			Float64("seconds", job.Duration).
			Bool("audio", job.Audio != nil).
			Msg("video assembled")
		return nil
	},
}

var (
	batchOpts      assembleFlags
	batchOutputDir string
	batchJobs      int
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>...",
	Short: "Assemble several directories concurrently, one video each",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		opts, seed := batchOpts.resolve(cmd, cfg)

		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}
		m := metrics.New()
		defer writeMetrics(m, batchOpts.textfile(cfg))

		limit := batchJobs
		if limit <= 0 {
			limit = cfg.Concurrency
		}
		if limit <= 0 {
			limit = 1
		}

		var (
			mu       sync.Mutex
			failures []error
			g        errgroup.Group
		)
		g.SetLimit(limit)

		outputs := outputPaths(batchOutputDir, args)
		for i, dir := range args {
			output := outputs[i]
			jobSeed := seed
			if seed != 0 {
				jobSeed = seed + uint64(i)
			}

			g.Go(func() error {
				logger := logging.WithComponent("assembly").With().Str("source", dir).Logger()
				a, err := newAssembler(cfg, exec, m, logger, jobSeed)
				if err == nil {
					_, err = a.Run(cmd.Context(), dir, output, opts)
				}
				if err != nil {
					mu.Lock()
					failures = append(failures, fmt.Errorf("%s: %w", dir, err))
					mu.Unlock()
					return nil
				}
				logger.Info().Str("output", output).Msg("video assembled")
				return nil
			})
		}
		_ = g.Wait()

		if len(failures) > 0 {
			return fmt.Errorf("%d of %d jobs failed: %w", len(failures), len(args), errors.Join(failures...))
		}
		return nil
	},
}

// outputName derives the file stem from the directory's base name.
func outputName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) || strings.TrimSpace(base) == "" {
		base = "output"
	}
	return base
}

// outputPaths assigns every source its own file in outDir. Sources sharing
// a base name get numbered: media.mp4, media-2.mp4, media-3.mp4.
func outputPaths(outDir string, dirs []string) []string {
	taken := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		stem := outputName(dir)
		name := stem + ".mp4"
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s-%d.mp4", stem, n)
		}
		taken[name] = true
		out = append(out, filepath.Join(outDir, name))
	}
	return out
}

func writeMetrics(m *metrics.Metrics, path string) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write metrics textfile")
	}
}

func init() {
	assembleOpts.register(assembleCmd)
	assembleCmd.Flags().StringVar(&assembleOpts.profile, "profile", "", "profile name under work_dir")
	assembleCmd.Flags().StringVarP(&assembleOpts.output, "output", "o", "", "output video file")
	_ = assembleCmd.MarkFlagRequired("output")

	batchOpts.register(batchCmd)
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "", "directory receiving one video per source")
	batchCmd.Flags().IntVarP(&batchJobs, "jobs", "j", 0, "concurrent jobs (default: config concurrency)")
	_ = batchCmd.MarkFlagRequired("output-dir")
}
