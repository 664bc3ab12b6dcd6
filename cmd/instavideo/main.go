package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/keagan/instavideo/internal/config"
	"github.com/keagan/instavideo/internal/logging"
	"github.com/keagan/instavideo/internal/organize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	jsonLog bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "instavideo",
	Short:         "instavideo - turn a folder of photos and clips into one video",
	Long:          "Collects the images and videos of a profile directory, gives each a randomized on-screen duration, optionally shuffles them, lays a background track underneath and renders a single MP4.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(logging.Options{Verbose: verbose, JSON: jsonLog})

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json", false, "log as JSON instead of console text")

	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
}

// profileDir resolves the source directory from a positional argument or
// the --profile flag, which names a directory under work_dir.
func profileDir(cfg *config.Config, args []string, profile string) (string, error) {
	switch {
	case len(args) > 0 && profile != "":
		return "", fmt.Errorf("give either a directory or --profile, not both")
	case len(args) > 0:
		return args[0], nil
	case profile != "":
		if err := organize.ValidateProfileName(profile); err != nil {
			return "", err
		}
		return filepath.Join(cfg.WorkDir, profile), nil
	default:
		return "", fmt.Errorf("a source directory or --profile is required")
	}
}

var organizeProfile string

var organizeCmd = &cobra.Command{
	Use:   "organize [dir]",
	Short: "Move images and videos into images/ and videos/",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		dir, err := profileDir(cfg, args, organizeProfile)
		if err != nil {
			return err
		}

		sink := logging.NewSink(logging.WithComponent("organize"))
		stats, err := organize.Organize(dir, sink)
		if err != nil {
			return err
		}
		if stats.Failed > 0 {
			return fmt.Errorf("%d files could not be moved", stats.Failed)
		}
		return nil
	},
}

var cleanupProfile string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [dir]",
	Short: "Remove everything except images/ and videos/",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		dir, err := profileDir(cfg, args, cleanupProfile)
		if err != nil {
			return err
		}

		sink := logging.NewSink(logging.WithComponent("organize"))
		stats, err := organize.Cleanup(dir, sink)
		if err != nil {
			return err
		}

		counts, err := organize.Count(dir)
		if err != nil {
			return err
		}
		log.Info().
			Int("removed", len(stats.Removed)).
			Int("skipped", len(stats.Skipped)).
			Int("images", counts.Images).
			Int("videos", counts.Videos).
			Msg("profile cleaned")
		return nil
	},
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	// Loading a broken config must not prevent writing a fresh one.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.Options{Verbose: verbose, JSON: jsonLog})
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	organizeCmd.Flags().StringVar(&organizeProfile, "profile", "", "profile name under work_dir")
	cleanupCmd.Flags().StringVar(&cleanupProfile, "profile", "", "profile name under work_dir")

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
