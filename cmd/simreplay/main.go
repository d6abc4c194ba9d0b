package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/simreplay/internal/app"
	"github.com/bft-labs/simreplay/internal/cliconfig"
	"github.com/bft-labs/simreplay/pkg/log"
)

const longHelp = `
Record a VR simulation session to a log file, or replay one.

In save mode every step captures the agent, object poses, VR events and
(optionally) the full world state before the simulation advances. Frames
are buffered and appended every --flush-every frames; the log is finalized
on exit, including on Ctrl-C.

In replay mode the recorded frames are restored one per step, in order,
until the log is exhausted. With --wait, replay blocks until a log being
recorded by another process is finalized.

Configuration is read from $HOME/.simreplay/config.toml, then SIMREPLAY_*
environment variables, then flags.
`

var exampleUsage = strings.TrimSpace(`
  simreplay --mode save --duration 1m --log-path vr_logs/demo.srlog
  simreplay --mode replay --log-path vr_logs/demo.srlog --profile
  simreplay inspect vr_logs/demo.srlog --frames 3
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:          "simreplay",
		Short:        "Record and replay VR simulation sessions",
		Long:         strings.TrimSpace(longHelp),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file but not explicit flags
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger = logger.Level(cfg.Level())
			logger.Info().Interface("config", cfg).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := app.Run(ctx, cfg, log.NewZerologAdapterWithLogger(logger))
			if err != nil {
				return err
			}
			logger.Info().
				Str("session", res.SessionID).
				Uint64("frames", res.Frames).
				Str("state", res.State.String()).
				Msg("done")
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.simreplay/config.toml)")
	root.Flags().StringVar(&cfg.Mode, "mode", cfg.Mode, "save or replay")
	root.Flags().StringVar(&cfg.LogPath, "log-path", cfg.LogPath, "session log file")

	root.Flags().IntVar(&cfg.FlushEvery, "flush-every", cfg.FlushEvery, "frames buffered before each disk write")
	root.Flags().BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "replace an existing log instead of failing")
	root.Flags().BoolVar(&cfg.Sync, "sync", cfg.Sync, "fsync after every flush")
	root.Flags().DurationVar(&cfg.Duration, "duration", cfg.Duration, "recording length (0 records until interrupted)")
	root.Flags().BoolVar(&cfg.FullState, "full-state", cfg.FullState, "also record a full world state blob per frame")
	root.Flags().StringVar(&cfg.Compression, "compression", cfg.Compression, "blob codec: none or zstd")
	root.Flags().Var(cliconfig.ByteSizeValue(&cfg.MaxBlobSize), "max-blob-size", "largest state blob accepted per frame")
	root.Flags().Var(cliconfig.ByteSizeValue(&cfg.DirLimit), "dir-limit", "prune old finalized logs in the log directory above this size (0 disables)")

	root.Flags().BoolVar(&cfg.Wait, "wait", cfg.Wait, "replay: wait for the log to be finalized")
	root.Flags().DurationVar(&cfg.WaitTimeout, "wait-timeout", cfg.WaitTimeout, "replay: how long --wait may block")

	root.Flags().IntVar(&cfg.MaxFrames, "max-frames", cfg.MaxFrames, "stop after this many frames (0 for no limit)")
	root.Flags().BoolVar(&cfg.Profile, "profile", cfg.Profile, "log per-step timing when the session ends")
	root.Flags().StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "write Prometheus metrics to this file on exit")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	root.AddCommand(newInspectCmd(&logger))

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("simreplay")
		os.Exit(1)
	}
}
