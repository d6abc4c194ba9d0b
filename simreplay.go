// Package simreplay records a VR simulation session to a log file and
// replays it step by step.
//
// Example usage:
//
//	cfg := simreplay.DefaultConfig()
//	cfg.Mode = "save"
//	cfg.LogPath = "vr_logs/demo.srlog"
//	cfg.Duration = time.Minute
//	if _, err := simreplay.Run(ctx, cfg, nil); err != nil {
//	    log.Fatal(err)
//	}
//
// Embedders with their own simulation use pkg/logfile and pkg/session
// directly.
package simreplay

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bft-labs/simreplay/internal/app"
	"github.com/bft-labs/simreplay/internal/cliconfig"
	"github.com/bft-labs/simreplay/pkg/log"
)

// Config holds the configuration of a save or replay run.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Result summarizes a finished run.
type Result = app.Result

// Modes accepted by Config.Mode.
const (
	ModeSave   = cliconfig.ModeSave
	ModeReplay = cliconfig.ModeReplay
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Run records or replays the demo world according to cfg. It blocks until
// the session ends or ctx is cancelled; cancellation still finalizes the
// log. A nil logger discards output.
func Run(ctx context.Context, cfg Config, logger log.Logger) (Result, error) {
	return app.Run(ctx, cfg, logger)
}

// Logger returns the package-level zerolog logger used by the CLI.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}
