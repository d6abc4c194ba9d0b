// Package app wires configuration, the simulated world, the log file and the
// session driver into one save or replay run.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/bft-labs/simreplay/internal/cliconfig"
	"github.com/bft-labs/simreplay/internal/metrics"
	"github.com/bft-labs/simreplay/internal/retention"
	"github.com/bft-labs/simreplay/pkg/log"
	"github.com/bft-labs/simreplay/pkg/logfile"
	"github.com/bft-labs/simreplay/pkg/session"
	"github.com/bft-labs/simreplay/pkg/sim"
)

// waitPollInterval backs up fsnotify while waiting for a log to be finalized.
const waitPollInterval = 500 * time.Millisecond

// Result summarizes a finished run.
type Result struct {
	SessionID string
	Frames    uint64
	State     session.State
}

// WorldFactory builds the simulation for a run. useVR is true when saving.
type WorldFactory func(useVR bool, logger log.Logger) (*sim.World, error)

// DemoWorld is the default WorldFactory.
func DemoWorld(useVR bool, logger log.Logger) (*sim.World, error) {
	return sim.NewDemoWorld(sim.Config{UseVR: useVR, Logger: logger})
}

// Runner runs one session.
type Runner struct {
	cfg      cliconfig.Config
	logger   log.Logger
	metrics  *metrics.Metrics
	newWorld WorldFactory

	newRecorder func(session.Simulation, []session.Channel, session.Sink, session.Options) (*session.Recorder, error)
}

// NewRunner validates cfg and returns a Runner using the demo world.
func NewRunner(cfg cliconfig.Config, logger log.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		logger:   log.OrNoop(logger).With(log.String("mode", cfg.Mode)),
		metrics:  metrics.New(cfg.Mode),
		newWorld: DemoWorld,

		newRecorder: session.NewRecorder,
	}, nil
}

// WithWorld replaces the simulation factory.
func (r *Runner) WithWorld(f WorldFactory) *Runner {
	r.newWorld = f
	return r
}

// Metrics returns the run's collectors.
func (r *Runner) Metrics() *metrics.Metrics { return r.metrics }

// Run records or replays according to the configured mode. Cancellation of
// ctx ends the run cleanly: the log is finalized (save) or closed (replay)
// and Run returns nil.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var (
		res Result
		err error
	)
	switch r.cfg.Mode {
	case cliconfig.ModeSave:
		res, err = r.save(ctx)
	case cliconfig.ModeReplay:
		res, err = r.replay(ctx)
	default:
		return res, fmt.Errorf("unknown mode %q", r.cfg.Mode)
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Info("session interrupted", log.Uint64("frames", res.Frames))
		err = nil
	}

	if r.cfg.MetricsTextfile != "" {
		if merr := r.metrics.WriteToTextfile(r.cfg.MetricsTextfile); merr != nil {
			r.logger.Warn("writing metrics textfile failed", log.Err(merr), log.Path(r.cfg.MetricsTextfile))
		}
	}
	return res, err
}

func (r *Runner) save(ctx context.Context) (Result, error) {
	world, err := r.newWorld(true, r.logger)
	if err != nil {
		return Result{}, fmt.Errorf("build world: %w", err)
	}
	channels := world.Channels(r.cfg.FullState)
	schema, err := session.SchemaFor(channels)
	if err != nil {
		return Result{}, err
	}

	if _, err := retention.Prune(ctx, retention.Policy{
		Dir:    filepath.Dir(r.cfg.LogPath),
		Limit:  r.cfg.DirLimit,
		Keep:   r.cfg.LogPath,
		Logger: r.logger,
	}); err != nil {
		r.logger.Warn("pruning log directory failed", log.Err(err))
	}

	w, err := logfile.Create(r.cfg.LogPath, schema, logfile.WriterOptions{
		FlushEvery:   r.cfg.FlushEvery,
		Overwrite:    r.cfg.Overwrite,
		Codec:        r.cfg.Codec(),
		MaxBlobBytes: int(r.cfg.MaxBlobSize.Bytes()),
		Sync:         r.cfg.Sync,
		Logger:       r.logger,
		OnFlush:      r.metrics.ObserveFlush,
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{SessionID: w.Header().SessionID}
	r.metrics.SetSession(res.SessionID)

	rec, err := r.newRecorder(world, channels, w, r.sessionOptions())
	if err != nil {
		// no frame was recorded; leave the path free for the next attempt
		return res, multierr.Append(err, w.Discard())
	}
	r.logger.Info("recording",
		log.Path(r.cfg.LogPath),
		log.String("session", res.SessionID),
		log.Int("fields", schema.Len()),
		log.Duration("duration", r.cfg.Duration),
	)
	err = rec.Run(ctx, r.limits())
	res.Frames, res.State = rec.Frames(), rec.State()
	return res, err
}

func (r *Runner) replay(ctx context.Context) (Result, error) {
	if r.cfg.Wait {
		wctx, cancel := context.WithTimeout(ctx, r.cfg.WaitTimeout)
		err := logfile.WaitFinalized(wctx, r.cfg.LogPath, waitPollInterval, r.logger)
		cancel()
		if err != nil {
			return Result{}, fmt.Errorf("wait for %s: %w", r.cfg.LogPath, err)
		}
	}

	rd, err := logfile.Open(r.cfg.LogPath, logfile.ReaderOptions{Logger: r.logger})
	if err != nil {
		return Result{}, err
	}
	hdr := rd.Header()
	res := Result{SessionID: hdr.SessionID}
	r.metrics.SetSession(hdr.SessionID)

	world, err := r.newWorld(false, r.logger)
	if err != nil {
		return res, multierr.Append(fmt.Errorf("build world: %w", err), rd.Close())
	}
	_, _, fullState := rd.Schema().Lookup(sim.StateField)
	rep, err := session.NewReplayer(world, world.Channels(fullState), rd, r.sessionOptions())
	if err != nil {
		return res, multierr.Append(err, rd.Close())
	}
	r.logger.Info("replaying",
		log.Path(r.cfg.LogPath),
		log.String("session", hdr.SessionID),
		log.Uint64("frames", hdr.FrameCount),
		log.Bool("full_state", fullState),
	)
	err = rep.Run(ctx, r.limits())
	res.Frames, res.State = rep.Frames(), rep.State()
	return res, err
}

func (r *Runner) sessionOptions() session.Options {
	return session.Options{
		Logger:  r.logger,
		Profile: r.cfg.Profile,
		OnStep:  r.metrics.ObserveStep,
	}
}

// limits maps the config to run limits. Replay ignores Duration and runs to
// the end of the log.
func (r *Runner) limits() session.Limits {
	lim := session.Limits{MaxFrames: uint64(r.cfg.MaxFrames)}
	if r.cfg.Mode == cliconfig.ModeSave {
		lim.Duration = r.cfg.Duration
	}
	return lim
}

// Run is a convenience for NewRunner followed by Runner.Run.
func Run(ctx context.Context, cfg cliconfig.Config, logger log.Logger) (Result, error) {
	r, err := NewRunner(cfg, logger)
	if err != nil {
		return Result{}, err
	}
	return r.Run(ctx)
}
