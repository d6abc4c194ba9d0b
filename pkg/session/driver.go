package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/bft-labs/simreplay/pkg/log"
	"github.com/bft-labs/simreplay/pkg/logfile"
)

// Simulation is the collaborator a session drives. Step advances it by one
// tick.
type Simulation interface {
	Step() error
}

// Sink receives recorded frames. *logfile.Writer implements it.
type Sink interface {
	Schema() *logfile.Schema
	WriteField(name string, value interface{}) error
	CommitFrame() error
	Close() error
}

// Source yields recorded frames. *logfile.Reader implements it.
type Source interface {
	Schema() *logfile.Schema
	HasNext() bool
	ReadFrame() (*logfile.Frame, error)
	Close() error
}

// Options configures a Recorder or Replayer.
type Options struct {
	Logger log.Logger

	// Profile logs per-step timing statistics when the session finishes.
	Profile bool

	// Clock times steps and the Limits.Duration budget. Defaults to the
	// wall clock.
	Clock clock.Clock

	// OnStep is called after every completed step with the frame index and
	// the time the step took.
	OnStep func(frame uint64, d time.Duration)

	// OnStateChange is called after every state transition.
	OnStateChange func(from, to State, reason string)
}

// Limits bounds Run. Zero values mean no limit.
type Limits struct {
	MaxFrames uint64
	Duration  time.Duration
}

// driver holds what Recorder and Replayer share.
type driver struct {
	machine
	sim      Simulation
	channels []Channel
	clock    clock.Clock
	opts     Options
	frames   uint64
	prof     profile
}

func newDriver(sim Simulation, channels []Channel, opts Options, initial State, component string) (driver, error) {
	if sim == nil {
		return driver{}, errors.New("session: nil simulation")
	}
	if len(channels) == 0 {
		return driver{}, fmt.Errorf("%w: session has no channels", logfile.ErrSchema)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return driver{
		machine: machine{
			state:    initial,
			logger:   log.OrNoop(opts.Logger).With(log.String("component", component)),
			onChange: opts.OnStateChange,
		},
		sim:      sim,
		channels: channels,
		clock:    clk,
		opts:     opts,
	}, nil
}

// State returns the current state.
func (d *driver) State() State { return d.state }

// Frames returns the number of completed steps.
func (d *driver) Frames() uint64 { return d.frames }

func (d *driver) stepDone(start time.Time) {
	elapsed := d.clock.Since(start)
	if d.opts.Profile {
		d.prof.add(elapsed)
	}
	if d.opts.OnStep != nil {
		d.opts.OnStep(d.frames, elapsed)
	}
	d.frames++
}

// abort closes the log, moves to Aborted and returns cause wrapped in
// ErrAborted.
func (d *driver) abort(cause error, closeLog func() error) error {
	err := fmt.Errorf("%w at frame %d: %w", ErrAborted, d.frames, cause)
	if cerr := closeLog(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	d.logger.Error("session aborted", log.Err(cause), log.FrameIndex(d.frames))
	if terr := d.transitionTo(StateAborted, cause.Error()); terr != nil {
		err = multierr.Append(err, terr)
	}
	return err
}

func (d *driver) logProfile() {
	if !d.opts.Profile {
		return
	}
	d.prof.log(d.logger)
}

// run loops step until it reports false, a limit is reached or ctx ends,
// then calls finish.
func (d *driver) run(ctx context.Context, lim Limits, step func(context.Context) (bool, error), finish func() error) (err error) {
	defer func() {
		err = multierr.Append(err, finish())
	}()

	var deadline time.Time
	if lim.Duration > 0 {
		deadline = d.clock.Now().Add(lim.Duration)
	}
	for {
		if lim.MaxFrames > 0 && d.frames >= lim.MaxFrames {
			d.logger.Debug("frame limit reached", log.Uint64("frames", d.frames))
			return nil
		}
		if !deadline.IsZero() && !d.clock.Now().Before(deadline) {
			d.logger.Debug("duration limit reached", log.Duration("duration", lim.Duration))
			return nil
		}
		more, err := step(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (d *driver) checkStep(ctx context.Context, want State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.state != want {
		return fmt.Errorf("%w: cannot step in state %s", ErrInvalidTransition, d.state)
	}
	return nil
}

// Recorder captures the simulation into a Sink once per step.
type Recorder struct {
	driver
	sink Sink
}

// NewRecorder checks that sink was created with the schema of channels and
// returns a Recorder in state Recording.
func NewRecorder(sim Simulation, channels []Channel, sink Sink, opts Options) (*Recorder, error) {
	d, err := newDriver(sim, channels, opts, StateRecording, "session.recorder")
	if err != nil {
		return nil, err
	}
	want, err := SchemaFor(channels)
	if err != nil {
		return nil, err
	}
	if !want.Equal(sink.Schema()) {
		return nil, fmt.Errorf("%w: sink schema does not match channels", logfile.ErrSchema)
	}
	for _, ch := range channels {
		if ch.Capture == nil {
			return nil, fmt.Errorf("%w: channel %q cannot be captured", logfile.ErrSchema, ch.Field.Name)
		}
	}
	return &Recorder{driver: d, sink: sink}, nil
}

// Step records the current simulation state as the next frame and then
// advances the simulation. It always reports true while recording.
func (r *Recorder) Step(ctx context.Context) (bool, error) {
	if err := r.checkStep(ctx, StateRecording); err != nil {
		return false, err
	}
	start := r.clock.Now()

	for _, ch := range r.channels {
		v, err := ch.Capture()
		if err != nil {
			return false, r.abort(fmt.Errorf("capture %q: %w", ch.Field.Name, err), r.sink.Close)
		}
		if err := r.sink.WriteField(ch.Field.Name, v); err != nil {
			return false, r.abort(err, r.sink.Close)
		}
	}
	if err := r.sink.CommitFrame(); err != nil {
		return false, r.abort(err, r.sink.Close)
	}
	if err := r.sim.Step(); err != nil {
		return false, r.abort(fmt.Errorf("step simulation: %w", err), r.sink.Close)
	}

	r.stepDone(start)
	return true, nil
}

// Run records until ctx is done or a limit is reached and always finishes
// the session. Cancellation of ctx is returned as its error after the log
// has been finalized.
func (r *Recorder) Run(ctx context.Context, lim Limits) error {
	return r.run(ctx, lim, r.Step, r.Finish)
}

// Finish closes the sink and moves to Finalized. If closing fails the
// session is Aborted instead. Calls after the first are no-ops.
func (r *Recorder) Finish() error {
	if r.state != StateRecording {
		return nil
	}
	if err := r.sink.Close(); err != nil {
		r.logger.Error("closing log failed", log.Err(err))
		return multierr.Append(err, r.transitionTo(StateAborted, "close failed"))
	}
	r.logProfile()
	return r.transitionTo(StateFinalized, fmt.Sprintf("%d frames recorded", r.frames))
}

// Replayer restores recorded frames into the simulation, one per step.
type Replayer struct {
	driver
	src    Source
	closed bool
}

// NewReplayer checks that every channel field is present in the source
// schema with the same declaration and returns a Replayer in state
// Replaying. Recorded fields without a channel are skipped.
func NewReplayer(sim Simulation, channels []Channel, src Source, opts Options) (*Replayer, error) {
	d, err := newDriver(sim, channels, opts, StateReplaying, "session.replayer")
	if err != nil {
		return nil, err
	}
	schema := src.Schema()
	for _, ch := range channels {
		if ch.Restore == nil {
			return nil, fmt.Errorf("%w: channel %q cannot be restored", logfile.ErrSchema, ch.Field.Name)
		}
		f, _, ok := schema.Lookup(ch.Field.Name)
		if !ok {
			return nil, fmt.Errorf("%w: field %q is not in the log", logfile.ErrSchema, ch.Field.Name)
		}
		if !f.Equal(ch.Field) {
			return nil, fmt.Errorf("%w: log declares %s, channel expects %s", logfile.ErrSchema, f, ch.Field)
		}
	}
	if skipped := schema.Len() - len(channels); skipped > 0 {
		d.logger.Warn("recorded fields without a channel are ignored", log.Int("fields", skipped))
	}
	return &Replayer{driver: d, src: src}, nil
}

// Step restores the next recorded frame and then advances the simulation.
// When the log is exhausted it moves to Exhausted and reports false without
// stepping.
func (r *Replayer) Step(ctx context.Context) (bool, error) {
	if err := r.checkStep(ctx, StateReplaying); err != nil {
		return false, err
	}
	if !r.src.HasNext() {
		if err := r.transitionTo(StateExhausted, fmt.Sprintf("%d frames replayed", r.frames)); err != nil {
			return false, err
		}
		r.logProfile()
		return false, nil
	}
	start := r.clock.Now()

	frame, err := r.src.ReadFrame()
	if err != nil {
		return false, r.abort(err, r.closeSource)
	}
	for _, ch := range r.channels {
		v, err := frame.Get(ch.Field.Name)
		if err != nil {
			return false, r.abort(err, r.closeSource)
		}
		if err := ch.Restore(v); err != nil {
			return false, r.abort(fmt.Errorf("restore %q: %w", ch.Field.Name, err), r.closeSource)
		}
	}
	if err := r.sim.Step(); err != nil {
		return false, r.abort(fmt.Errorf("step simulation: %w", err), r.closeSource)
	}

	r.stepDone(start)
	return true, nil
}

// Run replays until the log is exhausted, a limit is reached or ctx is
// done, and always finishes the session.
func (r *Replayer) Run(ctx context.Context, lim Limits) error {
	return r.run(ctx, lim, r.Step, r.Finish)
}

// Finish closes the source. A replay stopped before the end of the log is
// also moved to Exhausted. The source is closed only once.
func (r *Replayer) Finish() error {
	if r.state == StateAborted {
		return nil
	}
	if r.state == StateReplaying {
		r.logProfile()
		if err := r.transitionTo(StateExhausted, "stopped before end of log"); err != nil {
			return err
		}
	}
	return r.closeSource()
}

func (r *Replayer) closeSource() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.src.Close()
}
