package sim

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/bft-labs/simreplay/pkg/log"
)

// DefaultTimeStep is one frame at 90 Hz, the headset refresh rate.
const DefaultTimeStep = 1.0 / 90

// Config configures a World.
type Config struct {
	// UseVR polls Device every step and lets its input drive the agent and
	// events. Replay runs without it since the log supplies that state.
	UseVR  bool
	Device Device

	// HideTarget names the object whose hidden state the right touchpad
	// toggles.
	HideTarget string

	// TimeStep is the simulated seconds per step. Zero means
	// DefaultTimeStep.
	TimeStep float64

	Logger log.Logger
}

// World is the simulated scene.
type World struct {
	cfg     Config
	logger  log.Logger
	objects []*Object
	byName  map[string]*Object
	agent   *VrAgent
	tick    uint64
	events  map[Event]bool
}

// NewWorld builds a world from objects. Object names must be unique.
func NewWorld(cfg Config, objects ...*Object) (*World, error) {
	if cfg.TimeStep <= 0 {
		cfg.TimeStep = DefaultTimeStep
	}
	w := &World{
		cfg:    cfg,
		logger: log.OrNoop(cfg.Logger).With(log.String("component", "sim")),
		byName: make(map[string]*Object, len(objects)),
		agent:  NewVrAgent(cfg.UseVR),
		events: make(map[Event]bool),
	}
	for _, o := range objects {
		if _, dup := w.byName[o.Name]; dup {
			return nil, fmt.Errorf("duplicate object %q", o.Name)
		}
		w.byName[o.Name] = o
		w.objects = append(w.objects, o)
	}
	if cfg.HideTarget != "" && w.byName[cfg.HideTarget] == nil {
		return nil, fmt.Errorf("hide target %q is not in the scene", cfg.HideTarget)
	}
	return w, nil
}

// Demo scene layout.
var (
	mustardMasses = []float64{5, 10, 100, 500}
	mustardStart  = r3.Vector{X: -1, Y: 1.55, Z: 1.2}
	lampPosition  = r3.Vector{X: 0.6, Z: 0.8}
	lampButton    = r3.Vector{Z: 0.2}
)

// DemoHideTarget is the object the demo scene's touchpad hides.
const DemoHideTarget = "mustard_3"

// NewDemoWorld builds the demo scene: four mustard bottles of increasing
// mass in a row and a lamp with a toggle button within reach of the right
// hand. With cfg.UseVR and no Device, a ScriptedDevice reaching for the
// lamp button is used.
func NewDemoWorld(cfg Config) (*World, error) {
	var objects []*Object
	for i, m := range mustardMasses {
		pos := mustardStart.Add(r3.Vector{X: float64(i) * 0.2})
		objects = append(objects, NewObject(fmt.Sprintf("mustard_%d", i), m, pos))
	}
	lamp := NewObject("lamp", 2, lampPosition)
	lamp.Toggle = NewToggledOn(lampButton)
	objects = append(objects, lamp)

	if cfg.HideTarget == "" {
		cfg.HideTarget = DemoHideTarget
	}
	if cfg.UseVR && cfg.Device == nil {
		cfg.Device = &ScriptedDevice{
			Reach:      lampPosition.Add(lampButton),
			Period:     20,
			PressEvery: 45,
		}
	}
	return NewWorld(cfg, objects...)
}

// Step advances the world by one tick: poll the device, apply touchpad
// presses, move the agent, then move objects and update toggles.
func (w *World) Step() error {
	w.tick++

	if w.cfg.UseVR && w.cfg.Device != nil {
		in := w.cfg.Device.Poll(w.tick)
		for _, e := range RecordedEvents {
			w.events[e] = in.Has(e.Device, e.Kind)
		}
		if in.Has(RightController, TouchpadPress) {
			if o := w.byName[w.cfg.HideTarget]; o != nil {
				o.Hidden = !o.Hidden
				w.logger.Debug("touchpad toggled hidden state",
					log.String("object", o.Name),
					log.Bool("hidden", o.Hidden),
					log.Uint64("tick", w.tick),
				)
			}
		}
		w.agent.Update(in)
	}

	hands := w.agent.HandPositions()
	for _, o := range w.objects {
		was := o.Toggle != nil && o.Toggle.Value()
		o.step(w.cfg.TimeStep, hands)
		if o.Toggle != nil && o.Toggle.Value() != was {
			w.logger.Debug("toggle flipped",
				log.String("object", o.Name),
				log.Bool("on", o.Toggle.Value()),
				log.Uint64("tick", w.tick),
			)
		}
	}
	return nil
}

// Tick returns the number of steps taken.
func (w *World) Tick() uint64 { return w.tick }

// Agent returns the VR agent.
func (w *World) Agent() *VrAgent { return w.agent }

// Objects returns the objects in scene order.
func (w *World) Objects() []*Object { return append([]*Object(nil), w.objects...) }

// Object returns the named object or nil.
func (w *World) Object(name string) *Object { return w.byName[name] }

// QueryEvent reports whether the event occurred on the last step.
func (w *World) QueryEvent(device, kind string) bool {
	return w.events[Event{Device: device, Kind: kind}]
}

// SetEvent overrides an event flag.
func (w *World) SetEvent(device, kind string, v bool) {
	w.events[Event{Device: device, Kind: kind}] = v
}

const worldStateVersion = 1

type worldState struct {
	Version int      `msgpack:"v"`
	Tick    uint64   `msgpack:"tick"`
	Agent   []byte   `msgpack:"agent"`
	Objects [][]byte `msgpack:"objects"`
	Events  []bool   `msgpack:"events"`
}

// DumpState encodes the whole world. Each entity contributes its own
// versioned blob.
func (w *World) DumpState() ([]byte, error) {
	st := worldState{Version: worldStateVersion, Tick: w.tick}
	var err error
	if st.Agent, err = w.agent.DumpState(); err != nil {
		return nil, err
	}
	for _, o := range w.objects {
		b, err := o.DumpState()
		if err != nil {
			return nil, err
		}
		st.Objects = append(st.Objects, b)
	}
	for _, e := range RecordedEvents {
		st.Events = append(st.Events, w.events[e])
	}
	return msgpack.Marshal(&st)
}

// LoadState restores a DumpState blob taken from a world with the same
// objects. The world is left unchanged if the blob is rejected.
func (w *World) LoadState(b []byte) error {
	var st worldState
	if err := decodeState("world", b, &st, &st.Version, worldStateVersion); err != nil {
		return err
	}
	if len(st.Objects) != len(w.objects) {
		return stateErrorf("world: %d objects, want %d", len(st.Objects), len(w.objects))
	}
	if len(st.Events) != len(RecordedEvents) {
		return stateErrorf("world: %d events, want %d", len(st.Events), len(RecordedEvents))
	}

	backup, err := w.DumpState()
	if err != nil {
		return err
	}
	if err := w.loadEntities(st); err != nil {
		// the backup came from this world and always loads
		var prev worldState
		if uerr := msgpack.Unmarshal(backup, &prev); uerr == nil {
			_ = w.loadEntities(prev)
		}
		return err
	}
	w.tick = st.Tick
	for i, e := range RecordedEvents {
		w.events[e] = st.Events[i]
	}
	return nil
}

func (w *World) loadEntities(st worldState) error {
	if err := w.agent.LoadState(st.Agent); err != nil {
		return err
	}
	for i, o := range w.objects {
		if err := o.LoadState(st.Objects[i]); err != nil {
			return err
		}
	}
	return nil
}
