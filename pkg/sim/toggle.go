package sim

import (
	"github.com/golang/geo/r3"
	"github.com/vmihailenco/msgpack/v4"
)

const (
	// ToggleDistanceThreshold is how close a hand must be to a toggle
	// button to press it.
	ToggleDistanceThreshold = 0.1

	// CanToggleSteps is how many consecutive steps a hand must stay on the
	// button before the toggle flips.
	CanToggleSteps = 5
)

// ToggledOn is the on/off state of an object with a toggle button.
type ToggledOn struct {
	// Link is the button position relative to the object.
	Link r3.Vector

	value bool
	steps int
}

// NewToggledOn returns an off toggle whose button sits at link.
func NewToggledOn(link r3.Vector) *ToggledOn {
	return &ToggledOn{Link: link}
}

// Value reports whether the toggle is on.
func (t *ToggledOn) Value() bool { return t.value }

// SetValue forces the toggle state.
func (t *ToggledOn) SetValue(v bool) { t.value = v }

// Steps returns how many consecutive steps a hand has been on the button.
func (t *ToggledOn) Steps() int { return t.steps }

// Update advances the toggle given the world position of its button and of
// every hand. The value flips once, on the step the count reaches
// CanToggleSteps; a hand must leave and come back to flip it again.
func (t *ToggledOn) Update(button r3.Vector, hands []r3.Vector) {
	touching := false
	for _, h := range hands {
		if h.Distance(button) < ToggleDistanceThreshold {
			touching = true
			break
		}
	}
	if touching {
		t.steps++
	} else {
		t.steps = 0
	}
	if t.steps == CanToggleSteps {
		t.value = !t.value
	}
}

const toggleStateVersion = 1

type toggleState struct {
	Version int  `msgpack:"v"`
	Value   bool `msgpack:"value"`
	Steps   int  `msgpack:"hand_in_marker_steps"`
}

// DumpState encodes the value and the step count.
func (t *ToggledOn) DumpState() ([]byte, error) {
	return msgpack.Marshal(&toggleState{Version: toggleStateVersion, Value: t.value, Steps: t.steps})
}

// LoadState restores a DumpState blob.
func (t *ToggledOn) LoadState(b []byte) error {
	var st toggleState
	if err := decodeState("toggle", b, &st, &st.Version, toggleStateVersion); err != nil {
		return err
	}
	if st.Steps < 0 {
		return stateErrorf("toggle: negative step count %d", st.Steps)
	}
	t.value, t.steps = st.Value, st.Steps
	return nil
}
