package sim

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Device and event names, as the VR runtime reports them.
const (
	LeftController  = "left_controller"
	RightController = "right_controller"

	TouchpadPress = "touchpad_press"
	TriggerPress  = "trigger_press"
)

// Event is an input event of one VR device.
type Event struct {
	Device string
	Kind   string
}

// RecordedEvents are the events a World exposes as channels.
var RecordedEvents = []Event{
	{Device: RightController, Kind: TouchpadPress},
	{Device: LeftController, Kind: TriggerPress},
}

// DeviceInput is what a Device reports for one tick.
type DeviceInput struct {
	Tracked map[PartKind]Pose
	Events  []Event
}

// Has reports whether the event occurred.
func (in DeviceInput) Has(device, kind string) bool {
	for _, e := range in.Events {
		if e.Device == device && e.Kind == kind {
			return true
		}
	}
	return false
}

// Device is a source of VR tracking and input.
type Device interface {
	Poll(tick uint64) DeviceInput
}

// ScriptedDevice replays a fixed motion pattern: the headset sways, the
// left hand rests and the right hand alternates between resting and
// holding Reach for Period ticks at a time. The right touchpad is pressed
// every PressEvery ticks.
type ScriptedDevice struct {
	Reach      r3.Vector
	Period     uint64
	PressEvery uint64
}

// Poll returns the input for tick.
func (d *ScriptedDevice) Poll(tick uint64) DeviceInput {
	sway := 0.05 * math.Sin(float64(tick)/30)
	bodyPos := r3.Vector{X: sway, Z: 1}
	yaw := quat.Number{Real: math.Cos(sway / 2), Kmag: math.Sin(sway / 2)}

	right := bodyPos.Add(r3.Vector{X: 0.2, Y: -0.3})
	if d.Period > 0 && (tick/d.Period)%2 == 1 {
		right = d.Reach
	}

	in := DeviceInput{
		Tracked: map[PartKind]Pose{
			PartBody:      {Pos: bodyPos, Orn: yaw},
			PartEye:       {Pos: bodyPos.Add(r3.Vector{Z: 0.5}), Orn: yaw},
			PartLeftHand:  {Pos: bodyPos.Add(r3.Vector{X: 0.2, Y: 0.3}), Orn: Identity},
			PartRightHand: {Pos: right, Orn: Identity},
		},
	}
	if d.PressEvery > 0 && tick%d.PressEvery == 0 {
		in.Events = append(in.Events, Event{Device: RightController, Kind: TouchpadPress})
	}
	return in
}
