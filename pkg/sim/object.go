package sim

import (
	"github.com/golang/geo/r3"
	"github.com/vmihailenco/msgpack/v4"
	"gonum.org/v1/gonum/num/quat"
)

// Object is a rigid object in the scene.
type Object struct {
	Name string
	Mass float64

	// Velocity is in meters per second.
	Velocity r3.Vector
	Hidden   bool

	// Toggle is nil for objects without a toggle button.
	Toggle *ToggledOn

	pos r3.Vector
	orn quat.Number
}

// NewObject places an object at pos with identity orientation.
func NewObject(name string, mass float64, pos r3.Vector) *Object {
	return &Object{Name: name, Mass: mass, pos: pos, orn: Identity}
}

// Pose returns the position and orientation.
func (o *Object) Pose() (r3.Vector, quat.Number) { return o.pos, o.orn }

// SetPose teleports the object.
func (o *Object) SetPose(p r3.Vector, q quat.Number) { o.pos, o.orn = p, q }

// ButtonPosition returns the world position of the toggle button.
func (o *Object) ButtonPosition() (r3.Vector, bool) {
	if o.Toggle == nil {
		return r3.Vector{}, false
	}
	return o.pos.Add(o.Toggle.Link), true
}

func (o *Object) step(dt float64, hands []r3.Vector) {
	o.pos = o.pos.Add(o.Velocity.Mul(dt))
	if b, ok := o.ButtonPosition(); ok {
		o.Toggle.Update(b, hands)
	}
}

const objectStateVersion = 1

type objectState struct {
	Version  int       `msgpack:"v"`
	Pos      []float64 `msgpack:"pos"`
	Orn      []float64 `msgpack:"orn"`
	Velocity []float64 `msgpack:"vel"`
	Hidden   bool      `msgpack:"hidden"`
	Toggle   []byte    `msgpack:"toggle,omitempty"`
}

// DumpState encodes the pose, velocity, hidden flag and toggle state.
func (o *Object) DumpState() ([]byte, error) {
	st := objectState{
		Version:  objectStateVersion,
		Pos:      vecSlice(o.pos),
		Orn:      quatSlice(o.orn),
		Velocity: vecSlice(o.Velocity),
		Hidden:   o.Hidden,
	}
	if o.Toggle != nil {
		b, err := o.Toggle.DumpState()
		if err != nil {
			return nil, err
		}
		st.Toggle = b
	}
	return msgpack.Marshal(&st)
}

// LoadState restores a DumpState blob.
func (o *Object) LoadState(b []byte) error {
	var st objectState
	if err := decodeState("object "+o.Name, b, &st, &st.Version, objectStateVersion); err != nil {
		return err
	}
	pos, ok1 := sliceVec(st.Pos)
	orn, ok2 := sliceQuat(st.Orn)
	vel, ok3 := sliceVec(st.Velocity)
	if !ok1 || !ok2 || !ok3 {
		return stateErrorf("object %s: malformed pose", o.Name)
	}
	if (o.Toggle == nil) != (len(st.Toggle) == 0) {
		return stateErrorf("object %s: toggle presence does not match", o.Name)
	}
	if o.Toggle != nil {
		if err := o.Toggle.LoadState(st.Toggle); err != nil {
			return err
		}
	}
	o.pos, o.orn, o.Velocity, o.Hidden = pos, orn, vel, st.Hidden
	return nil
}
