package sim

import (
	"github.com/golang/geo/r3"
	"github.com/vmihailenco/msgpack/v4"
)

// VrAgent is the avatar driven by the VR device: a body, two hands and an
// eye.
type VrAgent struct {
	parts []Part

	// UseConstraints makes tracked poses act through each part's motion
	// limits. Without it parts teleport to the tracked pose.
	UseConstraints bool
}

// Initial part offsets from the agent origin.
var partRest = map[PartKind]r3.Vector{
	PartBody:      {Z: 1},
	PartLeftHand:  {X: 0.2, Y: 0.3, Z: 1},
	PartRightHand: {X: 0.2, Y: -0.3, Z: 1},
	PartEye:       {Z: 1.5},
}

// NewVrAgent loads one part of every kind at its rest pose.
func NewVrAgent(useConstraints bool) *VrAgent {
	a := &VrAgent{UseConstraints: useConstraints}
	for _, k := range PartKinds {
		p, err := NewPart(k)
		if err != nil {
			panic(err)
		}
		p.Load(a)
		p.SetPose(partRest[k], Identity)
		a.parts = append(a.parts, p)
	}
	return a
}

// Part returns the part of the given kind.
func (a *VrAgent) Part(kind PartKind) Part {
	return a.parts[kind]
}

// Parts returns the parts in PartKinds order.
func (a *VrAgent) Parts() []Part {
	return append([]Part(nil), a.parts...)
}

// HandPositions returns the left and right hand positions.
func (a *VrAgent) HandPositions() []r3.Vector {
	l, _ := a.Part(PartLeftHand).Pose()
	r, _ := a.Part(PartRightHand).Pose()
	return []r3.Vector{l, r}
}

// Update moves every tracked part. The body is moved first so hand and eye
// limits are measured from its new position.
func (a *VrAgent) Update(in DeviceInput) {
	for _, k := range PartKinds {
		target, ok := in.Tracked[k]
		if !ok {
			continue
		}
		p := a.Part(k)
		if a.UseConstraints {
			p.ApplyConstraint(target.Pos, target.Orn)
		} else {
			p.SetPose(target.Pos, target.Orn)
		}
	}
}

const agentStateVersion = 1

type agentState struct {
	Version int         `msgpack:"v"`
	Parts   [][]float64 `msgpack:"parts"`
}

// DumpState encodes the pose of every part as x, y, z, qx, qy, qz, qw.
func (a *VrAgent) DumpState() ([]byte, error) {
	st := agentState{Version: agentStateVersion}
	for _, p := range a.parts {
		pos, orn := p.Pose()
		st.Parts = append(st.Parts, append(vecSlice(pos), quatSlice(orn)...))
	}
	return msgpack.Marshal(&st)
}

// LoadState restores a DumpState blob.
func (a *VrAgent) LoadState(b []byte) error {
	var st agentState
	if err := decodeState("agent", b, &st, &st.Version, agentStateVersion); err != nil {
		return err
	}
	if len(st.Parts) != len(a.parts) {
		return stateErrorf("agent: %d parts, want %d", len(st.Parts), len(a.parts))
	}
	for i, raw := range st.Parts {
		if len(raw) != 7 {
			return stateErrorf("agent: part %s has %d values", a.parts[i].Kind(), len(raw))
		}
	}
	for i, raw := range st.Parts {
		pos, _ := sliceVec(raw[:3])
		orn, _ := sliceQuat(raw[3:])
		a.parts[i].SetPose(pos, orn)
	}
	return nil
}
