package sim

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Motion limits of the agent parts, in meters.
const (
	BodyLinearVelocity    = 0.3 // per step
	HandLinearVelocity    = 0.3 // per step
	HeadLinearVelocity    = 0.3 // per step
	HandDistanceThreshold = 1.2 // from the body
	HeadDistanceThreshold = 0.5 // from the body
)

// PartKind selects one of the agent's parts.
type PartKind int

const (
	PartBody PartKind = iota
	PartLeftHand
	PartRightHand
	PartEye
)

// PartKinds lists every part kind in agent order.
var PartKinds = []PartKind{PartBody, PartLeftHand, PartRightHand, PartEye}

// String returns the name used in channel names.
func (k PartKind) String() string {
	switch k {
	case PartBody:
		return "body"
	case PartLeftHand:
		return "left_hand"
	case PartRightHand:
		return "right_hand"
	case PartEye:
		return "eye"
	default:
		return "unknown"
	}
}

// Part is one tracked piece of a VrAgent.
type Part interface {
	Kind() PartKind

	// Load attaches the part to its agent.
	Load(parent *VrAgent)

	Pose() (r3.Vector, quat.Number)

	// SetPose teleports the part.
	SetPose(r3.Vector, quat.Number)

	// ApplyConstraint moves the part toward a tracked target within the
	// part's motion limits.
	ApplyConstraint(r3.Vector, quat.Number)
}

// NewPart returns a part of the given kind, not yet loaded.
func NewPart(kind PartKind) (Part, error) {
	switch kind {
	case PartBody:
		return &body{link: newLink()}, nil
	case PartLeftHand, PartRightHand:
		return &hand{link: newLink(), kind: kind}, nil
	case PartEye:
		return &eye{link: newLink()}, nil
	}
	return nil, fmt.Errorf("unknown part kind %d", kind)
}

// link is the pose state every part has.
type link struct {
	parent *VrAgent
	pos    r3.Vector
	orn    quat.Number
}

func newLink() link { return link{orn: Identity} }

func (l *link) Load(parent *VrAgent) { l.parent = parent }

func (l *link) Pose() (r3.Vector, quat.Number) { return l.pos, l.orn }

func (l *link) SetPose(p r3.Vector, q quat.Number) { l.pos, l.orn = p, q }

func (l *link) bodyPosition() (r3.Vector, bool) {
	if l.parent == nil {
		return r3.Vector{}, false
	}
	p, _ := l.parent.Part(PartBody).Pose()
	return p, true
}

// constrain moves toward target at most maxStep per call and, when
// maxFromBody is positive, keeps within that distance of the body.
func (l *link) constrain(target r3.Vector, orn quat.Number, maxStep, maxFromBody float64) {
	if maxFromBody > 0 {
		if b, ok := l.bodyPosition(); ok {
			target = clampDistance(b, target, maxFromBody)
		}
	}
	l.pos = stepToward(l.pos, target, maxStep)
	l.orn = normalize(orn)
}

type body struct{ link }

func (*body) Kind() PartKind { return PartBody }

func (b *body) ApplyConstraint(p r3.Vector, q quat.Number) {
	b.constrain(p, q, BodyLinearVelocity, 0)
}

type hand struct {
	link
	kind PartKind
}

func (h *hand) Kind() PartKind { return h.kind }

func (h *hand) ApplyConstraint(p r3.Vector, q quat.Number) {
	h.constrain(p, q, HandLinearVelocity, HandDistanceThreshold)
}

type eye struct{ link }

func (*eye) Kind() PartKind { return PartEye }

func (e *eye) ApplyConstraint(p r3.Vector, q quat.Number) {
	e.constrain(p, q, HeadLinearVelocity, HeadDistanceThreshold)
}
