package session

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bft-labs/simreplay/pkg/logfile"
)

// Channel binds one schema field to the simulation. Capture is used while
// recording and Restore while replaying; a channel only needs the half its
// driver calls.
type Channel struct {
	Field   logfile.Field
	Capture func() (interface{}, error)
	Restore func(logfile.Value) error
}

// Posable is anything with a position and an orientation.
type Posable interface {
	Pose() (r3.Vector, quat.Number)
	SetPose(r3.Vector, quat.Number)
}

// StateSerializer dumps and loads an opaque full-state blob.
type StateSerializer interface {
	DumpState() ([]byte, error)
	LoadState([]byte) error
}

// PoseChannels returns the prefix/pos and prefix/orn channels of p.
func PoseChannels(prefix string, p Posable) []Channel {
	return []Channel{
		{
			Field: logfile.Vec3(prefix + "/pos"),
			Capture: func() (interface{}, error) {
				pos, _ := p.Pose()
				return pos, nil
			},
			Restore: func(v logfile.Value) error {
				pos, err := v.Vec3()
				if err != nil {
					return err
				}
				_, orn := p.Pose()
				p.SetPose(pos, orn)
				return nil
			},
		},
		{
			Field: logfile.Quat(prefix + "/orn"),
			Capture: func() (interface{}, error) {
				_, orn := p.Pose()
				return orn, nil
			},
			Restore: func(v logfile.Value) error {
				orn, err := v.Quat()
				if err != nil {
					return err
				}
				pos, _ := p.Pose()
				p.SetPose(pos, orn)
				return nil
			},
		},
	}
}

// StateChannel records s as a blob field.
func StateChannel(name string, s StateSerializer) Channel {
	return Channel{
		Field:   logfile.Blob(name),
		Capture: func() (interface{}, error) { return s.DumpState() },
		Restore: func(v logfile.Value) error {
			b, err := v.Blob()
			if err != nil {
				return err
			}
			return s.LoadState(b)
		},
	}
}

// BoolChannel records a flag.
func BoolChannel(name string, get func() bool, set func(bool)) Channel {
	return Channel{
		Field:   logfile.Scalar(name, logfile.Bool),
		Capture: func() (interface{}, error) { return get(), nil },
		Restore: func(v logfile.Value) error {
			b, err := v.Bool()
			if err != nil {
				return err
			}
			set(b)
			return nil
		},
	}
}

// ScalarChannel records a float64.
func ScalarChannel(name string, get func() float64, set func(float64)) Channel {
	return Channel{
		Field:   logfile.Scalar(name, logfile.Float64),
		Capture: func() (interface{}, error) { return get(), nil },
		Restore: func(v logfile.Value) error {
			x, err := v.Float64()
			if err != nil {
				return err
			}
			set(x)
			return nil
		},
	}
}

// SchemaFor builds the schema of channels, in order.
func SchemaFor(channels []Channel) (*logfile.Schema, error) {
	fields := make([]logfile.Field, len(channels))
	for i, ch := range channels {
		fields[i] = ch.Field
	}
	s, err := logfile.NewSchema(fields...)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return s, nil
}
