package sim

import (
	"github.com/bft-labs/simreplay/pkg/logfile"
	"github.com/bft-labs/simreplay/pkg/session"
)

// StateField is the blob field holding the full world state.
const StateField = "sim/state"

// Channels returns the channels that record and restore the world: agent
// part poses, object poses with their hidden and toggle flags, VR events
// and the tick. With fullState a StateField blob of the whole world is
// appended.
func (w *World) Channels(fullState bool) []session.Channel {
	var chs []session.Channel
	for _, p := range w.agent.parts {
		chs = append(chs, session.PoseChannels("agent/"+p.Kind().String(), p)...)
	}
	for _, o := range w.objects {
		o := o
		prefix := "obj/" + o.Name
		chs = append(chs, session.PoseChannels(prefix, o)...)
		chs = append(chs, session.BoolChannel(prefix+"/hidden",
			func() bool { return o.Hidden },
			func(v bool) { o.Hidden = v },
		))
		if o.Toggle != nil {
			chs = append(chs, session.BoolChannel(prefix+"/toggled_on", o.Toggle.Value, o.Toggle.SetValue))
		}
	}
	for _, e := range RecordedEvents {
		e := e
		chs = append(chs, session.BoolChannel("vr/"+e.Device+"/"+e.Kind,
			func() bool { return w.events[e] },
			func(v bool) { w.events[e] = v },
		))
	}
	chs = append(chs, session.Channel{
		Field:   logfile.Scalar("sim/tick", logfile.Int64),
		Capture: func() (interface{}, error) { return int64(w.tick), nil },
		Restore: func(v logfile.Value) error {
			xs, err := v.Int64s()
			if err != nil {
				return err
			}
			w.tick = uint64(xs[0])
			return nil
		},
	})
	if fullState {
		chs = append(chs, session.StateChannel(StateField, w))
	}
	return chs
}
