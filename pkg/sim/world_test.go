package sim

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v4"
	"gonum.org/v1/gonum/num/quat"

	"github.com/bft-labs/simreplay/pkg/logfile"
	"github.com/bft-labs/simreplay/pkg/session"
)

func stepN(t *testing.T, w *World, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, w.Step())
	}
}

func TestNewWorld_Validation(t *testing.T) {
	_, err := NewWorld(Config{}, NewObject("a", 1, r3.Vector{}), NewObject("a", 1, r3.Vector{}))
	assert.Error(t, err)

	_, err = NewWorld(Config{HideTarget: "ghost"}, NewObject("a", 1, r3.Vector{}))
	assert.Error(t, err)
}

func TestDemoWorld_Layout(t *testing.T) {
	w, err := NewDemoWorld(Config{})
	require.NoError(t, err)

	objs := w.Objects()
	require.Len(t, objs, 5)
	for i, m := range []float64{5, 10, 100, 500} {
		pos, orn := objs[i].Pose()
		assert.InDelta(t, -1+0.2*float64(i), pos.X, 1e-12)
		assert.Equal(t, 1.55, pos.Y)
		assert.Equal(t, 1.2, pos.Z)
		assert.Equal(t, Identity, orn)
		assert.Equal(t, m, objs[i].Mass)
	}
	assert.NotNil(t, w.Object("lamp").Toggle)
}

func TestWorld_TouchpadTogglesHidden(t *testing.T) {
	w, err := NewDemoWorld(Config{UseVR: true, Device: &ScriptedDevice{PressEvery: 3}})
	require.NoError(t, err)
	target := w.Object(DemoHideTarget)

	stepN(t, w, 2)
	assert.False(t, target.Hidden)
	assert.False(t, w.QueryEvent(RightController, TouchpadPress))

	stepN(t, w, 1)
	assert.True(t, target.Hidden)
	assert.True(t, w.QueryEvent(RightController, TouchpadPress))

	stepN(t, w, 3)
	assert.False(t, target.Hidden)
}

func TestWorld_WithoutVRIgnoresDevice(t *testing.T) {
	w, err := NewDemoWorld(Config{Device: &ScriptedDevice{PressEvery: 1}})
	require.NoError(t, err)
	stepN(t, w, 5)

	assert.False(t, w.Object(DemoHideTarget).Hidden)
	right, _ := w.Agent().Part(PartRightHand).Pose()
	assert.Equal(t, partRest[PartRightHand], right)
}

func TestDemoWorld_ScriptedReachTogglesLamp(t *testing.T) {
	w, err := NewDemoWorld(Config{UseVR: true})
	require.NoError(t, err)
	lamp := w.Object("lamp")

	stepN(t, w, 19)
	assert.False(t, lamp.Toggle.Value())

	stepN(t, w, 11)
	assert.True(t, lamp.Toggle.Value(), "hand held on the button for five steps")

	stepN(t, w, 10)
	assert.True(t, lamp.Toggle.Value())

	stepN(t, w, 30)
	assert.False(t, lamp.Toggle.Value(), "second reach turns it off")
}

func TestWorld_VelocityMovesObjects(t *testing.T) {
	o := NewObject("ball", 1, r3.Vector{})
	o.Velocity = r3.Vector{X: 0.9}
	w, err := NewWorld(Config{}, o)
	require.NoError(t, err)

	stepN(t, w, 90)
	pos, _ := o.Pose()
	assert.InDelta(t, 0.9, pos.X, 1e-9)
}

func TestWorld_DumpLoadRoundTrip(t *testing.T) {
	src, err := NewDemoWorld(Config{UseVR: true})
	require.NoError(t, err)
	src.Object("mustard_0").Velocity = r3.Vector{Z: -0.5}
	stepN(t, src, 57)

	blob, err := src.DumpState()
	require.NoError(t, err)

	dst, err := NewDemoWorld(Config{})
	require.NoError(t, err)
	require.NoError(t, dst.LoadState(blob))

	again, err := dst.DumpState()
	require.NoError(t, err)
	assert.Equal(t, blob, again)
	assert.Equal(t, src.Tick(), dst.Tick())
	assert.Equal(t, src.Object("lamp").Toggle.Steps(), dst.Object("lamp").Toggle.Steps())

	// both worlds evolve identically from the restored state
	stepN(t, src, 1)
	srcPos, _ := src.Object("mustard_0").Pose()
	stepN(t, dst, 1)
	dstPos, _ := dst.Object("mustard_0").Pose()
	assert.Equal(t, srcPos, dstPos)
}

func TestWorld_LoadStateRejectsBadBlobs(t *testing.T) {
	w, err := NewDemoWorld(Config{UseVR: true})
	require.NoError(t, err)
	stepN(t, w, 10)
	before, err := w.DumpState()
	require.NoError(t, err)

	other, err := NewWorld(Config{}, NewObject("solo", 1, r3.Vector{}))
	require.NoError(t, err)
	otherBlob, err := other.DumpState()
	require.NoError(t, err)

	future, err := msgpack.Marshal(&worldState{Version: worldStateVersion + 1})
	require.NoError(t, err)

	var st worldState
	require.NoError(t, msgpack.Unmarshal(before, &st))
	st.Objects[4] = st.Objects[0] // mustard blob has no toggle for the lamp
	mismatched, err := msgpack.Marshal(&st)
	require.NoError(t, err)

	tests := map[string][]byte{
		"garbage":         []byte("not msgpack"),
		"future version":  future,
		"object count":    otherBlob,
		"toggle mismatch": mismatched,
	}
	for name, blob := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, w.LoadState(blob), ErrState)
			after, err := w.DumpState()
			require.NoError(t, err)
			assert.Equal(t, before, after, "rejected blob must not change the world")
		})
	}
}

type observed struct {
	Poses  map[string][]float64
	Hidden map[string]bool
	Lamp   bool
	Tick   uint64
}

func observe(w *World) observed {
	o := observed{Poses: map[string][]float64{}, Hidden: map[string]bool{}, Tick: w.Tick()}
	add := func(name string, p r3.Vector, q quat.Number) {
		o.Poses[name] = append(vecSlice(p), quatSlice(q)...)
	}
	for _, p := range w.Agent().Parts() {
		pos, orn := p.Pose()
		add(p.Kind().String(), pos, orn)
	}
	for _, obj := range w.Objects() {
		pos, orn := obj.Pose()
		add(obj.Name, pos, orn)
		o.Hidden[obj.Name] = obj.Hidden
	}
	o.Lamp = w.Object("lamp").Toggle.Value()
	return o
}

// The non-blob channels alone must carry every observable piece of state.
func TestChannels_CoverObservableState(t *testing.T) {
	rec, err := NewDemoWorld(Config{UseVR: true, Device: &ScriptedDevice{
		Reach:      lampPosition.Add(lampButton),
		Period:     10,
		PressEvery: 7,
	}})
	require.NoError(t, err)

	channels := rec.Channels(true)
	schema, err := session.SchemaFor(channels)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "demo.srlog")
	wr, err := logfile.Create(path, schema, logfile.WriterOptions{Codec: logfile.CodecZstd, FlushEvery: 16})
	require.NoError(t, err)
	recorder, err := session.NewRecorder(rec, channels, wr, session.Options{})
	require.NoError(t, err)
	require.NoError(t, recorder.Run(context.Background(), session.Limits{MaxFrames: 60}))

	rd, err := logfile.Open(path, logfile.ReaderOptions{})
	require.NoError(t, err)
	defer rd.Close()

	replay, err := NewDemoWorld(Config{})
	require.NoError(t, err)
	poseOnly := replay.Channels(false)
	reference, err := NewDemoWorld(Config{})
	require.NoError(t, err)

	for rd.HasNext() {
		f, err := rd.ReadFrame()
		require.NoError(t, err)
		for _, ch := range poseOnly {
			v, err := f.Get(ch.Field.Name)
			require.NoError(t, err)
			require.NoError(t, ch.Restore(v))
		}
		state, err := f.Blob("sim/state")
		require.NoError(t, err)
		require.NoError(t, reference.LoadState(state))

		if diff := cmp.Diff(observe(reference), observe(replay)); diff != "" {
			t.Fatalf("frame %d differs (-full +channels):\n%s", f.Index(), diff)
		}
	}
	assert.Equal(t, uint64(59), replay.Tick())
}
