package logfile

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

func writePoseLog(t *testing.T, path string, frames int, opts WriterOptions) {
	t.Helper()
	w, err := Create(path, poseSchema(), opts)
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		writePoseFrame(t, w, i)
	}
	require.NoError(t, w.Close())
}

func TestRoundTrip_Poses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.srlog")
	writePoseLog(t, path, 5, WriterOptions{SessionID: "session-1"})

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint64(5), r.FrameCount())
	assert.Equal(t, "session-1", r.Header().SessionID)
	assert.True(t, r.Schema().Equal(poseSchema()))

	var frames []*Frame
	for i := 0; i < 5; i++ {
		require.True(t, r.HasNext(), "HasNext() before frame %d", i)
		f, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, uint64(i), f.Index())
		frames = append(frames, f)
	}
	assert.False(t, r.HasNext())

	pos, err := frames[2].Vec3("pos")
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 2}, pos)
	q, err := frames[2].Quat("quat")
	require.NoError(t, err)
	assert.Equal(t, quat.Number{Real: 1}, q)

	raw, err := frames[2].Float64s("quat")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1}, raw)
}

func TestRoundTrip_AllTypes(t *testing.T) {
	schema := MustSchema(
		Scalar("f32", Float32),
		Scalar("f64", Float64),
		Scalar("i32", Int32),
		Scalar("i64", Int64),
		Scalar("u8", Uint8),
		Scalar("flag", Bool),
		Vector("mat", Float32, 2, 2),
		Vector("ids", Int64, 3),
		Vector("pixels", Uint8, 4),
		Vector("buttons", Bool, 2),
		Blob("state"),
		Blob("empty"),
	)
	want := map[string]interface{}{
		"f32":     float32(1.5),
		"f64":     -0.1,
		"i32":     int32(-7),
		"i64":     int64(1) << 40,
		"u8":      uint8(255),
		"flag":    true,
		"mat":     []float32{1, 2, 3, 4},
		"ids":     []int64{-1, 0, 1},
		"pixels":  []uint8{0, 64, 128, 255},
		"buttons": []bool{false, true},
		"state":   []byte("hidden=true;toggled=false;hidden=true;toggled=false"),
		"empty":   []byte{},
	}

	for _, codec := range []Codec{CodecNone, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "types.srlog")
			w, err := Create(path, schema, WriterOptions{Codec: codec})
			require.NoError(t, err)
			for name, v := range want {
				require.NoError(t, w.WriteField(name, v), name)
			}
			require.NoError(t, w.CommitFrame())
			require.NoError(t, w.Close())

			r, err := Open(path, ReaderOptions{})
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, codec, r.Header().Codec)

			f, err := r.ReadFrame()
			require.NoError(t, err)
			got := make(map[string]interface{}, len(want))
			for _, name := range schema.Names() {
				v, err := f.Get(name)
				require.NoError(t, err)
				got[name], err = v.Interface()
				require.NoError(t, err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("frame mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTrip_BlobBufferReuse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reuse.srlog")
	w, err := Create(path, MustSchema(Blob("state")), WriterOptions{FlushEvery: 10})
	require.NoError(t, err)

	buf := []byte("aaaa")
	require.NoError(t, w.WriteField("state", buf))
	require.NoError(t, w.CommitFrame())
	copy(buf, "bbbb")
	require.NoError(t, w.WriteField("state", buf))
	require.NoError(t, w.CommitFrame())
	require.NoError(t, w.Close())

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()
	for _, want := range []string{"aaaa", "bbbb"} {
		f, err := r.ReadFrame()
		require.NoError(t, err)
		b, err := f.Blob("state")
		require.NoError(t, err)
		assert.Equal(t, want, string(b))
	}
}

func TestReader_EndOfData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eod.srlog")
	writePoseLog(t, path, 1, WriterOptions{})

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadFrame()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = r.ReadFrame()
		assert.ErrorIs(t, err, ErrEndOfData)
	}
	assert.Equal(t, uint64(1), r.Cursor())
}

func TestReader_EmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.srlog")
	writePoseLog(t, path, 0, WriterOptions{})

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.HasNext())
	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, ErrEndOfData)
}

func TestReader_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "close.srlog")
	writePoseLog(t, path, 2, WriterOptions{})

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.False(t, r.HasNext())
	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.srlog"), ReaderOptions{})
	assert.ErrorIs(t, err, ErrIO)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpen_UnfinalizedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashed.srlog")
	w, err := Create(path, poseSchema(), WriterOptions{FlushEvery: 1})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	for i := 0; i < 3; i++ {
		writePoseFrame(t, w, i)
	}
	require.Equal(t, uint64(3), w.Persisted())

	// frames are on disk but the writer never finalized the header
	_, err = Open(path, ReaderOptions{})
	assert.ErrorIs(t, err, ErrFormat)

	done, err := IsFinalized(path)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestOpen_Corruption(t *testing.T) {
	tests := []struct {
		name string
		// mutate receives the file contents and the offset of the first record.
		mutate func(b []byte, body int) []byte
		// openOK means corruption is only detected when the frame is read.
		openOK bool
	}{
		{
			name:   "bad magic",
			mutate: func(b []byte, _ int) []byte { b[0] = 'X'; return b },
		},
		{
			name:   "preamble bit flip",
			mutate: func(b []byte, _ int) []byte { b[17] ^= 0x01; return b },
		},
		{
			name:   "header bit flip",
			mutate: func(b []byte, _ int) []byte { b[preambleSize+2] ^= 0x01; return b },
		},
		{
			name:   "truncated body",
			mutate: func(b []byte, _ int) []byte { return b[:len(b)-5] },
		},
		{
			name:   "trailing garbage",
			mutate: func(b []byte, _ int) []byte { return append(b, 0, 0, 0, 0) },
		},
		{
			name:   "truncated preamble",
			mutate: func(b []byte, _ int) []byte { return b[:20] },
		},
		{
			name: "record length tampered",
			mutate: func(b []byte, body int) []byte {
				b[body] += 8
				return b
			},
		},
		{
			name: "payload bit flip",
			mutate: func(b []byte, body int) []byte {
				b[body+recordLenSize+recordIndexSize] ^= 0x80
				return b
			},
			openOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "corrupt.srlog")
			writePoseLog(t, path, 3, WriterOptions{})

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			pre, err := parsePreamble(b)
			require.NoError(t, err)
			body := preambleSize + int(pre.headerLen)
			require.NoError(t, os.WriteFile(path, tt.mutate(b, body), 0o644))

			r, err := Open(path, ReaderOptions{})
			if !tt.openOK {
				assert.ErrorIs(t, err, ErrFormat)
				return
			}
			require.NoError(t, err)
			defer r.Close()
			_, err = r.ReadFrame()
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestReader_StopsAfterCorruptFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "midway.srlog")
	writePoseLog(t, path, 4, WriterOptions{})

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	pre, err := parsePreamble(b)
	require.NoError(t, err)
	first := preambleSize + int(pre.headerLen)
	second := first + recordLenSize + int(binary.LittleEndian.Uint32(b[first:]))
	b[second+recordLenSize+recordIndexSize] ^= 0x80
	require.NoError(t, os.WriteFile(path, b, 0o644))

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.Index())

	_, err = r.ReadFrame()
	require.ErrorIs(t, err, ErrFormat)
	assert.False(t, r.HasNext())

	// frames 2 and 3 are intact on disk but must not be returned
	for i := 0; i < 2; i++ {
		_, again := r.ReadFrame()
		assert.Equal(t, err, again)
	}
	assert.Equal(t, uint64(1), r.Cursor())

	require.NoError(t, r.Close())
	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIsFinalized(t *testing.T) {
	dir := t.TempDir()

	done, err := IsFinalized(filepath.Join(dir, "missing.srlog"))
	require.NoError(t, err)
	assert.False(t, done)

	short := filepath.Join(dir, "short.srlog")
	require.NoError(t, os.WriteFile(short, magic[:], 0o644))
	done, err = IsFinalized(short)
	require.NoError(t, err)
	assert.False(t, done)

	path := filepath.Join(dir, "done.srlog")
	writePoseLog(t, path, 2, WriterOptions{})
	done, err = IsFinalized(path)
	require.NoError(t, err)
	assert.True(t, done)
}
