package logfile

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Record framing around each frame payload.
const (
	recordLenSize   = 4
	recordIndexSize = 8
	recordSumSize   = 8
	// minRecordLen is the length of a record whose payload is empty.
	minRecordLen = recordIndexSize + recordSumSize
)

// maxRecordLen is the largest record length the u32 prefix can carry. Tests
// lower it.
var maxRecordLen uint64 = math.MaxUint32

// maxBlobLen is the largest stored blob that fits a record on its own.
func maxBlobLen() uint64 { return maxRecordLen - minRecordLen - 4 }

// frameBuffer accumulates the encoded field values of the in-progress frame.
type frameBuffer struct {
	schema *Schema
	values [][]byte
	set    []bool
	filled int
}

func newFrameBuffer(s *Schema) *frameBuffer {
	return &frameBuffer{
		schema: s,
		values: make([][]byte, s.Len()),
		set:    make([]bool, s.Len()),
	}
}

func (b *frameBuffer) put(i int, enc []byte) {
	if !b.set[i] {
		b.set[i] = true
		b.filled++
	}
	b.values[i] = enc
}

func (b *frameBuffer) complete() bool { return b.filled == len(b.values) }

func (b *frameBuffer) missing() []string {
	var out []string
	for i, ok := range b.set {
		if !ok {
			out = append(out, b.schema.fields[i].Name)
		}
	}
	return out
}

func (b *frameBuffer) reset() {
	for i := range b.values {
		b.values[i] = nil
		b.set[i] = false
	}
	b.filled = 0
}

// recordLen is the length prefix of the record for the buffered values.
func (b *frameBuffer) recordLen() uint64 {
	n := uint64(minRecordLen)
	for i, f := range b.schema.fields {
		if f.Kind == KindBlob {
			n += 4
		}
		n += uint64(len(b.values[i]))
	}
	return n
}

// appendRecord appends the framed record for the buffered values to dst.
// The caller has checked recordLen against maxRecordLen.
func (b *frameBuffer) appendRecord(dst []byte, index uint64) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(b.recordLen()))
	start := len(dst)
	dst = binary.LittleEndian.AppendUint64(dst, index)
	for i, f := range b.schema.fields {
		if f.Kind == KindBlob {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(b.values[i])))
		}
		dst = append(dst, b.values[i]...)
	}
	return binary.LittleEndian.AppendUint64(dst, xxhash.Sum64(dst[start:]))
}

// Frame is one recorded simulation step as returned by Reader.ReadFrame.
type Frame struct {
	index  uint64
	schema *Schema
	values [][]byte
	codec  Codec
}

// decodeRecord parses a record body (everything after the length prefix).
func decodeRecord(s *Schema, codec Codec, body []byte) (*Frame, error) {
	if len(body) < minRecordLen {
		return nil, formatErrorf("record of %d bytes is too short", len(body))
	}
	sumAt := len(body) - recordSumSize
	if got, want := xxhash.Sum64(body[:sumAt]), binary.LittleEndian.Uint64(body[sumAt:]); got != want {
		return nil, formatErrorf("record checksum mismatch: %016x != %016x", got, want)
	}

	f := &Frame{
		index:  binary.LittleEndian.Uint64(body),
		schema: s,
		values: make([][]byte, s.Len()),
		codec:  codec,
	}
	payload := body[recordIndexSize:sumAt]
	for i, fd := range s.fields {
		size := fd.FixedSize()
		if size < 0 {
			if len(payload) < 4 {
				return nil, formatErrorf("frame %d: truncated length of blob %q", f.index, fd.Name)
			}
			size = int(binary.LittleEndian.Uint32(payload))
			payload = payload[4:]
		}
		if len(payload) < size {
			return nil, formatErrorf("frame %d: truncated field %q", f.index, fd.Name)
		}
		f.values[i] = payload[:size:size]
		payload = payload[size:]
	}
	if len(payload) != 0 {
		return nil, formatErrorf("frame %d: %d trailing bytes", f.index, len(payload))
	}
	return f, nil
}

// Index returns the frame index.
func (f *Frame) Index() uint64 { return f.index }

// Schema returns the schema the frame was decoded with.
func (f *Frame) Schema() *Schema { return f.schema }

// Get returns the value of the named field.
func (f *Frame) Get(name string) (Value, error) {
	fd, i, ok := f.schema.Lookup(name)
	if !ok {
		return Value{}, schemaErrorf("unknown field %q", name)
	}
	return Value{field: fd, raw: f.values[i], codec: f.codec}, nil
}

// Float64s decodes the named float64 field.
func (f *Frame) Float64s(name string) ([]float64, error) {
	v, err := f.Get(name)
	if err != nil {
		return nil, err
	}
	return v.Float64s()
}

// Float64 decodes the named float64 scalar.
func (f *Frame) Float64(name string) (float64, error) {
	v, err := f.Get(name)
	if err != nil {
		return 0, err
	}
	return v.Float64()
}

// Bool decodes the named bool scalar.
func (f *Frame) Bool(name string) (bool, error) {
	v, err := f.Get(name)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// Blob returns the uncompressed bytes of the named blob field.
func (f *Frame) Blob(name string) ([]byte, error) {
	v, err := f.Get(name)
	if err != nil {
		return nil, err
	}
	return v.Blob()
}

// Vec3 decodes the named position field.
func (f *Frame) Vec3(name string) (r3.Vector, error) {
	v, err := f.Get(name)
	if err != nil {
		return r3.Vector{}, err
	}
	return v.Vec3()
}

// Quat decodes the named orientation field.
func (f *Frame) Quat(name string) (quat.Number, error) {
	v, err := f.Get(name)
	if err != nil {
		return quat.Number{}, err
	}
	return v.Quat()
}
