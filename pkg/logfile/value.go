package logfile

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Value is one recorded field value, kept in its stored encoding until a
// typed accessor decodes it.
type Value struct {
	field Field
	raw   []byte
	codec Codec
}

// Field returns the schema field the value belongs to.
func (v Value) Field() Field { return v.field }

// Raw returns the stored bytes. Blobs are returned as stored, i.e.
// compressed when the log uses a codec.
func (v Value) Raw() []byte { return v.raw }

func (v Value) want(d DType) error {
	if v.field.DType != d {
		return schemaErrorf("field %q has dtype %s, requested %s", v.field.Name, v.field.DType, d)
	}
	return nil
}

// Float64s decodes a float64 field.
func (v Value) Float64s() ([]float64, error) {
	if err := v.want(Float64); err != nil {
		return nil, err
	}
	out := make([]float64, len(v.raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(v.raw[i*8:]))
	}
	return out, nil
}

// Float64 decodes a float64 scalar.
func (v Value) Float64() (float64, error) {
	xs, err := v.Float64s()
	if err != nil {
		return 0, err
	}
	if len(xs) != 1 {
		return 0, schemaErrorf("field %q holds %d elements, not a scalar", v.field.Name, len(xs))
	}
	return xs[0], nil
}

// Float32s decodes a float32 field.
func (v Value) Float32s() ([]float32, error) {
	if err := v.want(Float32); err != nil {
		return nil, err
	}
	out := make([]float32, len(v.raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(v.raw[i*4:]))
	}
	return out, nil
}

// Int64s decodes an int64 field.
func (v Value) Int64s() ([]int64, error) {
	if err := v.want(Int64); err != nil {
		return nil, err
	}
	out := make([]int64, len(v.raw)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(v.raw[i*8:]))
	}
	return out, nil
}

// Int32s decodes an int32 field.
func (v Value) Int32s() ([]int32, error) {
	if err := v.want(Int32); err != nil {
		return nil, err
	}
	out := make([]int32, len(v.raw)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(v.raw[i*4:]))
	}
	return out, nil
}

// Uint8s decodes a uint8 field.
func (v Value) Uint8s() ([]uint8, error) {
	if err := v.want(Uint8); err != nil {
		return nil, err
	}
	return append([]uint8(nil), v.raw...), nil
}

// Bools decodes a bool field.
func (v Value) Bools() ([]bool, error) {
	if err := v.want(Bool); err != nil {
		return nil, err
	}
	out := make([]bool, len(v.raw))
	for i, b := range v.raw {
		out[i] = b != 0
	}
	return out, nil
}

// Bool decodes a bool scalar.
func (v Value) Bool() (bool, error) {
	xs, err := v.Bools()
	if err != nil {
		return false, err
	}
	if len(xs) != 1 {
		return false, schemaErrorf("field %q holds %d elements, not a scalar", v.field.Name, len(xs))
	}
	return xs[0], nil
}

// Blob returns the uncompressed bytes of a blob field.
func (v Value) Blob() ([]byte, error) {
	if err := v.want(Bytes); err != nil {
		return nil, err
	}
	b, err := v.codec.decompress(v.raw)
	if err != nil {
		return nil, formatErrorf("field %q: %v", v.field.Name, err)
	}
	if v.codec == CodecNone {
		b = append(make([]byte, 0, len(b)), b...)
	}
	return b, nil
}

// Vec3 decodes a three-element float64 field.
func (v Value) Vec3() (r3.Vector, error) {
	xs, err := v.Float64s()
	if err != nil {
		return r3.Vector{}, err
	}
	if len(xs) != 3 {
		return r3.Vector{}, schemaErrorf("field %q holds %d elements, not 3", v.field.Name, len(xs))
	}
	return r3.Vector{X: xs[0], Y: xs[1], Z: xs[2]}, nil
}

// Quat decodes a four-element float64 field stored as (x, y, z, w).
func (v Value) Quat() (quat.Number, error) {
	xs, err := v.Float64s()
	if err != nil {
		return quat.Number{}, err
	}
	if len(xs) != 4 {
		return quat.Number{}, schemaErrorf("field %q holds %d elements, not 4", v.field.Name, len(xs))
	}
	return quat.Number{Imag: xs[0], Jmag: xs[1], Kmag: xs[2], Real: xs[3]}, nil
}

// Interface decodes the value into the Go type WriteField accepts for it:
// a scalar for scalar fields, a slice for vectors, []byte for blobs.
func (v Value) Interface() (interface{}, error) {
	scalar := v.field.Kind == KindScalar
	switch v.field.DType {
	case Float64:
		xs, err := v.Float64s()
		if err != nil || !scalar {
			return xs, err
		}
		return xs[0], nil
	case Float32:
		xs, err := v.Float32s()
		if err != nil || !scalar {
			return xs, err
		}
		return xs[0], nil
	case Int64:
		xs, err := v.Int64s()
		if err != nil || !scalar {
			return xs, err
		}
		return xs[0], nil
	case Int32:
		xs, err := v.Int32s()
		if err != nil || !scalar {
			return xs, err
		}
		return xs[0], nil
	case Uint8:
		xs, err := v.Uint8s()
		if err != nil || !scalar {
			return xs, err
		}
		return xs[0], nil
	case Bool:
		xs, err := v.Bools()
		if err != nil || !scalar {
			return xs, err
		}
		return xs[0], nil
	case Bytes:
		return v.Blob()
	}
	return nil, schemaErrorf("field %q has unknown dtype", v.field.Name)
}
