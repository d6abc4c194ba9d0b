package logfile

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// encodeValue encodes v for f. Only the Go types of f's dtype family are
// accepted; nothing is converted between widths or signedness.
func encodeValue(f Field, v interface{}) ([]byte, error) {
	if f.Kind == KindBlob {
		b, ok := v.([]byte)
		if !ok {
			return nil, schemaErrorf("field %q is a blob, got %T", f.Name, v)
		}
		return b, nil
	}

	n, scalar, ok := elementCount(f.DType, v)
	if !ok {
		return nil, schemaErrorf("field %q has dtype %s, got %T", f.Name, f.DType, v)
	}
	switch f.Kind {
	case KindScalar:
		if !scalar {
			return nil, schemaErrorf("field %q is a scalar, got %T", f.Name, v)
		}
	case KindVector:
		if scalar {
			return nil, schemaErrorf("field %q is a vector of %d, got scalar %T", f.Name, f.Elements(), v)
		}
		if n != f.Elements() {
			return nil, schemaErrorf("field %q expects %d elements, got %d", f.Name, f.Elements(), n)
		}
	}

	out := make([]byte, 0, f.FixedSize())
	switch f.DType {
	case Float64:
		for _, x := range float64s(v) {
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(x))
		}
	case Float32:
		for _, x := range float32s(v) {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(x))
		}
	case Int64:
		for _, x := range int64s(v) {
			out = binary.LittleEndian.AppendUint64(out, uint64(x))
		}
	case Int32:
		for _, x := range int32s(v) {
			out = binary.LittleEndian.AppendUint32(out, uint32(x))
		}
	case Uint8:
		switch t := v.(type) {
		case uint8:
			out = append(out, t)
		case []uint8:
			out = append(out, t...)
		}
	case Bool:
		for _, x := range bools(v) {
			if x {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}

// elementCount reports how many elements v holds when v belongs to dtype's
// type family, and whether v is a scalar.
func elementCount(d DType, v interface{}) (n int, scalar bool, ok bool) {
	switch d {
	case Float64:
		switch t := v.(type) {
		case float64:
			return 1, true, true
		case []float64:
			return len(t), false, true
		case r3.Vector:
			return 3, false, true
		case quat.Number:
			return 4, false, true
		}
	case Float32:
		switch t := v.(type) {
		case float32:
			return 1, true, true
		case []float32:
			return len(t), false, true
		}
	case Int64:
		switch t := v.(type) {
		case int64, int:
			return 1, true, true
		case []int64:
			return len(t), false, true
		case []int:
			return len(t), false, true
		}
	case Int32:
		switch t := v.(type) {
		case int32:
			return 1, true, true
		case []int32:
			return len(t), false, true
		}
	case Uint8:
		switch t := v.(type) {
		case uint8:
			return 1, true, true
		case []uint8:
			return len(t), false, true
		}
	case Bool:
		switch t := v.(type) {
		case bool:
			return 1, true, true
		case []bool:
			return len(t), false, true
		}
	}
	return 0, false, false
}

func float64s(v interface{}) []float64 {
	switch t := v.(type) {
	case float64:
		return []float64{t}
	case []float64:
		return t
	case r3.Vector:
		return []float64{t.X, t.Y, t.Z}
	case quat.Number:
		return []float64{t.Imag, t.Jmag, t.Kmag, t.Real}
	}
	return nil
}

func float32s(v interface{}) []float32 {
	switch t := v.(type) {
	case float32:
		return []float32{t}
	case []float32:
		return t
	}
	return nil
}

func int64s(v interface{}) []int64 {
	switch t := v.(type) {
	case int64:
		return []int64{t}
	case int:
		return []int64{int64(t)}
	case []int64:
		return t
	case []int:
		out := make([]int64, len(t))
		for i, x := range t {
			out[i] = int64(x)
		}
		return out
	}
	return nil
}

func int32s(v interface{}) []int32 {
	switch t := v.(type) {
	case int32:
		return []int32{t}
	case []int32:
		return t
	}
	return nil
}

func bools(v interface{}) []bool {
	switch t := v.(type) {
	case bool:
		return []bool{t}
	case []bool:
		return t
	}
	return nil
}
