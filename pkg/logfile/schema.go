package logfile

import (
	"fmt"
	"strings"
)

// Kind is the data kind of a schema field.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindVector
	KindBlob
)

// String returns the name used in log headers.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "scalar":
		return KindScalar, nil
	case "vector":
		return KindVector, nil
	case "blob":
		return KindBlob, nil
	}
	return 0, fmt.Errorf("unknown field kind %q", s)
}

// DType is the element type of a schema field.
type DType uint8

const (
	Float32 DType = iota + 1
	Float64
	Int32
	Int64
	Uint8
	Bool
	// Bytes is the element type of blob fields.
	Bytes
)

// Size returns the encoded width of one element, or 0 for Bytes.
func (d DType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		return 0
	}
}

// String returns the name used in log headers.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Bytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// ParseDType is the inverse of DType.String.
func ParseDType(s string) (DType, error) {
	for d := Float32; d <= Bytes; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown dtype %q", s)
}

// Field declares one named value recorded in every frame.
type Field struct {
	Name  string
	Kind  Kind
	DType DType
	// Shape is empty for scalars and blobs. A vector's element count is the
	// product of its dimensions.
	Shape []int
}

// Scalar declares a single-element field.
func Scalar(name string, dtype DType) Field {
	return Field{Name: name, Kind: KindScalar, DType: dtype}
}

// Vector declares a fixed-shape field.
func Vector(name string, dtype DType, shape ...int) Field {
	return Field{Name: name, Kind: KindVector, DType: dtype, Shape: append([]int(nil), shape...)}
}

// Blob declares a variable-length byte field.
func Blob(name string) Field {
	return Field{Name: name, Kind: KindBlob, DType: Bytes}
}

// Vec3 declares a float64 position field.
func Vec3(name string) Field { return Vector(name, Float64, 3) }

// Quat declares a float64 (x, y, z, w) orientation field.
func Quat(name string) Field { return Vector(name, Float64, 4) }

// Elements returns the number of elements in one value of f.
func (f Field) Elements() int {
	switch f.Kind {
	case KindScalar:
		return 1
	case KindVector:
		n := 1
		for _, d := range f.Shape {
			n *= d
		}
		return n
	default:
		return 0
	}
}

// FixedSize returns the encoded size of one value, or -1 for blobs.
func (f Field) FixedSize() int {
	if f.Kind == KindBlob {
		return -1
	}
	return f.Elements() * f.DType.Size()
}

// Equal reports whether f and o declare the same field.
func (f Field) Equal(o Field) bool {
	if f.Name != o.Name || f.Kind != o.Kind || f.DType != o.DType || len(f.Shape) != len(o.Shape) {
		return false
	}
	for i := range f.Shape {
		if f.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// String renders f as name:kind<dtype>[shape].
func (f Field) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s<%s>", f.Name, f.Kind, f.DType)
	if len(f.Shape) > 0 {
		b.WriteString(fmt.Sprint(f.Shape))
	}
	return b.String()
}

func (f Field) validate() error {
	if f.Name == "" {
		return schemaErrorf("field name is empty")
	}
	switch f.Kind {
	case KindScalar:
		if len(f.Shape) != 0 {
			return schemaErrorf("scalar field %q has shape %v", f.Name, f.Shape)
		}
		if f.DType.Size() == 0 {
			return schemaErrorf("scalar field %q has dtype %s", f.Name, f.DType)
		}
	case KindVector:
		if len(f.Shape) == 0 {
			return schemaErrorf("vector field %q has no shape", f.Name)
		}
		for _, d := range f.Shape {
			if d <= 0 {
				return schemaErrorf("vector field %q has non-positive dimension in %v", f.Name, f.Shape)
			}
		}
		if f.DType.Size() == 0 {
			return schemaErrorf("vector field %q has dtype %s", f.Name, f.DType)
		}
	case KindBlob:
		if f.DType != Bytes || len(f.Shape) != 0 {
			return schemaErrorf("blob field %q must be bytes without shape", f.Name)
		}
	default:
		return schemaErrorf("field %q has unknown kind %d", f.Name, f.Kind)
	}
	return nil
}

// Schema is the immutable, ordered field list of a log session.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema validates fields and fixes their order.
func NewSchema(fields ...Field) (*Schema, error) {
	if len(fields) == 0 {
		return nil, schemaErrorf("schema has no fields")
	}
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if err := f.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, schemaErrorf("duplicate field %q", f.Name)
		}
		f.Shape = append([]int(nil), f.Shape...)
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// MustSchema is NewSchema for statically known field lists.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		f.Shape = append([]int(nil), f.Shape...)
		out[i] = f
	}
	return out
}

// Names returns the field names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the field called name and its position.
func (s *Schema) Lookup(name string) (Field, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, -1, false
	}
	return s.fields[i], i, true
}

// Equal reports whether both schemas declare the same fields in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if !s.fields[i].Equal(o.fields[i]) {
			return false
		}
	}
	return true
}
