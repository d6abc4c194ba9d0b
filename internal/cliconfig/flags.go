package cliconfig

import (
	"github.com/c2h5oh/datasize"
	"github.com/spf13/pflag"
)

// byteSizeValue adapts datasize.ByteSize to pflag.Value.
type byteSizeValue struct {
	dst *datasize.ByteSize
}

// ByteSizeValue returns a flag value that parses sizes such as "64MB" into
// dst.
func ByteSizeValue(dst *datasize.ByteSize) pflag.Value {
	return byteSizeValue{dst: dst}
}

func (v byteSizeValue) String() string {
	if v.dst == nil {
		return "0B"
	}
	return v.dst.String()
}

func (v byteSizeValue) Set(s string) error {
	return v.dst.UnmarshalText([]byte(s))
}

func (byteSizeValue) Type() string { return "size" }
