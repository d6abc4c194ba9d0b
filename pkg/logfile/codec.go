package logfile

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Codec selects how blob field payloads are stored. Fixed-size fields are
// always stored raw.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecZstd
)

// String returns the name used in headers and configuration.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

func (c Codec) valid() bool { return c == CodecNone || c == CodecZstd }

// ParseCodec is the inverse of Codec.String. The empty string is CodecNone.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	}
	return 0, fmt.Errorf("unknown codec %q", s)
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

func (c Codec) compress(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return []byte{}, nil
	}
	switch c {
	case CodecNone:
		return b, nil
	case CodecZstd:
		enc, _, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(b, make([]byte, 0, len(b)/2+16)), nil
	default:
		return nil, fmt.Errorf("unknown codec %d", c)
	}
}

func (c Codec) decompress(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return []byte{}, nil
	}
	switch c {
	case CodecNone:
		return b, nil
	case CodecZstd:
		_, dec, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(b, nil)
	default:
		return nil, fmt.Errorf("unknown codec %d", c)
	}
}
