package logfile

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v4"
)

const (
	preambleSize = 48

	// preambleSumAt is where the preamble's own checksum starts.
	preambleSumAt = 40

	// unfinalizedCount marks a frame count that Close has not patched yet.
	unfinalizedCount = math.MaxUint64

	flagFinalized uint16 = 1 << 0

	// maxHeaderLen bounds the header read from untrusted files.
	maxHeaderLen = 16 << 20
)

var magic = [8]byte{'S', 'I', 'M', 'R', 'L', 'O', 'G', 0}

// preamble is the fixed-size block at offset 0.
type preamble struct {
	version    uint16
	flags      uint16
	headerLen  uint32
	frameCount uint64
	bodyLen    uint64
	headerSum  uint64
}

func (p preamble) finalized() bool {
	return p.flags&flagFinalized != 0 && p.frameCount != unfinalizedCount
}

func (p preamble) marshal() []byte {
	b := make([]byte, preambleSize)
	copy(b, magic[:])
	binary.LittleEndian.PutUint16(b[8:], p.version)
	binary.LittleEndian.PutUint16(b[10:], p.flags)
	binary.LittleEndian.PutUint32(b[12:], p.headerLen)
	binary.LittleEndian.PutUint64(b[16:], p.frameCount)
	binary.LittleEndian.PutUint64(b[24:], p.bodyLen)
	binary.LittleEndian.PutUint64(b[32:], p.headerSum)
	binary.LittleEndian.PutUint64(b[preambleSumAt:], xxhash.Sum64(b[:preambleSumAt]))
	return b
}

func parsePreamble(b []byte) (preamble, error) {
	if len(b) < preambleSize {
		return preamble{}, formatErrorf("preamble truncated at %d bytes", len(b))
	}
	if [8]byte(b[:8]) != magic {
		return preamble{}, formatErrorf("not a simulation log (bad magic)")
	}
	if got, want := xxhash.Sum64(b[:preambleSumAt]), binary.LittleEndian.Uint64(b[preambleSumAt:]); got != want {
		return preamble{}, formatErrorf("preamble checksum mismatch")
	}
	p := preamble{
		version:    binary.LittleEndian.Uint16(b[8:]),
		flags:      binary.LittleEndian.Uint16(b[10:]),
		headerLen:  binary.LittleEndian.Uint32(b[12:]),
		frameCount: binary.LittleEndian.Uint64(b[16:]),
		bodyLen:    binary.LittleEndian.Uint64(b[24:]),
		headerSum:  binary.LittleEndian.Uint64(b[32:]),
	}
	if p.version < MinCompatibleFormatVersion || p.version > FormatVersion {
		return preamble{}, formatErrorf("unsupported format version %d", p.version)
	}
	if p.headerLen > maxHeaderLen {
		return preamble{}, formatErrorf("header length %d exceeds limit", p.headerLen)
	}
	return p, nil
}

// readPreamble reads and parses the preamble of an open file.
func readPreamble(f io.ReaderAt) (preamble, error) {
	b := make([]byte, preambleSize)
	n, err := f.ReadAt(b, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return preamble{}, ioError("read preamble", err)
	}
	return parsePreamble(b[:n])
}

// Header describes a log session. It is written once at Create; FrameCount
// is known only after the log is finalized.
type Header struct {
	SessionID     string
	CreatedAt     time.Time
	Codec         Codec
	FormatVersion uint16
	FrameCount    uint64
	Schema        *Schema
}

type headerWire struct {
	SessionID       string      `msgpack:"session_id"`
	CreatedUnixNano int64       `msgpack:"created_unix_nano"`
	Codec           string      `msgpack:"codec"`
	Fields          []fieldWire `msgpack:"fields"`
}

type fieldWire struct {
	Name  string `msgpack:"name"`
	Kind  string `msgpack:"kind"`
	DType string `msgpack:"dtype"`
	Shape []int  `msgpack:"shape"`
}

func marshalHeader(h Header) ([]byte, error) {
	w := headerWire{
		SessionID:       h.SessionID,
		CreatedUnixNano: h.CreatedAt.UnixNano(),
		Codec:           h.Codec.String(),
	}
	for _, f := range h.Schema.fields {
		w.Fields = append(w.Fields, fieldWire{
			Name:  f.Name,
			Kind:  f.Kind.String(),
			DType: f.DType.String(),
			Shape: f.Shape,
		})
	}
	return msgpack.Marshal(&w)
}

func unmarshalHeader(b []byte) (Header, error) {
	var w headerWire
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return Header{}, formatErrorf("decode header: %v", err)
	}
	codec, err := ParseCodec(w.Codec)
	if err != nil {
		return Header{}, formatErrorf("header: %v", err)
	}
	fields := make([]Field, 0, len(w.Fields))
	for _, fw := range w.Fields {
		kind, err := ParseKind(fw.Kind)
		if err != nil {
			return Header{}, formatErrorf("header field %q: %v", fw.Name, err)
		}
		dtype, err := ParseDType(fw.DType)
		if err != nil {
			return Header{}, formatErrorf("header field %q: %v", fw.Name, err)
		}
		fields = append(fields, Field{Name: fw.Name, Kind: kind, DType: dtype, Shape: fw.Shape})
	}
	schema, err := NewSchema(fields...)
	if err != nil {
		return Header{}, formatErrorf("header schema: %v", err)
	}
	return Header{
		SessionID: w.SessionID,
		CreatedAt: time.Unix(0, w.CreatedUnixNano),
		Codec:     codec,
		Schema:    schema,
	}, nil
}

// IsFinalized reports whether the log at path has a finalized preamble.
// A missing file or one still being written reports false without error.
func IsFinalized(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, ioError("open", err)
	}
	defer f.Close()

	p, err := readPreamble(f)
	if err != nil {
		if errors.Is(err, ErrFormat) {
			fi, serr := f.Stat()
			if serr == nil && fi.Size() < preambleSize {
				return false, nil
			}
		}
		return false, err
	}
	return p.finalized(), nil
}
