package logfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/bft-labs/simreplay/pkg/log"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Logger log.Logger
}

// Reader delivers the frames of a finalized log in index order. It is not
// safe for concurrent use.
type Reader struct {
	path   string
	file   *os.File
	header Header
	body   *bufio.Reader
	cursor uint64
	logger log.Logger
	closed bool
	failed error
}

// Open validates the log at path and positions the cursor at frame 0.
//
// Open fails with ErrFormat if the file was never finalized, if any checksum
// in the preamble or header fails, or if the recorded frame count and body
// length disagree with what is actually stored.
func Open(path string, opts ReaderOptions) (*Reader, error) {
	logger := log.OrNoop(opts.Logger).With(log.String("component", "logfile.reader"), log.Path(path))

	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("open", err)
	}
	r, err := open(f, path, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	logger.Debug("log opened",
		log.String("session", r.header.SessionID),
		log.Uint64("frames", r.header.FrameCount),
		log.Int("fields", r.header.Schema.Len()),
	)
	return r, nil
}

func open(f *os.File, path string, logger log.Logger) (*Reader, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, ioError("stat", err)
	}
	size := fi.Size()

	pre, err := readPreamble(f)
	if err != nil {
		return nil, err
	}
	if !pre.finalized() {
		return nil, formatErrorf("%s was not finalized (writer did not close)", path)
	}

	headerEnd := int64(preambleSize) + int64(pre.headerLen)
	if headerEnd > size {
		return nil, formatErrorf("header extends past end of file")
	}
	hb := make([]byte, pre.headerLen)
	if _, err := f.ReadAt(hb, preambleSize); err != nil {
		return nil, ioError("read header", err)
	}
	if xxhash.Sum64(hb) != pre.headerSum {
		return nil, formatErrorf("header checksum mismatch")
	}
	header, err := unmarshalHeader(hb)
	if err != nil {
		return nil, err
	}
	header.FormatVersion = pre.version
	header.FrameCount = pre.frameCount

	if want := headerEnd + int64(pre.bodyLen); want != size {
		return nil, formatErrorf("file is %d bytes, header declares %d", size, want)
	}
	if err := scanRecords(f, headerEnd, int64(pre.bodyLen), pre.frameCount); err != nil {
		return nil, err
	}

	return &Reader{
		path:   path,
		file:   f,
		header: header,
		body:   bufio.NewReaderSize(io.NewSectionReader(f, headerEnd, int64(pre.bodyLen)), 64*1024),
		logger: logger,
	}, nil
}

// scanRecords walks the record length prefixes of the body and checks that
// they tile it exactly with the declared number of frames.
func scanRecords(f io.ReaderAt, off, bodyLen int64, frames uint64) error {
	var (
		count  uint64
		pos    int64
		prefix [recordLenSize]byte
	)
	for pos < bodyLen {
		if bodyLen-pos < recordLenSize {
			return formatErrorf("truncated record prefix at body offset %d", pos)
		}
		if _, err := f.ReadAt(prefix[:], off+pos); err != nil {
			return ioError("scan records", err)
		}
		n := int64(binary.LittleEndian.Uint32(prefix[:]))
		if n < minRecordLen || pos+recordLenSize+n > bodyLen {
			return formatErrorf("record %d at body offset %d has bad length %d", count, pos, n)
		}
		pos += recordLenSize + n
		count++
	}
	if count != frames {
		return formatErrorf("header declares %d frames, body holds %d", frames, count)
	}
	return nil
}

// HasNext reports whether ReadFrame has another frame to return.
func (r *Reader) HasNext() bool {
	return !r.closed && r.failed == nil && r.cursor < r.header.FrameCount
}

// ReadFrame returns the frame at the cursor and advances it. It returns
// ErrEndOfData once every frame has been read. After a record fails to read or
// decode, the stream position is unknown and every later call returns the same
// error.
func (r *Reader) ReadFrame() (*Frame, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if r.failed != nil {
		return nil, r.failed
	}
	if r.cursor >= r.header.FrameCount {
		return nil, ErrEndOfData
	}
	frame, err := r.readRecord()
	if err != nil {
		r.failed = err
		r.logger.Warn("frame read failed", log.Uint64("frame", r.cursor), log.Err(err))
		return nil, err
	}
	r.cursor++
	return frame, nil
}

func (r *Reader) readRecord() (*Frame, error) {
	var prefix [recordLenSize]byte
	if _, err := io.ReadFull(r.body, prefix[:]); err != nil {
		return nil, r.readError(err)
	}
	body := make([]byte, binary.LittleEndian.Uint32(prefix[:]))
	if _, err := io.ReadFull(r.body, body); err != nil {
		return nil, r.readError(err)
	}
	frame, err := decodeRecord(r.header.Schema, r.header.Codec, body)
	if err != nil {
		return nil, err
	}
	if frame.index != r.cursor {
		return nil, formatErrorf("expected frame %d, found %d", r.cursor, frame.index)
	}
	return frame, nil
}

func (r *Reader) readError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return formatErrorf("frame %d truncated", r.cursor)
	}
	return ioError("read frame", err)
}

// Close releases the file. Further calls are no-ops.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.file.Close(); err != nil {
		return ioError("close", err)
	}
	return nil
}

// Header returns the session header including the final frame count.
func (r *Reader) Header() Header { return r.header }

// Schema returns the schema recorded in the header.
func (r *Reader) Schema() *Schema { return r.header.Schema }

// FrameCount returns the number of frames in the log.
func (r *Reader) FrameCount() uint64 { return r.header.FrameCount }

// Cursor returns the index of the next frame ReadFrame will return.
func (r *Reader) Cursor() uint64 { return r.cursor }

// Path returns the log file path.
func (r *Reader) Path() string { return r.path }
