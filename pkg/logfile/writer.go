package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/bft-labs/simreplay/pkg/log"
)

// DefaultFlushEvery is the number of frames buffered before a disk write
// when WriterOptions.FlushEvery is unset.
const DefaultFlushEvery = 200

// WriterOptions configures a Writer.
type WriterOptions struct {
	// FlushEvery is the number of committed frames buffered before they are
	// appended to disk. Zero means DefaultFlushEvery.
	FlushEvery int

	// Overwrite truncates an existing file instead of failing.
	Overwrite bool

	// Codec compresses blob fields.
	Codec Codec

	// MaxBlobBytes rejects larger blob values. Zero means unlimited.
	MaxBlobBytes int

	// Sync fsyncs the file after every flush.
	Sync bool

	// SessionID is recorded in the header. A random UUID is used when empty.
	SessionID string

	Logger log.Logger

	// OnFlush is called after every successful disk write with the number of
	// frames and bytes appended.
	OnFlush func(frames, bytes int)
}

// Writer appends frames to a log file. It is not safe for concurrent use.
type Writer struct {
	path   string
	file   *os.File
	schema *Schema
	opts   WriterOptions
	logger log.Logger
	header Header

	headerBytes []byte

	cur           *frameBuffer
	pending       []byte
	pendingFrames int

	committed uint64
	persisted uint64
	bodyLen   uint64

	// failed is set when a disk write went wrong; Close then leaves the file
	// unfinalized so it can never be mistaken for a complete log.
	failed error
	closed bool
}

// Create creates the log at path and writes its header. The frame count in
// the header stays unfinalized until Close.
func Create(path string, schema *Schema, opts WriterOptions) (*Writer, error) {
	if schema == nil || schema.Len() == 0 {
		return nil, schemaErrorf("writer needs a non-empty schema")
	}
	if !opts.Codec.valid() {
		return nil, schemaErrorf("unknown codec %d", opts.Codec)
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	logger := log.OrNoop(opts.Logger).With(log.String("component", "logfile.writer"), log.Path(path))

	header := Header{
		SessionID:     opts.SessionID,
		CreatedAt:     time.Now().UTC(),
		Codec:         opts.Codec,
		FormatVersion: FormatVersion,
		Schema:        schema,
	}
	hb, err := marshalHeader(header)
	if err != nil {
		return nil, schemaErrorf("encode header: %v", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ioError("create log directory", err)
		}
	}
	flags := os.O_RDWR | os.O_CREATE
	if opts.Overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ioError("create", fmt.Errorf("%s already exists and overwrite is disabled: %w", path, err))
		}
		return nil, ioError("create", err)
	}

	w := &Writer{
		path:        path,
		file:        f,
		schema:      schema,
		opts:        opts,
		logger:      logger,
		header:      header,
		headerBytes: hb,
		cur:         newFrameBuffer(schema),
	}
	pre := w.preamble(unfinalizedCount, 0, 0)
	if _, err := f.Write(append(pre.marshal(), hb...)); err != nil {
		return nil, multierr.Append(ioError("write header", err), f.Close())
	}

	logger.Debug("log created",
		log.String("session", opts.SessionID),
		log.Int("fields", schema.Len()),
		log.Int("flush_every", opts.FlushEvery),
		log.String("codec", opts.Codec.String()),
	)
	return w, nil
}

func (w *Writer) preamble(frames, bodyLen uint64, flags uint16) preamble {
	return preamble{
		version:    FormatVersion,
		flags:      flags,
		headerLen:  uint32(len(w.headerBytes)),
		frameCount: frames,
		bodyLen:    bodyLen,
		headerSum:  xxhash.Sum64(w.headerBytes),
	}
}

// WriteField stores value under name in the in-progress frame. Writing the
// same field twice before CommitFrame keeps the later value.
func (w *Writer) WriteField(name string, value interface{}) error {
	if w.closed {
		return ErrClosed
	}
	f, i, ok := w.schema.Lookup(name)
	if !ok {
		return schemaErrorf("unknown field %q", name)
	}
	enc, err := encodeValue(f, value)
	if err != nil {
		return err
	}
	if f.Kind == KindBlob {
		if w.opts.MaxBlobBytes > 0 && len(enc) > w.opts.MaxBlobBytes {
			return schemaErrorf("blob %q is %d bytes, limit is %d", name, len(enc), w.opts.MaxBlobBytes)
		}
		enc, err = w.opts.Codec.compress(enc)
		if err != nil {
			return fmt.Errorf("compress blob %q: %w", name, err)
		}
		if uint64(len(enc)) > maxBlobLen() {
			return schemaErrorf("blob %q is %d bytes stored, a record holds at most %d", name, len(enc), maxBlobLen())
		}
		if w.opts.Codec == CodecNone {
			// the caller may reuse its buffer before the frame is flushed
			enc = append([]byte(nil), enc...)
		}
	}
	w.cur.put(i, enc)
	return nil
}

// CommitFrame closes the in-progress frame and buffers it. It fails, without
// appending anything, if any schema field was not written. Every FlushEvery
// frames the buffer is appended to disk.
func (w *Writer) CommitFrame() error {
	if w.closed {
		return ErrClosed
	}
	if !w.cur.complete() {
		return schemaErrorf("frame %d is missing fields: %s", w.committed, strings.Join(w.cur.missing(), ", "))
	}
	if n := w.cur.recordLen(); n > maxRecordLen {
		return schemaErrorf("frame %d encodes to %d bytes, a record holds at most %d", w.committed, n, maxRecordLen)
	}
	w.pending = w.cur.appendRecord(w.pending, w.committed)
	w.pendingFrames++
	w.committed++
	w.cur.reset()

	if w.pendingFrames >= w.opts.FlushEvery {
		return w.Flush()
	}
	return nil
}

// Flush appends buffered frames to disk.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}
	return w.flush()
}

func (w *Writer) flush() error {
	if w.failed != nil {
		return w.failed
	}
	if w.pendingFrames == 0 {
		return nil
	}
	n, err := w.file.Write(w.pending)
	if err != nil {
		w.failed = ioError("append frames", err)
		return w.failed
	}
	if w.opts.Sync {
		if err := w.file.Sync(); err != nil {
			w.failed = ioError("sync", err)
			return w.failed
		}
	}
	frames := w.pendingFrames
	w.persisted += uint64(frames)
	w.bodyLen += uint64(n)
	w.pending = w.pending[:0]
	w.pendingFrames = 0

	w.logger.Debug("frames flushed",
		log.Int("frames", frames),
		log.Int("bytes", n),
		log.Uint64("persisted", w.persisted),
	)
	if w.opts.OnFlush != nil {
		w.opts.OnFlush(frames, n)
	}
	return nil
}

// Close flushes buffered frames, patches the header with the final frame
// count and closes the file. Only the first call does any work.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.flush()
	if err == nil {
		if _, werr := w.file.WriteAt(w.preamble(w.persisted, w.bodyLen, flagFinalized).marshal(), 0); werr != nil {
			err = ioError("finalize header", werr)
		} else if serr := w.file.Sync(); serr != nil {
			err = ioError("sync", serr)
		}
	}
	if cerr := w.file.Close(); cerr != nil {
		err = multierr.Append(err, ioError("close", cerr))
	}
	if err != nil {
		w.logger.Error("log left unfinalized", log.Err(err), log.Uint64("committed", w.committed))
		return err
	}
	w.logger.Info("log finalized",
		log.Uint64("frames", w.persisted),
		log.Uint64("body_bytes", w.bodyLen),
	)
	return nil
}

// Discard closes the file without finalizing it and removes it, dropping any
// buffered frames. It is for a log whose session never started; a crashed
// session should Close instead so its frames survive. Only the first call
// does any work, and Close after Discard is a no-op.
func (w *Writer) Discard() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.pending = w.pending[:0]
	w.pendingFrames = 0

	var err error
	if cerr := w.file.Close(); cerr != nil {
		err = ioError("close", cerr)
	}
	if rerr := os.Remove(w.path); rerr != nil && !os.IsNotExist(rerr) {
		err = multierr.Append(err, ioError("remove", rerr))
	}
	w.logger.Info("log discarded", log.Uint64("committed", w.committed))
	return err
}

// Snapshot writes a finalized copy of everything persisted so far to dst.
// Buffered frames are not included and the live log is not modified.
func (w *Writer) Snapshot(dst string) error {
	if w.closed {
		return ErrClosed
	}
	if w.failed != nil {
		return w.failed
	}
	if filepath.Clean(dst) == filepath.Clean(w.path) {
		return ioError("create snapshot", fmt.Errorf("snapshot destination is the live log %s", dst))
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ioError("create snapshot", err)
	}
	pre := w.preamble(w.persisted, w.bodyLen, flagFinalized).marshal()
	_, err = out.Write(pre)
	if err == nil {
		section := io.NewSectionReader(w.file, preambleSize, int64(len(w.headerBytes))+int64(w.bodyLen))
		_, err = io.Copy(out, section)
	}
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	if err != nil {
		return ioError("write snapshot", err)
	}
	w.logger.Debug("snapshot written", log.String("dst", dst), log.Uint64("frames", w.persisted))
	return nil
}

// Path returns the log file path.
func (w *Writer) Path() string { return w.path }

// Schema returns the schema frames are written with.
func (w *Writer) Schema() *Schema { return w.schema }

// Header returns the session header. FrameCount is the number of frames
// persisted so far.
func (w *Writer) Header() Header {
	h := w.header
	h.FrameCount = w.persisted
	return h
}

// Committed returns the number of frames committed, i.e. the index the next
// frame will get.
func (w *Writer) Committed() uint64 { return w.committed }

// Persisted returns the number of frames appended to disk.
func (w *Writer) Persisted() uint64 { return w.persisted }

// Buffered returns the number of committed frames not yet on disk.
func (w *Writer) Buffered() int { return w.pendingFrames }
