package logfile

import (
	"errors"
	"fmt"
)

// Errors returned by writers and readers. Callers match them with errors.Is;
// the returned errors wrap them with context.
var (
	// ErrIO is returned when a log file cannot be created, opened, written or read.
	ErrIO = errors.New("logfile: i/o failure")

	// ErrSchema is returned for unknown fields, type or shape mismatches, and
	// frames committed with fields missing.
	ErrSchema = errors.New("logfile: schema violation")

	// ErrFormat is returned when a log file is corrupt, truncated or was never finalized.
	ErrFormat = errors.New("logfile: invalid format")

	// ErrEndOfData is returned by ReadFrame once every frame has been read.
	ErrEndOfData = errors.New("logfile: end of data")

	// ErrClosed is returned by operations on a closed writer or reader.
	ErrClosed = errors.New("logfile: closed")
)

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

func schemaErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func formatErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}
