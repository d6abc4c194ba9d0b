// Package log provides the logging abstraction used by simreplay components.
//
// Recording and replay code never talks to a concrete logging library. It
// receives a Logger and attaches structured fields such as the log path or
// the frame index. A zerolog adapter is provided for the CLI, and a no-op
// logger is the default for library use and tests.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	w, err := logfile.Create(path, schema, logfile.WriterOptions{Logger: logger})
//
// Component loggers are derived with With:
//
//	wlog := logger.With(log.String("component", "writer"), log.String("path", path))
package log
