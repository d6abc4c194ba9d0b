package cliconfig

import (
	"github.com/rs/zerolog"

	"github.com/bft-labs/simreplay/pkg/log"
)

var logger = log.NewConsoleLogger(zerolog.DebugLevel)

// Logger returns the package logger. Callers narrow it with
// Logger().Level(cfg.Level()).
func Logger() zerolog.Logger {
	return logger
}
