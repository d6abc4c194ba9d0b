package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/rs/zerolog"

	"github.com/bft-labs/simreplay/pkg/logfile"
)

// Session modes.
const (
	ModeSave   = "save"
	ModeReplay = "replay"
)

// DefaultLogPath is where sessions are recorded unless configured otherwise.
const DefaultLogPath = "vr_logs/vr_states_sr.srlog"

// Config holds CLI configuration for simreplay.
type Config struct {
	Mode    string
	LogPath string

	// Recording
	FlushEvery  int
	Overwrite   bool
	Sync        bool
	Duration    time.Duration
	FullState   bool
	Compression string
	MaxBlobSize datasize.ByteSize

	// DirLimit prunes the oldest finalized logs in the log directory before
	// recording once it grows past this size. Zero disables pruning.
	DirLimit datasize.ByteSize

	// Replay
	Wait        bool
	WaitTimeout time.Duration

	MaxFrames       int
	Profile         bool
	MetricsTextfile string
	LogLevel        string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeSave,
		LogPath:     DefaultLogPath,
		FlushEvery:  logfile.DefaultFlushEvery,
		Duration:    30 * time.Second,
		FullState:   true,
		Compression: logfile.CodecZstd.String(),
		MaxBlobSize: 64 * datasize.MB,
		WaitTimeout: 5 * time.Minute,
		LogLevel:    zerolog.InfoLevel.String(),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Mode != ModeSave && c.Mode != ModeReplay {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeSave, ModeReplay, c.Mode)
	}
	if c.LogPath == "" {
		return fmt.Errorf("log-path is required")
	}
	if c.FlushEvery <= 0 {
		return fmt.Errorf("flush-every must be positive")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("max-frames must not be negative")
	}
	if _, err := logfile.ParseCodec(c.Compression); err != nil {
		return fmt.Errorf("compression: %w", err)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	if c.Wait && c.WaitTimeout <= 0 {
		return fmt.Errorf("wait-timeout must be positive when waiting")
	}
	return nil
}

// Codec returns the configured blob codec. Call Validate first.
func (c *Config) Codec() logfile.Codec {
	codec, _ := logfile.ParseCodec(c.Compression)
	return codec
}

// Level returns the configured log level. Call Validate first.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setByteSize parses sizes such as "512KB" or "64MB".
func (s *configSetter) setByteSize(flag, value string, dst *datasize.ByteSize) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	var b datasize.ByteSize
	if err := b.UnmarshalText([]byte(value)); err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = b
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
