package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (SIMREPLAY_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("mode", os.Getenv("SIMREPLAY_MODE"), &cfg.Mode)
	s.setString("log-path", os.Getenv("SIMREPLAY_LOG_PATH"), &cfg.LogPath)
	s.setString("compression", os.Getenv("SIMREPLAY_COMPRESSION"), &cfg.Compression)
	s.setString("metrics-textfile", os.Getenv("SIMREPLAY_METRICS_TEXTFILE"), &cfg.MetricsTextfile)
	s.setString("log-level", os.Getenv("SIMREPLAY_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("duration", os.Getenv("SIMREPLAY_DURATION"), &cfg.Duration); err != nil {
		return err
	}
	if err := s.setDuration("wait-timeout", os.Getenv("SIMREPLAY_WAIT_TIMEOUT"), &cfg.WaitTimeout); err != nil {
		return err
	}
	if err := s.setByteSize("max-blob-size", os.Getenv("SIMREPLAY_MAX_BLOB_SIZE"), &cfg.MaxBlobSize); err != nil {
		return err
	}
	if err := s.setByteSize("dir-limit", os.Getenv("SIMREPLAY_DIR_LIMIT"), &cfg.DirLimit); err != nil {
		return err
	}

	if err := s.setIntFromString("flush-every", os.Getenv("SIMREPLAY_FLUSH_EVERY"), &cfg.FlushEvery); err != nil {
		return err
	}
	if err := s.setIntFromString("max-frames", os.Getenv("SIMREPLAY_MAX_FRAMES"), &cfg.MaxFrames); err != nil {
		return err
	}

	s.setBoolFromString("overwrite", os.Getenv("SIMREPLAY_OVERWRITE"), &cfg.Overwrite)
	s.setBoolFromString("sync", os.Getenv("SIMREPLAY_SYNC"), &cfg.Sync)
	s.setBoolFromString("full-state", os.Getenv("SIMREPLAY_FULL_STATE"), &cfg.FullState)
	s.setBoolFromString("wait", os.Getenv("SIMREPLAY_WAIT"), &cfg.Wait)
	s.setBoolFromString("profile", os.Getenv("SIMREPLAY_PROFILE"), &cfg.Profile)

	return nil
}
