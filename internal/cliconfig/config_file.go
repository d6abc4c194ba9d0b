package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with strings for durations and sizes to keep
// the TOML readable.
type FileConfig struct {
	Mode            string `toml:"mode"`
	LogPath         string `toml:"log_path"`
	FlushEvery      int    `toml:"flush_every"`
	Overwrite       *bool  `toml:"overwrite"`
	Sync            *bool  `toml:"sync"`
	Duration        string `toml:"duration"`
	FullState       *bool  `toml:"full_state"`
	Compression     string `toml:"compression"`
	MaxBlobSize     string `toml:"max_blob_size"`
	DirLimit        string `toml:"dir_limit"`
	Wait            *bool  `toml:"wait"`
	WaitTimeout     string `toml:"wait_timeout"`
	MaxFrames       int    `toml:"max_frames"`
	Profile         *bool  `toml:"profile"`
	MetricsTextfile string `toml:"metrics_textfile"`
	LogLevel        string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.simreplay/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".simreplay", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("mode", fc.Mode, &cfg.Mode)
	s.setString("log-path", fc.LogPath, &cfg.LogPath)
	s.setString("compression", fc.Compression, &cfg.Compression)
	s.setString("metrics-textfile", fc.MetricsTextfile, &cfg.MetricsTextfile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("duration", fc.Duration, &cfg.Duration); err != nil {
		return err
	}
	if err := s.setDuration("wait-timeout", fc.WaitTimeout, &cfg.WaitTimeout); err != nil {
		return err
	}
	if err := s.setByteSize("max-blob-size", fc.MaxBlobSize, &cfg.MaxBlobSize); err != nil {
		return err
	}
	if err := s.setByteSize("dir-limit", fc.DirLimit, &cfg.DirLimit); err != nil {
		return err
	}

	s.setInt("flush-every", fc.FlushEvery, &cfg.FlushEvery)
	s.setInt("max-frames", fc.MaxFrames, &cfg.MaxFrames)

	s.setBool("overwrite", fc.Overwrite, &cfg.Overwrite)
	s.setBool("sync", fc.Sync, &cfg.Sync)
	s.setBool("full-state", fc.FullState, &cfg.FullState)
	s.setBool("wait", fc.Wait, &cfg.Wait)
	s.setBool("profile", fc.Profile, &cfg.Profile)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
