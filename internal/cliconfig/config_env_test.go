package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"SIMREPLAY_MODE":        "replay",
				"SIMREPLAY_LOG_PATH":    "/env/log.srlog",
				"SIMREPLAY_FLUSH_EVERY": "10",
				"SIMREPLAY_DURATION":    "1m",
				"SIMREPLAY_MAX_FRAMES":  "900",
				"SIMREPLAY_PROFILE":     "true",
				"SIMREPLAY_FULL_STATE":  "0",
			},
			changed: map[string]bool{},
			initial: Config{FullState: true},
			expected: Config{
				Mode:       "replay",
				LogPath:    "/env/log.srlog",
				FlushEvery: 10,
				Duration:   time.Minute,
				MaxFrames:  900,
				Profile:    true,
				FullState:  false,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"SIMREPLAY_MODE":     "replay",
				"SIMREPLAY_LOG_PATH": "/env/log.srlog",
			},
			changed:  map[string]bool{"mode": true},
			initial:  Config{Mode: "save"},
			expected: Config{Mode: "save", LogPath: "/env/log.srlog"},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"SIMREPLAY_WAIT_TIMEOUT": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"SIMREPLAY_FLUSH_EVERY": "often"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid size",
			envVars: map[string]string{"SIMREPLAY_MAX_BLOB_SIZE": "12 parsecs"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File)
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		Mode:       "replay",
		LogPath:    "/file/log.srlog",
		FlushEvery: 5,
		Profile:    &trueVal,
	}

	t.Setenv("SIMREPLAY_LOG_PATH", "/env/log.srlog")
	t.Setenv("SIMREPLAY_FLUSH_EVERY", "7")
	t.Setenv("SIMREPLAY_COMPRESSION", "none")

	changed := map[string]bool{
		"flush-every": true,
	}
	cfg := DefaultConfig()
	cfg.FlushEvery = 9 // set on the command line

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.FlushEvery != 9 {
		t.Errorf("FlushEvery = %v, want 9 (CLI should win)", cfg.FlushEvery)
	}
	if cfg.LogPath != "/env/log.srlog" {
		t.Errorf("LogPath = %v, want /env/log.srlog (env should override file)", cfg.LogPath)
	}
	if cfg.Compression != "none" {
		t.Errorf("Compression = %v, want none (env should set)", cfg.Compression)
	}
	if cfg.Mode != "replay" || !cfg.Profile {
		t.Errorf("Mode = %v, Profile = %v, want replay/true (file should set)", cfg.Mode, cfg.Profile)
	}
}
