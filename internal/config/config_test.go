package config

import (
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Table-Driven Tests: Validate
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantErr   bool
		errSubstr string
	}{
		{
			name:    "defaults with capture-all are valid",
			mutate:  func(cfg *Config) { cfg.CaptureAll = true },
			wantErr: false,
		},
		{
			name:    "pid target is valid",
			mutate:  func(cfg *Config) { cfg.TargetPid = 7 },
			wantErr: false,
		},
		{
			name:    "name target is valid",
			mutate:  func(cfg *Config) { cfg.TargetNames = []string{"game.exe"} },
			wantErr: false,
		},
		{
			name:      "no selection rejected",
			mutate:    func(cfg *Config) {},
			wantErr:   true,
			errSubstr: "process_selection",
		},
		{
			name: "capture-all plus pid rejected",
			mutate: func(cfg *Config) {
				cfg.CaptureAll = true
				cfg.TargetPid = 7
			},
			wantErr:   true,
			errSubstr: "capture_all",
		},
		{
			name: "bad verbosity rejected",
			mutate: func(cfg *Config) {
				cfg.CaptureAll = true
				cfg.Verbosity = "chatty"
			},
			wantErr:   true,
			errSubstr: "verbosity",
		},
		{
			name: "bad log format rejected",
			mutate: func(cfg *Config) {
				cfg.CaptureAll = true
				cfg.LogFormat = "xml"
			},
			wantErr:   true,
			errSubstr: "log_format",
		},
		{
			name: "missing trace file rejected",
			mutate: func(cfg *Config) {
				cfg.CaptureAll = true
				cfg.EtlFile = filepath.Join("definitely", "missing.jsonl")
			},
			wantErr:   true,
			errSubstr: "etl_file",
		},
		{
			name: "negative delay rejected",
			mutate: func(cfg *Config) {
				cfg.CaptureAll = true
				cfg.Delay = -1
			},
			wantErr:   true,
			errSubstr: "delay",
		},
		{
			name: "all outputs disabled rejected",
			mutate: func(cfg *Config) {
				cfg.CaptureAll = true
				cfg.OutputFile = ""
				cfg.LsrOutputFile = ""
				cfg.SimpleConsole = true
			},
			wantErr:   true,
			errSubstr: "output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("error %q does not mention %q", err, tt.errSubstr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// =============================================================================
// Tests: ReplayMode
// =============================================================================

func TestReplayMode(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ReplayMode() {
		t.Error("ReplayMode() = true without etl file")
	}
	cfg.EtlFile = "capture.jsonl"
	if !cfg.ReplayMode() {
		t.Error("ReplayMode() = false with etl file")
	}
}

// =============================================================================
// Tests: DefaultConfig
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Verbosity != "normal" {
		t.Errorf("Verbosity = %q, want normal", cfg.Verbosity)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if !cfg.TUIEnabled {
		t.Error("TUIEnabled = false, want true")
	}
	if cfg.OutputFile == "" {
		t.Error("OutputFile empty, want a default path")
	}
}
