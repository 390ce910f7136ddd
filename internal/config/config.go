// Package config provides configuration management for go-present-mon.
package config

import "time"

// Config holds all configuration options for the capture engine.
type Config struct {
	// Process selection
	CaptureAll   bool     `json:"capture_all"`
	TargetPid    uint32   `json:"process_id"`
	TargetNames  []string `json:"process_names"`
	ExcludeNames []string `json:"exclude_names"`

	// Output
	OutputFile     string `json:"output_file"`
	LsrOutputFile  string `json:"lsr_output_file"`
	MultiCsv       bool   `json:"multi_csv"`
	ExcludeDropped bool   `json:"exclude_dropped"`
	Verbosity      string `json:"verbosity"` // simple, normal, verbose

	// Capture source
	EtlFile string `json:"etl_file"` // read a recorded trace instead of a live session

	// Lifecycle
	TerminateOnProcExit bool          `json:"terminate_on_proc_exit"`
	Delay               time.Duration `json:"delay"` // wait before recording starts
	Timed               time.Duration `json:"timed"` // stop recording after this long (0 = until toggled)

	// Console
	SimpleConsole bool `json:"simple_console"`
	TUIEnabled    bool `json:"tui"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	HostWsURL   string `json:"host_ws_url"` // forward host-export frames to this collector
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Diagnostics
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Output
		OutputFile:    "presents.csv",
		LsrOutputFile: "lsr.csv",
		Verbosity:     "normal",

		// Console
		TUIEnabled: true,

		// Observability
		MetricsAddr: "0.0.0.0:17092",
		LogFormat:   "json",
	}
}

// ReplayMode reports whether events come from a recorded trace file.
func (c *Config) ReplayMode() bool {
	return c.EtlFile != ""
}
