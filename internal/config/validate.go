package config

import (
	"errors"
	"fmt"
	"os"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	// Verbosity must be valid
	validVerbosity := map[string]bool{"simple": true, "normal": true, "verbose": true}
	if !validVerbosity[cfg.Verbosity] {
		errs = append(errs, ValidationError{
			Field:   "verbosity",
			Message: fmt.Sprintf("must be one of: simple, normal, verbose (got %q)", cfg.Verbosity),
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// -capture-all is incompatible with explicit targeting
	if cfg.CaptureAll && (cfg.TargetPid != 0 || len(cfg.TargetNames) > 0) {
		errs = append(errs, ValidationError{
			Field:   "capture_all",
			Message: "cannot combine -capture-all with -process-id or -process-name",
		})
	}

	// A target is required unless capturing everything
	if !cfg.CaptureAll && cfg.TargetPid == 0 && len(cfg.TargetNames) == 0 {
		errs = append(errs, ValidationError{
			Field:   "process_selection",
			Message: "specify -capture-all, -process-id, or -process-name",
		})
	}

	// Trace file must exist when given
	if cfg.EtlFile != "" {
		if _, err := os.Stat(cfg.EtlFile); err != nil {
			errs = append(errs, ValidationError{
				Field:   "etl_file",
				Message: fmt.Sprintf("cannot read %q: %v", cfg.EtlFile, err),
			})
		}
	}

	// Durations must be non-negative
	if cfg.Delay < 0 {
		errs = append(errs, ValidationError{
			Field:   "delay",
			Message: "must be non-negative",
		})
	}
	if cfg.Timed < 0 {
		errs = append(errs, ValidationError{
			Field:   "timed",
			Message: "must be non-negative",
		})
	}

	// At least one output sink must remain
	if cfg.OutputFile == "" && cfg.LsrOutputFile == "" && cfg.SimpleConsole && cfg.HostWsURL == "" {
		errs = append(errs, ValidationError{
			Field:   "output",
			Message: "all outputs disabled: set -output-file, -lsr-output-file, -host-ws, or drop -simple-console",
		})
	}

	return errors.Join(errs...)
}
