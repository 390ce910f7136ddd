// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/randomizedcoder/go-present-mon/internal/qpc"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(clock *qpc.Clock, outputFile, lsrOutputFile, etlFile string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	counterCheck := checkCounterFrequency(clock)
	result.Checks = append(result.Checks, counterCheck)
	if !counterCheck.Passed {
		result.Passed = false
	}

	for _, path := range []string{outputFile, lsrOutputFile} {
		if path == "" {
			continue
		}
		outCheck := checkOutputWritable(path)
		result.Checks = append(result.Checks, outCheck)
		if !outCheck.Passed {
			result.Passed = false
		}
	}

	if etlFile != "" {
		traceCheck := checkTraceReadable(etlFile)
		result.Checks = append(result.Checks, traceCheck)
		if !traceCheck.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkCounterFrequency verifies the high-resolution counter is usable.
// A zero frequency makes every derived statistic meaningless, so the engine
// refuses to start.
func checkCounterFrequency(clock *qpc.Clock) Check {
	if clock == nil || clock.Frequency() == 0 {
		return Check{
			Name:    "counter frequency",
			Passed:  false,
			Message: "high-resolution counter reports zero frequency",
		}
	}
	return Check{
		Name:    "counter frequency",
		Passed:  true,
		Message: fmt.Sprintf("%d Hz", clock.Frequency()),
	}
}

// checkOutputWritable verifies the directory holding an output file accepts
// writes. The file itself opens lazily on the first recorded row.
func checkOutputWritable(path string) Check {
	dir := filepath.Dir(path)
	probe, err := os.CreateTemp(dir, ".present-mon-probe-*")
	if err != nil {
		return Check{
			Name:    "output directory",
			Passed:  false,
			Message: fmt.Sprintf("%s not writable: %v", dir, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())
	return Check{
		Name:    "output directory",
		Passed:  true,
		Message: dir + " writable",
	}
}

// checkTraceReadable verifies the recorded trace file can be opened.
func checkTraceReadable(path string) Check {
	f, err := os.Open(path)
	if err != nil {
		return Check{
			Name:    "trace file",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", path, err),
		}
	}
	f.Close()
	return Check{
		Name:    "trace file",
		Passed:  true,
		Message: path + " readable",
	}
}
