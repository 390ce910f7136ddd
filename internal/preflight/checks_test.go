package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/randomizedcoder/go-present-mon/internal/qpc"
)

func testClock(t *testing.T) *qpc.Clock {
	t.Helper()
	clock, err := qpc.NewClockWithFrequency(1_000_000_000)
	if err != nil {
		t.Fatalf("NewClockWithFrequency: %v", err)
	}
	return clock
}

// =============================================================================
// Tests: RunAll
// =============================================================================

func TestRunAllPasses(t *testing.T) {
	dir := t.TempDir()
	trace := filepath.Join(dir, "capture.jsonl")
	if err := os.WriteFile(trace, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result := RunAll(testClock(t), filepath.Join(dir, "p.csv"), filepath.Join(dir, "l.csv"), trace)
	if !result.Passed {
		for _, c := range result.Checks {
			t.Log(c.String())
		}
		t.Fatal("preflight failed on a healthy setup")
	}
}

func TestRunAllNilClockFails(t *testing.T) {
	dir := t.TempDir()
	result := RunAll(nil, filepath.Join(dir, "p.csv"), "", "")
	if result.Passed {
		t.Fatal("preflight passed with no counter clock")
	}
}

func TestRunAllUnwritableOutputFails(t *testing.T) {
	result := RunAll(testClock(t), filepath.Join(t.TempDir(), "missing-dir", "p.csv"), "", "")
	if result.Passed {
		t.Fatal("preflight passed with unwritable output directory")
	}
}

func TestRunAllMissingTraceFails(t *testing.T) {
	dir := t.TempDir()
	result := RunAll(testClock(t), filepath.Join(dir, "p.csv"), "", filepath.Join(dir, "nope.jsonl"))
	if result.Passed {
		t.Fatal("preflight passed with missing trace file")
	}
}

// TestRunAllSkipsEmptyPaths: disabled outputs are not checked.
func TestRunAllSkipsEmptyPaths(t *testing.T) {
	result := RunAll(testClock(t), "", "", "")
	if !result.Passed {
		t.Fatal("preflight failed with everything disabled")
	}
	if len(result.Checks) != 1 {
		t.Errorf("checks = %d, want only the counter check", len(result.Checks))
	}
}
