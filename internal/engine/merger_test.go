package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/randomizedcoder/go-present-mon/internal/config"
	"github.com/randomizedcoder/go-present-mon/internal/logging"
	"github.com/randomizedcoder/go-present-mon/internal/process"
	"github.com/randomizedcoder/go-present-mon/internal/qpc"
	"github.com/randomizedcoder/go-present-mon/internal/record"
	"github.com/randomizedcoder/go-present-mon/internal/trace"
)

// testFrequency makes one tick equal one millisecond.
const testFrequency = 1000

// =============================================================================
// Test Doubles
// =============================================================================

type fakeSource struct {
	queue       *trace.Queue
	clock       *qpc.Clock
	done        chan struct{}
	eventsLost  uint64
	buffersLost uint64
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	clock, err := qpc.NewClockWithFrequency(testFrequency)
	if err != nil {
		t.Fatalf("NewClockWithFrequency: %v", err)
	}
	return &fakeSource{
		queue: trace.NewQueue(),
		clock: clock,
		done:  make(chan struct{}),
	}
}

func (s *fakeSource) Queue() *trace.Queue              { return s.queue }
func (s *fakeSource) Clock() *qpc.Clock                { return s.clock }
func (s *fakeSource) Start(ctx context.Context) error  { return nil }
func (s *fakeSource) Done() <-chan struct{}            { return s.done }
func (s *fakeSource) LostCounts() (n, b uint64)        { return s.eventsLost, s.buffersLost }

type manualClock struct {
	now qpc.Qpc
}

func (c *manualClock) Now() qpc.Qpc { return c.now }

type fakeHandle struct {
	name string
}

func (h *fakeHandle) Name() (string, error)  { return h.name, nil }
func (h *fakeHandle) Running() (bool, error) { return true, nil }
func (h *fakeHandle) Close() error           { return nil }

type fakePlatform struct {
	names map[uint32]string
}

func (p *fakePlatform) Open(pid uint32) (process.Handle, error) {
	name, ok := p.names[pid]
	if !ok {
		return nil, errors.New("no such process")
	}
	return &fakeHandle{name: name}, nil
}

type fakeHost struct {
	consoles []ConsoleData
	rows     []CsvData
}

func (h *fakeHost) NotifyConsoleSnapshot(data ConsoleData) { h.consoles = append(h.consoles, data) }
func (h *fakeHost) NotifyCsvRow(data CsvData)              { h.rows = append(h.rows, data) }

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	engine  *Engine
	source  *fakeSource
	toggles *manualClock
	host    *fakeHost
	cfg     *config.Config
}

// newHarness builds an engine on a fake source, a controllable toggle clock,
// and a fake process platform naming every pid "game.exe" unless overridden.
func newHarness(t *testing.T, mutate func(cfg *config.Config), names map[uint32]string) *harness {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.CaptureAll = true
	cfg.OutputFile = filepath.Join(dir, "presents.csv")
	cfg.LsrOutputFile = filepath.Join(dir, "lsr.csv")
	cfg.Verbosity = "simple"
	if mutate != nil {
		mutate(cfg)
	}

	source := newFakeSource(t)
	host := &fakeHost{}

	eng, err := New(cfg, logging.NewNopLogger(), source, host)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	// Deterministic toggle timestamps and process names.
	tc := &manualClock{}
	eng.toggles = record.NewToggleLog(tc, cfg.ReplayMode())
	if names == nil {
		names = map[uint32]string{7: "game.exe"}
	}
	eng.registry = process.NewRegistry(process.RegistryConfig{
		Clock: eng.clock,
		Filter: process.Filter{
			TargetPid:    cfg.TargetPid,
			TargetNames:  cfg.TargetNames,
			ExcludeNames: cfg.ExcludeNames,
		},
		Platform:            &fakePlatform{names: names},
		Opener:              eng,
		Logger:              eng.logger,
		MultiCsv:            cfg.MultiCsv,
		TerminateOnProcExit: cfg.TerminateOnProcExit,
		OnQuitRequest:       eng.RequestStop,
	})

	return &harness{engine: eng, source: source, toggles: tc, host: host, cfg: cfg}
}

func (h *harness) toggleAt(now qpc.Qpc, on bool) {
	h.toggles.now = now
	h.engine.toggles.SetRecording(on)
}

func (h *harness) present(pid uint32, qpcTime uint64, state trace.PresentResult) {
	h.source.queue.EnqueuePresent(trace.PresentEvent{
		ProcessID:        pid,
		SwapChainAddress: 0xA,
		QpcTime:          qpcTime,
		TimeTaken:        2,
		ScreenTime:       qpcTime + 10,
		FinalState:       state,
		Runtime:          trace.RuntimeDXGI,
		SyncInterval:     1,
	})
}

// csvRows returns the data rows of the present CSV (header and trailer
// stripped), flushing the writers first.
func (h *harness) csvRows(t *testing.T) []string {
	t.Helper()
	h.engine.shutdown()

	data, err := os.ReadFile(h.cfg.OutputFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	// header + rows + 2 trailer lines
	if len(lines) < 3 {
		t.Fatalf("csv too short: %q", lines)
	}
	return lines[1 : len(lines)-2]
}

func field(t *testing.T, row string, idx int) string {
	t.Helper()
	fields := strings.Split(row, ",")
	if idx >= len(fields) {
		t.Fatalf("row %q has no field %d", row, idx)
	}
	return fields[idx]
}

// Simple-verbosity present CSV column indices.
const (
	colTimeInSeconds     = 7
	colMsBetweenPresents = 8
)

// =============================================================================
// S1: single target, record toggles
// =============================================================================

func TestMergerRecordToggles(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.toggleAt(150, true)
	h.toggleAt(350, false)

	for _, q := range []uint64{100, 200, 300, 400} {
		h.present(7, q, trace.PresentResultPresented)
	}

	h.engine.processEvents()

	// Both toggles consumed.
	if pending := h.engine.toggles.PendingToggles(); pending != 0 {
		t.Errorf("pending toggles = %d, want 0", pending)
	}

	rows := h.csvRows(t)
	if len(rows) != 2 {
		t.Fatalf("rows = %d (%q), want 2", len(rows), rows)
	}

	// Rows for qpc 200 and 300: no prior entry at 100, recording off at 400.
	wantTimes := []string{"0.200000", "0.300000"}
	for i, want := range wantTimes {
		if got := field(t, rows[i], colTimeInSeconds); got != want {
			t.Errorf("row %d TimeInSeconds = %s, want %s", i, got, want)
		}
		if got := field(t, rows[i], colMsBetweenPresents); got != "100.000000" {
			t.Errorf("row %d msBetweenPresents = %s, want 100.000000", i, got)
		}
	}
}

// =============================================================================
// S2: excluded process
// =============================================================================

func TestMergerExcludedProcess(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.ExcludeNames = []string{"foo.exe"}
	}, map[uint32]string{7: "foo.exe"})

	h.toggleAt(50, true)
	for _, q := range []uint64{100, 200, 300, 400} {
		h.present(7, q, trace.PresentResultPresented)
	}

	h.engine.processEvents()

	pi, ok := h.engine.registry.Lookup(7)
	if !ok {
		t.Fatal("excluded process not tracked at all")
	}
	if pi.TargetProcess {
		t.Error("excluded process marked target")
	}
	if len(pi.ChainMap) != 0 {
		t.Error("excluded process accumulated swap-chain history")
	}
	if len(h.host.rows) != 0 {
		t.Errorf("host received %d rows for an excluded process", len(h.host.rows))
	}
	if rows := h.csvRows(t); len(rows) != 0 {
		t.Errorf("csv rows = %q, want none", rows)
	}
}

// =============================================================================
// S3: process termination mid-stream
// =============================================================================

func TestMergerTerminationMidStream(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.toggleAt(50, true)

	h.present(7, 100, trace.PresentResultPresented)
	h.present(7, 200, trace.PresentResultPresented)
	h.present(7, 600, trace.PresentResultPresented)
	h.source.queue.EnqueueNtProcess(trace.NtProcessEvent{ProcessID: 7, QpcTime: 300})

	h.engine.processEvents()

	// The present at 600 proved the stream passed the termination, so the
	// old registry entry is gone and a fresh one holds only that present.
	pi, ok := h.engine.registry.Lookup(7)
	if !ok {
		t.Fatal("pid 7 not re-created after termination")
	}
	chain := pi.ChainMap[0xA]
	if chain == nil || chain.Count() != 1 {
		t.Fatalf("new chain count = %v, want 1 entry (the post-termination present)", chain)
	}
	if len(h.engine.pendingTerminations) != 0 {
		t.Errorf("pending terminations = %v, want consumed", h.engine.pendingTerminations)
	}

	// Only qpc 200 produced a row: 100 had no prior, 600 started a new chain.
	rows := h.csvRows(t)
	if len(rows) != 1 {
		t.Fatalf("rows = %q, want exactly one (qpc 200)", rows)
	}
	if got := field(t, rows[0], colTimeInSeconds); got != "0.200000" {
		t.Errorf("row TimeInSeconds = %s, want 0.200000", got)
	}
}

// TestMergerTerminationStaysPending: with no event at or past the termination
// time, tear-down must wait for a later batch.
func TestMergerTerminationStaysPending(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.toggleAt(50, true)

	h.present(7, 100, trace.PresentResultPresented)
	h.present(7, 200, trace.PresentResultPresented)
	h.source.queue.EnqueueNtProcess(trace.NtProcessEvent{ProcessID: 7, QpcTime: 300})

	h.engine.processEvents()

	if len(h.engine.pendingTerminations) != 1 {
		t.Fatalf("pending terminations = %v, want the unproven one kept", h.engine.pendingTerminations)
	}
	if _, ok := h.engine.registry.Lookup(7); !ok {
		t.Fatal("registry entry torn down before the stream caught up")
	}

	// The next batch delivers a later present; now the termination applies.
	h.present(7, 600, trace.PresentResultPresented)
	h.engine.processEvents()

	if len(h.engine.pendingTerminations) != 0 {
		t.Errorf("pending terminations = %v, want consumed", h.engine.pendingTerminations)
	}
	pi, _ := h.engine.registry.Lookup(7)
	if pi == nil || pi.ChainMap[0xA].Count() != 1 {
		t.Error("post-termination present did not land in a fresh registry entry")
	}
}

// =============================================================================
// S5: dropped-frame exclusion
// =============================================================================

func TestMergerExcludeDropped(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.ExcludeDropped = true
	}, nil)
	h.toggleAt(50, true)

	states := []trace.PresentResult{
		trace.PresentResultPresented,
		trace.PresentResultPresented,
		trace.PresentResultDiscarded,
		trace.PresentResultPresented,
		trace.PresentResultDiscarded,
	}
	for i, st := range states {
		h.present(7, uint64(100+i*100), st)
	}

	h.engine.processEvents()

	// qpc 200 (prev 100) and qpc 400 (prev 300, a discarded entry still
	// counts as history); 300 and 500 suppressed as dropped.
	rows := h.csvRows(t)
	if len(rows) != 2 {
		t.Fatalf("rows = %d (%q), want 2", len(rows), rows)
	}
	if got := field(t, rows[0], colTimeInSeconds); got != "0.200000" {
		t.Errorf("row 0 TimeInSeconds = %s, want 0.200000", got)
	}
	if got := field(t, rows[1], colTimeInSeconds); got != "0.400000" {
		t.Errorf("row 1 TimeInSeconds = %s, want 0.400000", got)
	}
	if got := field(t, rows[1], colMsBetweenPresents); got != "100.000000" {
		t.Errorf("row 1 msBetweenPresents = %s, want 100.000000", got)
	}
}

// =============================================================================
// S6: host callback parity
// =============================================================================

func TestMergerHostCallbackParity(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.toggleAt(150, true)
	h.toggleAt(350, false)
	for _, q := range []uint64{100, 200, 300, 400} {
		h.present(7, q, trace.PresentResultPresented)
	}

	h.engine.processEvents()
	rows := h.csvRows(t)

	if len(h.host.rows) != len(rows) {
		t.Fatalf("host rows = %d, csv rows = %d, want equal", len(h.host.rows), len(rows))
	}

	for i, hostRow := range h.host.rows {
		wantTime := field(t, rows[i], colTimeInSeconds)
		if got := hostRow.TimeInSeconds; !floatFieldEqual(got, wantTime) {
			t.Errorf("host row %d TimeInSeconds = %v, csv %s", i, got, wantTime)
		}
		wantDelta := field(t, rows[i], colMsBetweenPresents)
		if got := hostRow.MsBetweenPresents; !floatFieldEqual(got, wantDelta) {
			t.Errorf("host row %d MsBetweenPresents = %v, csv %s", i, got, wantDelta)
		}
		if hostRow.ProcessID != 7 || hostRow.ProcessName != "game.exe" {
			t.Errorf("host row %d identity = %s[%d]", i, hostRow.ProcessName, hostRow.ProcessID)
		}
	}

	// Order is emission order, monotonic per chain.
	for i := 1; i < len(h.host.rows); i++ {
		if h.host.rows[i].QpcTime <= h.host.rows[i-1].QpcTime {
			t.Errorf("host rows out of order at %d", i)
		}
	}
}

// floatFieldEqual compares a float against its 6-digit CSV rendering.
func floatFieldEqual(f float64, csv string) bool {
	var parsed float64
	if _, err := fmtSscanf(csv, &parsed); err != nil {
		return false
	}
	return math.Abs(f-parsed) < 1e-6
}

func fmtSscanf(s string, out *float64) (int, error) {
	return fmt.Sscanf(s, "%f", out)
}

// =============================================================================
// CSV monotonicity across a larger interleaving
// =============================================================================

func TestMergerCsvMonotonic(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.toggleAt(10, true)

	for q := uint64(100); q <= 2000; q += 37 {
		h.present(7, q, trace.PresentResultPresented)
	}
	h.engine.processEvents()

	rows := h.csvRows(t)
	if len(rows) < 2 {
		t.Fatalf("rows = %d, want many", len(rows))
	}
	prev := -1.0
	for i, row := range rows {
		var tis float64
		if _, err := fmtSscanf(field(t, row, colTimeInSeconds), &tis); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if tis <= prev {
			t.Fatalf("TimeInSeconds not strictly increasing at row %d: %v <= %v", i, tis, prev)
		}
		prev = tis
	}
}

// =============================================================================
// LSR flow through the merger
// =============================================================================

func TestMergerLsrRows(t *testing.T) {
	h := newHarness(t, nil, map[uint32]string{7: "game.exe", 9: "compositor.exe"})
	h.toggleAt(10, true)

	for i := 0; i < 3; i++ {
		h.source.queue.EnqueueLsr(trace.LsrEvent{
			QpcTime:          uint64(100 + i*11),
			ProcessID:        9,
			AppProcessID:     7,
			FinalState:       trace.LsrResultPresented,
			NewSourceLatched: true,
		})
	}

	h.engine.processEvents()

	if got := h.engine.lsrData.Count(); got != 3 {
		t.Errorf("lsr history = %d, want 3", got)
	}

	h.engine.shutdown()
	data, err := os.ReadFile(h.cfg.LsrOutputFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	// header + 2 rows (first LSR has no predecessor) + 2 trailer lines
	if len(lines) != 5 {
		t.Fatalf("lsr csv lines = %d (%q), want 5", len(lines), lines)
	}
	if !strings.HasPrefix(lines[1], "game.exe,7,9,") {
		t.Errorf("lsr row = %q, want app process identity first", lines[1])
	}
}

// =============================================================================
// Replay-mode Run loop
// =============================================================================

func TestRunReplayDrainsAndStops(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.EtlFile = "recorded.jsonl" // replay mode; source is still the fake
	}, nil)

	// Replay toggles carry no history: the live flag alone decides.
	h.engine.toggles.SetRecording(true)

	h.source.queue.EnqueueNtProcess(trace.NtProcessEvent{ProcessID: 7, QpcTime: 50, ImageFileName: "game.exe"})
	for _, q := range []uint64{100, 200, 300} {
		h.present(7, q, trace.PresentResultPresented)
	}
	close(h.source.done)

	if err := h.engine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(h.cfg.OutputFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	// header + rows for 200, 300 + trailer
	if len(lines) != 5 {
		t.Fatalf("csv lines = %d (%q), want 5", len(lines), lines)
	}
}
