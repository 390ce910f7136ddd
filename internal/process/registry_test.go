package process

import (
	"errors"
	"testing"

	"github.com/randomizedcoder/go-present-mon/internal/csvout"
	"github.com/randomizedcoder/go-present-mon/internal/qpc"
	"github.com/randomizedcoder/go-present-mon/internal/stats"
)

// =============================================================================
// Test Doubles
// =============================================================================

// fakeHandle is a controllable process handle.
type fakeHandle struct {
	name    string
	running bool
	closed  bool
}

func (h *fakeHandle) Name() (string, error)  { return h.name, nil }
func (h *fakeHandle) Running() (bool, error) { return h.running, nil }
func (h *fakeHandle) Close() error           { h.closed = true; return nil }

// fakePlatform opens fakeHandles from a pid->name table.
type fakePlatform struct {
	names   map[uint32]string
	handles map[uint32]*fakeHandle
}

func newFakePlatform(names map[uint32]string) *fakePlatform {
	return &fakePlatform{names: names, handles: make(map[uint32]*fakeHandle)}
}

func (p *fakePlatform) Open(pid uint32) (Handle, error) {
	name, ok := p.names[pid]
	if !ok {
		return nil, errors.New("no such process")
	}
	h := &fakeHandle{name: name, running: true}
	p.handles[pid] = h
	return h, nil
}

// countingOpener counts writer-pair requests.
type countingOpener struct {
	opened []string
}

func (o *countingOpener) OpenProcessOutputs(moduleName string) (*csvout.PresentWriter, *csvout.LsrWriter) {
	o.opened = append(o.opened, moduleName)
	return csvout.NewPresentWriter("", stats.VerbositySimple, nil),
		csvout.NewLsrWriter("", stats.VerbositySimple, nil)
}

func testRegistry(t *testing.T, cfg RegistryConfig) *Registry {
	t.Helper()
	if cfg.Clock == nil {
		clock, err := qpc.NewClockWithFrequency(1000)
		if err != nil {
			t.Fatalf("NewClockWithFrequency: %v", err)
		}
		cfg.Clock = clock
	}
	return NewRegistry(cfg)
}

// =============================================================================
// GetOrCreate
// =============================================================================

func TestGetOrCreateRealtime(t *testing.T) {
	platform := newFakePlatform(map[uint32]string{7: "game.exe"})
	opener := &countingOpener{}
	r := testRegistry(t, RegistryConfig{Platform: platform, Opener: opener})

	pi := r.GetOrCreate(7)
	if pi.ModuleName != "game.exe" {
		t.Errorf("ModuleName = %q, want game.exe", pi.ModuleName)
	}
	if !pi.TargetProcess {
		t.Error("TargetProcess = false, want true (capture-all filter)")
	}
	if pi.Handle == nil {
		t.Error("Handle = nil, want open handle in realtime path")
	}
	if len(opener.opened) != 1 {
		t.Errorf("opener called %d times, want 1", len(opener.opened))
	}

	// Second lookup returns the same entry, no re-query.
	if again := r.GetOrCreate(7); again != pi {
		t.Error("GetOrCreate returned a different entry for a known pid")
	}
	if r.Len() != 1 || r.TargetCount() != 1 {
		t.Errorf("Len/TargetCount = %d/%d, want 1/1", r.Len(), r.TargetCount())
	}
}

func TestGetOrCreateNameQueryFailure(t *testing.T) {
	platform := newFakePlatform(nil) // every Open fails
	r := testRegistry(t, RegistryConfig{Platform: platform})

	pi := r.GetOrCreate(99)
	if pi.ModuleName != "<error>" {
		t.Errorf("ModuleName = %q, want <error>", pi.ModuleName)
	}
	if pi.Handle != nil {
		t.Error("Handle != nil after failed open")
	}
}

func TestGetOrCreateNonTargetOpensNoOutputs(t *testing.T) {
	platform := newFakePlatform(map[uint32]string{7: "foo.exe"})
	opener := &countingOpener{}
	r := testRegistry(t, RegistryConfig{
		Platform: platform,
		Opener:   opener,
		Filter:   Filter{ExcludeNames: []string{"foo.exe"}},
	})

	pi := r.GetOrCreate(7)
	if pi.TargetProcess {
		t.Error("excluded process marked as target")
	}
	if len(opener.opened) != 0 {
		t.Errorf("opener called %d times for a non-target, want 0", len(opener.opened))
	}
	if r.TargetCount() != 0 {
		t.Errorf("TargetCount = %d, want 0", r.TargetCount())
	}
}

// =============================================================================
// CreateFromEvent
// =============================================================================

func TestCreateFromEvent(t *testing.T) {
	r := testRegistry(t, RegistryConfig{Platform: NewNullPlatform()})

	pi := r.CreateFromEvent(7, "game.exe")
	if pi.ModuleName != "game.exe" || pi.Handle != nil {
		t.Errorf("CreateFromEvent = %+v, want named entry without handle", pi)
	}

	// Existing pid: the original entry wins.
	again := r.CreateFromEvent(7, "other.exe")
	if again != pi {
		t.Error("CreateFromEvent replaced an existing entry")
	}
}

// =============================================================================
// HandleTerminated
// =============================================================================

func TestHandleTerminated(t *testing.T) {
	platform := newFakePlatform(map[uint32]string{7: "game.exe"})
	r := testRegistry(t, RegistryConfig{Platform: platform, Opener: &countingOpener{}})

	r.GetOrCreate(7)
	r.HandleTerminated(7)

	if r.Len() != 0 {
		t.Errorf("Len = %d after termination, want 0", r.Len())
	}
	if r.TargetCount() != 0 {
		t.Errorf("TargetCount = %d after termination, want 0", r.TargetCount())
	}
	if h := platform.handles[7]; h == nil || !h.closed {
		t.Error("handle not closed on termination")
	}

	// Unknown pid must be a no-op.
	r.HandleTerminated(12345)
}

func TestHandleTerminatedQuitsOnLastTarget(t *testing.T) {
	platform := newFakePlatform(map[uint32]string{7: "a.exe", 8: "b.exe"})
	quitRequested := false
	r := testRegistry(t, RegistryConfig{
		Platform:            platform,
		Opener:              &countingOpener{},
		TerminateOnProcExit: true,
		OnQuitRequest:       func() { quitRequested = true },
	})

	r.GetOrCreate(7)
	r.GetOrCreate(8)

	r.HandleTerminated(7)
	if quitRequested {
		t.Fatal("quit requested while a target remains")
	}
	r.HandleTerminated(8)
	if !quitRequested {
		t.Fatal("quit not requested after last target exit")
	}
}

func TestMultiCsvStashAndReuse(t *testing.T) {
	platform := newFakePlatform(map[uint32]string{7: "game.exe", 9: "game.exe"})
	opener := &countingOpener{}
	r := testRegistry(t, RegistryConfig{
		Platform: platform,
		Opener:   opener,
		MultiCsv: true,
	})

	first := r.GetOrCreate(7)
	firstOutput := first.Output
	r.HandleTerminated(7)

	// Same module name restarts under a new pid: writers are reused.
	second := r.GetOrCreate(9)
	if second.Output != firstOutput {
		t.Error("restarted process did not reuse stashed output writer")
	}
	if len(opener.opened) != 1 {
		t.Errorf("opener called %d times, want 1 (reuse on restart)", len(opener.opened))
	}
}

// =============================================================================
// CheckTerminated
// =============================================================================

func TestCheckTerminated(t *testing.T) {
	platform := newFakePlatform(map[uint32]string{7: "a.exe", 8: "b.exe"})
	r := testRegistry(t, RegistryConfig{Platform: platform, Opener: &countingOpener{}})

	r.GetOrCreate(7)
	r.GetOrCreate(8)

	// Nothing exited yet.
	pending := r.CheckTerminated(nil)
	if len(pending) != 0 {
		t.Fatalf("pending = %v, want none", pending)
	}

	platform.handles[7].running = false
	pending = r.CheckTerminated(pending)
	if len(pending) != 1 || pending[0].Pid != 7 {
		t.Fatalf("pending = %v, want one termination for pid 7", pending)
	}
	if pending[0].Qpc == 0 {
		t.Error("termination not stamped with the current counter value")
	}

	// The entry survives until HandleTerminated; the handle does not.
	if pi, ok := r.Lookup(7); !ok || pi.Handle != nil {
		t.Error("exited process should remain tracked with a nil handle")
	}

	// A second poll must not report the same exit again.
	if again := r.CheckTerminated(nil); len(again) != 0 {
		t.Errorf("repeat poll reported %v, want none", again)
	}
}
