package reshook

import (
	"testing"

	"github.com/dnstrustd/dnstrustd/internal/state"
)

type fakeWriter struct {
	localhostCalls int
	ipListCalls    [][]string
	flushCalls     int
	uninstallCalls int
}

func (w *fakeWriter) SetLocalhost() error { w.localhostCalls++; return nil }
func (w *fakeWriter) SetIPList(addrs []string) error {
	w.ipListCalls = append(w.ipListCalls, append([]string{}, addrs...))
	return nil
}
func (w *fakeWriter) Flush()           { w.flushCalls++ }
func (w *fakeWriter) Uninstall() error { w.uninstallCalls++; return nil }

func TestApplyCacheUsesLocalhost(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	if err := a.Apply(state.Cache, state.Flags{}, []string{"192.0.2.1"}); err != nil {
		t.Fatal(err)
	}
	if w.localhostCalls != 1 {
		t.Fatalf("expected 1 SetLocalhost call, got %d", w.localhostCalls)
	}
	if len(w.ipListCalls) != 0 {
		t.Fatalf("expected no SetIPList calls, got %d", len(w.ipListCalls))
	}
}

func TestApplyIdempotentAcrossRepeatedLocalhost(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	a.Apply(state.Cache, state.Flags{}, nil)
	a.Apply(state.TCP, state.Flags{}, nil) // still localhost-worthy, posture unchanged
	if w.localhostCalls != 1 {
		t.Fatalf("expected posture-unchanged second Apply to skip the write, got %d calls", w.localhostCalls)
	}
}

func TestApplyDarkWithInsecureStateUsesIPList(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	flags := state.Flags{InsecureState: true}
	if err := a.Apply(state.Dark, flags, []string{"198.51.100.1", "198.51.100.2"}); err != nil {
		t.Fatal(err)
	}
	if len(w.ipListCalls) != 1 {
		t.Fatalf("expected 1 SetIPList call, got %d", len(w.ipListCalls))
	}
	if w.localhostCalls != 0 {
		t.Fatalf("expected no SetLocalhost call, got %d", w.localhostCalls)
	}
}

func TestApplyDarkWithoutOverrideStaysLocalhost(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	if err := a.Apply(state.Dark, state.Flags{}, nil); err != nil {
		t.Fatal(err)
	}
	if w.localhostCalls != 1 {
		t.Fatalf("expected SetLocalhost, got %d calls", w.localhostCalls)
	}
}

func TestApplyForcedInsecureOverridesDisconn(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	flags := state.Flags{ForcedInsecure: true}
	if err := a.Apply(state.Disconn, flags, []string{"198.51.100.1"}); err != nil {
		t.Fatal(err)
	}
	if len(w.ipListCalls) != 1 || w.ipListCalls[0][0] != "198.51.100.1" {
		t.Fatalf("expected SetIPList([198.51.100.1]), got %+v", w.ipListCalls)
	}
}

func TestApplyIPListIdempotentOnUnchangedAddrs(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	flags := state.Flags{InsecureState: true}
	a.Apply(state.Disconn, flags, []string{"198.51.100.1"})
	a.Apply(state.Disconn, flags, []string{"198.51.100.1"})
	if len(w.ipListCalls) != 1 {
		t.Fatalf("expected repeated identical posture to be a no-op, got %d calls", len(w.ipListCalls))
	}
	a.Apply(state.Disconn, flags, []string{"198.51.100.2"})
	if len(w.ipListCalls) != 2 {
		t.Fatalf("expected a changed address list to trigger a new write, got %d calls", len(w.ipListCalls))
	}
}

func TestFlushAndUninstallForward(t *testing.T) {
	w := &fakeWriter{}
	a := New(w)
	a.Flush()
	if w.flushCalls != 1 {
		t.Errorf("expected Flush forwarded, got %d", w.flushCalls)
	}
	if err := a.Uninstall(); err != nil {
		t.Fatal(err)
	}
	if w.uninstallCalls != 1 {
		t.Errorf("expected Uninstall forwarded, got %d", w.uninstallCalls)
	}
}
