package state

import (
	"sync"
	"testing"

	"github.com/dnstrustd/dnstrustd/internal/probe"
)

// fakeArbiter records every Apply() call so tests can assert on posture transitions without a
// real resolv.conf on disk.
type fakeArbiter struct {
	mu        sync.Mutex
	calls     []fakeApply
	reasserts int
}

type fakeApply struct {
	res        Resolution
	flags      Flags
	cacheAddrs []string
}

func (f *fakeArbiter) Apply(res Resolution, flags Flags, cacheAddrs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeApply{res, flags, append([]string{}, cacheAddrs...)})
	return nil
}
func (f *fakeArbiter) Flush()           {}
func (f *fakeArbiter) Uninstall() error { return nil }
func (f *fakeArbiter) ReassertLoopback() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasserts++
	return nil
}

func (f *fakeArbiter) last() fakeApply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeArbiter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeArbiter) reassertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reasserts
}

// fakeProber completes a sweep synchronously (in the calling goroutine) with a caller-supplied
// per-entry outcome function.
type fakeProber struct {
	outcome func(e *probe.Entry) (works bool, reason string)
}

func (f *fakeProber) StartSweep(entries []*probe.Entry, done func()) {
	for _, e := range entries {
		works, reason := f.outcome(e)
		e.Finish(works, reason)
	}
	done()
}

// fakeNotifier records every broadcast snapshot.
type fakeNotifier struct {
	mu        sync.Mutex
	snapshots []Snapshot
	updates   []string
}

func (f *fakeNotifier) NotifyState(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
}

func (f *fakeNotifier) NotifyUpdate(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, v)
}

func (f *fakeNotifier) last() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[len(f.snapshots)-1]
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

func allWork(e *probe.Entry) (bool, string)  { return true, "" }
func noneWork(e *probe.Entry) (bool, string) { return false, "connection refused" }

// darkConfig configures a single HTTP captive-portal probe so that an all-fail sweep actually
// resolves to Dark rather than Disconn (spec.md §4.2 rule 4: Dark requires the HTTP probe to
// also report no usable path; with no HTTP probe configured at all the engine cannot make that
// determination and Disconn is the correct, more conservative answer).
func darkConfig() Config {
	cfg := Config{}
	cfg.HTTPAddrProbe.IP = "192.0.2.53"
	cfg.HTTPAddrProbe.QName = "example.invalid"
	return cfg
}

func newTestEngine(cfg Config, outcome func(*probe.Entry) (bool, string)) (*Engine, *fakeArbiter, *fakeNotifier) {
	arb := &fakeArbiter{}
	notif := &fakeNotifier{}
	prober := &fakeProber{outcome: outcome}
	e := New(cfg, arb, prober, notif, nil)
	return e, arb, notif
}

// Scenario 1 from spec.md §8: healthy cache.
func TestHealthyCacheScenario(t *testing.T) {
	e, arb, notif := newTestEngine(Config{}, func(entry *probe.Entry) (bool, string) {
		return entry.Kind == probe.KindCache, ""
	})
	e.Submit([]string{"192.0.2.1"})

	snap := e.Snapshot()
	if snap.Resolution != Cache {
		t.Fatalf("expected Cache, got %s", snap.Resolution)
	}
	if arb.count() != 1 {
		t.Fatalf("expected exactly one arbiter.Apply call, got %d", arb.count())
	}
	if arb.last().res != Cache {
		t.Errorf("expected arbiter to be told Cache, got %s", arb.last().res)
	}
	if notif.count() != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", notif.count())
	}
}

// Scenario 2 from spec.md §8: all dark, then the user accepts insecure mode.
func TestDarkThenInsecureYesScenario(t *testing.T) {
	e, arb, _ := newTestEngine(darkConfig(), noneWork)
	e.Submit([]string{"192.0.2.1"})

	snap := e.Snapshot()
	if snap.Resolution != Dark {
		t.Fatalf("expected Dark, got %s", snap.Resolution)
	}
	if snap.Flags.InsecureState {
		t.Error("insecure_state should not be set yet")
	}

	e.InsecureYes()
	snap = e.Snapshot()
	if !snap.Flags.InsecureState {
		t.Error("expected insecure_state after insecure yes while dark")
	}
	last := arb.last()
	if last.res != Dark || !last.flags.InsecureState {
		t.Errorf("expected arbiter called with Dark+insecure, got %+v", last)
	}

	e.InsecureNo()
	snap = e.Snapshot()
	if snap.Flags.InsecureState {
		t.Error("expected insecure_state cleared after insecure no")
	}
}

// Scenario 3 from spec.md §8: hotspot signon, then a successful reprobe clears forced_insecure.
func TestHotspotSignonThenReprobeClears(t *testing.T) {
	e, arb, _ := newTestEngine(darkConfig(), noneWork)
	e.Submit([]string{"192.0.2.1"}) // starts Dark

	e.HotspotSignon()
	snap := e.Snapshot()
	if !snap.Flags.ForcedInsecure || snap.Resolution != Dark {
		t.Fatalf("expected dark+forced_insecure after hotspot_signon, got %+v", snap)
	}
	if !arb.last().flags.ForcedInsecure {
		t.Error("expected arbiter to observe forced_insecure")
	}

	e.Reprobe()
	snap = e.Snapshot()
	if snap.Flags.ForcedInsecure {
		t.Error("expected forced_insecure cleared by reprobe")
	}
}

func TestSkipHTTPIsStickyUntilNonDark(t *testing.T) {
	e, _, _ := newTestEngine(darkConfig(), noneWork)

	e.SkipHTTP()
	snap := e.Snapshot()
	if !snap.Flags.SkipHTTP {
		t.Fatal("expected skip_http set")
	}
	if snap.Resolution != Disconn {
		t.Fatalf("expected Disconn (not Dark) when http probes were skipped, got %s", snap.Resolution)
	}

	e.Reprobe() // still failing: skip_http must remain sticky
	snap = e.Snapshot()
	if !snap.Flags.SkipHTTP {
		t.Error("expected skip_http to remain sticky across a reprobe that is still not cache/tcp/ssl/auth")
	}
}

func TestSkipHTTPClearsOnNonDarkResolution(t *testing.T) {
	calls := 0
	e, _, _ := newTestEngine(darkConfig(), func(e *probe.Entry) (bool, string) {
		calls++
		if calls <= 7 { // first two sweeps (submit, skip_http): nothing works
			return false, "x"
		}
		return e.Kind == probe.KindCache, "" // third sweep: cache works
	})
	e.Submit([]string{"192.0.2.1"})
	e.SkipHTTP()
	if !e.Snapshot().Flags.SkipHTTP {
		t.Fatal("expected skip_http set after SkipHTTP()")
	}
	e.Reprobe()
	snap := e.Snapshot()
	if snap.Resolution != Cache {
		t.Fatalf("expected Cache on third sweep, got %s", snap.Resolution)
	}
	if snap.Flags.SkipHTTP {
		t.Error("expected skip_http cleared once a non-dark resolution was reached")
	}
}

func TestRetryTimerArmsWhenNotCache(t *testing.T) {
	e, _, _ := newTestEngine(darkConfig(), noneWork)
	e.Submit([]string{"192.0.2.1"})
	if !e.retry.Enabled() {
		t.Error("expected reprobe timer armed after a disconnected sweep")
	}
	if e.tcpRetry.Enabled() {
		t.Error("tcp-recheck timer should not arm when not in tcp/ssl state")
	}
}

func TestRetryTimerDisarmsOnCache(t *testing.T) {
	e, _, _ := newTestEngine(Config{}, allWork)
	e.Submit([]string{"192.0.2.1"})
	if e.retry.Enabled() {
		t.Error("expected reprobe timer disarmed once cache resolution reached")
	}
}

func TestTCPRetryTimerArmsInTCPState(t *testing.T) {
	e, _, _ := newTestEngine(Config{}, func(entry *probe.Entry) (bool, string) {
		return entry.Kind == probe.KindTCP, ""
	})
	e.Submit([]string{"192.0.2.1"})
	snap := e.Snapshot()
	if snap.Resolution != TCP {
		t.Fatalf("expected TCP resolution, got %s", snap.Resolution)
	}
	if !e.tcpRetry.Enabled() {
		t.Error("expected tcp-recheck timer armed in TCP state")
	}
}

func TestTCPRetryTimerDoesNotRearmOnceUsed(t *testing.T) {
	e, _, _ := newTestEngine(Config{}, func(entry *probe.Entry) (bool, string) {
		return entry.Kind == probe.KindTCP, ""
	})
	e.Submit([]string{"192.0.2.1"})
	if !e.tcpRetry.Enabled() {
		t.Fatal("expected tcp-recheck timer armed in TCP state")
	}

	// Simulate the timer having already fired once this run, matching svr_tcp_timer_enable's
	// "fires at most once per daemon run" rule.
	e.tcpRetry.MarkUsed()
	e.tcpRetry.Disarm()

	e.Reprobe()
	if e.tcpRetry.Enabled() {
		t.Error("expected tcp-recheck timer to stay disarmed once already used")
	}
}

func TestReassertLoopbackCallsArbiter(t *testing.T) {
	e, arb, _ := newTestEngine(Config{}, allWork)
	e.ReassertLoopback()
	if arb.reassertCount() != 1 {
		t.Fatalf("expected exactly one arbiter.ReassertLoopback call, got %d", arb.reassertCount())
	}
}

func TestHTTPCaptivePortalSetsHTTPInsecure(t *testing.T) {
	cfg := darkConfig()
	e, _, _ := newTestEngine(cfg, func(e *probe.Entry) (bool, string) {
		if e.Kind == probe.KindHTTPAddr {
			return true, reasonCaptivePortal
		}
		return false, "unreachable"
	})
	e.Submit([]string{"192.0.2.1"})

	snap := e.Snapshot()
	if !snap.Flags.HTTPInsecure {
		t.Error("expected http_insecure set when the http probe is captive-portal-flagged")
	}
	if snap.Resolution != Disconn {
		t.Errorf("expected Disconn (http path works, just captive) got %s", snap.Resolution)
	}
}
