package state

import (
	"sync"
	"time"

	"github.com/dnstrustd/dnstrustd/internal/probe"
	"github.com/dnstrustd/dnstrustd/internal/retry"
)

const me = "state.Engine"

// Arbiter is the resolver-hook arbiter capability the engine requires of its embedder (see
// internal/reshook for the concrete implementation). Apply is called after every sweep
// completion with the freshly computed resolution and flags; the arbiter decides, and makes
// idempotent, whichever posture (loopback or iplist) those imply.
type Arbiter interface {
	Apply(res Resolution, flags Flags, cacheAddrs []string) error
	Flush()
	Uninstall() error
	ReassertLoopback() error
}

// Prober is the probe collaborator capability the engine requires of its embedder. StartSweep
// is asynchronous: the prober mutates each entry via probe.Entry.Finish() as results land, and
// calls done() exactly once, from any goroutine, when every entry in the sweep has finished (or
// the sweep has otherwise concluded, e.g. the engine replaced the set again before completion).
type Prober interface {
	StartSweep(entries []*probe.Entry, done func())
}

// ProbeTester is an optional extension a Prober may implement to support the manual one-shot
// test commands (unsafe/test_tcp/test_ssl/test_http). Engines degrade gracefully if the
// configured Prober doesn't implement it.
type ProbeTester interface {
	TestTCP()
	TestSSL()
	TestHTTP()
	Unsafe()
}

// UpdateNotifier is the self-update collaborator capability the engine requires of its
// embedder. The fetcher implementation itself is out of scope (see spec.md Non-goals); this is
// only the interface the state engine depends on.
type UpdateNotifier interface {
	CheckUpdate()
	UserOkay(ok bool)
	EnterTestMode()
}

// Notifier is the capability set the control server must supply so the engine can push
// asynchronous updates to subscribed panels, per spec.md §9's "capability set the core requires
// of its embedder".
type Notifier interface {
	NotifyState(Snapshot)
	NotifyUpdate(version string)
}

// Snapshot is an immutable view of engine state handed to notifiers and to anything rendering
// the results wire-block. It's a value, not a pointer into engine-owned memory, so a notifier
// can hold on to it indefinitely.
type Snapshot struct {
	Resolution  Resolution
	Flags       Flags
	Entries     []*probe.Entry
	LastSweepAt time.Time
	InProgress  bool
	HaveCache   bool // False when no DHCP cache addresses have ever been submitted
}

// Config carries the fixed inputs the engine needs at construction time - the daemon's
// hard-coded authority addresses, the HTTP captive-portal probe targets, and whether
// self-update checks are desired at all.
type Config struct {
	AuthorityAddrs []string
	HTTPAddrProbe  struct {
		IP, QName string
	}
	HTTPDescProbes []struct{ IP, Desc string }
	UpdateDesired  bool
}

// Engine owns the authoritative resolution state, insecure flags and current probe set. All
// mutating methods take engine.mu for their full duration, including calls out to the
// notifier/arbiter, with one exception: startSweepLocked releases it while handing the new sweep
// to the prober, so a prober that calls done() before StartSweep returns does not deadlock. This
// is the mutex-serialized equivalent of the C source's single-threaded event loop and preserves
// spec.md §5's ordering guarantees (a broadcast triggered by a sweep completion is fully
// delivered before any subsequent sweep begins) without needing an explicit actor goroutine.
type Engine struct {
	cfg      Config
	arbiter  Arbiter
	prober   Prober
	notifier Notifier
	update   UpdateNotifier
	retry    *retry.Scheduler
	tcpRetry *retry.Scheduler

	mu          sync.Mutex
	set         *probe.Set
	resolution  Resolution
	flags       Flags
	cacheAddrs  []string
	haveCache   bool
	sweepEpoch  uint64 // bumped every time a new sweep starts; stale done() calls are ignored
	lastSweepAt time.Time

	stats
}

type stats struct {
	sweeps      int
	reprobes    int
	hotspotSign int
}

// New constructs an Engine. arbiter, prober and notifier must be non-nil; update may be nil, in
// which case update-related commands are silently ignored (equivalent to check_updates=false).
func New(cfg Config, arbiter Arbiter, prober Prober, notifier Notifier, update UpdateNotifier) *Engine {
	e := &Engine{cfg: cfg, arbiter: arbiter, prober: prober, notifier: notifier, update: update}
	e.set = probe.NewSet(nil, cfg.AuthorityAddrs)
	e.retry = retry.New(retry.Config{
		Start: retryTimerStart, Max: retryTimerMax, CountMax: retryTimerCountMax,
	}, e.onRetryFire)
	e.tcpRetry = retry.New(retry.Config{Start: tcpRetrySeconds, Max: tcpRetrySeconds, CountMax: 0}, e.onTCPRetryFire)
	return e
}

// Submit replaces the probe set with the supplied DHCP cache addresses and the engine's fixed
// authority addresses, then launches a sweep. This is the "submit <ip> [<ip> …]" command.
func (e *Engine) Submit(cacheAddrs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheAddrs = append([]string{}, cacheAddrs...)
	e.haveCache = len(cacheAddrs) > 0
	e.startSweepLocked()
}

// Reprobe clears forced_insecure and http_insecure and re-probes the current cache set. This is
// both the "reprobe" command and what the retry/tcp-recheck timers do when they fire.
func (e *Engine) Reprobe() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flags.clearOnReprobe()
	e.reprobes++
	e.startSweepLocked()
}

// SkipHTTP sets the sticky skip_http flag and re-probes.
func (e *Engine) SkipHTTP() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flags.SkipHTTP = true
	e.flags.clearOnReprobe()
	e.startSweepLocked()
}

// HotspotSignon enters a synthetic dark+forced-insecure posture so the user can reach a captive
// portal's sign-on page, and broadcasts immediately without waiting for a sweep.
func (e *Engine) HotspotSignon() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hotspotSign++
	e.resolution = Dark
	e.flags.ForcedInsecure = true
	e.applyAndBroadcastLocked()
}

// InsecureYes implements the "insecure yes" persistent command.
func (e *Engine) InsecureYes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolution == Dark && !e.flags.InsecureState {
		e.flags.InsecureState = true
		e.applyAndBroadcastLocked()
	}
}

// InsecureNo implements the "insecure no" persistent command.
func (e *Engine) InsecureNo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolution == Dark && e.flags.InsecureState {
		e.flags.InsecureState = false
		e.applyAndBroadcastLocked()
	}
}

// ReassertLoopback re-writes the loopback resolver posture unconditionally, bypassing whatever
// posture the arbiter last remembered applying. This is the "cmdtray" command's job: a relogin
// on some platforms can silently replace resolv.conf out from under the daemon, and the
// arbiter's own idempotence cache has no way to know that happened.
func (e *Engine) ReassertLoopback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.arbiter.ReassertLoopback(); err != nil {
		// Best-effort per spec.md §7, same posture as applyAndBroadcastLocked.
		_ = err
	}
}

// TestTCP, TestSSL, TestHTTP and Unsafe forward to the configured Prober's ProbeTester
// extension, if it implements one; otherwise they are silently no-ops.
func (e *Engine) TestTCP()  { e.withTester(func(t ProbeTester) { t.TestTCP() }) }
func (e *Engine) TestSSL()  { e.withTester(func(t ProbeTester) { t.TestSSL() }) }
func (e *Engine) TestHTTP() { e.withTester(func(t ProbeTester) { t.TestHTTP() }) }
func (e *Engine) Unsafe()   { e.withTester(func(t ProbeTester) { t.Unsafe() }) }

func (e *Engine) withTester(f func(ProbeTester)) {
	if t, ok := e.prober.(ProbeTester); ok {
		f(t)
	}
}

// TestUpdate forces the update collaborator into test mode and arms an update check.
func (e *Engine) TestUpdate() {
	if e.update == nil {
		return
	}
	e.update.EnterTestMode()
	e.update.CheckUpdate()
}

// UpdateOk and UpdateCancel route the persistent channel's update_ok/update_cancel commands to
// the update collaborator's userokay entry point.
func (e *Engine) UpdateOk()     { e.routeUserOkay(true) }
func (e *Engine) UpdateCancel() { e.routeUserOkay(false) }

func (e *Engine) routeUserOkay(ok bool) {
	if e.update != nil {
		e.update.UserOkay(ok)
	}
}

// SignalUpdate is called by the update collaborator (from any goroutine) when a new version is
// available. It is forwarded to every persistent panel via the notifier.
func (e *Engine) SignalUpdate(version string) {
	e.notifier.NotifyUpdate(version)
}

// Snapshot returns the current state for the "results"/"status"/"cmdtray" commands.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	var lastSweep time.Time
	if unix := e.set.LastSweepAt(); unix > 0 {
		lastSweep = time.Unix(unix, 0)
	}
	return Snapshot{
		Resolution:  e.resolution,
		Flags:       e.flags,
		Entries:     e.set.Entries(),
		LastSweepAt: lastSweep,
		InProgress:  e.set.InProgress(),
		HaveCache:   e.haveCache,
	}
}

// startSweepLocked rebuilds the probe set from the current cache/authority addresses (optionally
// including HTTP captive-portal probes) and hands it to the prober. Caller holds e.mu; it is
// released for the duration of the StartSweep call and held again on return.
func (e *Engine) startSweepLocked() {
	set := probe.NewSet(e.cacheAddrs, e.cfg.AuthorityAddrs)
	if !e.flags.SkipHTTP {
		var httpEntries []*probe.Entry
		if len(e.cfg.HTTPAddrProbe.IP) > 0 {
			httpEntries = append(httpEntries, probe.NewHTTPAddrEntry(e.cfg.HTTPAddrProbe.IP, e.cfg.HTTPAddrProbe.QName))
		}
		for _, d := range e.cfg.HTTPDescProbes {
			httpEntries = append(httpEntries, probe.NewHTTPDescEntry(d.IP, d.Desc))
		}
		set.AddHTTPProbes(httpEntries...)
	}
	e.set = set
	e.set.SetInProgress(true)
	e.sweepEpoch++
	epoch := e.sweepEpoch
	e.sweeps++

	entries := e.set.Entries()
	e.mu.Unlock()
	e.prober.StartSweep(entries, func() { e.onSweepComplete(epoch) })
	e.mu.Lock()
}

// onSweepComplete is the prober's completion callback. It is ignored if a newer sweep has
// since started (epoch mismatch), matching spec.md §3's "destroyed when a new probe sweep
// begins" lifecycle for the superseded entries.
func (e *Engine) onSweepComplete(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.sweepEpoch {
		return
	}
	e.set.SetInProgress(false)
	e.set.SetLastSweepAt(nowUnix())

	res, httpInsecure := classifySweep(e.set.Entries(), e.flags.SkipHTTP)
	e.resolution = res
	e.flags.HTTPInsecure = httpInsecure

	// Open Question (a): skip_http is sticky until a resolution other than dark/disconn is
	// reached.
	if !res.IsDarkOrDisconn() {
		e.flags.SkipHTTP = false
	}

	// insecure_state is only meaningful in dark/disconn, unless forced_insecure is active.
	if !res.IsDarkOrDisconn() && !e.flags.ForcedInsecure {
		e.flags.InsecureState = false
	}

	e.applyAndBroadcastLocked()
	e.armTimersLocked(res)

	if res != Dark && e.cfg.UpdateDesired && e.update != nil &&
		!e.flags.InsecureState && !e.flags.ForcedInsecure && res != Disconn {
		e.update.CheckUpdate()
	}
}

// applyAndBroadcastLocked calls the resolver-hook arbiter then pushes a fresh snapshot to every
// persistent panel. Caller holds e.mu.
func (e *Engine) applyAndBroadcastLocked() {
	if err := e.arbiter.Apply(e.resolution, e.flags, e.set.CacheAddresses()); err != nil {
		// Best-effort per spec.md §7: the error is dropped here; the engine keeps
		// running and the next sweep/command will retry the write.
		_ = err
	}
	e.notifier.NotifyState(e.snapshotLocked())
}

// armTimersLocked arms or disarms the reprobe and tcp-recheck timers per spec.md §4.4. Caller
// holds e.mu.
func (e *Engine) armTimersLocked(res Resolution) {
	if res.ReachesLocalCache() && res != Cache {
		if !e.tcpRetry.Used() { // fires at most once per daemon run, per svr_tcp_timer_enable
			e.tcpRetry.Arm()
		}
	} else {
		e.tcpRetry.Disarm()
	}

	if res.ReachesLocalCache() {
		e.retry.Disarm()
		return
	}

	if e.flags.HTTPInsecure { // captive-portal: fast-forward straight into backoff
		e.retry.ArmAtMaxCount()
	} else {
		e.retry.Arm()
	}
}

func (e *Engine) onRetryFire()    { e.Reprobe() }
func (e *Engine) onTCPRetryFire() { e.tcpRetry.MarkUsed(); e.Reprobe() }

// Name and Report implement reporter.Reporter so the engine's activity shows up in the
// daemon's periodic status log, the same way every trustydns collaborator does.
func (e *Engine) Name() string { return me }

func (e *Engine) Report(resetCounters bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := formatReport(e.resolution, e.flags, e.sweeps, e.reprobes, e.hotspotSign)
	if resetCounters {
		e.sweeps, e.reprobes, e.hotspotSign = 0, 0, 0
	}
	return s
}
