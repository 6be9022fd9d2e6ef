package state

import "github.com/dnstrustd/dnstrustd/internal/probe"

// classifySweep implements spec.md §4.2's sweep-completion rule. Unfinished entries have no
// effect on classification, per spec.md §3's invariant. skipHTTP indicates the sweep never
// included HTTP captive-portal probes at all, in which case "no usable web path" cannot be
// confirmed and Dark is never returned (only Disconn).
func classifySweep(entries []*probe.Entry, skipHTTP bool) (res Resolution, httpInsecure bool) {
	var anyCache, anyTCP, anySSL, anyAuth bool
	var haveHTTPEntry, anyHTTPWorks, anyHTTPCaptive bool

	for _, e := range entries {
		if !e.Finished() {
			continue
		}
		switch e.Kind {
		case probe.KindCache:
			if e.Works() {
				anyCache = true
			}
		case probe.KindTCP:
			if e.Works() {
				anyTCP = true
			}
		case probe.KindSSL:
			if e.Works() {
				anySSL = true
			}
		case probe.KindAuthority:
			if e.Works() {
				anyAuth = true
			}
		case probe.KindHTTPAddr, probe.KindHTTPDesc:
			haveHTTPEntry = true
			if e.Works() {
				anyHTTPWorks = true
				if e.Reason() == reasonCaptivePortal {
					anyHTTPCaptive = true
				}
			}
		}
	}

	httpInsecure = anyHTTPCaptive

	switch {
	case anyCache:
		return Cache, httpInsecure
	case anyTCP: // preferring plain TCP when both TCP and SSL work
		return TCP, httpInsecure
	case anySSL:
		return SSL, httpInsecure
	case anyAuth:
		return Auth, httpInsecure
	}

	if !skipHTTP && haveHTTPEntry && !anyHTTPWorks {
		return Dark, httpInsecure
	}
	return Disconn, httpInsecure
}

// reasonCaptivePortal is the Reason() annotation a Prober attaches to a successful HTTP probe
// that was nonetheless redirected/intercepted by a captive portal.
const reasonCaptivePortal = "captive-portal"
