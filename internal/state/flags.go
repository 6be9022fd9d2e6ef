package state

// Flags carries the four insecure-related booleans of spec.md's data model. It's kept as a
// plain value type (rather than individual Engine fields) so Snapshot can hand out an
// immutable copy to notifiers without them being able to mutate engine-owned state.
type Flags struct {
	InsecureState bool // User has accepted running with the raw DHCP-provided resolvers
	ForcedInsecure bool // Hotspot-signon path: DNSSEC enforcement relaxed until next good probe
	HTTPInsecure  bool // HTTP probe chain decided this network is a captive portal
	SkipHTTP      bool // User asked to bypass the HTTP captive-portal probe on reprobes
}

// clearOnReprobe applies the invariants from spec.md §3: insecure_state, forced_insecure and
// http_insecure are all cleared by any reprobe. skip_http is deliberately NOT touched here -
// per the resolved Open Question (a), it stays sticky across reprobes until a resolution other
// than dark/disconn is reached (see Engine.onSweepComplete).
func (f *Flags) clearOnReprobe() {
	f.InsecureState = false
	f.ForcedInsecure = false
	f.HTTPInsecure = false
}
