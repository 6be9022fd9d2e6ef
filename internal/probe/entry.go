package probe

import (
	"net"
	"sync"
)

// Entry is one candidate address being watched across a probe sweep. Mutated only by the
// prober collaborator (via Finish); read by the state engine once a sweep completes.
//
// Invariant: Works is only meaningful when Finished is true. Reason is empty when Works is
// true unless the probe explicitly annotated a warning (e.g. a cache that answers but without a
// validatable DNSSEC chain).
type Entry struct {
	Name string // Human readable name, typically an IP literal
	Kind Kind
	Port int

	HostC    string // Hostname used for the HTTP-addr probe kind
	HTTPDesc string // Fixed description used for the HTTP-desc probe kind
	IsIPv6   bool   // Set on KindHTTPAddr entries; selects the A vs AAAA wire token

	mu       sync.RWMutex
	finished bool
	works    bool
	reason   string
}

// NewCacheEntry constructs a cache-kind entry for a DHCP-supplied resolver address.
func NewCacheEntry(name string) *Entry {
	return &Entry{Name: name, Kind: KindCache, Port: 53}
}

// NewTCPEntry constructs the TCP fallback probe for the same resolver address.
func NewTCPEntry(name string) *Entry {
	return &Entry{Name: name, Kind: KindTCP, Port: 53}
}

// NewSSLEntry constructs the TLS/443 fallback probe for the same resolver address.
func NewSSLEntry(name string) *Entry {
	return &Entry{Name: name, Kind: KindSSL, Port: 443}
}

// NewAuthorityEntry constructs a probe against one of the daemon's built-in authority addresses,
// checked over TLS/443 per spec.md's authority-probe definition.
func NewAuthorityEntry(name string) *Entry {
	return &Entry{Name: name, Kind: KindAuthority, Port: 443}
}

// NewHTTPAddrEntry constructs the captive-portal probe that resolves qName via ip and expects an
// A or AAAA answer, matching whichever family ip itself belongs to.
func NewHTTPAddrEntry(ip, qName string) *Entry {
	addr := net.ParseIP(ip)
	isIPv6 := addr != nil && addr.To4() == nil
	return &Entry{Name: ip, Kind: KindHTTPAddr, HostC: qName, Port: 80, IsIPv6: isIPv6}
}

// NewHTTPDescEntry constructs the captive-portal probe that fetches a fixed, described URL.
func NewHTTPDescEntry(ip, desc string) *Entry {
	return &Entry{Name: ip, Kind: KindHTTPDesc, HTTPDesc: desc, Port: 80}
}

// Finish is called exactly once by the prober collaborator when this entry's probe completes.
func (e *Entry) Finish(works bool, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = true
	e.works = works
	e.reason = reason
}

// Finished reports whether the prober has recorded a result for this entry yet.
func (e *Entry) Finished() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finished
}

// Works is only meaningful when Finished() is true.
func (e *Entry) Works() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.works
}

// Reason returns the optional annotation attached by the prober (empty for a clean success).
func (e *Entry) Reason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reason
}
