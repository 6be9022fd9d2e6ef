// Package probe holds the data model for a single probe sweep: the candidate addresses the
// daemon is watching and the classification results the prober collaborator records against
// them. The package owns the probe set's lifecycle (replace-all on submit, destroy on shutdown)
// but performs no network I/O itself - that's the prober collaborator's job.
package probe

// Kind classifies what a probe entry represents and therefore which wire-line format and
// resolution-state rule applies to it. It replaces the C source's mutually-exclusive
// to_auth/to_http/dnstcp/ssldns boolean quartet with a single enumeration.
type Kind int

const (
	KindCache    Kind = iota // A DHCP-supplied resolver, probed on plain DNS/53
	KindTCP                  // The same resolver, only reachable over TCP/53
	KindSSL                  // The same resolver, only reachable over TLS/443
	KindAuthority            // One of the daemon's built-in hard-coded authority servers
	KindHTTPAddr             // HTTP captive-portal probe resolving a hostname to an address
	KindHTTPDesc             // HTTP captive-portal probe fetching a fixed, described URL
)

// String renders the Kind using the same tokens the wire protocol uses as line prefixes.
func (k Kind) String() string {
	switch k {
	case KindCache:
		return "cache"
	case KindTCP:
		return "tcp"
	case KindSSL:
		return "ssl"
	case KindAuthority:
		return "authority"
	case KindHTTPAddr:
		return "addr"
	case KindHTTPDesc:
		return "http"
	default:
		return "unknown"
	}
}
