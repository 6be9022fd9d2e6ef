package main

import (
	"time"

	"github.com/dnstrustd/dnstrustd/internal/flagutil"
)

type config struct {
	gops    bool
	help    bool
	verbose bool
	version bool

	// controlAddrs is every address:port the control server binds, repeatable on the command
	// line. Empty means "use the default loopback addresses for this host" (both v4 and v6,
	// per spec.md §4.1), resolved in main once the default port is known.
	controlAddrs flagutil.StringValue
	maxActive    int

	tlsServerCertFiles flagutil.StringValue
	tlsServerKeyFiles  flagutil.StringValue
	tlsClientCAFiles   flagutil.StringValue // Panel client certs are verified against these
	tlsUseSystemRoots  bool

	resolvConf string
	domain     string
	search     string

	darwinScript string // mset/uninit helper script path, darwin only

	authorityAddrs flagutil.StringValue // Built-in TLS/443 authority addresses

	httpProbeIP    string // Captive-portal addr-probe target
	httpProbeQName string
	httpDescProbes flagutil.StringValue // "ip|url" pairs, e.g. "192.0.2.1|http://example/204"

	checkUpdates bool

	statusInterval time.Duration

	setuidName, setgidName, chrootDir string
}
