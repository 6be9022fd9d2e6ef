//go:build darwin
// +build darwin

package reshook

import "fmt"

// DarwinSetDNSWriter drives macOS's per-interface DNS configuration through an external helper
// script (dnssec-trigger-setdns.sh in the original daemon), rather than editing resolv.conf
// directly - macOS regenerates resolv.conf from its own SystemConfiguration store, so direct
// edits never stick. Grounded on reshook.c's set_dns_osx/osx_uninit/HOOKS_OSX branch.
type DarwinSetDNSWriter struct {
	// ScriptPath is the helper script invoked as "<ScriptPath> mset <domains> -- <ip...>".
	ScriptPath string
	Domain     string
	Search     string
}

var _ Writer = (*DarwinSetDNSWriter)(nil)

func (w *DarwinSetDNSWriter) domains() string {
	if w.Domain != "" {
		return w.Domain
	}
	if w.Search != "" {
		return w.Search
	}
	return "nothing.invalid"
}

func (w *DarwinSetDNSWriter) SetLocalhost() error {
	return w.mset("127.0.0.1")
}

func (w *DarwinSetDNSWriter) SetIPList(addrs []string) error {
	return w.mset(joinAddrs(addrs))
}

func (w *DarwinSetDNSWriter) mset(iplist string) error {
	return runShell(fmt.Sprintf("%s mset %s -- %s", w.ScriptPath, w.domains(), iplist))
}

func (w *DarwinSetDNSWriter) Flush() {
	_ = runShell("dscacheutil -flushcache || lookupd -flushcache")
}

func (w *DarwinSetDNSWriter) Uninstall() error {
	return runShell(fmt.Sprintf("%s uninit", w.ScriptPath))
}
