//go:build darwin
// +build darwin

package reshook

// NewDefaultWriter constructs the platform Writer main wires into the Arbiter by default.
func NewDefaultWriter(path, domain, search, darwinScript string) Writer {
	return &DarwinSetDNSWriter{ScriptPath: darwinScript, Domain: domain, Search: search}
}
