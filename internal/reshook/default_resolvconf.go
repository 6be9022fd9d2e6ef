//go:build linux || freebsd || netbsd || openbsd
// +build linux freebsd netbsd openbsd

package reshook

// NewDefaultWriter constructs the platform Writer main wires into the Arbiter by default.
func NewDefaultWriter(path, domain, search, darwinScript string) Writer {
	return NewResolvConfWriter(path, domain, search)
}
