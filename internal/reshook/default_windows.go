//go:build windows
// +build windows

package reshook

// NewDefaultWriter constructs the platform Writer main wires into the Arbiter by default.
func NewDefaultWriter(path, domain, search, darwinScript string) Writer {
	return &WindowsWriter{}
}
