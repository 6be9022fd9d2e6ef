//go:build windows
// +build windows

package reshook

// WindowsWriter would edit the registry's per-interface NameServer value, matching
// win_set_resolv/win_clear_resolv in the original daemon's winrc tree. The registry-editing
// syscalls are genuinely Windows-only and outside this repo's reference pack, so this is left as
// a documented stub rather than an invented implementation.
type WindowsWriter struct{}

var _ Writer = (*WindowsWriter)(nil)

func (w *WindowsWriter) SetLocalhost() error        { return nil }
func (w *WindowsWriter) SetIPList(addrs []string) error { return nil }
func (w *WindowsWriter) Flush()                     {}
func (w *WindowsWriter) Uninstall() error           { return nil }
