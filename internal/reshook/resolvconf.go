package reshook

import (
	"fmt"
	"os"
)

// ResolvConfWriter is the Writer used on Linux and the BSDs: it rewrites /etc/resolv.conf (or
// whatever path is configured) directly, toggling the immutable bit around each write so the
// file can't be clobbered by a concurrent dhclient/NetworkManager run while the daemon owns it.
// Grounded on riggerd/reshook.c's open_rescf/close_rescf/really_set_to_localhost.
type ResolvConfWriter struct {
	Path   string
	Domain string
	Search string

	// flusher and immutable/mutable are platform hooks, set by NewResolvConfWriter per build
	// target (chflags on BSD/Darwin, chattr on Linux).
	setImmutable func(path string) error
	setMutable   func(path string) error
	flushCaches  func()
}

// NewResolvConfWriter constructs a ResolvConfWriter for the given path, wiring in the
// platform-appropriate immutable-bit and cache-flush primitives.
func NewResolvConfWriter(path, domain, search string) *ResolvConfWriter {
	return &ResolvConfWriter{
		Path:         path,
		Domain:       domain,
		Search:       search,
		setImmutable: platformSetImmutable,
		setMutable:   platformSetMutable,
		flushCaches:  platformFlushCaches,
	}
}

var _ Writer = (*ResolvConfWriter)(nil)

// SetLocalhost implements Writer.
func (w *ResolvConfWriter) SetLocalhost() error {
	return w.write([]string{"127.0.0.1"})
}

// SetIPList implements Writer.
func (w *ResolvConfWriter) SetIPList(addrs []string) error {
	return w.write(addrs)
}

// write rewrites resolv.conf with the given nameserver list, clearing and restoring the
// immutable bit around the edit exactly as the original daemon does. It's a no-op if the file
// already has this exact content, so a repeat Apply with the same posture - including across a
// daemon restart, when Arbiter's in-memory lastPosture cache starts back at zero - never has to
// briefly make an immutable file mutable for nothing.
func (w *ResolvConfWriter) write(nameservers []string) error {
	if w.alreadySetTo(nameservers) {
		return nil
	}
	if err := w.setMutable(w.Path); err != nil {
		return fmt.Errorf("make mutable: %w", err)
	}
	if err := os.Chmod(w.Path, 0644); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chmod rw: %w", err)
	}

	f, err := os.OpenFile(w.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.Path, err)
	}

	if _, err := f.WriteString(signatureLine); err != nil {
		f.Close()
		return fmt.Errorf("write signature: %w", err)
	}
	if w.Domain != "" {
		if _, err := fmt.Fprintf(f, "domain %s\n", w.Domain); err != nil {
			f.Close()
			return err
		}
	}
	if w.Search != "" {
		if _, err := fmt.Fprintf(f, "search %s\n", w.Search); err != nil {
			f.Close()
			return err
		}
	}
	for _, ns := range nameservers {
		if _, err := fmt.Fprintf(f, "nameserver %s\n", ns); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Chmod(w.Path, 0444); err != nil {
		return fmt.Errorf("chmod ro: %w", err)
	}
	if err := w.setImmutable(w.Path); err != nil {
		return fmt.Errorf("make immutable: %w", err)
	}
	return nil
}

// Flush implements Writer.
func (w *ResolvConfWriter) Flush() {
	w.flushCaches()
}

// Uninstall implements Writer: restores the file to an ordinary mutable, writable state and
// leaves its content untouched, matching hook_resolv_uninstall's non-OSX/non-Windows branch. A
// daemon that never got as far as writing the file (e.g. it crashed during start-up) has nothing
// to restore.
func (w *ResolvConfWriter) Uninstall() error {
	if !fileExists(w.Path) {
		return nil
	}
	if err := w.setMutable(w.Path); err != nil {
		return fmt.Errorf("make mutable: %w", err)
	}
	return os.Chmod(w.Path, 0644)
}

// alreadySetTo reports whether the file on disk already has our signature line followed only by
// "nameserver <addr>\n" lines matching wantAddrs (in any order) plus the configured domain/search
// lines, so a repeat Apply with the same posture doesn't need to touch the filesystem at all. Any
// further nameserver line, or a domain/search line when none is configured, means a rewrite.
// Grounded on really_set_to_localhost.
func (w *ResolvConfWriter) alreadySetTo(wantAddrs []string) bool {
	data, err := os.ReadFile(w.Path)
	if err != nil {
		return false
	}
	content := string(data)
	if len(content) < len(signatureLine) || content[:len(signatureLine)] != signatureLine {
		return false
	}
	if w.Domain != "" && !contains(content, "domain "+w.Domain+"\n") {
		return false
	}
	if w.Search != "" && !contains(content, "search "+w.Search+"\n") {
		return false
	}
	if (w.Domain == "" && contains(content, "\ndomain ")) || (w.Search == "" && contains(content, "\nsearch ")) {
		return false
	}
	nameservers := 0
	for rest := content; indexOf(rest, "\nnameserver ") >= 0; nameservers++ {
		rest = rest[indexOf(rest, "\nnameserver ")+1:]
	}
	if nameservers != len(wantAddrs) {
		return false
	}
	for _, addr := range wantAddrs {
		if !contains(content, "nameserver "+addr+"\n") {
			return false
		}
	}
	return true
}

func contains(haystack, needle string) bool {
	return len(needle) == 0 || indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}
