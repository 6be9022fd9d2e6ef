package reshook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestResolvConfWriter(t *testing.T) (*ResolvConfWriter, *int, *int) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	immutableCalls, mutableCalls := 0, 0
	w := &ResolvConfWriter{
		Path:         path,
		setImmutable: func(string) error { immutableCalls++; return nil },
		setMutable:   func(string) error { mutableCalls++; return nil },
		flushCaches:  func() {},
	}
	return w, &immutableCalls, &mutableCalls
}

func TestResolvConfWriterSetLocalhost(t *testing.T) {
	w, immutable, mutable := newTestResolvConfWriter(t)
	if err := w.SetLocalhost(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(w.Path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, signatureLine) {
		t.Errorf("expected signature line first, got %q", content)
	}
	if !strings.Contains(content, "nameserver 127.0.0.1\n") {
		t.Errorf("expected localhost nameserver line, got %q", content)
	}
	if *immutable != 1 {
		t.Errorf("expected setImmutable called once, got %d", *immutable)
	}
	if *mutable != 1 {
		t.Errorf("expected setMutable called once to open for writing, got %d", *mutable)
	}
}

func TestResolvConfWriterSetIPListWritesAllAddrs(t *testing.T) {
	w, _, _ := newTestResolvConfWriter(t)
	w.Domain = "example.invalid"
	if err := w.SetIPList([]string{"198.51.100.1", "198.51.100.2"}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(w.Path)
	content := string(data)
	if !strings.Contains(content, "domain example.invalid\n") {
		t.Errorf("expected domain line, got %q", content)
	}
	if !strings.Contains(content, "nameserver 198.51.100.1\n") || !strings.Contains(content, "nameserver 198.51.100.2\n") {
		t.Errorf("expected both nameserver lines, got %q", content)
	}
}

func TestResolvConfWriterAlreadySetTo(t *testing.T) {
	w, _, _ := newTestResolvConfWriter(t)
	w.SetIPList([]string{"198.51.100.1"})
	if !w.alreadySetTo([]string{"198.51.100.1"}) {
		t.Error("expected alreadySetTo to recognize a freshly-written file")
	}
	if w.alreadySetTo([]string{"198.51.100.9"}) {
		t.Error("expected alreadySetTo to reject a mismatched address")
	}
}

func TestResolvConfWriterWriteSkipsNoOpRewrite(t *testing.T) {
	w, immutable, mutable := newTestResolvConfWriter(t)
	if err := w.SetIPList([]string{"198.51.100.1"}); err != nil {
		t.Fatal(err)
	}
	if *immutable != 1 || *mutable != 1 {
		t.Fatalf("expected one write, got immutable=%d mutable=%d", *immutable, *mutable)
	}
	// A repeat Apply with the same posture - including one simulating a fresh daemon restart,
	// where Arbiter's in-memory lastPosture has reset to zero - must not touch the immutable
	// bit or the file again.
	if err := w.SetIPList([]string{"198.51.100.1"}); err != nil {
		t.Fatal(err)
	}
	if *immutable != 1 || *mutable != 1 {
		t.Errorf("expected no additional immutable/mutable toggling on a no-op rewrite, got immutable=%d mutable=%d",
			*immutable, *mutable)
	}
}

func TestResolvConfWriterUninstallNoOpWhenNeverWritten(t *testing.T) {
	w, immutable, mutable := newTestResolvConfWriter(t)
	if err := w.Uninstall(); err != nil {
		t.Fatal(err)
	}
	if *immutable != 0 || *mutable != 0 {
		t.Errorf("expected no filesystem work when the managed file was never written, got immutable=%d mutable=%d",
			*immutable, *mutable)
	}
}

func TestResolvConfWriterUninstallLeavesFileMutable(t *testing.T) {
	w, _, mutable := newTestResolvConfWriter(t)
	w.SetLocalhost()
	if err := w.Uninstall(); err != nil {
		t.Fatal(err)
	}
	if *mutable != 2 { // once to open for the original write, once for Uninstall
		t.Errorf("expected setMutable called twice total, got %d", *mutable)
	}
	info, err := os.Stat(w.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected mode 0644 after uninstall, got %o", info.Mode().Perm())
	}
}
