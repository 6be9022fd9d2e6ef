//go:build darwin || freebsd || netbsd || openbsd
// +build darwin freebsd netbsd openbsd

package reshook

import "golang.org/x/sys/unix"

// platformSetImmutable/platformSetMutable use chflags(2)'s UF_IMMUTABLE/UF_NOUNLINK bits, the
// BSD/Darwin mechanism from reshook.c's r_immutable_bsd/r_mutable_bsd.
func platformSetImmutable(path string) error {
	return unix.Chflags(path, unix.UF_IMMUTABLE|unix.UF_NOUNLINK)
}

func platformSetMutable(path string) error {
	return unix.Chflags(path, 0)
}

func platformFlushCaches() {
	// dscacheutil on modern Darwin, lookupd on very old releases; best-effort, matching
	// hook_resolv_flush's HOOKS_OSX branch.
	_ = runShell("dscacheutil -flushcache || lookupd -flushcache")
}
