//go:build linux
// +build linux

package reshook

import "fmt"

// platformSetImmutable/platformSetMutable shell out to chattr(1), the ext2/3/4 mechanism from
// reshook.c's r_immutable_efs/r_mutable_efs. Go has no syscall wrapper for the ext attribute
// ioctl, and chattr is universally present on Linux distributions that ship resolv.conf-managing
// daemons at all.
func platformSetImmutable(path string) error {
	return runShell(fmt.Sprintf("chattr +i %s", path))
}

func platformSetMutable(path string) error {
	return runShell(fmt.Sprintf("chattr -i %s", path))
}

func platformFlushCaches() {
	// No portable Linux resolver cache to flush centrally (unlike OSX's dscacheutil); left as
	// a no-op, matching hook_resolv_flush's #else TODO branch for non-OSX/non-Windows unix.
}
