//go:build !windows
// +build !windows

package reshook

import "os/exec"

// runShell runs cmd through /bin/sh -c, matching the original daemon's system(3) calls for the
// chattr and OSX setdns helper-script invocations. Errors are returned to the caller, which
// either passes them up or drops them; the daemon keeps running either way, per spec.md §7's
// error-handling posture.
func runShell(cmd string) error {
	return exec.Command("/bin/sh", "-c", cmd).Run()
}
