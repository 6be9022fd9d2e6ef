/*
Package constants provides common values used across all dnstrustd packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typically usage:

    consts := constants.Get()
    fmt.Println("I am", consts.ProgramName, "protocol", consts.ControlVersion)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that it can be fed directly into templating packages for printing usage messages.
*/
package constants

import "time"

// Constants contains the system-wide constants
type Constants struct {
	ProgramName string
	Version     string
	PackageName string
	PackageURL  string

	ControlVersion int    // Wire protocol version - first token must be "DNSTRIGx "
	VersionPrefix  string // "DNSTRIG" - ControlVersion is appended by callers

	DefaultControlPort int    // Loopback-only control listener
	DefaultMaxActive   int    // Max simultaneous panel connections
	DNSDefaultPort     string // DNS related
	AuthorityTLSPort   int    // Port used for the TLS/443 authority probe

	MaxLineLength int // Longest control-protocol line accepted before the connection is dropped

	RetryTimerStart    time.Duration // Initial reprobe timer period
	RetryTimerMax      time.Duration // Clamp for exponential backoff
	RetryTimerCountMax int           // Number of fires kept at RetryTimerStart before doubling begins

	TCPRetrySeconds time.Duration // One-shot tcp/ssl re-check timer period

	ResolvConfSignature string // First line written into the daemon-managed resolv.conf
}

var readOnlyConstants *Constants

// createReadOnlyConstants creates a read-only copy of the Constants which is copied whenever a
// caller asks for the constants set. The main reason for returning a struct is so that callers can
// inspect and/or use packages that introspect - particularly */template packages.
func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		ProgramName: "dnstrustd",
		Version:     "v0.1.0",
		PackageName: "DNSSEC Trust Daemon",
		PackageURL:  "https://github.com/dnstrustd/dnstrustd",

		ControlVersion: 1,
		VersionPrefix:  "DNSTRIG",

		DefaultControlPort: 8955,
		DefaultMaxActive:   32,
		DNSDefaultPort:     "53",
		AuthorityTLSPort:   443,

		MaxLineLength: 8192,

		RetryTimerStart:    1 * time.Second,
		RetryTimerMax:      4 * time.Minute,
		RetryTimerCountMax: 4,

		TCPRetrySeconds: 45 * time.Second,

		ResolvConfSignature: "# Generated by dnstrustd\n",
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constant struct. Return by value so internal values cannot be
// inadvertently changed by callers.
func Get() Constants {
	return *readOnlyConstants
}
