package control

import (
	"fmt"
	"strings"

	"github.com/dnstrustd/dnstrustd/internal/constants"
	"github.com/dnstrustd/dnstrustd/internal/probe"
	"github.com/dnstrustd/dnstrustd/internal/state"
)

var consts = constants.Get()

// versionPrefix is the literal every command-channel line must begin with, per spec.md §4.1,
// e.g. "DNSTRIG1 ".
func versionPrefix() string {
	return fmt.Sprintf("%s%d ", consts.VersionPrefix, consts.ControlVersion)
}

// okErr renders a probe outcome as the wire protocol's "OK"/"error [<reason>]" suffix.
func okErr(works bool, reason string) string {
	if works {
		if reason == "" {
			return "OK"
		}
		return "OK " + reason
	}
	if reason == "" {
		return "error"
	}
	return "error " + reason
}

// renderProbeLine renders one probe.Entry using the per-kind formats from spec.md §4.1.
func renderProbeLine(e *probe.Entry) string {
	status := okErr(e.Works(), e.Reason())
	switch e.Kind {
	case probe.KindHTTPAddr:
		rtype := "A"
		if e.IsIPv6 {
			rtype = "AAAA"
		}
		return fmt.Sprintf("addr %s %s from %s: %s", e.HostC, rtype, e.Name, status)
	case probe.KindHTTPDesc:
		return fmt.Sprintf("http %s (%s): %s", e.HTTPDesc, e.Name, status)
	case probe.KindTCP:
		return fmt.Sprintf("tcp%d %s: %s", e.Port, e.Name, status)
	case probe.KindSSL:
		return fmt.Sprintf("ssl%d %s: %s", e.Port, e.Name, status)
	case probe.KindAuthority:
		return fmt.Sprintf("authority %s: %s", e.Name, status)
	default: // KindCache
		return fmt.Sprintf("cache %s: %s", e.Name, status)
	}
}

// renderResultsBlock renders a full results block per spec.md §4.1: an "at" line, zero or more
// probe lines, an optional in-progress/no-cache line, a "state:" line, and a terminating blank
// line.
func renderResultsBlock(snap state.Snapshot) string {
	var b strings.Builder

	if snap.LastSweepAt.IsZero() {
		b.WriteString("at (no probe performed)\n")
	} else {
		fmt.Fprintf(&b, "at %s\n", snap.LastSweepAt.UTC().Format("2006-01-02 15:04:05"))
	}

	for _, e := range snap.Entries {
		if !e.Finished() {
			continue
		}
		b.WriteString(renderProbeLine(e))
		b.WriteString("\n")
	}

	switch {
	case snap.InProgress:
		b.WriteString("probe is in progress\n")
	case !snap.HaveCache:
		b.WriteString("no cache: no DNS servers have been supplied via DHCP\n")
	}

	fmt.Fprintf(&b, "state: %s%s\n", snap.Resolution, modeSuffix(snap))
	b.WriteString("\n")
	return b.String()
}

// modeSuffix renders the "secure"/"insecure_mode" plus optional flag annotations that follow the
// resolution token on the "state:" line.
func modeSuffix(snap state.Snapshot) string {
	s := " secure"
	if snap.Flags.InsecureState {
		s = " insecure_mode"
	}
	if snap.Flags.ForcedInsecure {
		s += " forced_insecure"
	}
	if snap.Flags.HTTPInsecure {
		s += " http_insecure"
	}
	return s
}

// renderUpdateSignal renders spec.md §4.1's "update <current>\n<available>\n\n" push.
func renderUpdateSignal(currentVersion, availableVersion string) string {
	return fmt.Sprintf("update %s\n%s\n\n", currentVersion, availableVersion)
}

const stopLine = "stop\n"

const unknownCommandLine = "error unknown command\n"
