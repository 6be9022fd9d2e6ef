package state

import "fmt"

// formatReport renders a single-line status report of space-separated facts, in keeping with the reporter.Reporter
// convention used across every trustydns-derived collaborator.
func formatReport(res Resolution, flags Flags, sweeps, reprobes, hotspotSign int) string {
	s := fmt.Sprintf("resolution=%s sweeps=%d reprobes=%d hotspot_signons=%d",
		res, sweeps, reprobes, hotspotSign)
	if flags.InsecureState {
		s += " insecure_state"
	}
	if flags.ForcedInsecure {
		s += " forced_insecure"
	}
	if flags.HTTPInsecure {
		s += " http_insecure"
	}
	if flags.SkipHTTP {
		s += " skip_http"
	}
	return s
}
