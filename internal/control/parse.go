package control

import "strings"

// stripVersionPrefix checks the mandatory "DNSTRIG<N> " prefix on the first line a panel sends
// and returns the remainder of the line. ok is false on any mismatch, per spec.md §4.1's "mismatch
// terminates the connection" rule (scenario 4).
func stripVersionPrefix(line string) (rest string, ok bool) {
	prefix := versionPrefix()
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimLeft(line[len(prefix):], " "), true
}

// tokenizeCommand splits a command line into its verb and the remainder (e.g. "submit" and
// "192.0.2.1 192.0.2.2"), per spec.md §9's "tokenize once, dispatch via table" guidance.
func tokenizeCommand(line string) (verb string, rest string) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	verb = fields[0]
	idx := strings.Index(line, verb) + len(verb)
	rest = strings.TrimSpace(line[idx:])
	return verb, rest
}
