package control

import "github.com/dnstrustd/dnstrustd/internal/state"

// Engine is the capability set the control server requires of the state engine. *state.Engine
// satisfies this structurally; it's declared locally (rather than imported as a concrete type in
// every signature) so control can be tested against a fake without internal/state growing a
// reverse dependency on internal/control.
type Engine interface {
	Submit(cacheAddrs []string)
	Reprobe()
	SkipHTTP()
	HotspotSignon()
	InsecureYes()
	InsecureNo()
	TestTCP()
	TestSSL()
	TestHTTP()
	Unsafe()
	TestUpdate()
	UpdateOk()
	UpdateCancel()
	ReassertLoopback()
	Snapshot() state.Snapshot
}

var _ Engine = (*state.Engine)(nil)
