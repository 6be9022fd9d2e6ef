// Package update defines the self-update collaborator's interface to the state engine. The
// fetcher implementation itself is out of scope (spec.md Non-goals); this package supplies only
// the Notifier contract the engine depends on, plus a no-op default so a daemon configured with
// check_updates=false (or built without any real fetcher wired in) still has something to call.
package update

// Notifier is the capability the state engine requires of its update collaborator, matching
// state.UpdateNotifier: CheckUpdate polls for a new version (results, if any, arrive
// asynchronously via Engine.SignalUpdate), UserOkay routes the panel's update_ok/update_cancel
// decision back, and EnterTestMode is used by the test_update command to force a synthetic check.
type Notifier interface {
	CheckUpdate()
	UserOkay(ok bool)
	EnterTestMode()
}

// Noop is the default Notifier: every call is a no-op. Suitable when check_updates is configured
// false, or as a placeholder until a real fetcher is wired into cmd/dnstrustd.
type Noop struct{}

func (Noop) CheckUpdate()     {}
func (Noop) UserOkay(ok bool) {}
func (Noop) EnterTestMode()   {}
