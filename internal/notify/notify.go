// Package notify implements the Notifier capability of spec §9: "fn
// send(text) -> Result<(), NotifierError>". Its failure never blocks a
// trading decision (spec §7); callers treat it as best-effort.
package notify

// Notifier is the capability interface. Multiple notifiers can be composed
// behind it; order and routing are not part of the spec.
type Notifier interface {
	Send(text string) error
}

// NoOp discards every message, so code holding it needs no nil check. The
// binaries always use Telegram; NoOp is used by the package tests.
type NoOp struct{}

func (NoOp) Send(string) error { return nil }
