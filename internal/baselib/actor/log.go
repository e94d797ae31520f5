package actor

import "github.com/btcsuite/btclog"

// log is the package-level logger used throughout the actor runtime. It
// defaults to a disabled logger so the package is silent until a caller
// wires one in with UseLogger, matching the convention used across this
// codebase's other btclog-based packages (see cmd/registryd, which builds a
// btclog.NewSLogger from a fanned-out Handler and passes it here).
var log = btclog.Disabled

// UseLogger sets the package-level logger used by the actor runtime.
func UseLogger(logger btclog.Logger) {
	log = logger
}
