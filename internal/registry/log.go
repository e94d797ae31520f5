package registry

import "github.com/btcsuite/btclog"

// log is the package-level logger for the registry core, following the same
// disabled-by-default / UseLogger convention as internal/baselib/actor.
var log = btclog.Disabled

// UseLogger sets the package-level logger used by the registry.
func UseLogger(logger btclog.Logger) {
	log = logger
}
