package regweb

import "github.com/btcsuite/btclog"

// log is the package-level logger for the web relay, following the same
// disabled-by-default / UseLogger convention as internal/registry and
// internal/baselib/actor.
var log = btclog.Disabled

// UseLogger sets the package-level logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
