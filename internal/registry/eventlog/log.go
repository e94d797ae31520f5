package eventlog

import (
	"io"
	"log/slog"
)

// log is the package-level logger. This package sits directly on top of
// internal/db, which uses log/slog rather than btclog, so it follows suit.
var log = slog.New(slog.NewTextHandler(io.Discard, nil))

// UseLogger installs l as the package-level logger.
func UseLogger(l *slog.Logger) {
	log = l
}
