// Package tracklog is the shared logging setup for the flightwatch
// binaries: plain stdlib log.Logger instances with a consistent prefix and
// timestamp, the same idiom cmd/collector and cmd/web-server use directly.
package tracklog

import (
	"log"
	"os"
)

// New returns a *log.Logger that writes to stderr with microsecond
// timestamps and the given component name as prefix, e.g. "[factory] ".
func New(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags|log.Lmicroseconds)
}

// Default is the logger handed to a Factory or server when the caller has
// no particular component name to distinguish, matching the corpus's use
// of the unadorned log package-level functions.
var Default = log.New(os.Stderr, "", log.LstdFlags)
