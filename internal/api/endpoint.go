package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint is one operation of the local snapshot server. It serves an HTTP
// route and supplies the "docwatch api" subcommand that calls it, so the two
// cannot drift apart.
type Endpoint interface {
	Route() (method, path string, handler http.HandlerFunc)

	// NeedsWatch reports whether the handler reads the live watch. Such
	// routes are wrapped by the server's Guard.
	NeedsWatch() bool

	// Command builds the subcommand. serverURL is read when the command
	// runs, after --local has been parsed.
	Command(serverURL func() string) *cobra.Command
}

// Guard wraps the handlers of endpoints that need a live watch.
type Guard func(http.HandlerFunc) http.HandlerFunc
