package api

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// Registry is the ordered set of snapshot server endpoints, keyed by
// "METHOD /path".
type Registry struct {
	endpoints []Endpoint
	patterns  []string
}

// NewRegistry creates a registry holding eps. Like http.ServeMux it panics
// when two endpoints claim the same method and path.
func NewRegistry(eps ...Endpoint) *Registry {
	r := &Registry{}
	seen := make(map[string]bool, len(eps))
	for _, ep := range eps {
		method, path, _ := ep.Route()
		pattern := method + " " + path
		if seen[pattern] {
			panic(fmt.Sprintf("api: duplicate endpoint %s", pattern))
		}
		seen[pattern] = true
		r.endpoints = append(r.endpoints, ep)
		r.patterns = append(r.patterns, pattern)
	}
	return r
}

// Patterns returns the mux patterns in registration order.
func (r *Registry) Patterns() []string {
	return append([]string(nil), r.patterns...)
}

// Mount serves every endpoint on mux. Endpoints that need a watch are
// wrapped with guard.
func (r *Registry) Mount(mux *http.ServeMux, guard Guard) {
	for i, ep := range r.endpoints {
		_, _, handler := ep.Route()
		if ep.NeedsWatch() && guard != nil {
			handler = guard(handler)
		}
		mux.HandleFunc(r.patterns[i], handler)
	}
}

// Commands builds the "api" command with one subcommand per endpoint.
func (r *Registry) Commands(serverURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Query a running watch through its local server",
		Long: `Talk to the snapshot server that "docwatch watch --listen" starts.

Point --local at the server when it listens somewhere other than
http://127.0.0.1:8090.

Examples:
  docwatch api health           # is the watch reachable
  docwatch api progress -o json # full snapshot
  docwatch api reset            # stop the watch and forget the group`,
	}

	for _, ep := range r.endpoints {
		apiCmd.AddCommand(ep.Command(serverURL))
	}

	return apiCmd
}
