package main

import (
	"github.com/jackzampolin/docwatch/internal/server"
)

var localURL string

// getLocalURL returns the local server URL at runtime (after flag parsing).
func getLocalURL() string {
	return localURL
}

func init() {
	apiCmd := server.Commands(getLocalURL)

	// Persistent so all subcommands inherit it
	apiCmd.PersistentFlags().StringVar(
		&localURL, "local", "http://127.0.0.1:8090", "local snapshot server URL",
	)

	rootCmd.AddCommand(apiCmd)
}
