package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/api"
	"github.com/jackzampolin/docwatch/internal/backend"
	"github.com/jackzampolin/docwatch/internal/config"
	"github.com/jackzampolin/docwatch/internal/home"
	"github.com/jackzampolin/docwatch/internal/jobgroup"
	"github.com/jackzampolin/docwatch/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	backendURL   string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "docwatch",
	Short: "Submit document batches and watch them to completion",
	Long: `docwatch submits documents to the processing backend and follows the
resulting jobs until every document has an authoritative result.

While watching it:
  - merges the backend's cumulative job logs without duplicates
  - tracks each document through PENDING, STARTED and a terminal state
  - shows live progress and per-document elapsed time
  - fetches the final results once the group is complete

An interrupted watch can be resumed with "docwatch watch".`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docwatch/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docwatch home directory (default: ~/.docwatch)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "text", "output format: text, yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&backendURL, "server", "", "processing backend URL (overrides server.url)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// env bundles what commands need once flags are parsed.
type env struct {
	home   *home.Dir
	config *config.Manager
	logger *slog.Logger
	out    io.Writer
}

// loadEnv resolves the home directory and configuration from the
// persistent flags.
func loadEnv(out io.Writer) (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	cm, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		if err := cm.Set("server.url", backendURL); err != nil {
			return nil, err
		}
	}

	logger := newLogger(verbose)
	cm.SetLogger(logger)

	return &env{home: h, config: cm, logger: logger, out: out}, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// backend returns a client for the configured processing backend.
func (e *env) backend() *backend.Client {
	cfg := e.config.Get()
	return backend.NewClient(cfg.ServerURL(), cfg.Server.RequestTimeout)
}

// probeConfig returns the health probe settings with the command's logger.
func (e *env) probeConfig() backend.ProbeConfig {
	probe := e.config.Get().ProbeConfig()
	probe.Logger = e.logger
	return probe
}

// jobGroups opens the configured job group store. The returned func
// releases it.
func (e *env) jobGroups(ctx context.Context) (jobgroup.Store, func(), error) {
	store, err := jobgroup.Open(ctx, e.config.Get().JobGroupConfig(e.home.JobGroupPath()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open job group store: %w", err)
	}
	release := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				e.logger.Warn("failed to close job group store", "error", err)
			}
		}
	}
	return store, release, nil
}
