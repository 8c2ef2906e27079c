package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/api"
	"github.com/jackzampolin/docwatch/internal/jobgroup"
	"github.com/jackzampolin/docwatch/internal/reconcile"
	"github.com/jackzampolin/docwatch/internal/svcctx"
)

// ProgressEndpoint handles GET /api/progress.
type ProgressEndpoint struct{}

func (e *ProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/progress", e.handler
}

func (e *ProgressEndpoint) NeedsWatch() bool { return true }

func (e *ProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.SchedulerFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "no job group attached")
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (e *ProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Print the current reconciliation snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var snap reconcile.Snapshot
			if err := client.Get(cmd.Context(), "/api/progress", &snap); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(snap)
			}
			fmt.Printf("Progress: %d%% (tick %d)\n", snap.Progress, snap.Ticks)
			for _, d := range snap.Documents {
				fmt.Printf("  %-36s %-8s %8s  %s\n", d.DocumentID, d.Status, d.Elapsed, d.ExtractorInfo)
			}
			if snap.Finalized {
				fmt.Println("Results finalized")
			}
			return nil
		},
	}
}

// ResetResponse is returned by the reset endpoint.
type ResetResponse struct {
	Status string `json:"status"`
}

// ResetEndpoint handles POST /api/progress/reset.
// It stops polling, discards all reconciliation state and clears the
// persisted job group so a later watch does not resume it.
type ResetEndpoint struct{}

func (e *ResetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/progress/reset", e.handler
}

func (e *ResetEndpoint) NeedsWatch() bool { return true }

func (e *ResetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s := svcctx.SchedulerFrom(r.Context())
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "no job group attached")
		return
	}
	logger := svcctx.LoggerFrom(r.Context())

	s.Reset()
	if store := svcctx.JobGroupsFrom(r.Context()); store != nil {
		if err := store.Clear(r.Context()); err != nil && !errors.Is(err, jobgroup.ErrNoGroup) {
			logger.Error("failed to clear job group", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	logger.Info("job group reset via local server")
	writeJSON(w, http.StatusOK, ResetResponse{Status: "reset"})
}

func (e *ResetEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Stop the running watch and clear its job group",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ResetResponse
			if err := client.Post(cmd.Context(), "/api/progress/reset", nil, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Println("Job group reset")
			return nil
		},
	}
}
