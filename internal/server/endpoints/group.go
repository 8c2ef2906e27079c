package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/api"
	"github.com/jackzampolin/docwatch/internal/jobgroup"
	"github.com/jackzampolin/docwatch/internal/svcctx"
)

// GroupEndpoint handles GET /api/group.
type GroupEndpoint struct{}

func (e *GroupEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/group", e.handler
}

func (e *GroupEndpoint) NeedsWatch() bool { return false }

func (e *GroupEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.JobGroupsFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "job group store not configured")
		return
	}

	rec, err := store.Load(r.Context())
	if err != nil {
		if errors.Is(err, jobgroup.ErrNoGroup) {
			writeError(w, http.StatusNotFound, "no job group stored")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (e *GroupEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "group",
		Short: "Show the persisted job group",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var rec jobgroup.Record
			if err := client.Get(cmd.Context(), "/api/group", &rec); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(rec)
			}
			fmt.Printf("Group:   %s\n", rec.GroupID)
			fmt.Printf("Jobs:    %s\n", strings.Join(rec.JobIDs, ", "))
			fmt.Printf("Created: %s\n", rec.Created().Format("2006-01-02 15:04:05"))
			fmt.Printf("Done:    %t\n", rec.Done)
			return nil
		},
	}
}
