package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/jobgroup"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the stored job group",
	Long: `Forget the job group saved by the last submit so "docwatch watch" has
nothing to resume. Backend jobs are not cancelled.

To reset a watch that is running with --listen, use "docwatch api reset".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := loadEnv(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		store, release, err := e.jobGroups(ctx)
		if err != nil {
			return err
		}
		defer release()

		groupID, err := resetGroup(ctx, store)
		if err != nil {
			return err
		}
		if groupID == "" {
			fmt.Fprintln(e.out, "No job group stored")
			return nil
		}
		fmt.Fprintf(e.out, "Discarded job group %s\n", groupID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

// resetGroup clears the store and returns the discarded group's ID, or ""
// if nothing was stored.
func resetGroup(ctx context.Context, store jobgroup.Store) (string, error) {
	rec, err := store.Load(ctx)
	if errors.Is(err, jobgroup.ErrNoGroup) {
		return "", nil
	}
	groupID := ""
	if err == nil {
		groupID = rec.GroupID
	}
	// An unreadable record is cleared too.
	if err := store.Clear(ctx); err != nil {
		return "", fmt.Errorf("failed to clear job group: %w", err)
	}
	if groupID == "" {
		groupID = "(unreadable)"
	}
	return groupID, nil
}
