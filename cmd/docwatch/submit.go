package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/backend"
	"github.com/jackzampolin/docwatch/internal/jobgroup"
	"github.com/jackzampolin/docwatch/internal/reconcile"
)

var (
	submitBatchSize int
	submitOptions   []string
	submitNoWatch   bool
	submitListen    string
)

var submitCmd = &cobra.Command{
	Use:   "submit <document-id>...",
	Short: "Create processing jobs for documents and watch them",
	Long: `Submit already-uploaded documents to the processing backend.

The backend is health-checked first; no job is created if it does not
answer. With --batch-size the documents are split across several jobs that
are watched together as one group.

Examples:
  docwatch submit doc-1 doc-2 doc-3
  docwatch submit --batch-size 10 $(cat ids.txt)
  docwatch submit --option extractor=docling --no-watch doc-1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts, err := parseOptions(submitOptions)
		if err != nil {
			return err
		}

		e, err := loadEnv(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		store, release, err := e.jobGroups(ctx)
		if err != nil {
			return err
		}
		defer release()

		rec, err := submit(ctx, e, store, args, submitBatchSize, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Submitted %d documents in %d jobs (group %s)\n", len(args), len(rec.JobIDs), rec.GroupID)

		if submitNoWatch {
			return nil
		}
		return watchAndReport(ctx, e, store, rec, submitListen)
	},
}

func init() {
	submitCmd.Flags().IntVar(&submitBatchSize, "batch-size", 0, "documents per backend job (0: one job for all)")
	submitCmd.Flags().StringArrayVar(&submitOptions, "option", nil, "processing option key=value (repeatable)")
	submitCmd.Flags().BoolVar(&submitNoWatch, "no-watch", false, "create the jobs and exit")
	submitCmd.Flags().StringVar(&submitListen, "listen", "", "serve the snapshot locally on this address, e.g. :8090")
	rootCmd.AddCommand(submitCmd)
}

// submit probes the backend, creates one job per batch and persists the
// group. If a later batch fails, the jobs already created are still saved
// so they can be watched.
func submit(ctx context.Context, e *env, store jobgroup.Store, docIDs []string, batchSize int, opts backend.JobOptions) (*jobgroup.Record, error) {
	client := e.backend()
	if err := backend.WaitHealthy(ctx, client, e.probeConfig()); err != nil {
		return nil, err
	}

	var jobs []reconcile.Job
	var createErr error
	for _, batch := range splitBatches(docIDs, batchSize) {
		jobID, err := client.CreateJob(ctx, batch, opts)
		if err != nil {
			createErr = err
			break
		}
		e.logger.Info("job created", "job_id", jobID, "documents", len(batch))
		jobs = append(jobs, reconcile.Job{ID: jobID, DocumentIDs: batch})
	}
	if len(jobs) == 0 {
		return nil, createErr
	}

	rec := jobgroup.NewRecord(jobs, nil)
	if err := store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save job group: %w", err)
	}
	if createErr != nil {
		return rec, fmt.Errorf("created %d jobs before failing (group %s saved): %w", len(jobs), rec.GroupID, createErr)
	}
	return rec, nil
}

// splitBatches splits ids into consecutive batches of at most size.
// A size below 1 yields a single batch.
func splitBatches(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if size < 1 || size >= len(ids) {
		return [][]string{ids}
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// parseOptions turns key=value flags into job options. Values that parse
// as a number or bool are passed as such.
func parseOptions(kvs []string) (backend.JobOptions, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	opts := make(backend.JobOptions, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, expected key=value", kv)
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			opts[key] = n
		} else if b, err := strconv.ParseBool(value); err == nil {
			opts[key] = b
		} else {
			opts[key] = value
		}
	}
	return opts, nil
}
