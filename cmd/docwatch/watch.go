package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/api"
	"github.com/jackzampolin/docwatch/internal/config"
	"github.com/jackzampolin/docwatch/internal/jobgroup"
	"github.com/jackzampolin/docwatch/internal/reconcile"
	"github.com/jackzampolin/docwatch/internal/server"
)

var watchListen string

var errWatchReset = errors.New("watch was reset")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Resume watching the stored job group",
	Long: `Resume watching the job group saved by the last submit.

Polling continues where an interrupted watch left off. Log lines are shown
once each, and the final results are fetched once every document is done.
A group that already finished is not watched again; use "docwatch reset"
to discard it.

With --listen (or the listen config key) the live snapshot is also served
over HTTP for "docwatch api".`,
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

		rec, err := store.Load(ctx)
		if errors.Is(err, jobgroup.ErrNoGroup) {
			return errors.New("no job group to watch, run docwatch submit first")
		}
		if err != nil {
			return err
		}
		if err := rec.Validate(); err != nil {
			return err
		}
		if rec.Done {
			return fmt.Errorf("job group %s already finished", rec.GroupID)
		}

		return watchAndReport(ctx, e, store, rec, watchListen)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "serve the snapshot locally on this address, e.g. :8090")
	rootCmd.AddCommand(watchCmd)
}

// watchAndReport watches rec to completion and emits the final snapshot as
// structured output when requested.
func watchAndReport(ctx context.Context, e *env, store jobgroup.Store, rec *jobgroup.Record, listen string) error {
	snap, err := watch(ctx, e, store, rec, listen)
	if err != nil {
		return err
	}
	if api.IsStructuredOutput() {
		return api.OutputTo(e.out, api.GetOutputFormat(), snap)
	}
	return nil
}

// watch polls rec until finalized. On success the group is marked done and
// a transcript is written to the home directory. Cancelling ctx leaves the
// group resumable.
func watch(ctx context.Context, e *env, store jobgroup.Store, rec *jobgroup.Record, listen string) (reconcile.Snapshot, error) {
	cfg := e.config.Get()

	sched := reconcile.NewScheduler(reconcile.SchedulerConfig{
		Backend: e.backend(),
		Store: reconcile.NewStore(reconcile.StoreConfig{
			Jobs:       rec.Jobs(),
			Filenames:  rec.Filenames,
			Extractors: cfg.Extractors,
		}),
		Interval: cfg.Poll.Interval,
		Logger:   e.logger,
		OnUpdate: newRenderer(e.out, api.IsStructuredOutput()).Update,
		OnFinalized: func(ctx context.Context, snap reconcile.Snapshot) {
			if err := store.MarkDone(ctx); err != nil {
				e.logger.Warn("failed to mark job group done", "group_id", rec.GroupID, "error", err)
			}
		},
	})

	if e.config.ConfigFile() != "" {
		e.config.OnChange(func(c *config.Config) {
			if c.Poll.Interval != sched.Interval() {
				e.logger.Info("poll interval changed", "interval", c.Poll.Interval)
				sched.SetInterval(c.Poll.Interval)
			}
		})
		e.config.WatchConfig()
	}

	e.logger.Info("watching job group", "group_id", rec.GroupID, "jobs", len(rec.JobIDs), "interval", sched.Interval())
	if err := sched.Start(ctx); err != nil {
		return reconcile.Snapshot{}, err
	}

	// The server starts after the loop so a reset always stops a running loop.
	if listen == "" {
		listen = cfg.Listen
	}
	if listen != "" {
		stop, err := serveSnapshot(ctx, e, sched, store, listen)
		if err != nil {
			sched.Stop()
			return reconcile.Snapshot{}, err
		}
		defer stop()
	}
	<-sched.Done()

	if err := sched.Err(); err != nil {
		switch {
		case ctx.Err() != nil:
			e.logger.Info("watch interrupted, resume with docwatch watch", "group_id", rec.GroupID)
			return sched.Snapshot(), ctx.Err()
		case errors.Is(err, context.Canceled), errors.Is(err, reconcile.ErrStopped):
			// Stopped by a reset through the local server.
			return sched.Snapshot(), errWatchReset
		default:
			return sched.Snapshot(), err
		}
	}

	snap := sched.Snapshot()
	path := e.home.TranscriptPath(rec.GroupID)
	if err := writeTranscript(path, snap); err != nil {
		e.logger.Warn("failed to save transcript", "path", path, "error", err)
	} else {
		e.logger.Info("transcript saved", "path", path)
	}
	return snap, nil
}

// serveSnapshot starts the local snapshot server. The returned func stops
// it and waits for shutdown.
func serveSnapshot(ctx context.Context, e *env, sched *reconcile.Scheduler, store jobgroup.Store, listen string) (func(), error) {
	host, port, err := server.ParseListen(listen)
	if err != nil {
		return nil, err
	}
	srv, err := server.New(server.Config{
		Host:      host,
		Port:      port,
		Scheduler: sched,
		JobGroups: store,
		Logger:    e.logger,
	})
	if err != nil {
		return nil, err
	}

	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(srvCtx); err != nil {
			e.logger.Error("local server failed", "addr", srv.Addr(), "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
