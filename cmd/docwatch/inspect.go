package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/api"
	"github.com/jackzampolin/docwatch/internal/backend"
	"github.com/jackzampolin/docwatch/internal/reconcile"
)

// Commands that query the processing backend directly.

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the processing backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		url := e.config.Get().ServerURL()
		if err := backend.WaitHealthy(cmd.Context(), e.backend(), e.probeConfig()); err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}
		fmt.Fprintf(e.out, "Backend %s is healthy\n", url)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one backend job as reported",
	Long: `Fetch a job once and show each document's backend status next to the
state docwatch derives from it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		job, err := e.backend().GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if api.IsStructuredOutput() {
			return api.OutputTo(e.out, api.GetOutputFormat(), job)
		}

		fmt.Fprintf(e.out, "Job:    %s\n", job.ID)
		fmt.Fprintf(e.out, "Status: %s\n", job.Status)
		if job.ErrorMessage != "" {
			fmt.Fprintf(e.out, "Error:  %s\n", job.ErrorMessage)
		}
		fmt.Fprintf(e.out, "Logs:   %d lines\n", len(job.Logs))
		for _, d := range job.Documents {
			state, msg := reconcile.Resolve(d, job)
			fmt.Fprintf(e.out, "  %-36s %-10s %-8s %s\n", d.DocumentID, d.Status, state, msg)
		}
		return nil
	},
}

var resultCmd = &cobra.Command{
	Use:   "result <document-id>",
	Short: "Fetch a document's processing result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		res, err := e.backend().GetProcessingResult(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if api.IsStructuredOutput() {
			return api.OutputTo(e.out, api.GetOutputFormat(), res)
		}

		fmt.Fprintf(e.out, "Document:   %s\n", res.DocumentID)
		if res.Filename != "" {
			fmt.Fprintf(e.out, "Filename:   %s\n", res.Filename)
		}
		fmt.Fprintf(e.out, "Success:    %t\n", res.Success)
		fmt.Fprintf(e.out, "Score:      %.0f\n", res.ConversionScore)
		fmt.Fprintf(e.out, "Thresholds: %s\n", passFail(res.PassAllThresholds))
		fmt.Fprintf(e.out, "Vectors:    %t\n", res.VectorOptimized)
		if res.Message != "" {
			fmt.Fprintf(e.out, "Message:    %s\n", res.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultCmd)
}
