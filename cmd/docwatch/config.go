package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docwatch/internal/api"
	"github.com/jackzampolin/docwatch/internal/config"
	"github.com/jackzampolin/docwatch/internal/home"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file to the home directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		format := api.GetOutputFormat()
		if format == api.OutputFormatText {
			format = api.OutputFormatYAML
			if f := e.config.ConfigFile(); f != "" {
				fmt.Fprintf(e.out, "# %s\n", f)
			} else {
				fmt.Fprintln(e.out, "# defaults (no config file)")
			}
		}
		return api.OutputTo(e.out, format, e.config.Get())
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys with their defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := config.DefaultEntries()
		if api.IsStructuredOutput() {
			return api.OutputTo(cmd.OutOrStdout(), api.GetOutputFormat(), entries)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tDEFAULT\tDESCRIPTION")
		for _, entry := range entries {
			fmt.Fprintf(tw, "%s\t%v\t%s\n", entry.Key, entry.Value, entry.Description)
		}
		return tw.Flush()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}
