package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rill/internal/project"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the on-disk analysis cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		manifest, ok, err := project.LoadManifest(".")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no rill.toml found, nothing to clean")
		}

		dir := manifest.CachePath()
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			quiet, _ := cmd.Flags().GetBool("quiet")
			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), "cache already clean")
			}
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove cache: %w", err)
		}
		quiet, _ := cmd.Flags().GetBool("quiet")
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", dir)
		}
		return nil
	},
}
