package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edwin001-tech/misused-senders/internal/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or validate the config file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the data directory if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveDataDir(opts)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			path, err := config.EnsureUserConfig(dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config after environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, vr, err := loadConfig(opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range vr.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			for _, e := range vr.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			if !vr.OK() {
				return fmt.Errorf("%s: %w", path, errorsJoin(vr.Errors))
			}
			fmt.Fprintf(out, "%s: ok\n", path)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
