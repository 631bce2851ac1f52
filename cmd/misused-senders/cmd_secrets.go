package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edwin001-tech/misused-senders/internal/secrets"
)

func newSecretsCmd() *cobra.Command {
	names := strings.Join(secrets.Names, ", ")
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Store passwords and tokens in the OS keychain",
		Long:  "Secrets in the keychain take precedence over config and environment values.\n\nNames: " + names,
	}

	setCmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Read a secret from stdin and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := bufio.NewScanner(cmd.InOrStdin())
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return err
				}
				return errors.New("no value on stdin")
			}
			if err := secrets.Set(args[0], strings.TrimRight(sc.Text(), "\r\n")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", args[0])
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a secret from the keychain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(setCmd, deleteCmd)
	return cmd
}
