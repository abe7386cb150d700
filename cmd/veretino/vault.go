package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artemvlas/veretino-sub000/internal/app"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Copy databases to and from the configured vaults",
}

var vaultPushCmd = &cobra.Command{
	Use:   "push [DATABASE|FOLDER]",
	Short: "Upload a database snapshot to every vault",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withDatabase(cmd, args, false, func(a *app.VeretinoApp, db string) error {
			if err := a.Push(cmd.Context(), db, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pushed %s\n", db)
			return nil
		})
	},
}

var vaultPullCmd = &cobra.Command{
	Use:   "pull DATABASE",
	Short: "Restore a database from its vault snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := app.PullOptions{
			Passphrase: func() (string, error) { return readPassphrase(cmd, "Passphrase: ") },
		}
		o.Vault, _ = cmd.Flags().GetString("vault")
		o.HostID, _ = cmd.Flags().GetString("host")

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.Pull(cmd.Context(), args[0], o)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", sum.SavedTo)
		return nil
	},
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that every configured vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateVaults(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Vaults OK.")
		return nil
	},
}

func addVaultCommands() {
	vaultPushCmd.Flags().BoolP("force", "f", false, "Overwrite a newer snapshot")
	vaultPullCmd.Flags().String("vault", "", "Vault name (default: the first configured)")
	vaultPullCmd.Flags().String("host", "", "Host ID the snapshot was pushed from (default: this host)")

	vaultCmd.AddCommand(vaultPushCmd)
	vaultCmd.AddCommand(vaultPullCmd)
	vaultCmd.AddCommand(vaultCheckCmd)
	rootCmd.AddCommand(vaultCmd)
}
