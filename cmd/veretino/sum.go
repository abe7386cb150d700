package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sumCmd = &cobra.Command{
	Use:   "sum",
	Short: "Single-file digest summaries",
}

var sumMakeCmd = &cobra.Command{
	Use:   "make FILE",
	Short: "Write FILE.<algorithm> holding the checksum of FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alg, _ := cmd.Flags().GetString("algorithm")

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.SumMake(cmd.Context(), args[0], alg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
		return nil
	},
}

var sumCheckCmd = &cobra.Command{
	Use:   "check SUMFILE",
	Short: "Check a file against its digest summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.SumCheck(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res)
		if !res.Match {
			return errMismatched
		}
		return nil
	},
}

func addSumCommands() {
	sumMakeCmd.Flags().StringP("algorithm", "a", "", "sha1, sha256 or sha512 (default from config)")
	sumCmd.AddCommand(sumMakeCmd)
	sumCmd.AddCommand(sumCheckCmd)
	rootCmd.AddCommand(sumCmd)
}
