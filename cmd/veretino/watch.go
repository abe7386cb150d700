package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artemvlas/veretino-sub000/internal/app"
	"github.com/artemvlas/veretino-sub000/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [DATABASE|FOLDER]",
	Short: "Follow changes in the working folder until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, args, false, func(a *app.VeretinoApp, db string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Watching %s (Ctrl-C to stop)\n", db)
			res, err := a.Watch(cmd.Context(), db, app.WatchOptions{
				OnEvent: func(ev watch.Event) {
					fmt.Fprintf(w, "%-7s %-24s %s\n", ev.Change.Kind, ev.Status, ev.Change.Path)
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%d change(s)\n", res.Changes)
			printStatus(cmd, &app.StatusReport{Meta: metaOf(a), Numbers: res.Numbers})
			return nil
		})
	},
}

func addWatchCommand() {
	rootCmd.AddCommand(watchCmd)
}
