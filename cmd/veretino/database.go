package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artemvlas/veretino-sub000/internal/app"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

func dbArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// withDatabase opens the app, resolves the database argument and runs fn.
func withDatabase(cmd *cobra.Command, args []string, progress bool, fn func(a *app.VeretinoApp, db string) error) error {
	a, err := newApp(cmd, progress)
	if err != nil {
		return err
	}
	defer a.Close()

	db, err := a.ResolveDatabase(dbArg(args))
	if err != nil {
		return err
	}
	return fn(a, db)
}

var buildCmd = &cobra.Command{
	Use:   "build [FOLDER]",
	Short: "Create a checksum database for a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := app.BuildOptions{}
		o.DbPath, _ = cmd.Flags().GetString("output")
		o.Algorithm, _ = cmd.Flags().GetString("algorithm")
		o.Comment, _ = cmd.Flags().GetString("comment")
		o.Compressed, _ = cmd.Flags().GetBool("compressed")

		include, _ := cmd.Flags().GetString("include")
		ignore, _ := cmd.Flags().GetString("ignore")
		if include != "" && ignore != "" {
			return fmt.Errorf("--include and --ignore are exclusive")
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if include != "" || ignore != "" {
			rule := a.DefaultFilter()
			rule.Mode, rule.Extensions = vt.FilterInclude, vt.ParseExtensionList(include)
			if ignore != "" {
				rule.Mode, rule.Extensions = vt.FilterIgnore, vt.ParseExtensionList(ignore)
			}
			o.Filter = &rule
		}

		sum, err := a.Build(cmd.Context(), dbArg(args), o)
		printSummary(cmd, sum)
		return err
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [DATABASE|FOLDER] [SCOPE]",
	Short: "Compare files with their stored checksums",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, args, true, func(a *app.VeretinoApp, db string) error {
			scope := ""
			if len(args) > 1 {
				scope = args[1]
			}
			sum, err := a.Verify(cmd.Context(), db, scope)
			printSummary(cmd, sum)
			if err != nil {
				return err
			}
			if sum.Mismatched > 0 {
				printItems(cmd, a, vt.Of(vt.StatusMismatched))
				return errMismatched
			}
			return nil
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [DATABASE|FOLDER]",
	Short: "Add new files and drop missing ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addNew, _ := cmd.Flags().GetBool("add-new")
		clearLost, _ := cmd.Flags().GetBool("clear-lost")
		mode := app.UpdateAll
		switch {
		case addNew && clearLost:
		case addNew:
			mode = app.UpdateAddNew
		case clearLost:
			mode = app.UpdateClearLost
		}
		return withDatabase(cmd, args, true, func(a *app.VeretinoApp, db string) error {
			sum, err := a.Update(cmd.Context(), db, mode)
			printSummary(cmd, sum)
			for _, m := range sum.Moves {
				fmt.Fprintf(cmd.OutOrStdout(), "moved: %s -> %s\n", m.From, m.To)
			}
			return err
		})
	},
}

var updateMismatchedCmd = &cobra.Command{
	Use:   "update-mismatched [DATABASE|FOLDER]",
	Short: "Verify and accept the new checksums of changed files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, args, true, func(a *app.VeretinoApp, db string) error {
			sum, err := a.UpdateMismatched(cmd.Context(), db)
			printSummary(cmd, sum)
			return err
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [DATABASE|FOLDER]",
	Short: "Show a database and how its folder changed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, _ := cmd.Flags().GetBool("list")
		return withDatabase(cmd, args, false, func(a *app.VeretinoApp, db string) error {
			rep, err := a.Status(cmd.Context(), db)
			if err != nil {
				return err
			}
			printStatus(cmd, rep)
			if list {
				printItems(cmd, a, vt.ClassNewLost|vt.Of(vt.StatusNotCheckedModified, vt.StatusUnreadable))
			}
			return nil
		})
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo [DATABASE|FOLDER]",
	Short: "Restore the database written before the last save",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, args, false, func(a *app.VeretinoApp, db string) error {
			sum, err := a.Undo(cmd.Context(), db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", sum.SavedTo)
			return nil
		})
	},
}

func printSummary(cmd *cobra.Command, sum vt.Summary) {
	w := cmd.OutOrStdout()
	switch {
	case sum.Canceled:
		fmt.Fprintf(w, "%s canceled: %s\n", sum.Operation, sum.String())
	case sum.Processed == 0 && sum.SavedTo == "" && sum.Removed == 0:
		if sum.Operation != "" {
			fmt.Fprintf(w, "%s: nothing to do\n", sum.Operation)
		}
	default:
		fmt.Fprintf(w, "%s: %s\n", sum.Operation, sum.String())
	}
	if sum.Verified {
		fmt.Fprintln(w, "All files matched.")
	}
	if sum.SavedTo != "" {
		fmt.Fprintf(w, "Saved %s\n", sum.SavedTo)
	}
}

func printStatus(cmd *cobra.Command, rep *app.StatusReport) {
	w := cmd.OutOrStdout()
	m := rep.Meta
	fmt.Fprintf(w, "Database:  %s\n", m.DbPath)
	fmt.Fprintf(w, "Folder:    %s\n", m.WorkingDir())
	fmt.Fprintf(w, "Algorithm: %s\n", m.Algorithm)
	fmt.Fprintf(w, "Updated:   %s\n", formatTime(m.Updated))
	fmt.Fprintf(w, "Verified:  %s\n", formatTime(m.Verified))
	if m.Filter.Enabled() {
		fmt.Fprintf(w, "Filter:    %s %s\n", m.Filter.Mode, m.Filter.ExtensionList())
	}
	if m.Comment != "" {
		fmt.Fprintf(w, "Comment:   %s\n", m.Comment)
	}
	if m.Immutable {
		fmt.Fprintln(w, "Read-only")
	}
	fmt.Fprintln(w)
	for _, s := range vt.AllStatuses {
		t := rep.Numbers.Get(s)
		if t.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-24s %6d  %s\n", s.String(), t.Count, formatSize(t.Size))
	}
	total := rep.Numbers.Total()
	fmt.Fprintf(w, "  %-24s %6d  %s\n", "total", total.Count, formatSize(total.Size))
}

func printItems(cmd *cobra.Command, a *app.VeretinoApp, c vt.Class) {
	items, err := a.Session().Items("", c)
	if err != nil {
		return
	}
	w := cmd.OutOrStdout()
	for _, rec := range items {
		fmt.Fprintf(w, "%-12s %s\n", strings.ToUpper(rec.Status.String()), rec.Path)
	}
}

func addDatabaseCommands() {
	buildCmd.Flags().StringP("output", "o", "", "Database path (default <folder>/<folder name>.ver.json)")
	buildCmd.Flags().StringP("algorithm", "a", "", "sha1, sha256 or sha512 (default from config)")
	buildCmd.Flags().StringP("comment", "m", "", "Comment stored in the header")
	buildCmd.Flags().BoolP("compressed", "z", false, "Write the zip form (.ver)")
	buildCmd.Flags().String("include", "", "Only these extensions, e.g. \"jpg png\"")
	buildCmd.Flags().String("ignore", "", "Skip these extensions")
	rootCmd.AddCommand(buildCmd)

	rootCmd.AddCommand(verifyCmd)

	updateCmd.Flags().Bool("add-new", false, "Only add new files")
	updateCmd.Flags().Bool("clear-lost", false, "Only drop missing files")
	rootCmd.AddCommand(updateCmd)

	rootCmd.AddCommand(updateMismatchedCmd)

	statusCmd.Flags().BoolP("list", "l", false, "List new, missing, modified and unreadable files")
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(undoCmd)
}
