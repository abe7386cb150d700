package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/artemvlas/veretino-sub000/internal/app"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// newProgressLine redraws a single status line on w. It returns nil when w
// is not a terminal, which disables progress reporting.
func newProgressLine(w io.Writer) vt.ProgressFunc {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func(p vt.Progress) {
		mu.Lock()
		defer mu.Unlock()
		finished := p.Total > 0 && p.Done == p.Total
		if !finished && time.Since(last) < 100*time.Millisecond {
			return
		}
		last = time.Now()
		width := 80
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
			width = cols
		}
		line := fmt.Sprintf("%s %3d%% (%d/%d) %s", p.Operation, p.Percent(), p.Done, p.Total, p.Path)
		if len(line) > width-1 {
			line = line[:width-1]
		}
		fmt.Fprintf(f, "\r\033[K%s", line)
		if finished {
			fmt.Fprint(f, "\r\033[K")
		}
	}
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("a passphrase is needed but stdin is not a terminal")
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

func readNewPassphrase(cmd *cobra.Command) (string, error) {
	pass, err := readPassphrase(cmd, "New passphrase: ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pass) == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	again, err := readPassphrase(cmd, "Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != again {
		return "", fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}

func metaOf(a *app.VeretinoApp) vt.Metadata {
	meta, _ := a.Session().Metadata()
	return meta
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
