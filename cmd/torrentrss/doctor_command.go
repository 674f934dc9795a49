package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"torrentrss/internal/config"
	"torrentrss/internal/deps"
	"torrentrss/internal/history"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "doctor",
		Short:       "Check the environment torrentrss runs in",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var flagPath string
			if ctx.configFlag != nil {
				flagPath = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, exists, loadErr := config.Load(flagPath)

			printSection(out, "Configuration", colorize)
			switch {
			case loadErr != nil:
				printLine(out, "config file", statusError, loadErr.Error(), colorize)
			case !exists:
				printLine(out, "config file", statusWarn,
					fmt.Sprintf("not found at %s (run `torrentrss config init`)", path), colorize)
			default:
				printLine(out, "config file", statusOK, path, colorize)
			}

			if cfg != nil {
				printSection(out, "Paths", colorize)
				printPathLine(out, "download directory", cfg.DefaultDirectory, colorize)
				printPathLine(out, "log directory", cfg.Paths.LogDir, colorize)
				printDatabaseLine(out, cfg, colorize)
				printLockLine(out, cfg.Paths.LockPath, colorize)

				printSection(out, "Notifications", colorize)
				printNotificationLines(out, cfg, colorize)
			}

			printSection(out, "External tools", colorize)
			reqs := deps.Defaults()
			if openerRequired(cfg) {
				for i := range reqs {
					if reqs[i].Command == deps.OpenerCommand() {
						reqs[i].Optional = false
					}
				}
			}
			for _, status := range deps.CheckBinaries(reqs) {
				kind := statusOK
				detail := status.Description
				if !status.Available {
					kind = statusWarn
					if status.Optional {
						kind = statusInfo
					}
					detail = status.Detail
				}
				printLine(out, status.Command, kind, detail, colorize)
			}
			return nil
		},
	}
}

func printPathLine(out io.Writer, label, path string, colorize bool) {
	if strings.TrimSpace(path) == "" {
		printLine(out, label, statusInfo, "not configured", colorize)
		return
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		printLine(out, label, statusOK, path, colorize)
	case err == nil:
		printLine(out, label, statusError, fmt.Sprintf("%s is not a directory", path), colorize)
	case os.IsNotExist(err):
		printLine(out, label, statusInfo, fmt.Sprintf("%s (created on first use)", path), colorize)
	default:
		printLine(out, label, statusError, err.Error(), colorize)
	}
}

func printDatabaseLine(out io.Writer, cfg *config.Config, colorize bool) {
	store, err := history.Open(cfg)
	if err != nil {
		printLine(out, "history database", statusError, err.Error(), colorize)
		return
	}
	path := store.Path()
	if err := store.Close(); err != nil {
		printLine(out, "history database", statusWarn, err.Error(), colorize)
		return
	}
	printLine(out, "history database", statusOK, path, colorize)
}

func printLockLine(out io.Writer, lockPath string, colorize bool) {
	if strings.TrimSpace(lockPath) == "" {
		printLine(out, "run lock", statusInfo, "not configured", colorize)
		return
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		printLine(out, "run lock", statusError, err.Error(), colorize)
		return
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	switch {
	case err != nil:
		printLine(out, "run lock", statusError, err.Error(), colorize)
	case !locked:
		printLine(out, "run lock", statusInfo, fmt.Sprintf("%s (held by a running pass)", lockPath), colorize)
	default:
		_ = lock.Unlock()
		printLine(out, "run lock", statusOK, lockPath, colorize)
	}
}

func printNotificationLines(out io.Writer, cfg *config.Config, colorize bool) {
	notifySendAvailable := binaryAvailable("notify-send")
	switch {
	case !cfg.Notifications.DesktopEnabled:
		printLine(out, "desktop", statusInfo, "disabled", colorize)
	case notifySendAvailable:
		printLine(out, "desktop", statusOK, "notify-send available", colorize)
	default:
		printLine(out, "desktop", statusWarn, "enabled but notify-send not found", colorize)
	}

	if endpoint := cfg.Notifications.NtfyEndpoint(); endpoint != "" {
		printLine(out, "ntfy", statusOK, endpoint, colorize)
	} else {
		printLine(out, "ntfy", statusInfo, "not configured", colorize)
	}

	if strings.TrimSpace(cfg.Notifications.PushbulletToken) != "" {
		printLine(out, "pushbullet", statusOK, "token configured", colorize)
	} else {
		printLine(out, "pushbullet", statusInfo, "not configured", colorize)
	}
}

func binaryAvailable(name string) bool {
	for _, status := range deps.CheckBinaries([]deps.Requirement{{Name: name, Command: name}}) {
		return status.Available
	}
	return false
}

// openerRequired reports whether any enabled subscription would fall back
// to the platform opener because no command is configured for it.
func openerRequired(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}
	for _, feed := range cfg.Feeds {
		if !feed.IsEnabled() {
			continue
		}
		for _, sub := range feed.Subscriptions {
			if sub.IsEnabled() && len(cfg.CommandFor(sub)) == 0 {
				return true
			}
		}
	}
	return false
}

type statusKind int

const (
	statusOK statusKind = iota
	statusInfo
	statusWarn
	statusError
)

const (
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiReset  = "\x1b[0m"
)

const doctorLabelWidth = 20

func printSection(out io.Writer, title string, colorize bool) {
	line := fmt.Sprintf("== %s ==", title)
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func printLine(out io.Writer, label string, kind statusKind, message string, colorize bool) {
	statusText := fmt.Sprintf("[%s]", kind.label())
	if message != "" {
		statusText += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", doctorLabelWidth, label+":", statusText)
	if colorize {
		if color := kind.color(); color != "" {
			line = color + line + ansiReset
		}
	}
	fmt.Fprintln(out, line)
}

func (k statusKind) label() string {
	switch k {
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	case statusOK:
		return "OK"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusOK:
		return ansiGreen
	default:
		return ""
	}
}

func shouldColorize(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return false
}
