package action

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PlaceholderPathOrURL and PlaceholderURL mark command arguments that are
// replaced by the selected target at dispatch time.
const (
	PlaceholderPathOrURL = "$PATH_OR_URL"
	PlaceholderURL       = "$URL"
)

// substituteCommand replaces the placeholders in argv with value. When no
// argument carries a placeholder the value is appended as the final
// argument.
func substituteCommand(argv []string, value string) []string {
	out := make([]string, len(argv))
	substituted := false
	for i, arg := range argv {
		replaced := strings.ReplaceAll(arg, PlaceholderPathOrURL, value)
		replaced = strings.ReplaceAll(replaced, PlaceholderURL, value)
		if replaced != arg {
			substituted = true
		}
		out[i] = replaced
	}
	if !substituted {
		out = append(out, value)
	}
	return out
}

// runArgv executes a command and folds its output into the error on
// failure.
func runArgv(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", args[0], err, detail)
		}
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}
