// Package deps reports the availability of the optional external binaries
// torrentrss can call. Nothing here is a hard requirement; doctor renders
// the result and the features degrade when a binary is missing.
package deps

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Requirement defines an external binary a feature relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the check result for one Requirement.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// OpenerCommand returns the platform command that opens a file or URL with
// the desktop's default application.
func OpenerCommand() string {
	if runtime.GOOS == "darwin" {
		return "open"
	}
	return "xdg-open"
}

// Defaults returns the requirements doctor evaluates.
func Defaults() []Requirement {
	return []Requirement{
		{
			Name:        "Desktop notifications",
			Command:     "notify-send",
			Description: "delivers failure notifications to the desktop",
			Optional:    true,
		},
		{
			Name:        "Default application opener",
			Command:     OpenerCommand(),
			Description: "opens selected torrents when no command is configured",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		statuses[i] = lookUp(req)
	}
	return statuses
}

func lookUp(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)

	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	if _, err := exec.LookPath(req.Command); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	return status
}
