package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement is an external program a modality adapter runs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement can be executed. Command holds the
// resolved location when Available.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement. Commands containing a path
// separator must name an executable file; bare names are looked up on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := resolve(status.Command)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

func resolve(command string) (string, error) {
	if strings.ContainsRune(command, os.PathSeparator) {
		info, err := os.Stat(command)
		if err != nil || !isExecutable(info) {
			return "", fmt.Errorf("%q is not an executable file", command)
		}
		return command, nil
	}
	path, err := exec.LookPath(executable(command))
	if err != nil {
		return "", fmt.Errorf("binary %q not found", command)
	}
	return path, nil
}
