package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ToolProbe reports the version banner of an external binary.
type ToolProbe struct {
	Detected bool
	Command  string
	Version  string
}

// ProbeTool runs "<command> -version" with a short timeout and keeps the
// first line of its output.
func ProbeTool(ctx context.Context, command string) ToolProbe {
	command = strings.TrimSpace(command)
	if command == "" {
		return ToolProbe{}
	}
	if _, err := exec.LookPath(command); err != nil {
		return ToolProbe{Command: command}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, command, "-version").CombinedOutput()
	if err != nil {
		return ToolProbe{Command: command}
	}
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ToolProbe{Detected: true, Command: command, Version: "unknown"}
	}
	first, _, _ := strings.Cut(text, "\n")
	return ToolProbe{
		Detected: true,
		Command:  command,
		Version:  parseVersion(first),
	}
}

// parseVersion extracts "7.0.2" from "ffprobe version 7.0.2 Copyright ...".
func parseVersion(line string) string {
	fields := strings.Fields(line)
	for i, field := range fields {
		if strings.EqualFold(field, "version") && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(line)
}

// VersionDetail renders a display-friendly summary for doctor output.
func (p ToolProbe) VersionDetail() string {
	if !p.Detected {
		if p.Command == "" {
			return "not configured"
		}
		return fmt.Sprintf("%s not runnable", p.Command)
	}
	return fmt.Sprintf("%s %s", p.Command, p.Version)
}
