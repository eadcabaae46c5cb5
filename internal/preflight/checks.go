package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"mobiqc/internal/config"
	"mobiqc/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckLedger verifies that the report can be appended to: an existing file
// must be writable, otherwise its directory must be.
func CheckLedger(path string) Result {
	const name = "Report ledger"
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	case err == nil:
		if err := unix.Access(path, unix.W_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not writable: %v)", path, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (appendable)", path)}
	case os.IsNotExist(err):
		dir := CheckDirectoryAccess(name, filepath.Dir(path))
		if dir.Passed {
			dir.Detail = fmt.Sprintf("%s (will be created)", path)
		}
		return dir
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
}

// CheckSystemDeps evaluates the external binaries the configured adapters
// need. ffprobe is required only while the built-in webcam adapter is
// enabled.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	var results []deps.Status

	webcam := cfg.Adapter("webcam")
	ffprobe := deps.ResolveFFprobe(cfg.FFprobeBinary())
	ffprobe.Optional = webcam.Disabled || webcam.Command != ""
	results = append(results, ffprobe)

	var requirements []deps.Requirement
	for _, modality := range config.Modalities {
		adapter := cfg.Adapter(modality)
		if adapter.Disabled || adapter.Command == "" {
			continue
		}
		requirements = append(requirements, deps.Requirement{
			Name:        modality + " adapter",
			Command:     adapter.Command,
			Description: fmt.Sprintf("Computes %s metrics", modality),
		})
	}
	return append(results, deps.CheckBinaries(requirements)...)
}
