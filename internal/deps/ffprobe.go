package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe reports the ffprobe binary the webcam adapter will execute.
//
// An explicit path must point at an executable file. A bare name is looked up
// on PATH; when that fails, an ffprobe next to the real location of the
// ffmpeg found on PATH is accepted (static builds symlinked into PATH).
func ResolveFFprobe(configured string) Status {
	result := Status{
		Name:        "FFprobe",
		Description: "Inspects webcam videos",
	}
	command := strings.TrimSpace(configured)
	if command == "" {
		command = "ffprobe"
	}
	result.Command = command

	resolved, err := resolve(command)
	if err == nil {
		result.Command = resolved
		result.Available = true
		return result
	}
	if strings.ContainsRune(command, os.PathSeparator) {
		result.Detail = err.Error()
		return result
	}
	if ffmpeg, err := exec.LookPath(executable("ffmpeg")); err == nil {
		if real, linkErr := filepath.EvalSymlinks(ffmpeg); linkErr == nil {
			ffmpeg = real
		}
		candidate := filepath.Join(filepath.Dir(ffmpeg), executable(command))
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			result.Command = candidate
			result.Available = true
			return result
		}
	}
	result.Detail = err.Error()
	return result
}

func executable(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
