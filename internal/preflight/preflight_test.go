package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mobiqc/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckLedger(t *testing.T) {
	dir := t.TempDir()
	missing := CheckLedger(filepath.Join(dir, "qc.csv"))
	if !missing.Passed {
		t.Fatalf("expected new ledger in writable dir to pass, got: %s", missing.Detail)
	}

	noDir := CheckLedger(filepath.Join(dir, "absent", "qc.csv"))
	if noDir.Passed {
		t.Fatal("expected failure when the ledger directory is missing")
	}

	existing := filepath.Join(dir, "existing.csv")
	if err := os.WriteFile(existing, []byte("Subject\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckLedger(existing); !result.Passed {
		t.Fatalf("expected existing ledger to pass, got: %s", result.Detail)
	}

	if result := CheckLedger(dir); result.Passed {
		t.Fatal("expected failure when the ledger path is a directory")
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = base
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.ReportPath = filepath.Join(base, "qc.csv")
	cfg.Tools.FFprobe = "mobiqc-test-no-such-ffprobe"
	return &cfg
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_FFprobeRequiredForBuiltinWebcam(t *testing.T) {
	cfg := testConfig(t)

	results := RunAll(context.Background(), cfg)
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "FFprobe" {
		t.Fatalf("expected only the ffprobe check to fail, got %#v", failed)
	}
}

func TestRunAll_FFprobeOptionalWhenWebcamDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Adapters = map[string]config.Adapter{"webcam": {Disabled: true}}

	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %#v", failed)
	}
	// data, state, ledger, ffprobe
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
}

func TestCheckSystemDepsIncludesAdapterCommands(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "et-qc")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t)
	cfg.Adapters = map[string]config.Adapter{
		"et":  {Command: stub},
		"ecg": {Command: "mobiqc-test-missing-ecg"},
		"eda": {Command: "mobiqc-test-missing-eda", Disabled: true},
	}

	statuses := CheckSystemDeps(context.Background(), cfg)
	if len(statuses) != 3 {
		t.Fatalf("expected ffprobe plus two adapters, got %#v", statuses)
	}
	if statuses[1].Name != "et adapter" || !statuses[1].Available {
		t.Fatalf("unexpected et status %#v", statuses[1])
	}
	if statuses[2].Name != "ecg adapter" || statuses[2].Available {
		t.Fatalf("unexpected ecg status %#v", statuses[2])
	}
}

func TestProbeTool(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "fakeprobe")
	script := "#!/bin/sh\necho 'fakeprobe version 7.0.2 Copyright (c) 2007-2024'\necho 'built with gcc'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	probe := ProbeTool(context.Background(), stub)
	if !probe.Detected || probe.Version != "7.0.2" {
		t.Fatalf("unexpected probe %#v", probe)
	}
	if missing := ProbeTool(context.Background(), "mobiqc-test-absent"); missing.Detected {
		t.Fatal("expected missing binary to be undetected")
	}
	if detail := (ToolProbe{}).VersionDetail(); detail != "not configured" {
		t.Fatalf("unexpected detail %q", detail)
	}
}
