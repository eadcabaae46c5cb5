package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mobiqc/internal/services"
	"mobiqc/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.ReportPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestAdaptersListsReportOrder(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithOnlyModalities("eeg", "behavior"))

	out, _, err := runCLI(t, []string{"adapters"}, env.configPath)
	if err != nil {
		t.Fatalf("adapters: %v", err)
	}
	prefixes := []string{"eeg_", "et_", "ecg_", "eda_", "rsp_", "mic_", "webcam_", "behavior_"}
	last := -1
	for _, prefix := range prefixes {
		idx := strings.Index(out, prefix)
		if idx < 0 {
			t.Fatalf("missing %s in %q", prefix, out)
		}
		if idx < last {
			t.Fatalf("%s listed out of order in %q", prefix, out)
		}
		last = idx
	}
	requireContains(t, out, "Behavior")
	requireContains(t, out, "builtin")
	requireContains(t, out, "disabled")
}

func TestRunSavesThenReportsExisting(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithOnlyModalities("behavior"))
	path := env.writeRecording(t, "P0004")

	out, stderr, err := runCLI(t, []string{"run", path}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v (stderr %q)", err, stderr)
	}
	requireContains(t, out, "sub-P0004")
	requireContains(t, out, "Saved")
	requireContains(t, out, "behavior_n_markers: 4")

	before, err := os.ReadFile(env.cfg.Paths.ReportPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}

	out, _, err = runCLI(t, []string{"run", path}, env.configPath)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	requireContains(t, out, "Exists")
	requireContains(t, out, "Subject: P0004")

	after, err := os.ReadFile(env.cfg.Paths.ReportPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("ledger changed on second run:\n%s\n---\n%s", before, after)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "saved")
	requireContains(t, out, "exists")
	requireContains(t, out, "P0004")
}

func TestRunReportsFailuresAndContinues(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithOnlyModalities("behavior"))
	good := env.writeRecording(t, "P0007")
	bad := filepath.Join(env.cfg.Paths.DataDir, "recording.xdf")
	if err := os.WriteFile(bad, []byte("not xdf"), 0o644); err != nil {
		t.Fatalf("write bad recording: %v", err)
	}

	out, stderr, err := runCLI(t, []string{"run", bad, good}, env.configPath)
	if err == nil {
		t.Fatal("expected error for recording without subject")
	}
	requireContains(t, err.Error(), "1 of 2 recording(s) failed")
	requireContains(t, stderr, "recording.xdf")
	requireContains(t, stderr, "[WARN] needs review")
	requireContains(t, out, "sub-P0007")
	requireContains(t, out, "Saved")
}

func TestInvalidConfigIsTagged(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[eeg]\nica_method = \"picard\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid config to fail")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var buf bytes.Buffer
	printHint(&buf, err)
	requireContains(t, buf.String(), "mobiqc config validate")
}

func TestReportShowCheckExport(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithOnlyModalities("behavior"))

	out, _, err := runCLI(t, []string{"report", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("report show on empty ledger: %v", err)
	}
	requireContains(t, out, "Report is empty")

	for _, subject := range []string{"P0004", "P0005"} {
		if _, stderr, err := runCLI(t, []string{"run", env.writeRecording(t, subject)}, env.configPath); err != nil {
			t.Fatalf("run %s: %v (stderr %q)", subject, err, stderr)
		}
	}

	out, _, err = runCLI(t, []string{"report", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("report show: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %q", out)
	}
	if !strings.HasPrefix(lines[0], "Subject,Collection Date,behavior_n_markers") {
		t.Fatalf("unexpected header %q", lines[0])
	}

	out, _, err = runCLI(t, []string{"report", "show", "--subject", "P0005"}, env.configPath)
	if err != nil {
		t.Fatalf("report show --subject: %v", err)
	}
	requireContains(t, out, "P0005")
	requireNotContains(t, out, "P0004")

	out, _, err = runCLI(t, []string{"report", "check", "sub-P0004"}, env.configPath)
	if err != nil {
		t.Fatalf("report check: %v", err)
	}
	requireContains(t, out, "Exists")
	if _, _, err := runCLI(t, []string{"report", "check", "P9999"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown subject")
	}

	target := filepath.Join(env.baseDir, "export", "qc.xlsx")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir export dir: %v", err)
	}
	out, _, err = runCLI(t, []string{"report", "export", "--xlsx", target}, env.configPath)
	if err != nil {
		t.Fatalf("report export: %v", err)
	}
	requireContains(t, out, "Exported 2 row(s)")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected spreadsheet at %s: %v", target, err)
	}
}

func TestCacheListAndClearEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	requireContains(t, out, "No cached artifacts")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 0 artifact(s)")
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}
