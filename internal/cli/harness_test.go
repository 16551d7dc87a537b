package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"videostove/internal/batch"
	"videostove/internal/gpu"
	"videostove/internal/job"
	"videostove/internal/model"
	"videostove/internal/runstore"
)

const harnessRcloneScript = `#!/usr/bin/env bash
set -euo pipefail
args=()
while [ $# -gt 0 ]; do
  case "$1" in
    --config) shift 2 ;;
    *) args+=("$1"); shift ;;
  esac
done
set -- "${args[@]}"
cmd="$1"; shift
case "$cmd" in
  version) echo "rclone v1.66.0" ;;
  listremotes) echo "gdrive:" ;;
  lsf)
    target="$1"; shift
    [ -d "$target" ] || { echo "directory not found" >&2; exit 3; }
    mode="dirs"
    for a in "$@"; do [ "$a" = "--files-only" ] && mode="files"; done
    for entry in "$target"/*; do
      if [ "$mode" = "files" ]; then
        [ -f "$entry" ] && echo "$(basename "$entry")"
      else
        [ -d "$entry" ] && echo "$(basename "$entry")/"
      fi
    done
    exit 0
    ;;
  copy)
    src="$1"; dst="$2"
    [ -d "$src" ] || { echo "source not found: $src" >&2; exit 3; }
    mkdir -p "$dst"
    cp -r "$src"/. "$dst"/
    ;;
esac
`

const harnessEngineScript = `#!/usr/bin/env bash
set -euo pipefail
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf 'rendered' > "$out"
`

const harnessNvidiaSmiScript = `#!/bin/sh
echo "GPU 0: NVIDIA GeForce RTX 4090 (UUID: GPU-aaaa)"
`

func installHarnessBins(t *testing.T) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	bins := map[string]string{
		"rclone":            harnessRcloneScript,
		"videostove-engine": harnessEngineScript,
		"nvidia-smi":        harnessNvidiaSmiScript,
	}
	for name, script := range bins {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
}

func seedHarnessRemote(t *testing.T) string {
	t.Helper()
	remote := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(remote, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("assets/presets/wedding.json", `{"project_type": "slideshow", "image_duration": 6, "crf": 21, "use_gpu": true}`)
	write("wedding01/001.jpg", "img")
	write("wedding01/main_track.mp3", "audio")
	return remote
}

func TestHarnessRenderBatchEndToEnd(t *testing.T) {
	installHarnessBins(t)
	remote := seedHarnessRemote(t)
	tmp := t.TempDir()

	jobPath := filepath.Join(tmp, "batch.yaml")
	doc := "batch:\n  preset_file: wedding\n  projects:\n    - name: wedding01\n"
	if err := os.WriteFile(jobPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	runsDir := filepath.Join(tmp, "runs")
	historyPath := filepath.Join(runsDir, "history.db")

	err := Run([]string{
		"render-batch",
		"--job", jobPath,
		"--remote", remote,
		"--work-dir", filepath.Join(tmp, "work"),
		"--runs-dir", runsDir,
		"--history", historyPath,
	})
	if err != nil {
		t.Fatalf("render-batch failed: %v", err)
	}

	runDir, err := runstore.LatestRunDir(runsDir)
	if err != nil {
		t.Fatalf("no run dir: %v", err)
	}
	report, err := runstore.LoadReport(runDir)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if report.Published != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(filepath.Join(remote, "outputs", "wedding01", "wedding01.mp4")); err != nil {
		t.Fatalf("published artifact missing: %v", err)
	}

	// The recorded batch is visible through the history command.
	if err := Run([]string{"history", "--db", historyPath}); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if err := Run([]string{"history", "--latest", "--runs-dir", runsDir}); err != nil {
		t.Fatalf("history --latest failed: %v", err)
	}
}

func TestHarnessWizardYes(t *testing.T) {
	workRoot := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(workRoot, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("assets/presets/wedding.json", `{"project_type": "slideshow", "image_duration": 6}`)
	write("projects/wedding01/001.jpg", "img")
	write("projects/travel03/001.jpg", "img")

	jobPath := filepath.Join(t.TempDir(), "batch.yaml")
	if err := Run([]string{"wizard", "--yes", "--root", workRoot, "--out", jobPath}); err != nil {
		t.Fatalf("wizard --yes failed: %v", err)
	}

	doc, err := job.Load(jobPath)
	if err != nil {
		t.Fatalf("saved job not loadable: %v", err)
	}
	if doc.PresetRef != "wedding" {
		t.Fatalf("preset ref = %q", doc.PresetRef)
	}
	if doc.Mode != model.ModeSlideshow {
		t.Fatalf("expected the preset's mode in the document, got %q", doc.Mode)
	}
	if len(doc.Projects) != 2 {
		t.Fatalf("expected all projects selected, got %+v", doc.Projects)
	}
}

func TestHarnessScanAndPull(t *testing.T) {
	installHarnessBins(t)
	remote := seedHarnessRemote(t)
	dest := filepath.Join(t.TempDir(), "work")

	if err := Run([]string{"pull", "--remote", remote, "--dest", dest}); err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "assets", "presets", "wedding.json")); err != nil {
		t.Fatalf("shared assets not pulled: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "projects", "wedding01", "001.jpg")); err != nil {
		t.Fatalf("project not pulled: %v", err)
	}

	if err := Run([]string{"scan", "--root", filepath.Join(dest, "projects")}); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if err := Run([]string{"presets", "--root", dest}); err != nil {
		t.Fatalf("presets failed: %v", err)
	}
}

func TestHarnessPullSharedOnly(t *testing.T) {
	installHarnessBins(t)
	remote := seedHarnessRemote(t)
	dest := filepath.Join(t.TempDir(), "work")

	if err := Run([]string{"pull", "--remote", remote, "--dest", dest, "--shared-only"}); err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "projects")); !os.IsNotExist(err) {
		t.Fatal("projects were pulled despite --shared-only")
	}
}

func TestHarnessDoctor(t *testing.T) {
	installHarnessBins(t)
	t.Setenv("REMOTE_BASE", "")
	t.Setenv("ALLOW_CPU", "")
	tmp := t.TempDir()

	err := Run([]string{
		"doctor",
		"--runs-dir", filepath.Join(tmp, "runs"),
		"--work-dir", filepath.Join(tmp, "work"),
	})
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
}

func TestHarnessDoctorReportsRemotePresets(t *testing.T) {
	installHarnessBins(t)
	t.Setenv("ALLOW_CPU", "")
	remote := seedHarnessRemote(t)
	tmp := t.TempDir()

	err := Run([]string{
		"doctor",
		"--remote", remote,
		"--runs-dir", filepath.Join(tmp, "runs"),
		"--work-dir", filepath.Join(tmp, "work"),
	})
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
}

func TestHarnessPullUnreachableRemoteExitsTwo(t *testing.T) {
	installHarnessBins(t)
	missing := filepath.Join(t.TempDir(), "absent")

	err := Run([]string{"pull", "--remote", missing, "--dest", filepath.Join(t.TempDir(), "work")})
	if err == nil {
		t.Fatal("expected pull to fail")
	}
	if got := ExitCode(err); got != 2 {
		t.Fatalf("pull against unreachable remote -> exit %d, want 2", got)
	}

	err = Run([]string{"push", "--remote", missing, "--source", t.TempDir(), "--project", "wedding01"})
	if err == nil {
		t.Fatal("expected push to fail")
	}
	if got := ExitCode(err); got != 2 {
		t.Fatalf("push against unreachable remote -> exit %d, want 2", got)
	}
}

func TestExitCodeMapping(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("nil error -> %d, want 0", got)
	}
	if got := ExitCode(errors.New("bad flag")); got != 1 {
		t.Fatalf("generic error -> %d, want 1", got)
	}
	remoteErr := &batch.RemoteVerificationError{Remote: "gdrive:X", Err: errors.New("unreachable")}
	if got := ExitCode(remoteErr); got != 2 {
		t.Fatalf("remote error -> %d, want 2", got)
	}
	if got := ExitCode(&gpu.RequiredError{}); got != 3 {
		t.Fatalf("gpu error -> %d, want 3", got)
	}
}

func TestNormalizeModeAliases(t *testing.T) {
	cases := map[string]model.RenderMode{
		"slideshow":   model.ModeSlideshow,
		"Slides":      model.ModeSlideshow,
		"photos":      model.ModeSlideshow,
		"montage":     model.ModeMontage,
		"movie":       model.ModeMontage,
		"videos_only": model.ModeVideosOnly,
		"videos":      model.ModeVideosOnly,
	}
	for raw, want := range cases {
		got, err := normalizeMode(raw)
		if err != nil {
			t.Fatalf("normalizeMode(%q) failed: %v", raw, err)
		}
		if got != want {
			t.Fatalf("normalizeMode(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := normalizeMode("interpretive_dance"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
