package batch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"videostove/internal/gpu"
	"videostove/internal/history"
	"videostove/internal/model"
	"videostove/internal/runstore"
)

const fakeRcloneScript = `#!/usr/bin/env bash
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
  lsf)
    target="$1"
    [ -d "$target" ] || { echo "directory not found" >&2; exit 3; }
    for entry in "$target"/*; do
      [ -d "$entry" ] && echo "$(basename "$entry")/"
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

const fakeEngineScript = `#!/usr/bin/env bash
set -euo pipefail
out=""; project=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    --project) project="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ "$(basename "$project")" = "broken01" ]; then
  echo "encoder exploded" >&2
  exit 1
fi
printf 'rendered' > "$out"
`

const fakeNvidiaSmiScript = `#!/bin/sh
echo "GPU 0: NVIDIA GeForce RTX 4090 (UUID: GPU-aaaa)"
`

func installFakeBins(t *testing.T, bins map[string]string) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, script := range bins {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// seedBatchRemote builds a local directory standing in for the remote:
// a preset, three slideshow projects, and one project with a video in
// it so slideshow mode skips it.
func seedBatchRemote(t *testing.T) string {
	t.Helper()
	remote := t.TempDir()
	writeFile(t, filepath.Join(remote, "assets", "presets", "wedding.json"),
		`{"project_type": "slideshow", "image_duration": 6, "crf": 21, "use_gpu": true}`)
	for _, name := range []string{"wedding01", "broken01", "travel03"} {
		writeFile(t, filepath.Join(remote, name, "001.jpg"), "img")
		writeFile(t, filepath.Join(remote, name, "002.jpg"), "img")
		writeFile(t, filepath.Join(remote, name, "main_track.mp3"), "audio")
	}
	writeFile(t, filepath.Join(remote, "footage04", "clip.mp4"), "video")
	return remote
}

func writeJobDoc(t *testing.T, dir string, projects ...string) string {
	t.Helper()
	doc := "batch:\n  preset_file: wedding\n  projects:\n"
	for _, p := range projects {
		doc += "    - name: " + p + "\n"
	}
	path := filepath.Join(dir, "batch.yaml")
	writeFile(t, path, doc)
	return path
}

func baseOptions(t *testing.T, remote, jobPath string) RunOptions {
	t.Helper()
	workRoot := t.TempDir()
	return RunOptions{
		JobPath:          jobPath,
		Remote:           remote,
		WorkDir:          filepath.Join(workRoot, "work"),
		RunsDir:          filepath.Join(workRoot, "runs"),
		TransferAttempts: 2,
		RetryBaseDelay:   time.Millisecond,
	}
}

func TestRun_ContinuesPastFailedProject(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "wedding01", "broken01", "travel03")

	res, err := Run(baseOptions(t, remote, jobPath))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(res.Report.Projects) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(res.Report.Projects))
	}
	byName := map[string]model.ProjectOutcome{}
	for _, p := range res.Report.Projects {
		byName[p.Name] = p
	}
	if byName["wedding01"].Status != model.StatusPublished {
		t.Fatalf("wedding01 = %+v", byName["wedding01"])
	}
	if byName["broken01"].Status != model.StatusFailed || byName["broken01"].ErrorKind != model.ErrKindRenderEngine {
		t.Fatalf("broken01 = %+v", byName["broken01"])
	}
	if byName["travel03"].Status != model.StatusPublished {
		t.Fatalf("travel03 = %+v", byName["travel03"])
	}
	if res.Report.Rendered != 2 || res.Report.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", res.Report)
	}

	// The report on disk matches what Run returned.
	saved, err := runstore.LoadReport(res.RunDir)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if saved.RunID != res.RunID || saved.Failed != 1 {
		t.Fatalf("saved report mismatch: %+v", saved)
	}

	// Published artifact and manifest landed under the remote target.
	if _, err := os.Stat(filepath.Join(remote, "outputs", "wedding01", "wedding01.mp4")); err != nil {
		t.Fatalf("published artifact missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(remote, "outputs", "wedding01", "wedding01.manifest.json")); err != nil {
		t.Fatalf("published manifest missing: %v", err)
	}

	// Each project got a per-run log file.
	logData, err := os.ReadFile(filepath.Join(res.RunDir, "logs", "broken01.log"))
	if err != nil {
		t.Fatalf("project log missing: %v", err)
	}
	if !strings.Contains(string(logData), "status: failed") {
		t.Fatalf("log missing failure: %q", logData)
	}
}

func TestRun_GpuMissingAbortsBeforeAnyPull(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "wedding01")
	opts := baseOptions(t, remote, jobPath)

	res, err := Run(opts)
	var reqErr *gpu.RequiredError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected gpu.RequiredError, got %v", err)
	}

	// An aborted report still lands on disk, with nothing attempted.
	saved, err := runstore.LoadReport(res.RunDir)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if saved.Gpu.State != model.GpuUnavailable {
		t.Fatalf("unexpected gpu state %q", saved.Gpu.State)
	}
	for _, p := range saved.Projects {
		if p.Status != model.StatusPending {
			t.Fatalf("project %s was attempted: %+v", p.Name, p)
		}
	}
	if _, err := os.Stat(filepath.Join(opts.WorkDir, "projects")); !os.IsNotExist(err) {
		t.Fatal("projects were pulled before the gate")
	}
}

func TestRun_CpuOverrideRendersWithoutGpu(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "wedding01")
	opts := baseOptions(t, remote, jobPath)
	opts.AllowCPU = true

	res, err := Run(opts)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Report.Gpu.State != model.GpuOverridden {
		t.Fatalf("unexpected gpu state %q", res.Report.Gpu.State)
	}
	if res.Report.Projects[0].Status != model.StatusPublished {
		t.Fatalf("unexpected outcome %+v", res.Report.Projects[0])
	}
}

func TestRun_IneligibleProjectSkipped(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "footage04")

	res, err := Run(baseOptions(t, remote, jobPath))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	p := res.Report.Projects[0]
	if p.Status != model.StatusSkipped || p.Reason != model.ReasonImagesDisallowed {
		t.Fatalf("unexpected outcome %+v", p)
	}
	if res.Report.Skipped != 1 {
		t.Fatalf("unexpected counts: %+v", res.Report)
	}
}

func TestRun_EmptyProjectSkippedNotFailed(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	writeFile(t, filepath.Join(remote, "empty05", "notes.txt"), "no media here")
	jobPath := writeJobDoc(t, t.TempDir(), "wedding01", "empty05")

	res, err := Run(baseOptions(t, remote, jobPath))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	byName := map[string]model.ProjectOutcome{}
	for _, p := range res.Report.Projects {
		byName[p.Name] = p
	}
	empty := byName["empty05"]
	if empty.Status != model.StatusSkipped || empty.Reason != model.ReasonScanFailed {
		t.Fatalf("empty05 = %+v", empty)
	}
	if byName["wedding01"].Status != model.StatusPublished {
		t.Fatalf("wedding01 = %+v", byName["wedding01"])
	}
	if res.Report.Skipped != 1 || res.Report.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", res.Report)
	}
}

func TestRun_JobDocumentModeChangesEligibility(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	doc := "batch:\n  preset_file: wedding\n  mode: montage\n  projects:\n    - name: footage04\n"
	jobPath := filepath.Join(t.TempDir(), "batch.yaml")
	writeFile(t, jobPath, doc)

	res, err := Run(baseOptions(t, remote, jobPath))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Report.Mode != model.ModeMontage {
		t.Fatalf("unexpected mode %q", res.Report.Mode)
	}
	if res.Report.Projects[0].Status != model.StatusPublished {
		t.Fatalf("unexpected outcome %+v", res.Report.Projects[0])
	}
}

func TestRun_ModeOverrideChangesEligibility(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "footage04")
	opts := baseOptions(t, remote, jobPath)
	opts.ModeOverride = string(model.ModeMontage)

	res, err := Run(opts)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Report.Mode != model.ModeMontage {
		t.Fatalf("unexpected mode %q", res.Report.Mode)
	}
	if res.Report.Projects[0].Status != model.StatusPublished {
		t.Fatalf("unexpected outcome %+v", res.Report.Projects[0])
	}
}

func TestRun_MissingProjectFailsWithTransferKind(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "doesnotexist")

	res, err := Run(baseOptions(t, remote, jobPath))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	p := res.Report.Projects[0]
	if p.Status != model.StatusFailed || p.ErrorKind != model.ErrKindTransfer {
		t.Fatalf("unexpected outcome %+v", p)
	}
}

func TestRun_UnreachableRemoteAborts(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	jobPath := writeJobDoc(t, t.TempDir(), "wedding01")
	opts := baseOptions(t, filepath.Join(t.TempDir(), "absent"), jobPath)

	_, err := Run(opts)
	var remoteErr *RemoteVerificationError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteVerificationError, got %v", err)
	}
}

func TestRun_NoPublishStopsAtRendered(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "wedding01")
	opts := baseOptions(t, remote, jobPath)
	opts.NoPublish = true

	res, err := Run(opts)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	p := res.Report.Projects[0]
	if p.Status != model.StatusRendered || p.PublishStatus != "" {
		t.Fatalf("unexpected outcome %+v", p)
	}
	if _, err := os.Stat(filepath.Join(remote, "outputs", "wedding01")); !os.IsNotExist(err) {
		t.Fatal("output was published despite --no-publish")
	}
}

func TestRun_RecordsHistory(t *testing.T) {
	installFakeBins(t, map[string]string{
		"rclone":            fakeRcloneScript,
		"videostove-engine": fakeEngineScript,
		"nvidia-smi":        fakeNvidiaSmiScript,
	})
	remote := seedBatchRemote(t)
	jobPath := writeJobDoc(t, t.TempDir(), "wedding01")
	opts := baseOptions(t, remote, jobPath)
	opts.HistoryPath = filepath.Join(t.TempDir(), "videostove.db")

	res, err := Run(opts)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	store, err := history.Open(opts.HistoryPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	rows, err := store.ListBatches(10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(rows) != 1 || rows[0].RunID != res.RunID || rows[0].Published != 1 {
		t.Fatalf("unexpected history rows: %+v", rows)
	}
}

func TestWithRetry_DoublesAndGivesUp(t *testing.T) {
	calls := 0
	err := withRetry(3, time.Millisecond, func() error {
		calls++
		return errors.New("nope")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 failing attempts, got calls=%d err=%v", calls, err)
	}

	calls = 0
	err = withRetry(3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on attempt 2, got calls=%d err=%v", calls, err)
	}
}
