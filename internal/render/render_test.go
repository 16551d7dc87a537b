package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"videostove/internal/model"
)

func fakeEngine(t *testing.T, script string) {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "videostove-engine"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
}

func testRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		ProjectDir:  t.TempDir(),
		ProjectName: "wedding01",
		OutputPath:  filepath.Join(t.TempDir(), "wedding01.mp4"),
		Preset: model.Preset{
			Name: "base",
			Raw:  map[string]any{"image_duration": 6.0, "crf": 21.0},
		},
		Mode:   model.ModeSlideshow,
		UseGPU: true,
	}
}

func TestRender_WritesArtifact(t *testing.T) {
	fakeEngine(t, `#!/usr/bin/env bash
set -euo pipefail
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf 'rendered' > "$out"
`)
	req := testRequest(t)
	res, err := New().Render(req)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if res.OutputBytes != int64(len("rendered")) {
		t.Fatalf("unexpected output size %d", res.OutputBytes)
	}
	if res.DurationSeconds <= 0 {
		t.Fatalf("expected positive duration, got %f", res.DurationSeconds)
	}
}

func TestRender_PassesModeAndConfig(t *testing.T) {
	fakeEngine(t, `#!/usr/bin/env bash
set -euo pipefail
out=""; mode=""; config=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    --mode) mode="$2"; shift 2 ;;
    --config) config="$2"; shift 2 ;;
    *) shift ;;
  esac
done
cat "$config" > "$out"
echo "$mode" >> "$out"
`)
	req := testRequest(t)
	req.UseGPU = false
	res, err := New().Render(req)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, `"image_duration": 6`) {
		t.Fatalf("config missing preset keys: %s", got)
	}
	if !strings.Contains(got, `"use_gpu": false`) {
		t.Fatalf("config missing gpu flag: %s", got)
	}
	if !strings.Contains(got, "slideshow") {
		t.Fatalf("mode flag not passed: %s", got)
	}
}

func TestRender_NonZeroExitFails(t *testing.T) {
	fakeEngine(t, `#!/bin/sh
echo "encoder exploded" >&2
exit 1
`)
	_, err := New().Render(testRequest(t))
	if err == nil {
		t.Fatal("expected render error")
	}
	if !strings.Contains(err.Error(), "encoder exploded") {
		t.Fatalf("stderr not surfaced: %v", err)
	}
}

func TestRender_MissingOutputFails(t *testing.T) {
	fakeEngine(t, `#!/bin/sh
exit 0
`)
	_, err := New().Render(testRequest(t))
	if err == nil || !strings.Contains(err.Error(), "produced no output") {
		t.Fatalf("expected missing-output error, got %v", err)
	}
}

func TestRender_MissingBinaryFails(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := New().Render(testRequest(t))
	if err == nil || !strings.Contains(err.Error(), "not found on PATH") {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	req := testRequest(t)
	res := Result{OutputPath: req.OutputPath, OutputBytes: 1024, DurationSeconds: 12.5}
	scan := model.ScannedProject{Name: "wedding01", ImageCount: 40, VideoCount: 0, MainAudio: "main_track.mp3"}

	m := NewManifest(req, res, scan)
	if m.Project != "wedding01" || m.Mode != model.ModeSlideshow || m.ImageCount != 40 {
		t.Fatalf("unexpected manifest: %+v", m)
	}

	path := ManifestPath(req.OutputPath)
	if !strings.HasSuffix(path, "wedding01.manifest.json") {
		t.Fatalf("unexpected manifest path %q", path)
	}
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("write manifest failed: %v", err)
	}
	back, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("read manifest failed: %v", err)
	}
	if back.Project != m.Project || back.OutputBytes != m.OutputBytes || back.GpuUsed != m.GpuUsed {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, m)
	}
}
