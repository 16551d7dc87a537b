package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"videostove/internal/model"
)

const DefaultRenderTimeout = 2 * time.Hour

// Engine invokes the external render binary for one project at a time.
type Engine struct {
	Binary        string
	RenderTimeout time.Duration
}

func New() *Engine {
	return &Engine{Binary: "videostove-engine", RenderTimeout: DefaultRenderTimeout}
}

type Request struct {
	ProjectDir  string
	ProjectName string
	OutputPath  string
	Preset      model.Preset
	Mode        model.RenderMode
	MainAudio   string
	OverlayPath string
	FontPath    string
	BgMusicPath string
	UseGPU      bool
}

type Result struct {
	OutputPath      string
	OutputBytes     int64
	DurationSeconds float64
}

// Render runs the engine synchronously and verifies the artifact exists
// afterwards. A missing or empty output file counts as a render failure
// even when the engine exits zero.
func (e *Engine) Render(req Request) (Result, error) {
	if strings.TrimSpace(req.ProjectDir) == "" {
		return Result{}, fmt.Errorf("project dir is required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return Result{}, fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	configPath, err := writeEffectiveConfig(req)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(configPath)

	args := []string{
		"render",
		"--project", req.ProjectDir,
		"--output", req.OutputPath,
		"--mode", string(req.Mode),
		"--config", configPath,
	}
	if req.MainAudio != "" {
		args = append(args, "--main-audio", req.MainAudio)
	}
	if req.OverlayPath != "" {
		args = append(args, "--overlay", req.OverlayPath)
	}
	if req.FontPath != "" {
		args = append(args, "--font", req.FontPath)
	}
	if req.BgMusicPath != "" {
		args = append(args, "--bg-music", req.BgMusicPath)
	}
	if !req.UseGPU {
		args = append(args, "--cpu")
	}

	timeout := e.RenderTimeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	binary := e.Binary
	if binary == "" {
		binary = "videostove-engine"
	}

	started := time.Now()
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	elapsed := time.Since(started)

	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, fmt.Errorf("render timed out after %s", timeout)
	}
	if runErr != nil {
		var execErr *exec.Error
		if errors.As(runErr, &execErr) {
			return Result{}, fmt.Errorf("%s not found on PATH", binary)
		}
		return Result{}, fmt.Errorf("render failed: %w%s", runErr, stderrTail(stderr.String()))
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil {
		return Result{}, fmt.Errorf("engine exited cleanly but produced no output at %s", req.OutputPath)
	}
	if info.Size() == 0 {
		return Result{}, fmt.Errorf("engine produced an empty output at %s", req.OutputPath)
	}

	return Result{
		OutputPath:      req.OutputPath,
		OutputBytes:     info.Size(),
		DurationSeconds: elapsed.Seconds(),
	}, nil
}

// writeEffectiveConfig serializes the resolved preset for the engine.
// Raw keys from the preset file are preserved so engine-only settings
// pass through untouched.
func writeEffectiveConfig(req Request) (string, error) {
	cfg := make(map[string]any, len(req.Preset.Raw)+1)
	for k, v := range req.Preset.Raw {
		cfg[k] = v
	}
	cfg["project_type"] = string(req.Mode)
	cfg["use_gpu"] = req.UseGPU

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode effective config: %w", err)
	}

	f, err := os.CreateTemp("", "videostove-config-*.json")
	if err != nil {
		return "", fmt.Errorf("write effective config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write effective config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write effective config: %w", err)
	}
	return f.Name(), nil
}

func stderrTail(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return ": " + strings.Join(lines, "; ")
}

// DependencyStatus reports whether the render engine is on PATH.
func (e *Engine) DependencyStatus() (bool, string) {
	binary := e.Binary
	if binary == "" {
		binary = "videostove-engine"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return false, ""
	}
	return true, path
}
