package gpu

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"videostove/internal/model"
)

const probeTimeout = 15 * time.Second

// Gate decides whether GPU-dependent rendering may start.
type Gate struct {
	Binary        string
	AllowCPU      bool
	probeOverride func() (int, error)
}

func New(allowCPU bool) *Gate {
	return &Gate{Binary: "nvidia-smi", AllowCPU: allowCPU}
}

// RequiredError marks a batch as unrunnable: no GPU and no CPU override.
type RequiredError struct {
	Detail string
}

func (e *RequiredError) Error() string {
	if e.Detail == "" {
		return "no NVIDIA GPU detected and CPU rendering is not allowed"
	}
	return "no NVIDIA GPU detected and CPU rendering is not allowed: " + e.Detail
}

// Check probes for NVIDIA devices. The status it returns is recorded in
// the batch report even when the override is in effect, so operators can
// tell an overridden run from a run on real hardware.
func (g *Gate) Check() (model.GpuStatus, error) {
	count, probeErr := g.probe()

	if probeErr != nil || count == 0 {
		if g.AllowCPU {
			return model.GpuStatus{State: model.GpuOverridden}, nil
		}
		detail := ""
		if probeErr != nil {
			detail = probeErr.Error()
		}
		return model.GpuStatus{State: model.GpuUnavailable}, &RequiredError{Detail: detail}
	}
	return model.GpuStatus{State: model.GpuAvailable, DeviceCount: count}, nil
}

func (g *Gate) probe() (int, error) {
	if g.probeOverride != nil {
		return g.probeOverride()
	}

	binary := g.Binary
	if binary == "" {
		binary = "nvidia-smi"
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "-L").CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return 0, fmt.Errorf("%s probe timed out after %s", binary, probeTimeout)
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return 0, fmt.Errorf("%s not found on PATH", binary)
		}
		return 0, fmt.Errorf("%s -L failed: %w", binary, err)
	}

	return countDevices(string(out)), nil
}

// countDevices counts "GPU N:" lines in nvidia-smi -L output.
func countDevices(out string) int {
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
			count++
		}
	}
	return count
}
