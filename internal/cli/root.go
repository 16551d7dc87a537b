package cli

import (
	"errors"
	"fmt"

	"videostove/internal/batch"
	"videostove/internal/gpu"
)

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "render-batch":
		return runRenderBatch(args[1:])
	case "wizard":
		return runWizard(args[1:])
	case "scan":
		return runScan(args[1:])
	case "pull":
		return runPull(args[1:])
	case "push":
		return runPush(args[1:])
	case "presets":
		return runPresets(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "remote-setup":
		return runRemoteSetup(args[1:])
	case "history":
		return runHistory(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// ExitCode maps an error from Run onto the process exit code:
// 0 success (including batches with failed projects), 1 configuration
// or usage errors, 2 remote verification failures, 3 GPU gate failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var remoteErr *batch.RemoteVerificationError
	if errors.As(err, &remoteErr) {
		return 2
	}
	var gpuErr *gpu.RequiredError
	if errors.As(err, &gpuErr) {
		return 3
	}
	return 1
}

func printRootUsage() {
	fmt.Println("videostove: preset-first batch video render orchestrator")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  videostove remote-setup")
	fmt.Println("  videostove wizard")
	fmt.Println("  videostove render-batch --job jobs/batch.yaml")
	fmt.Println()
	fmt.Println("Batch Commands:")
	fmt.Println("  render-batch  pull, render, and publish every project in a job document")
	fmt.Println("  wizard        interactive job document builder")
	fmt.Println("  history       list recorded batch runs and per-project outcomes")
	fmt.Println()
	fmt.Println("Project Commands:")
	fmt.Println("  scan      scan local project directories and report mode eligibility")
	fmt.Println("  pull      pull projects and shared assets from the remote")
	fmt.Println("  push      publish rendered outputs to the remote")
	fmt.Println("  presets   list, show, and validate render presets")
	fmt.Println()
	fmt.Println("Setup Commands:")
	fmt.Println("  remote-setup  materialize the rclone configuration from env or flags")
	fmt.Println("  doctor        run dependency and filesystem preflight checks")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - REMOTE_BASE sets the default remote (e.g. gdrive:VideoStove)")
	fmt.Println("  - ALLOW_CPU=true permits rendering without an NVIDIA GPU")
}
