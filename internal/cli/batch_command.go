package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"videostove/internal/batch"
	"videostove/internal/model"
	"videostove/internal/preset"
)

const defaultHistoryPath = "runs/history.db"

func runRenderBatch(args []string) error {
	fs := flag.NewFlagSet("render-batch", flag.ContinueOnError)
	jobPath := fs.String("job", "", "job document path (YAML)")
	remote := fs.String("remote", envDefault("REMOTE_BASE", ""), "remote base, e.g. gdrive:VideoStove (env REMOTE_BASE)")
	presetRef := fs.String("preset", "", "preset override: name, name:profile, or path")
	mode := fs.String("mode", "", "render mode override: slideshow|montage|videos_only")
	allowCPU := fs.Bool("allow-cpu", envBool("ALLOW_CPU"), "render without an NVIDIA GPU (env ALLOW_CPU)")
	noPublish := fs.Bool("no-publish", false, "render only, skip publishing outputs")
	workDir := fs.String("work-dir", "work", "local workspace for pulled projects and outputs")
	runsDir := fs.String("runs-dir", "runs", "runs directory")
	historyPath := fs.String("history", defaultHistoryPath, "history database path (empty disables)")
	rcloneConfig := fs.String("rclone-config", "", "rclone configuration path")
	progress := fs.Bool("progress", false, "show a live progress line per project")
	jsonOut := fs.Bool("json", false, "print the batch report as JSON")

	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*jobPath) == "" {
		fs.Usage()
		return errors.New("--job is required")
	}

	modeOverride := ""
	if strings.TrimSpace(*mode) != "" {
		canonical, err := normalizeMode(*mode)
		if err != nil {
			return err
		}
		modeOverride = string(canonical)
	}

	result, err := batch.Run(batch.RunOptions{
		JobPath:          strings.TrimSpace(*jobPath),
		Remote:           strings.TrimSpace(*remote),
		PresetOverride:   strings.TrimSpace(*presetRef),
		ModeOverride:     modeOverride,
		AllowCPU:         *allowCPU,
		NoPublish:        *noPublish,
		Progress:         *progress && stdinIsTTY(),
		WorkDir:          *workDir,
		RunsDir:          *runsDir,
		HistoryPath:      strings.TrimSpace(*historyPath),
		RcloneConfigPath: strings.TrimSpace(*rcloneConfig),
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(result.Report)
	}
	printBatchSummary(result)
	return nil
}

func printBatchSummary(result batch.RunResult) {
	r := result.Report
	fmt.Println()
	fmt.Printf("run_id: %s\n", r.RunID)
	fmt.Printf("preset: %s\n", r.PresetName)
	fmt.Printf("mode: %s\n", r.Mode)
	fmt.Printf("gpu: %s", r.Gpu.State)
	if r.Gpu.DeviceCount > 0 {
		fmt.Printf(" (%d device(s))", r.Gpu.DeviceCount)
	}
	fmt.Println()
	fmt.Printf("projects: %d total, %d published, %d rendered, %d skipped, %d failed\n",
		r.Total, r.Published, r.Rendered, r.Skipped, r.Failed)
	for _, p := range r.Projects {
		line := fmt.Sprintf("  %-24s %s", p.Name, p.Status)
		if p.Reason != "" {
			line += " (" + p.Reason + ")"
		}
		if p.OutputBytes > 0 {
			line += "  " + formatBytesIEC(p.OutputBytes)
		}
		if p.PublishStatus == "failed" {
			line += "  publish failed: " + p.PublishError
		}
		if p.Status == model.StatusFailed && p.LastError != "" {
			line += "  " + p.LastError
		}
		fmt.Println(line)
	}
	fmt.Printf("report: %s\n", result.ReportPath)
}

func normalizeMode(raw string) (model.RenderMode, error) {
	canonical := preset.DetectModeStrict(strings.ToLower(strings.TrimSpace(raw)))
	if canonical == "" {
		return "", fmt.Errorf("unknown render mode %q (want slideshow, montage, or videos_only)", raw)
	}
	return canonical, nil
}
