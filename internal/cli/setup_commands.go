package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videostove/internal/batch"
	"videostove/internal/gpu"
	"videostove/internal/history"
	"videostove/internal/model"
	"videostove/internal/rclone"
	"videostove/internal/render"
	"videostove/internal/runstore"
)

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	runsDir := fs.String("runs-dir", "runs", "runs directory")
	workDir := fs.String("work-dir", "work", "local workspace directory")
	rcloneConfig := fs.String("rclone-config", "", "rclone configuration path")
	remote := fs.String("remote", envDefault("REMOTE_BASE", ""), "remote base to verify (env REMOTE_BASE)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	checks := make([]DoctorCheck, 0, 6)

	client := rclone.New(strings.TrimSpace(*rcloneConfig))
	rcloneReport := client.Doctor()
	checks = append(checks, DoctorCheck{
		Name:    "dependency:rclone",
		OK:      rcloneReport.Available,
		Message: dependencyMessage(rcloneReport.Available, rcloneReport.BinaryPath, "rclone", rcloneReport.Version),
	})

	engineOK, enginePath := render.New().DependencyStatus()
	checks = append(checks, DoctorCheck{
		Name:    "dependency:render-engine",
		OK:      engineOK,
		Message: dependencyMessage(engineOK, enginePath, "videostove-engine", ""),
	})

	allowCPU := envBool("ALLOW_CPU")
	status, gpuErr := gpu.New(allowCPU).Check()
	gpuCheck := DoctorCheck{Name: "gpu:nvidia", OK: gpuErr == nil}
	switch {
	case gpuErr != nil:
		gpuCheck.Message = gpuErr.Error()
	case status.State == model.GpuOverridden:
		gpuCheck.Message = "no GPU detected, CPU rendering allowed via ALLOW_CPU"
	default:
		gpuCheck.Message = fmt.Sprintf("%d NVIDIA device(s) detected", status.DeviceCount)
	}
	checks = append(checks, gpuCheck)

	for _, dir := range []struct{ name, path string }{
		{"directory:runs", *runsDir},
		{"directory:work", *workDir},
	} {
		ok, message := ensureWritableDir(dir.path)
		checks = append(checks, DoctorCheck{Name: dir.name, OK: ok, Message: message})
	}

	if base := strings.TrimSpace(*remote); base != "" {
		err := client.VerifyRemote(base)
		check := DoctorCheck{Name: "remote:" + base, OK: err == nil, Message: "reachable"}
		if err != nil {
			check.Message = err.Error()
		} else if presets, listErr := client.ListFiles(rclone.AssetKindPath(base, "presets")); listErr == nil {
			check.Message = fmt.Sprintf("reachable, %d preset file(s)", len(presets))
		}
		checks = append(checks, check)
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	result := DoctorResult{OK: ok, Checks: checks}

	if *jsonOut {
		return printJSON(result)
	}
	for _, c := range result.Checks {
		marker := "ok"
		if !c.OK {
			marker = "FAIL"
		}
		fmt.Printf("%-4s %-26s %s\n", marker, c.Name, c.Message)
	}
	if !result.OK {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func dependencyMessage(ok bool, path, name, version string) string {
	if !ok {
		return name + " not found on PATH"
	}
	msg := name + " found at " + path
	if version != "" {
		msg += " (v" + version + ")"
	}
	return msg
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "videostove-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}

func runRemoteSetup(args []string) error {
	fs := flag.NewFlagSet("remote-setup", flag.ContinueOnError)
	configPath := fs.String("config", defaultRcloneConfigPath(), "rclone configuration path to write")
	remoteName := fs.String("remote-name", envDefault("RCLONE_REMOTE_NAME", ""), "remote name for service-account setup (env RCLONE_REMOTE_NAME)")
	verify := fs.String("verify", envDefault("REMOTE_BASE", ""), "remote base to verify after setup (env REMOTE_BASE)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	name := strings.TrimSpace(*remoteName)
	if name == "" && strings.TrimSpace(os.Getenv("RCLONE_DRIVE_SERVICE_ACCOUNT_JSON")) != "" {
		prompted, err := promptRequired("remote name")
		if err != nil {
			return err
		}
		name = prompted
	}

	result, err := rclone.MaterializeConfig(rclone.SetupConfig{
		ConfigPath:         strings.TrimSpace(*configPath),
		ConfigBase64:       os.Getenv("RCLONE_CONFIG_BASE64"),
		ServiceAccountJSON: os.Getenv("RCLONE_DRIVE_SERVICE_ACCOUNT_JSON"),
		RemoteName:         name,
	})
	if err != nil {
		return err
	}

	client := rclone.New(result.ConfigPath)
	remotes, remotesErr := client.ListRemotes()

	if strings.TrimSpace(*verify) != "" {
		if err := client.VerifyRemote(strings.TrimSpace(*verify)); err != nil {
			return &batch.RemoteVerificationError{
				Remote: strings.TrimSpace(*verify),
				Err:    fmt.Errorf("config written to %s but remote is not reachable: %w", result.ConfigPath, err),
			}
		}
	}

	if *jsonOut {
		return printJSON(struct {
			rclone.SetupResult
			Remotes []string `json:"remotes,omitempty"`
		}{SetupResult: result, Remotes: remotes})
	}
	fmt.Printf("config: %s (%s)\n", result.ConfigPath, result.Source)
	if remotesErr == nil && len(remotes) > 0 {
		fmt.Printf("remotes: %s\n", strings.Join(remotes, ", "))
	}
	if strings.TrimSpace(*verify) != "" {
		fmt.Printf("verified: %s\n", strings.TrimSpace(*verify))
	}
	return nil
}

func defaultRcloneConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "rclone", "rclone.conf")
	}
	return filepath.Join(home, ".config", "rclone", "rclone.conf")
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	dbPath := fs.String("db", defaultHistoryPath, "history database path")
	limit := fs.Int("limit", 20, "maximum rows to return")
	project := fs.String("project", "", "show outcomes for one project instead of batches")
	latest := fs.Bool("latest", false, "show the most recent run's full report")
	runsDir := fs.String("runs-dir", "runs", "runs directory (with --latest)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *latest {
		runDir, err := runstore.LatestRunDir(*runsDir)
		if err != nil {
			return err
		}
		report, err := runstore.LoadReport(runDir)
		if err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(report)
		}
		printBatchSummary(batch.RunResult{
			RunID:      report.RunID,
			RunDir:     runDir,
			ReportPath: runstore.ReportPath(runDir),
			Report:     report,
		})
		return nil
	}

	if _, err := os.Stat(*dbPath); err != nil {
		return fmt.Errorf("no history database at %s (runs record history after render-batch)", *dbPath)
	}
	store, err := history.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if strings.TrimSpace(*project) != "" {
		rows, err := store.ProjectHistory(strings.TrimSpace(*project), *limit)
		if err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(rows)
		}
		if len(rows) == 0 {
			fmt.Printf("no recorded outcomes for %s\n", strings.TrimSpace(*project))
			return nil
		}
		for _, r := range rows {
			line := fmt.Sprintf("%-26s %-10s", r.RunID, r.Status)
			if r.Reason != "" {
				line += " (" + r.Reason + ")"
			}
			if r.OutputBytes > 0 {
				line += "  " + formatBytesIEC(r.OutputBytes)
			}
			if r.LastError != "" {
				line += "  " + r.LastError
			}
			fmt.Println(line)
		}
		return nil
	}

	rows, err := store.ListBatches(*limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println("no recorded batches")
		return nil
	}
	for _, r := range rows {
		fmt.Printf("%-26s %-20s %-12s gpu:%-11s total:%d published:%d rendered:%d skipped:%d failed:%d\n",
			r.RunID, r.PresetName, r.Mode, r.GpuState, r.Total, r.Published, r.Rendered, r.Skipped, r.Failed)
	}
	return nil
}
