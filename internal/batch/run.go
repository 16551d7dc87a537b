package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"videostove/internal/gpu"
	"videostove/internal/history"
	"videostove/internal/job"
	"videostove/internal/media"
	"videostove/internal/model"
	"videostove/internal/preset"
	"videostove/internal/rclone"
	"videostove/internal/render"
	"videostove/internal/runstore"
)

type RunOptions struct {
	JobPath        string
	Remote         string
	PresetOverride string
	ModeOverride   string
	AllowCPU       bool
	NoPublish      bool
	Progress       bool

	WorkDir     string
	RunsDir     string
	HistoryPath string

	RcloneConfigPath string
	EngineBinary     string

	TransferAttempts int
	RetryBaseDelay   time.Duration
}

type RunResult struct {
	RunID      string
	RunDir     string
	ReportPath string
	Report     model.BatchReport
}

// RemoteVerificationError aborts a batch before any project work and
// maps to its own exit code at the CLI layer.
type RemoteVerificationError struct {
	Remote string
	Err    error
}

func (e *RemoteVerificationError) Error() string {
	return fmt.Sprintf("remote %s is not reachable: %v", e.Remote, e.Err)
}

func (e *RemoteVerificationError) Unwrap() error { return e.Err }

// Run executes one batch end to end: resolve the job and preset, sync
// shared assets, gate on the GPU, then pull, render, and publish every
// project in declared order. A project failure marks that project and
// moves on; only config, remote, and GPU failures abort the batch.
func Run(opts RunOptions) (RunResult, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "work"
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = "runs"
	}

	doc, err := job.Load(opts.JobPath)
	if err != nil {
		return RunResult{}, err
	}

	client := rclone.New(opts.RcloneConfigPath)
	remote := strings.TrimSpace(opts.Remote)
	if remote != "" {
		if err := client.VerifyRemote(remote); err != nil {
			return RunResult{}, &RemoteVerificationError{Remote: remote, Err: err}
		}
	}

	runID := runstore.NewRunID(time.Now())
	runDir := filepath.Join(runsDir, runID)
	if err := runstore.Mkdir(runDir); err != nil {
		return RunResult{}, err
	}
	lock, err := runstore.AcquireRunLock(runDir)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	assets, err := syncAssets(client, remote, workDir, doc, opts)
	if err != nil {
		return RunResult{}, err
	}

	// Mode precedence: --mode flag, then the job document, then the
	// preset's own project_type.
	mode := assets.Preset.Mode
	if doc.Mode != "" {
		mode = doc.Mode
	}
	if opts.ModeOverride != "" {
		mode = model.RenderMode(opts.ModeOverride)
	}
	if !model.IsKnownMode(mode) {
		return RunResult{}, fmt.Errorf("unknown render mode %q", mode)
	}

	meta := runstore.RunMeta{
		RunID:      runID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		JobPath:    opts.JobPath,
		PresetName: assets.Preset.Name,
		Mode:       string(mode),
		Remote:     remote,
		Phase:      "running",
	}
	if err := runstore.SaveRunMeta(runDir, meta); err != nil {
		return RunResult{}, err
	}

	report := model.BatchReport{
		SchemaVersion: model.ReportSchemaVersion,
		RunID:         runID,
		JobPath:       opts.JobPath,
		PresetName:    assets.Preset.Name,
		Mode:          mode,
		Remote:        remote,
	}
	for _, p := range doc.Projects {
		outcome := model.ProjectOutcome{Name: p.Name, OutputTarget: p.OutputTarget}
		if err := model.TransitionOutcome(&outcome, model.StatusPending, ""); err != nil {
			return RunResult{}, err
		}
		report.Projects = append(report.Projects, outcome)
	}

	gate := gpu.New(opts.AllowCPU)
	status, gpuErr := gate.Check()
	report.Gpu = status
	if gpuErr != nil {
		meta.Phase = "aborted"
		finalizeReport(runDir, &meta, &report, opts.HistoryPath)
		return RunResult{RunID: runID, RunDir: runDir, ReportPath: runstore.ReportPath(runDir), Report: report}, gpuErr
	}

	engine := render.New()
	if opts.EngineBinary != "" {
		engine.Binary = opts.EngineBinary
	}

	for i := range report.Projects {
		outcome := &report.Projects[i]
		progress := newLiveProgress(opts.Progress, i+1, len(report.Projects), outcome.Name)
		progress.Start()
		renderProject(projectContext{
			client:  client,
			engine:  engine,
			remote:  remote,
			workDir: workDir,
			jobDir:  filepath.Dir(opts.JobPath),
			mode:    mode,
			gpu:     status,
			assets:  assets,
			opts:    opts,
		}, outcome, progress)
		progress.Stop(fmt.Sprintf("[%d/%d] %s: %s", i+1, len(report.Projects), outcome.Name, outcomeSummary(*outcome)))
		if !opts.Progress {
			fmt.Printf("[%d/%d] %s: %s\n", i+1, len(report.Projects), outcome.Name, outcomeSummary(*outcome))
		}
		if err := writeProjectLog(runDir, *outcome); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", outcome.Name, err)
		}
	}

	meta.Phase = "done"
	if err := finalizeReport(runDir, &meta, &report, opts.HistoryPath); err != nil {
		return RunResult{}, err
	}

	return RunResult{RunID: runID, RunDir: runDir, ReportPath: runstore.ReportPath(runDir), Report: report}, nil
}

type sharedAssets struct {
	Preset      model.Preset
	OverlayPath string
	FontPath    string
	BgMusicPath string
}

// syncAssets pulls the shared asset tree and resolves the preset plus
// the optional overlay, font, and background music references. The
// preset is required; optional assets degrade to a warning when they
// cannot be fetched.
func syncAssets(client rclone.Client, remote, workDir string, doc model.Job, opts RunOptions) (sharedAssets, error) {
	assetsDir := filepath.Join(workDir, rclone.AssetsDir)

	var pullErr error
	if remote != "" {
		pullErr = withRetry(opts.TransferAttempts, opts.RetryBaseDelay, func() error {
			return client.Copy(rclone.AssetKindPath(remote, "presets"), filepath.Join(assetsDir, "presets"))
		})
	}

	ref := opts.PresetOverride
	if ref == "" {
		ref = doc.PresetRef
	}
	if ref == "" {
		return sharedAssets{}, fmt.Errorf("no preset configured: job document has no preset_file and --preset was not given")
	}

	searchPaths := preset.SearchPaths(workDir)
	p, err := preset.Resolve(ref, searchPaths)
	if err != nil && filepath.Base(ref) != ref {
		// Remote-relative references like assets/presets/x.json land
		// under the local assets tree by basename.
		if byBase, baseErr := preset.Resolve(filepath.Base(ref), searchPaths); baseErr == nil {
			p, err = byBase, nil
		}
	}
	if err != nil {
		if pullErr != nil {
			return sharedAssets{}, fmt.Errorf("%v (preset sync also failed: %v)", err, pullErr)
		}
		return sharedAssets{}, err
	}
	if issues := preset.Validate(p.Raw); len(issues) > 0 {
		return sharedAssets{}, fmt.Errorf("preset %s is invalid: %s", p.Name, strings.Join(issues, "; "))
	}

	out := sharedAssets{Preset: p}
	out.OverlayPath = resolveOptionalAsset(client, remote, assetsDir, "overlays", doc.OverlayRef, opts)
	out.FontPath = resolveOptionalAsset(client, remote, assetsDir, "fonts", doc.FontRef, opts)
	out.BgMusicPath = resolveOptionalAsset(client, remote, assetsDir, "bgmusic", doc.BgMusicRef, opts)
	return out, nil
}

// resolveOptionalAsset fetches one optional shared asset. Any failure
// is reported on stderr and the batch continues without the asset.
func resolveOptionalAsset(client rclone.Client, remote, assetsDir, kind, ref string, opts RunOptions) string {
	if strings.TrimSpace(ref) == "" {
		return ""
	}
	if _, err := os.Stat(ref); err == nil {
		return ref
	}

	local := filepath.Join(assetsDir, kind, filepath.Base(ref))
	if _, err := os.Stat(local); err == nil {
		return local
	}
	if remote != "" {
		err := withRetry(opts.TransferAttempts, opts.RetryBaseDelay, func() error {
			return client.Copy(rclone.AssetKindPath(remote, kind), filepath.Join(assetsDir, kind))
		})
		if err == nil {
			if _, statErr := os.Stat(local); statErr == nil {
				return local
			}
		}
	}
	fmt.Fprintf(os.Stderr, "warning: %s asset %q not found, continuing without it\n", kind, ref)
	return ""
}

type projectContext struct {
	client  rclone.Client
	engine  *render.Engine
	remote  string
	workDir string
	jobDir  string
	mode    model.RenderMode
	gpu     model.GpuStatus
	assets  sharedAssets
	opts    RunOptions
}

// renderProject walks one project through its lifecycle. Errors are
// recorded on the outcome, never returned: a broken project must not
// stop the batch.
func renderProject(pc projectContext, outcome *model.ProjectOutcome, progress *liveProgress) {
	outcome.StartedAt = time.Now().UTC().Format(time.RFC3339)
	defer func() {
		outcome.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	}()

	fail := func(toStatus, errorKind string, err error) {
		_ = model.TransitionOutcome(outcome, toStatus, "")
		outcome.ErrorKind = errorKind
		outcome.LastError = err.Error()
	}

	// Pull.
	progress.SetPhase("pulling")
	_ = model.TransitionOutcome(outcome, model.StatusPulling, "")
	projectDir := filepath.Join(pc.workDir, "projects", outcome.Name)
	if pc.remote != "" {
		// A missing project directory is a listing miss, not a flaky
		// transfer: fail it without burning retries.
		src := rclone.ProjectPath(pc.remote, outcome.Name)
		if !pc.client.PathExists(src) {
			fail(model.StatusFailed, model.ErrKindTransfer, fmt.Errorf("project %s not found on remote", outcome.Name))
			return
		}
		err := withRetry(pc.opts.TransferAttempts, pc.opts.RetryBaseDelay, func() error {
			return pc.client.Copy(src, projectDir)
		})
		if err != nil {
			fail(model.StatusFailed, model.ErrKindTransfer, err)
			return
		}
	} else {
		projectDir = filepath.Join(pc.jobDir, outcome.Name)
	}

	// Scan and filter.
	progress.SetPhase("scanning")
	scan := media.Scan(projectDir)
	outcome.Images = scan.ImageCount
	outcome.Videos = scan.VideoCount
	eligibility := media.Classify(scan, pc.mode)
	switch eligibility.State {
	case model.Ineligible:
		_ = model.TransitionOutcome(outcome, model.StatusSkipped, eligibility.Reason)
		return
	case model.EligibilityError:
		// Unreadable or empty projects are skipped, never fatal.
		_ = model.TransitionOutcome(outcome, model.StatusSkipped, eligibility.Reason)
		if scan.ScanErr != "" {
			outcome.LastError = scan.ScanErr
		}
		return
	}

	// Render.
	progress.SetPhase("rendering")
	progress.SetNote(fmt.Sprintf("%d images, %d videos", scan.ImageCount, scan.VideoCount))
	_ = model.TransitionOutcome(outcome, model.StatusRendering, "")
	useGPU := pc.assets.Preset.UseGPU && pc.gpu.State == model.GpuAvailable
	outputPath := filepath.Join(pc.workDir, "out", outcome.Name, outcome.Name+".mp4")
	res, err := pc.engine.Render(render.Request{
		ProjectDir:  projectDir,
		ProjectName: outcome.Name,
		OutputPath:  outputPath,
		Preset:      pc.assets.Preset,
		Mode:        pc.mode,
		MainAudio:   scan.MainAudio,
		OverlayPath: pc.assets.OverlayPath,
		FontPath:    pc.assets.FontPath,
		BgMusicPath: pc.assets.BgMusicPath,
		UseGPU:      useGPU,
	})
	if err != nil {
		fail(model.StatusFailed, model.ErrKindRenderEngine, err)
		return
	}
	_ = model.TransitionOutcome(outcome, model.StatusRendered, "")
	outcome.OutputPath = res.OutputPath
	outcome.OutputBytes = res.OutputBytes
	outcome.DurationSeconds = res.DurationSeconds

	manifestPath := render.ManifestPath(res.OutputPath)
	manifest := render.NewManifest(render.Request{
		ProjectName: outcome.Name,
		Preset:      pc.assets.Preset,
		Mode:        pc.mode,
		OverlayPath: pc.assets.OverlayPath,
		BgMusicPath: pc.assets.BgMusicPath,
		UseGPU:      useGPU,
	}, res, scan)
	if err := render.WriteManifest(manifestPath, manifest); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", outcome.Name, err)
	} else {
		outcome.ManifestPath = manifestPath
	}

	// Publish.
	if pc.opts.NoPublish || pc.remote == "" {
		_ = model.TransitionOutcome(outcome, model.StatusRendered, "")
		return
	}
	progress.SetPhase("publishing")
	_ = model.TransitionOutcome(outcome, model.StatusPublishing, "")
	target := outcome.OutputTarget
	if target == "" {
		target = rclone.OutputsDir + "/" + outcome.Name
	}
	dest := rclone.TargetPath(pc.remote, target)
	err = withRetry(pc.opts.TransferAttempts, pc.opts.RetryBaseDelay, func() error {
		return pc.client.Copy(filepath.Dir(res.OutputPath), dest)
	})
	if err != nil {
		// The render stands even when the upload does not.
		_ = model.TransitionOutcome(outcome, model.StatusRendered, "")
		outcome.ErrorKind = model.ErrKindPublish
		outcome.PublishStatus = "failed"
		outcome.PublishError = err.Error()
		return
	}
	_ = model.TransitionOutcome(outcome, model.StatusPublished, "")
	outcome.PublishStatus = "published"
}

func finalizeReport(runDir string, meta *runstore.RunMeta, report *model.BatchReport, historyPath string) error {
	report.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	report.RecomputeCounts()
	if err := runstore.SaveReport(runDir, *report); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := runstore.SaveRunMeta(runDir, *meta); err != nil {
		return err
	}
	if historyPath != "" {
		store, err := history.Open(historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
			return nil
		}
		defer store.Close()
		if err := store.Record(*report); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record history: %v\n", err)
		}
	}
	return nil
}

// writeProjectLog records one project's outcome as a plain-text log
// under runs/<id>/logs/, next to the machine-readable report.
func writeProjectLog(runDir string, o model.ProjectOutcome) error {
	var b strings.Builder
	fmt.Fprintf(&b, "project: %s\n", o.Name)
	fmt.Fprintf(&b, "started_at: %s\n", o.StartedAt)
	fmt.Fprintf(&b, "completed_at: %s\n", o.CompletedAt)
	fmt.Fprintf(&b, "status: %s\n", o.Status)
	if o.Reason != "" {
		fmt.Fprintf(&b, "reason: %s\n", o.Reason)
	}
	fmt.Fprintf(&b, "media: %d images, %d videos\n", o.Images, o.Videos)
	if o.OutputPath != "" {
		fmt.Fprintf(&b, "output: %s (%d bytes, %.1fs)\n", o.OutputPath, o.OutputBytes, o.DurationSeconds)
	}
	if o.PublishStatus != "" {
		fmt.Fprintf(&b, "publish: %s\n", o.PublishStatus)
	}
	if o.PublishError != "" {
		fmt.Fprintf(&b, "publish_error: %s\n", o.PublishError)
	}
	if o.LastError != "" {
		if o.ErrorKind != "" {
			fmt.Fprintf(&b, "error [%s]: %s\n", o.ErrorKind, o.LastError)
		} else {
			fmt.Fprintf(&b, "error: %s\n", o.LastError)
		}
	}
	logDir := filepath.Join(runDir, "logs")
	if err := runstore.Mkdir(logDir); err != nil {
		return err
	}
	return runstore.WriteBytes(filepath.Join(logDir, o.Name+".log"), []byte(b.String()))
}

func outcomeSummary(o model.ProjectOutcome) string {
	switch o.Status {
	case model.StatusPublished:
		return "published"
	case model.StatusRendered:
		if o.PublishStatus == "failed" {
			return "rendered (publish failed: " + o.PublishError + ")"
		}
		return "rendered"
	case model.StatusSkipped:
		return "skipped (" + o.Reason + ")"
	case model.StatusFailed:
		return "failed (" + o.LastError + ")"
	default:
		return o.Status
	}
}
