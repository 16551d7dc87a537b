package model

// RenderMode classifies what a preset renders and which projects
// qualify for it.
type RenderMode string

const (
	ModeSlideshow  RenderMode = "slideshow"
	ModeMontage    RenderMode = "montage"
	ModeVideosOnly RenderMode = "videos_only"
)

func IsKnownMode(mode RenderMode) bool {
	switch mode {
	case ModeSlideshow, ModeMontage, ModeVideosOnly:
		return true
	default:
		return false
	}
}

// Job is one declarative batch: a preset reference, optional shared
// asset references, and an ordered list of projects. Parsed once from
// a job document and never mutated afterwards.
type Job struct {
	PresetRef  string       `json:"preset_ref"`
	Mode       RenderMode   `json:"mode,omitempty"`
	OverlayRef string       `json:"overlay_ref,omitempty"`
	FontRef    string       `json:"font_ref,omitempty"`
	BgMusicRef string       `json:"bg_music_ref,omitempty"`
	Projects   []ProjectRef `json:"projects"`
}

type ProjectRef struct {
	Name         string `json:"name"`
	OutputTarget string `json:"output"`
}

// Preset is a resolved rendering configuration. Mode is always set
// after resolution (defaulted or overridden), before any eligibility
// decision uses it.
type Preset struct {
	Name              string     `json:"name"`
	Path              string     `json:"path"`
	Mode              RenderMode `json:"mode"`
	ImageDuration     float64    `json:"image_duration,omitempty"`
	UseCrossfade      bool       `json:"use_crossfade,omitempty"`
	CrossfadeDuration float64    `json:"crossfade_duration,omitempty"`
	MainAudioVol      float64    `json:"main_audio_vol,omitempty"`
	BgVol             float64    `json:"bg_vol,omitempty"`
	UseOverlay        bool       `json:"use_overlay,omitempty"`
	OverlayMode       string     `json:"overlay_mode,omitempty"`
	OverlayOpacity    float64    `json:"overlay_opacity,omitempty"`
	UseBgMusic        bool       `json:"use_bg_music,omitempty"`
	UseGPU            bool       `json:"use_gpu,omitempty"`
	CRF               int        `json:"crf,omitempty"`
	EncoderPreset     string     `json:"encoder_preset,omitempty"`
	AnimationStyle    string     `json:"animation_style,omitempty"`

	// Raw keeps the full profile as loaded so the engine receives
	// keys this struct does not model.
	Raw map[string]any `json:"-"`
}

// ScannedProject is a transient local inspection of a pulled project
// directory. The remote stays authoritative; this is recomputed every
// run and never persisted.
type ScannedProject struct {
	Name       string `json:"name"`
	ImageCount int    `json:"images"`
	VideoCount int    `json:"videos"`
	AudioCount int    `json:"audio"`
	MainAudio  string `json:"main_audio,omitempty"`
	TotalBytes int64  `json:"total_size_bytes"`
	ScanErr    string `json:"scan_error,omitempty"`
}

// EligibilityState is the tri-state outcome of applying mode rules to
// a scanned project.
type EligibilityState string

const (
	Eligible         EligibilityState = "eligible"
	Ineligible       EligibilityState = "ineligible"
	EligibilityError EligibilityState = "error"
)

const (
	ReasonNoImages         = "no_images"
	ReasonNoVideos         = "no_videos"
	ReasonImagesDisallowed = "images_disallowed_for_mode"
	ReasonScanFailed       = "scan_failed"
)

type Eligibility struct {
	State  EligibilityState `json:"state"`
	Reason string           `json:"reason,omitempty"`
}

// Error kinds recorded on per-project outcomes. Config, remote
// verification, and GPU failures abort the batch before any outcome
// exists, so they never appear here.
const (
	ErrKindTransfer     = "transfer"
	ErrKindRenderEngine = "render_engine"
	ErrKindPublish      = "publish"
)

// GpuStatus is the whole-batch GPU gate result, probed once before
// any project is processed.
type GpuStatus struct {
	State       string `json:"state"` // available | unavailable | overridden
	DeviceCount int    `json:"device_count,omitempty"`
}

const (
	GpuAvailable   = "available"
	GpuUnavailable = "unavailable"
	GpuOverridden  = "overridden"
)

// ProjectOutcome is one entry of a BatchReport. Render and publish
// results are independent fields: a publish failure never demotes a
// successful render.
type ProjectOutcome struct {
	Name         string `json:"name"`
	OutputTarget string `json:"output_target,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	LastError    string `json:"last_error,omitempty"`

	Images int `json:"images,omitempty"`
	Videos int `json:"videos,omitempty"`

	OutputPath      string  `json:"output_path,omitempty"`
	ManifestPath    string  `json:"manifest_path,omitempty"`
	OutputBytes     int64   `json:"output_bytes,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	PublishStatus string `json:"publish_status,omitempty"` // published | failed
	PublishError  string `json:"publish_error,omitempty"`

	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

const ReportSchemaVersion = 1

// BatchReport is the canonical per-run outcome file, written at the
// end of every run, including all-failed runs.
type BatchReport struct {
	SchemaVersion int        `json:"schema_version"`
	GeneratedAt   string     `json:"generated_at"`
	RunID         string     `json:"run_id"`
	JobPath       string     `json:"job_path,omitempty"`
	PresetName    string     `json:"preset_name"`
	Mode          RenderMode `json:"mode"`
	Remote        string     `json:"remote,omitempty"`
	Gpu           GpuStatus  `json:"gpu"`

	Total     int `json:"total"`
	Published int `json:"published"`
	Rendered  int `json:"rendered"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	Projects []ProjectOutcome `json:"projects"`
}

// RecomputeCounts refreshes the summary counters from the per-project
// entries.
func (r *BatchReport) RecomputeCounts() {
	published := 0
	rendered := 0
	skipped := 0
	failed := 0
	for _, p := range r.Projects {
		switch p.Status {
		case StatusPublished:
			published++
			rendered++
		case StatusRendered:
			rendered++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	r.Total = len(r.Projects)
	r.Published = published
	r.Rendered = rendered
	r.Skipped = skipped
	r.Failed = failed
}
