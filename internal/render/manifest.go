package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"videostove/internal/model"
)

const ManifestSchemaVersion = 1

// Manifest describes one rendered artifact. It is written next to the
// output file and published together with it.
type Manifest struct {
	SchemaVersion   int              `json:"schema_version"`
	GeneratedAt     string           `json:"generated_at"`
	Project         string           `json:"project"`
	Preset          string           `json:"preset"`
	Mode            model.RenderMode `json:"mode"`
	OutputFile      string           `json:"output_file"`
	OutputBytes     int64            `json:"output_bytes"`
	DurationSeconds float64          `json:"duration_seconds"`
	ImageCount      int              `json:"image_count"`
	VideoCount      int              `json:"video_count"`
	MainAudio       string           `json:"main_audio,omitempty"`
	OverlayUsed     bool             `json:"overlay_used"`
	BgMusicUsed     bool             `json:"bg_music_used"`
	GpuUsed         bool             `json:"gpu_used"`
}

func NewManifest(req Request, res Result, scan model.ScannedProject) Manifest {
	return Manifest{
		SchemaVersion:   ManifestSchemaVersion,
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		Project:         req.ProjectName,
		Preset:          req.Preset.Name,
		Mode:            req.Mode,
		OutputFile:      filepath.Base(res.OutputPath),
		OutputBytes:     res.OutputBytes,
		DurationSeconds: res.DurationSeconds,
		ImageCount:      scan.ImageCount,
		VideoCount:      scan.VideoCount,
		MainAudio:       scan.MainAudio,
		OverlayUsed:     req.OverlayPath != "",
		BgMusicUsed:     req.BgMusicPath != "",
		GpuUsed:         req.UseGPU,
	}
}

// ManifestPath derives the manifest location from the artifact path.
func ManifestPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".manifest.json"
}

// WriteManifest writes the manifest atomically next to the artifact.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}
