// Package job parses declarative batch job documents.
//
// A job document is YAML (JSON is valid YAML) with a single `batch`
// mapping: an optional preset/overlay/font/bg-music reference, an
// optional render mode, and a required, ordered, uniquely named
// project list.
package job

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"videostove/internal/model"
)

type document struct {
	Batch batchSection `yaml:"batch"`
}

type batchSection struct {
	PresetFile   string         `yaml:"preset_file"`
	Mode         string         `yaml:"mode"`
	OverlayVideo string         `yaml:"overlay_video"`
	FontFile     string         `yaml:"font_file"`
	BgMusic      string         `yaml:"bg_music"`
	Projects     []projectEntry `yaml:"projects"`
}

type projectEntry struct {
	Name   string `yaml:"name"`
	Output string `yaml:"output"`
}

// Parse decodes a job document and validates its shape. The returned
// Job is complete and immutable from the caller's point of view.
func Parse(data []byte) (model.Job, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.Job{}, fmt.Errorf("job document is empty")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.Job{}, fmt.Errorf("decode job document: %w", err)
	}
	if len(doc.Batch.Projects) == 0 {
		return model.Job{}, fmt.Errorf("job document has no batch.projects entries")
	}

	mode := model.RenderMode(strings.ToLower(strings.TrimSpace(doc.Batch.Mode)))
	if mode != "" && !model.IsKnownMode(mode) {
		return model.Job{}, fmt.Errorf("batch.mode: unknown render mode %q", doc.Batch.Mode)
	}

	j := model.Job{
		PresetRef:  strings.TrimSpace(doc.Batch.PresetFile),
		Mode:       mode,
		OverlayRef: strings.TrimSpace(doc.Batch.OverlayVideo),
		FontRef:    strings.TrimSpace(doc.Batch.FontFile),
		BgMusicRef: strings.TrimSpace(doc.Batch.BgMusic),
	}

	seen := make(map[string]bool, len(doc.Batch.Projects))
	for i, p := range doc.Batch.Projects {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return model.Job{}, fmt.Errorf("batch.projects[%d]: name is required", i)
		}
		if seen[name] {
			return model.Job{}, fmt.Errorf("batch.projects: duplicate project name %q", name)
		}
		seen[name] = true
		output := strings.TrimSpace(p.Output)
		if output == "" {
			output = "outputs/" + name
		}
		j.Projects = append(j.Projects, model.ProjectRef{Name: name, OutputTarget: output})
	}
	return j, nil
}

// Save writes a job document back to disk in the canonical YAML
// shape, creating parent directories as needed.
func Save(path string, j model.Job) error {
	doc := document{
		Batch: batchSection{
			PresetFile:   j.PresetRef,
			Mode:         string(j.Mode),
			OverlayVideo: j.OverlayRef,
			FontFile:     j.FontRef,
			BgMusic:      j.BgMusicRef,
		},
	}
	for _, p := range j.Projects {
		doc.Batch.Projects = append(doc.Batch.Projects, projectEntry{Name: p.Name, Output: p.OutputTarget})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode job document: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create job directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write job document %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a job document from disk.
func Load(path string) (model.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Job{}, fmt.Errorf("read job document %s: %w", path, err)
	}
	j, err := Parse(data)
	if err != nil {
		return model.Job{}, fmt.Errorf("job document %s: %w", path, err)
	}
	return j, nil
}
