// Package preset resolves and validates rendering presets.
//
// Presets are JSON files in one of three shapes: an export wrapper
// ({"preset": {name: {...}}}), a map of named profiles, or a single
// flat configuration. A reference of the form "name:profile" selects
// one profile from a multi-profile file.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"videostove/internal/model"
)

// Keys that mark a flat JSON object as a render configuration rather
// than a profile collection.
var configKeys = map[string]bool{
	"project_type":         true,
	"image_duration":       true,
	"main_audio_vol":       true,
	"bg_vol":               true,
	"crossfade_duration":   true,
	"use_crossfade":        true,
	"use_overlay":          true,
	"use_bg_music":         true,
	"use_gpu":              true,
	"overlay_opacity":      true,
	"overlay_mode":         true,
	"crf":                  true,
	"preset":               true,
	"animation_style":      true,
	"loop_videos":          true,
	"videos_as_intro_only": true,
}

type Ref struct {
	Name    string
	Profile string
}

// ParseRef splits an optional ":profile" suffix off a preset
// reference. Paths that exist on disk are never split.
func ParseRef(raw string) Ref {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}
	}
	if _, err := os.Stat(raw); err == nil {
		return Ref{Name: raw}
	}
	if i := strings.LastIndex(raw, ":"); i > 0 {
		return Ref{Name: raw[:i], Profile: raw[i+1:]}
	}
	return Ref{Name: raw}
}

func loadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", path, err)
	}
	return raw, nil
}

// Profiles extracts the named profile map from raw preset data,
// handling all three accepted file shapes.
func Profiles(raw map[string]any) (map[string]map[string]any, error) {
	// Export wrapper.
	if inner, ok := raw["preset"].(map[string]any); ok {
		profiles := make(map[string]map[string]any, len(inner))
		for name, v := range inner {
			cfg, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("preset profile %q is not an object", name)
			}
			profiles[name] = cfg
		}
		if len(profiles) > 0 {
			return profiles, nil
		}
	}

	// Flat single configuration.
	for key := range raw {
		if configKeys[key] {
			return map[string]map[string]any{"default": raw}, nil
		}
	}

	// Map of named profiles.
	profiles := make(map[string]map[string]any)
	for name, v := range raw {
		if strings.HasPrefix(name, "metadata") {
			continue
		}
		cfg, ok := v.(map[string]any)
		if !ok {
			continue
		}
		profiles[name] = cfg
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no preset profiles found")
	}
	return profiles, nil
}

func selectProfile(profiles map[string]map[string]any, profile string) (map[string]any, error) {
	if profile != "" {
		cfg, ok := profiles[profile]
		if !ok {
			return nil, fmt.Errorf("profile %q not found (available: %s)", profile, strings.Join(profileNames(profiles), ", "))
		}
		return cfg, nil
	}
	if len(profiles) == 1 {
		for _, cfg := range profiles {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("preset has multiple profiles, specify one of: %s", strings.Join(profileNames(profiles), ", "))
}

func profileNames(profiles map[string]map[string]any) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads one preset configuration from a file, selecting a
// profile when the file holds several.
func Load(path, profile string) (model.Preset, error) {
	raw, err := loadFile(path)
	if err != nil {
		return model.Preset{}, err
	}
	profiles, err := Profiles(raw)
	if err != nil {
		return model.Preset{}, fmt.Errorf("preset %s: %w", path, err)
	}
	cfg, err := selectProfile(profiles, profile)
	if err != nil {
		return model.Preset{}, fmt.Errorf("preset %s: %w", path, err)
	}

	p := fromConfig(cfg)
	p.Path = path
	p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if profile != "" {
		p.Name = p.Name + ":" + profile
	}
	return p, nil
}

// Resolve locates a preset by explicit path or by name across the
// search tiers, earlier tiers winning. Named lookups try the bare
// name first, then name+".json".
func Resolve(reference string, searchPaths []string) (model.Preset, error) {
	ref := ParseRef(reference)
	if ref.Name == "" {
		return model.Preset{}, fmt.Errorf("preset reference is empty")
	}

	if filepath.IsAbs(ref.Name) || fileExists(ref.Name) {
		return Load(ref.Name, ref.Profile)
	}

	for _, dir := range searchPaths {
		for _, candidate := range []string{ref.Name, ref.Name + ".json"} {
			path := filepath.Join(dir, candidate)
			if fileExists(path) {
				return Load(path, ref.Profile)
			}
		}
	}
	return model.Preset{}, fmt.Errorf("preset not found: %s (searched %s)", reference, strings.Join(searchPaths, ", "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func fromConfig(cfg map[string]any) model.Preset {
	p := model.Preset{
		Mode:              DetectMode(cfg),
		ImageDuration:     num(cfg, "image_duration"),
		UseCrossfade:      boolean(cfg, "use_crossfade"),
		CrossfadeDuration: num(cfg, "crossfade_duration"),
		MainAudioVol:      num(cfg, "main_audio_vol"),
		BgVol:             num(cfg, "bg_vol"),
		UseOverlay:        boolean(cfg, "use_overlay"),
		OverlayMode:       str(cfg, "overlay_mode"),
		OverlayOpacity:    num(cfg, "overlay_opacity"),
		UseBgMusic:        boolean(cfg, "use_bg_music"),
		UseGPU:            boolean(cfg, "use_gpu"),
		CRF:               int(num(cfg, "crf")),
		EncoderPreset:     str(cfg, "preset"),
		AnimationStyle:    str(cfg, "animation_style"),
		Raw:               cfg,
	}
	return p
}

// DetectMode reads the render mode from a configuration, mapping
// loose project_type spellings onto the canonical modes. A missing or
// unrecognized project_type falls back to slideshow.
func DetectMode(cfg map[string]any) model.RenderMode {
	projectType := strings.ToLower(strings.TrimSpace(str(cfg, "project_type")))
	if model.IsKnownMode(model.RenderMode(projectType)) {
		return model.RenderMode(projectType)
	}

	aliases := []struct {
		substr string
		mode   model.RenderMode
	}{
		{"slide", model.ModeSlideshow},
		{"photo", model.ModeSlideshow},
		{"image", model.ModeSlideshow},
		{"videos", model.ModeVideosOnly},
		{"video", model.ModeMontage},
		{"movie", model.ModeMontage},
		{"clip", model.ModeMontage},
	}
	for _, a := range aliases {
		if strings.Contains(projectType, a.substr) {
			return a.mode
		}
	}
	return model.ModeSlideshow
}

func str(cfg map[string]any, key string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

func num(cfg map[string]any, key string) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

func boolean(cfg map[string]any, key string) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return false
}
