package preset

import (
	"fmt"
	"sort"
	"strings"

	"videostove/internal/model"
)

var numericRanges = map[string][2]float64{
	"image_duration":     {0.1, 3600},
	"crossfade_duration": {0, 60},
	"main_audio_vol":     {0, 10},
	"bg_vol":             {0, 10},
	"overlay_opacity":    {0, 1},
	"crf":                {0, 51},
}

var choiceFields = map[string]map[string]bool{
	"overlay_mode": {"simple": true, "screen_blend": true},
	"preset": {
		"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
		"fast": true, "medium": true, "slow": true, "slower": true, "veryslow": true,
	},
}

// Validate reports configuration problems without failing: callers
// decide whether issues are fatal.
func Validate(cfg map[string]any) []string {
	var issues []string

	if _, ok := cfg["project_type"]; !ok {
		issues = append(issues, "missing project_type (mode will default to slideshow)")
	} else if pt := strings.ToLower(strings.TrimSpace(str(cfg, "project_type"))); pt != "" {
		if !model.IsKnownMode(DetectModeStrict(pt)) {
			issues = append(issues, fmt.Sprintf("unrecognized project_type %q", pt))
		}
	}

	fields := make([]string, 0, len(numericRanges))
	for field := range numericRanges {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		v, ok := cfg[field]
		if !ok {
			continue
		}
		f, isNum := v.(float64)
		if !isNum {
			issues = append(issues, fmt.Sprintf("%s must be a number", field))
			continue
		}
		bounds := numericRanges[field]
		if f < bounds[0] || f > bounds[1] {
			issues = append(issues, fmt.Sprintf("%s must be between %g and %g", field, bounds[0], bounds[1]))
		}
	}

	choiceNames := make([]string, 0, len(choiceFields))
	for field := range choiceFields {
		choiceNames = append(choiceNames, field)
	}
	sort.Strings(choiceNames)
	for _, field := range choiceNames {
		v, ok := cfg[field]
		if !ok {
			continue
		}
		value := strings.ToLower(fmt.Sprintf("%v", v))
		if !choiceFields[field][value] {
			issues = append(issues, fmt.Sprintf("%s has unsupported value %q", field, value))
		}
	}

	return issues
}

// DetectModeStrict maps a project_type string without the slideshow
// fallback, so validation can distinguish "missing" from "wrong".
func DetectModeStrict(projectType string) model.RenderMode {
	mode := DetectMode(map[string]any{"project_type": projectType})
	if projectType == "" {
		return ""
	}
	canonical := model.RenderMode(projectType)
	if model.IsKnownMode(canonical) {
		return canonical
	}
	for _, substr := range []string{"slide", "photo", "image", "video", "movie", "clip"} {
		if strings.Contains(projectType, substr) {
			return mode
		}
	}
	return ""
}
