// Package media scans project directories and classifies them against
// a render mode.
package media

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"videostove/internal/model"
)

var imageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

var videoExt = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true,
	".avi": true, ".m4v": true, ".wmv": true, ".flv": true,
}

var audioExt = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".aac": true,
}

// Directories whose contents never count as project media.
var skipDirs = map[string]bool{
	"assets": true, "out": true, "outputs": true,
	".git": true, ".vscode": true,
}

// IsSkippedDir reports whether a directory name is excluded from
// media scans.
func IsSkippedDir(name string) bool {
	return skipDirs[name]
}

// Scan walks a project directory and counts media by extension. The
// result is transient: the remote copy stays authoritative.
func Scan(projectDir string) model.ScannedProject {
	scan := model.ScannedProject{Name: filepath.Base(projectDir)}

	var audio []string
	err := filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != projectDir && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		switch {
		case imageExt[ext]:
			scan.ImageCount++
		case videoExt[ext]:
			scan.VideoCount++
		case audioExt[ext]:
			scan.AudioCount++
			audio = append(audio, path)
		default:
			return nil
		}
		if info, err := d.Info(); err == nil {
			scan.TotalBytes += info.Size()
		}
		return nil
	})
	if err != nil {
		scan.ScanErr = err.Error()
		return scan
	}

	scan.MainAudio = selectMainAudio(audio)
	return scan
}

// selectMainAudio prefers a file with "main" in its basename, falling
// back to the first file in sorted order.
func selectMainAudio(audio []string) string {
	if len(audio) == 0 {
		return ""
	}
	sort.Strings(audio)
	for _, path := range audio {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if strings.Contains(strings.ToLower(stem), "main") {
			return path
		}
	}
	return audio[0]
}
