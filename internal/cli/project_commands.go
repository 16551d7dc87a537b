package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"videostove/internal/batch"
	"videostove/internal/media"
	"videostove/internal/model"
	"videostove/internal/rclone"
)

type scanRow struct {
	Name      string                 `json:"name"`
	Images    int                    `json:"images"`
	Videos    int                    `json:"videos"`
	Audio     int                    `json:"audio"`
	MainAudio string                 `json:"main_audio,omitempty"`
	Bytes     int64                  `json:"total_bytes"`
	Mode      model.RenderMode       `json:"mode"`
	State     model.EligibilityState `json:"state"`
	Reason    string                 `json:"reason,omitempty"`
	ScanError string                 `json:"scan_error,omitempty"`
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	root := fs.String("root", ".", "directory holding project directories")
	mode := fs.String("mode", "", "classify against this mode instead of inferring per project")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	var fixedMode model.RenderMode
	if strings.TrimSpace(*mode) != "" {
		canonical, err := normalizeMode(*mode)
		if err != nil {
			return err
		}
		fixedMode = canonical
	}

	names, err := projectDirNames(*root)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no project directories found under %s", *root)
	}

	rows := make([]scanRow, 0, len(names))
	for _, name := range names {
		scan := media.Scan(filepath.Join(*root, name))
		rowMode := fixedMode
		if rowMode == "" {
			rowMode = media.InferMode(scan)
		}
		eligibility := media.Classify(scan, rowMode)
		rows = append(rows, scanRow{
			Name:      name,
			Images:    scan.ImageCount,
			Videos:    scan.VideoCount,
			Audio:     scan.AudioCount,
			MainAudio: scan.MainAudio,
			Bytes:     scan.TotalBytes,
			Mode:      rowMode,
			State:     eligibility.State,
			Reason:    eligibility.Reason,
			ScanError: scan.ScanErr,
		})
	}

	if *jsonOut {
		return printJSON(rows)
	}
	for _, r := range rows {
		line := fmt.Sprintf("%-24s %-12s %-10s img:%d vid:%d aud:%d %s",
			r.Name, r.Mode, r.State, r.Images, r.Videos, r.Audio, formatBytesIEC(r.Bytes))
		if r.Reason != "" {
			line += "  " + r.Reason
		}
		fmt.Println(line)
	}
	return nil
}

// projectDirNames lists subdirectories of root that look like project
// directories, using the same skip list as the media scanner.
func projectDirNames(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if media.IsSkippedDir(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func runPull(args []string) error {
	fs := flag.NewFlagSet("pull", flag.ContinueOnError)
	remote := fs.String("remote", envDefault("REMOTE_BASE", ""), "remote base (env REMOTE_BASE)")
	projects := fs.String("projects", "all", "comma-separated project names, or \"all\"")
	sharedOnly := fs.Bool("shared-only", false, "pull only the shared assets tree")
	dest := fs.String("dest", "work", "local destination directory")
	rcloneConfig := fs.String("rclone-config", "", "rclone configuration path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*remote) == "" {
		fs.Usage()
		return errors.New("--remote is required (or set REMOTE_BASE)")
	}

	client := rclone.New(strings.TrimSpace(*rcloneConfig))
	if err := client.VerifyRemote(*remote); err != nil {
		return &batch.RemoteVerificationError{Remote: *remote, Err: err}
	}

	type pulled struct {
		Name string `json:"name"`
		Dest string `json:"dest"`
	}
	var results []pulled

	assetsDest := filepath.Join(*dest, rclone.AssetsDir)
	if err := client.Copy(rclone.AssetsPath(*remote), assetsDest); err != nil {
		return err
	}
	results = append(results, pulled{Name: rclone.AssetsDir, Dest: assetsDest})

	if !*sharedOnly {
		var names []string
		if strings.EqualFold(strings.TrimSpace(*projects), "all") {
			listed, err := client.ListProjects(*remote)
			if err != nil {
				return err
			}
			names = listed
		} else {
			for _, n := range strings.Split(*projects, ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
		}
		for _, name := range names {
			projectDest := filepath.Join(*dest, "projects", name)
			if err := client.Copy(rclone.ProjectPath(*remote, name), projectDest); err != nil {
				return err
			}
			results = append(results, pulled{Name: name, Dest: projectDest})
		}
	}

	if *jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		fmt.Printf("pulled %s -> %s\n", r.Name, r.Dest)
	}
	return nil
}

func runPush(args []string) error {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	remote := fs.String("remote", envDefault("REMOTE_BASE", ""), "remote base (env REMOTE_BASE)")
	source := fs.String("source", filepath.Join("work", "out"), "local directory holding rendered outputs")
	project := fs.String("project", "", "push a single project instead of everything")
	rcloneConfig := fs.String("rclone-config", "", "rclone configuration path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*remote) == "" {
		fs.Usage()
		return errors.New("--remote is required (or set REMOTE_BASE)")
	}

	var names []string
	if strings.TrimSpace(*project) != "" {
		names = []string{strings.TrimSpace(*project)}
	} else {
		listed, err := projectDirNames(*source)
		if err != nil {
			return err
		}
		names = listed
	}
	if len(names) == 0 {
		return fmt.Errorf("nothing to push under %s", *source)
	}

	client := rclone.New(strings.TrimSpace(*rcloneConfig))
	if err := client.VerifyRemote(*remote); err != nil {
		return &batch.RemoteVerificationError{Remote: *remote, Err: err}
	}

	type pushed struct {
		Name string `json:"name"`
		Dest string `json:"dest"`
	}
	var results []pushed
	for _, name := range names {
		dest := rclone.OutputsPath(*remote, name)
		if err := client.Copy(filepath.Join(*source, name), dest); err != nil {
			return err
		}
		results = append(results, pushed{Name: name, Dest: dest})
	}

	if *jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		fmt.Printf("pushed %s -> %s\n", r.Name, r.Dest)
	}
	return nil
}
