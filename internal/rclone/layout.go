package rclone

import "strings"

// Fixed namespace the orchestrator assumes on the remote:
// assets/{presets,overlays,fonts,bgmusic}/, one directory per
// project, and outputs/<project>/ for published renders.
const (
	AssetsDir  = "assets"
	OutputsDir = "outputs"
	JobsDir    = "jobs"
)

func joinRemote(base string, parts ...string) string {
	segments := append([]string{strings.TrimSuffix(base, "/")}, parts...)
	return strings.Join(segments, "/")
}

func AssetsPath(remoteBase string) string {
	return joinRemote(remoteBase, AssetsDir)
}

func ProjectPath(remoteBase, name string) string {
	return joinRemote(remoteBase, name)
}

func OutputsPath(remoteBase, name string) string {
	return joinRemote(remoteBase, OutputsDir, name)
}

// TargetPath joins a job-declared output target onto the remote base.
func TargetPath(remoteBase, target string) string {
	return joinRemote(remoteBase, strings.Trim(target, "/"))
}

func AssetKindPath(remoteBase, kind string) string {
	return joinRemote(remoteBase, AssetsDir, kind)
}

// ListProjects lists project directories on the remote, excluding the
// reserved namespaces.
func (c Client) ListProjects(remoteBase string) ([]string, error) {
	dirs, err := c.ListDirs(remoteBase)
	if err != nil {
		return nil, err
	}
	reserved := map[string]bool{AssetsDir: true, OutputsDir: true, JobsDir: true}
	projects := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if reserved[d] {
			continue
		}
		projects = append(projects, d)
	}
	return projects, nil
}

// VerifyRemote reports whether the remote base path is reachable and
// listable with the current configuration.
func (c Client) VerifyRemote(remoteBase string) error {
	_, err := c.ListDirs(remoteBase)
	return err
}
