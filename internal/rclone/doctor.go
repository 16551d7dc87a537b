package rclone

import (
	"os"
	"os/exec"
)

type DoctorReport struct {
	Available    bool     `json:"available"`
	BinaryPath   string   `json:"binary_path,omitempty"`
	Version      string   `json:"version,omitempty"`
	ConfigExists bool     `json:"config_exists"`
	ConfigPath   string   `json:"config_path"`
	Remotes      []string `json:"remotes,omitempty"`
}

// Doctor inspects the rclone installation and configuration without
// touching any remote.
func (c Client) Doctor() DoctorReport {
	report := DoctorReport{ConfigPath: c.ConfigPath}

	if path, err := exec.LookPath(c.binary()); err == nil {
		report.Available = true
		report.BinaryPath = path
		if v, err := c.Version(); err == nil {
			report.Version = v
		}
	}

	if c.ConfigPath != "" {
		if _, err := os.Stat(c.ConfigPath); err == nil {
			report.ConfigExists = true
			if remotes, err := c.ListRemotes(); err == nil {
				report.Remotes = remotes
			}
		}
	}
	return report
}
