package rclone

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SetupConfig carries the credential material for headless config
// creation. Values are read from the environment once at startup by
// the CLI layer; this package never consults the environment itself.
type SetupConfig struct {
	ConfigPath         string
	ConfigBase64       string
	ServiceAccountJSON string
	RemoteName         string
}

type SetupResult struct {
	ConfigPath string `json:"config_path"`
	Created    bool   `json:"created"`
	Source     string `json:"source,omitempty"` // base64 | service_account | existing
}

// MaterializeConfig writes an rclone configuration file from the
// provided credential material. A full base64-encoded config wins
// over the service-account pair. When neither is set, an existing
// config file on disk is accepted as-is.
func MaterializeConfig(cfg SetupConfig) (SetupResult, error) {
	configPath := strings.TrimSpace(cfg.ConfigPath)
	if configPath == "" {
		return SetupResult{}, fmt.Errorf("rclone config path is required")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return SetupResult{}, fmt.Errorf("create config directory: %w", err)
	}

	if strings.TrimSpace(cfg.ConfigBase64) != "" {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.ConfigBase64))
		if err != nil {
			return SetupResult{}, fmt.Errorf("decode rclone config blob: %w", err)
		}
		if err := os.WriteFile(configPath, data, 0o600); err != nil {
			return SetupResult{}, fmt.Errorf("write rclone config %s: %w", configPath, err)
		}
		return SetupResult{ConfigPath: configPath, Created: true, Source: "base64"}, nil
	}

	if strings.TrimSpace(cfg.ServiceAccountJSON) != "" {
		if strings.TrimSpace(cfg.RemoteName) == "" {
			return SetupResult{}, fmt.Errorf("remote name is required with a service account")
		}
		if !json.Valid([]byte(cfg.ServiceAccountJSON)) {
			return SetupResult{}, fmt.Errorf("service account credential is not valid JSON")
		}
		saPath := filepath.Join(filepath.Dir(configPath), "service-account.json")
		if err := os.WriteFile(saPath, []byte(cfg.ServiceAccountJSON), 0o600); err != nil {
			return SetupResult{}, fmt.Errorf("write service account file: %w", err)
		}
		content := fmt.Sprintf("[%s]\ntype = drive\nservice_account_file = %s\nroot_folder_id = \n", cfg.RemoteName, saPath)
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			return SetupResult{}, fmt.Errorf("write rclone config %s: %w", configPath, err)
		}
		return SetupResult{ConfigPath: configPath, Created: true, Source: "service_account"}, nil
	}

	if _, err := os.Stat(configPath); err == nil {
		return SetupResult{ConfigPath: configPath, Created: false, Source: "existing"}, nil
	}
	return SetupResult{}, fmt.Errorf("no rclone credentials provided and no config at %s", configPath)
}
