// Package rclone wraps the rclone binary as a remote transfer
// capability: copy in either direction, list, and verify. The wrapper
// never retries; retry policy belongs to the caller.
package rclone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// DefaultTransferTimeout bounds a single copy invocation. Transfers
// are resumable, so a timed-out copy can simply be retried.
const DefaultTransferTimeout = 30 * time.Minute

// Client runs rclone subcommands against one configuration file.
type Client struct {
	Binary          string
	ConfigPath      string
	TransferTimeout time.Duration
}

func New(configPath string) Client {
	return Client{Binary: "rclone", ConfigPath: configPath, TransferTimeout: DefaultTransferTimeout}
}

func (c Client) binary() string {
	if strings.TrimSpace(c.Binary) != "" {
		return c.Binary
	}
	return "rclone"
}

func (c Client) run(ctx context.Context, args []string) (string, error) {
	full := args
	if strings.TrimSpace(c.ConfigPath) != "" {
		full = append([]string{"--config", c.ConfigPath}, args...)
	}
	cmd := exec.CommandContext(ctx, c.binary(), full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("rclone %s timed out", args[0])
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", fmt.Errorf("rclone not found: %w", err)
		}
		return "", fmt.Errorf("rclone %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Copy transfers source to dest (either side may be remote). Copies
// are idempotent: rclone skips files already present with matching
// size and modtime, so re-pulling is a safe no-op.
func (c Client) Copy(source, dest string) error {
	timeout := c.TransferTimeout
	if timeout <= 0 {
		timeout = DefaultTransferTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := c.run(ctx, []string{"copy", source, dest, "-q", "--stats-one-line"})
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", source, dest, err)
	}
	return nil
}

// ListDirs lists immediate subdirectory names of a remote path.
func (c Client) ListDirs(remotePath string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := c.run(ctx, []string{"lsf", remotePath, "--dirs-only"})
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasSuffix(line, "/") {
			continue
		}
		dirs = append(dirs, strings.TrimSuffix(line, "/"))
	}
	sort.Strings(dirs)
	return dirs, nil
}

// ListFiles lists file names directly under a remote path.
func (c Client) ListFiles(remotePath string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	out, err := c.run(ctx, []string{"lsf", remotePath, "--files-only"})
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	sort.Strings(files)
	return files, nil
}

// PathExists reports whether a remote path is listable.
func (c Client) PathExists(remotePath string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_, err := c.run(ctx, []string{"lsf", remotePath})
	return err == nil
}

// ListRemotes returns the remote names configured for this client.
func (c Client) ListRemotes() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := c.run(ctx, []string{"listremotes"})
	if err != nil {
		return nil, err
	}
	var remotes []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		remotes = append(remotes, strings.TrimSuffix(line, ":"))
	}
	return remotes, nil
}

// Version returns the installed rclone version, or an error when the
// binary is missing.
func (c Client) Version() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := c.run(ctx, []string{"version", "--check=false"})
	if err != nil {
		return "", err
	}
	first := strings.SplitN(out, "\n", 2)[0]
	if i := strings.Index(first, "rclone v"); i >= 0 {
		fields := strings.Fields(first[i+len("rclone v"):])
		if len(fields) > 0 {
			return fields[0], nil
		}
	}
	return strings.TrimSpace(first), nil
}
