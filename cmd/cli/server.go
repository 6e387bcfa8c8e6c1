package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	serverBinary       = "civicomfy-server"
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

// findServerBinary locates the server next to the CLI, on PATH, or in a
// common install location
func findServerBinary() (string, error) {
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), serverBinary)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if p, err := exec.LookPath(serverBinary); err == nil {
		return p, nil
	}

	home, _ := os.UserHomeDir()
	for _, p := range []string{
		filepath.Join("/usr/local/bin", serverBinary),
		filepath.Join(home, "go/bin", serverBinary),
		filepath.Join(home, ".local/bin", serverBinary),
	} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s binary not found", serverBinary)
}

// startServerBackground asks the server binary to daemonize itself. The
// launcher exits once the detached server process has been spawned.
func startServerBackground() error {
	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	out, err := exec.Command(serverPath, "-daemon").CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to start server: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func waitForServerReady(c *apiClient) error {
	deadline := time.Now().Add(serverStartTimeout)
	for time.Now().Before(deadline) {
		if c.Healthy() {
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("server did not start within %v", serverStartTimeout)
}

// ensureServerRunning starts the server when its health check does not answer
func ensureServerRunning(c *apiClient) error {
	if c.Healthy() {
		return nil
	}

	fmt.Println(mutedStyle.Render("Server not running, starting..."))

	if err := startServerBackground(); err != nil {
		return err
	}
	if err := waitForServerReady(c); err != nil {
		return err
	}

	fmt.Println(mutedStyle.Render("Server started"))
	return nil
}
