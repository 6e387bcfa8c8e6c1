//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// setDetached starts the child in its own session
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
