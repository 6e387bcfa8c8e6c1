//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// setDetached starts the child in a new process group
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
