//go:build !linux

package process

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {
	// No portable equivalent outside syscall.SysProcAttr.Setpgid (linux-only field in
	// practice for this build); children remain in this process's group on other OSes.
}

func killProcessGroup(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}

// setAffinity is a no-op outside Linux: CPU pinning is best-effort per the contract.
func setAffinity(pid int, cpus []int) error {
	return nil
}
