//go:build windows

package sdr

import "os"

// killProcessGroup terminates the process pid
func killProcessGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
