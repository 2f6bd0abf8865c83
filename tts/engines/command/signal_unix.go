//go:build !windows

package command

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func suspend(p *os.Process) error {
	if err := unix.Kill(p.Pid, unix.SIGSTOP); err != nil {
		return fmt.Errorf("failed to suspend synthesizer: %w", err)
	}
	return nil
}

func resume(p *os.Process) error {
	if err := unix.Kill(p.Pid, unix.SIGCONT); err != nil {
		return fmt.Errorf("failed to resume synthesizer: %w", err)
	}
	return nil
}
