//go:build windows

package command

import (
	"os"

	"github.com/dgnsrekt/lector/tts"
)

func suspend(*os.Process) error {
	return tts.ErrPauseUnsupported
}

func resume(*os.Process) error {
	return tts.ErrPauseUnsupported
}
