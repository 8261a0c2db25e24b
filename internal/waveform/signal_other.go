//go:build !unix

package waveform

import (
	"errors"
	"os"
)

// Processes cannot be suspended here, so pausing stops playback.
const canSuspend = false

var errNoSuspend = errors.New("process suspend not supported")

func suspendProcess(*os.Process) error { return errNoSuspend }

func resumeProcess(*os.Process) error { return errNoSuspend }
