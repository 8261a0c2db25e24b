// Package recorder implements the recording session controller: a small state
// machine (Idle, Recording, Stopped) that drives a capture device and a one-second
// ticker, and publishes snapshots of its state to the UI.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwulff/evening/internal/audio"
)

// Status is the lifecycle state of a recording session.
type Status int

const (
	StatusIdle Status = iota
	StatusRecording
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRecording:
		return "recording"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var (
	// ErrPermissionDenied means the platform refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable means the capture device could not start or stop.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrBusy is returned while a device start or stop is still in flight.
	ErrBusy = errors.New("capture device busy")
	// ErrClosed is returned after the controller has been torn down.
	ErrClosed = errors.New("recorder closed")
)

// CaptureDevice is the microphone collaborator. StartCapture may block while the
// platform asks for permission; StopCapture returns the finished recording.
type CaptureDevice interface {
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) (audio.Clip, error)
}

// FaultNotifier is implemented by devices that can fail while recording, for
// example when the recorder process dies.
type FaultNotifier interface {
	OnFault(func(error))
}

// Snapshot is a copy of the session state at one instant.
type Snapshot struct {
	Status  Status
	Elapsed int
	Clip    *audio.Clip
	Err     error
	// Pending is true while a device start or stop is in flight.
	Pending bool
}

// Time renders Elapsed as m:ss.
func (s Snapshot) Time() string {
	return FormatTime(s.Elapsed)
}

// FormatTime renders whole seconds as minutes, a colon, and two-digit seconds.
// Minutes are not wrapped into hours: 3600 is "60:00".
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
