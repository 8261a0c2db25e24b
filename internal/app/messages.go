package app

import (
	"github.com/jwulff/evening/internal/recorder"
	"github.com/jwulff/evening/internal/waveform"
)

// SnapshotMsg carries the latest recording session state.
type SnapshotMsg struct {
	Snapshot recorder.Snapshot
}

// UpdatesClosedMsg is sent once the controller has been torn down.
type UpdatesClosedMsg struct{}

// StartResultMsg carries the outcome of a start request.
type StartResultMsg struct {
	Err error
}

// StopResultMsg carries the outcome of a stop request.
type StopResultMsg struct {
	Err error
}

// PreviewAttachedMsg carries a preview built for a clip, or why it failed.
type PreviewAttachedMsg struct {
	ClipID  string
	Preview *waveform.Preview
	Err     error
}

// PlaybackTickMsg redraws the playback position.
type PlaybackTickMsg struct{}

// SavedMsg reports where a take was written.
type SavedMsg struct {
	Path string
	Err  error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
