package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/audio"
	"github.com/jwulff/evening/internal/recorder"
	"github.com/jwulff/evening/internal/waveform"

	tea "github.com/charmbracelet/bubbletea"
)

// Screen is the page being shown.
type Screen int

const (
	ScreenHome Screen = iota
	ScreenRecorder
)

// Options configure the Model.
type Options struct {
	RecordingsDir string
	Preview       waveform.Options
	PreviewHeight int
	Logger        *zap.Logger
}

// Model is the root bubbletea model. It never changes the recording session
// itself: it asks the controller and mirrors the snapshots it publishes.
type Model struct {
	ctrl    *recorder.Controller
	session recorder.Snapshot

	// Preview
	preview       *waveform.Preview
	previewErr    string
	previewOpts   waveform.Options
	previewHeight int
	attaching     string
	previews      *previewSet

	// Saving
	recordingsDir string
	savedPath     string

	// UI state
	screen Screen
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string

	logger *zap.Logger
}

// New creates a Model on the home screen.
func New(ctrl *recorder.Controller, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PreviewHeight < 1 {
		opts.PreviewHeight = 4
	}
	return Model{
		ctrl:          ctrl,
		previewOpts:   opts.Preview,
		previewHeight: opts.PreviewHeight,
		previews:      newPreviewSet(),
		recordingsDir: opts.RecordingsDir,
		screen:        ScreenHome,
		statusText:    "Ready",
		logger:        logger,
	}
}

// Init starts listening for session snapshots.
func (m Model) Init() tea.Cmd {
	return m.listen()
}

// listen reads the next snapshot from the controller.
func (m Model) listen() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	updates := m.ctrl.Updates()
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return UpdatesClosedMsg{}
		}
		return SnapshotMsg{Snapshot: s}
	}
}

// startCmd asks the controller to start recording.
func startCmd(ctrl *recorder.Controller) tea.Cmd {
	return func() tea.Msg {
		return StartResultMsg{Err: ctrl.Start(context.Background())}
	}
}

// stopCmd asks the controller to stop recording.
func stopCmd(ctrl *recorder.Controller) tea.Cmd {
	return func() tea.Msg {
		return StopResultMsg{Err: ctrl.Stop(context.Background())}
	}
}

// attachCmd builds the waveform preview off the UI loop. A preview finished
// after the model was closed is released on the spot.
func attachCmd(clip audio.Clip, surface waveform.Surface, opts waveform.Options, previews *previewSet) tea.Cmd {
	return func() tea.Msg {
		p, err := waveform.Attach(surface, clip, opts)
		if err == nil && !previews.add(p) {
			p.Release()
			return PreviewAttachedMsg{ClipID: clip.ID, Err: waveform.ErrReleased}
		}
		return PreviewAttachedMsg{ClipID: clip.ID, Preview: p, Err: err}
	}
}

// saveCmd writes the clip into dir.
func saveCmd(clip audio.Clip, dir string) tea.Cmd {
	return func() tea.Msg {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return SavedMsg{Err: fmt.Errorf("create recordings dir: %w", err)}
		}
		name := "evening-" + clip.CapturedAt.Format("20060102-150405") + ".wav"
		path := filepath.Join(dir, name)
		if err := clip.WriteFile(path); err != nil {
			return SavedMsg{Err: err}
		}
		return SavedMsg{Path: path}
	}
}

// playbackTickCmd schedules a redraw of the playback position.
func playbackTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return PlaybackTickMsg{}
	})
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// teardownCmd closes the controller, then quits.
func teardownCmd(ctrl *recorder.Controller) tea.Cmd {
	return func() tea.Msg {
		if ctrl != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ctrl.Close(ctx)
		}
		return tea.Quit()
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.preview != nil {
			m.preview.Resize(m.surface())
		}
		return m, nil

	case SnapshotMsg:
		m.session = msg.Snapshot
		if err := msg.Snapshot.Err; err != nil {
			m.errorMessage = describeErr(err)
			m.errorTransient = false
		} else if !m.errorTransient {
			m.errorMessage = ""
		}
		switch msg.Snapshot.Status {
		case recorder.StatusRecording:
			m.statusText = "Recording"
			m.savedPath = ""
		case recorder.StatusStopped:
			m.statusText = "Stopped"
		default:
			m.statusText = "Ready"
		}
		attach := m.syncPreview()
		return m, tea.Batch(m.listen(), attach)

	case UpdatesClosedMsg:
		return m, nil

	case StartResultMsg:
		return m.handleResult(msg.Err)

	case StopResultMsg:
		return m.handleResult(msg.Err)

	case PreviewAttachedMsg:
		return m.handleAttached(msg)

	case PlaybackTickMsg:
		if m.preview != nil && m.preview.Playing() {
			return m, playbackTickCmd()
		}
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			m.errorMessage = "Save failed: " + msg.Err.Error()
			m.errorTransient = true
			return m, clearTransientErrorCmd()
		}
		m.savedPath = msg.Path
		m.statusText = "Saved"
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// syncPreview keeps the preview bound to the session's clip: one attach per
// distinct clip, and release as soon as the clip goes away.
func (m *Model) syncPreview() tea.Cmd {
	clip := m.session.Clip
	if clip == nil {
		m.releasePreview()
		m.attaching = ""
		m.previewErr = ""
		return nil
	}
	if m.preview != nil && m.preview.ClipID() == clip.ID {
		return nil
	}
	if m.attaching == clip.ID {
		return nil
	}
	m.releasePreview()
	m.previewErr = ""
	// A start from Stopped still reports the old clip until the device answers.
	if m.session.Pending {
		return nil
	}
	m.attaching = clip.ID
	return attachCmd(*clip, m.surface(), m.previewOpts, m.previews)
}

func (m Model) handleAttached(msg PreviewAttachedMsg) (tea.Model, tea.Cmd) {
	current := m.session.Clip != nil && m.session.Clip.ID == msg.ClipID && m.attaching == msg.ClipID
	if !current {
		m.previews.release(msg.Preview)
		return m, nil
	}
	m.attaching = ""
	if msg.Err != nil {
		m.logger.Warn("preview attach failed", zap.String("clip", msg.ClipID), zap.Error(msg.Err))
		m.previewErr = msg.Err.Error()
		return m, nil
	}
	m.preview = msg.Preview
	// Size may have changed while decoding.
	m.preview.Resize(m.surface())
	return m, nil
}

func (m Model) handleResult(err error) (tea.Model, tea.Cmd) {
	if err == nil {
		return m, nil
	}
	switch {
	case errors.Is(err, recorder.ErrBusy):
		m.errorMessage = "Microphone is busy, try again"
		m.errorTransient = true
		return m, clearTransientErrorCmd()
	case errors.Is(err, recorder.ErrClosed):
		return m, nil
	}
	m.errorMessage = describeErr(err)
	m.errorTransient = false
	return m, nil
}

func (m *Model) releasePreview() {
	if m.preview != nil {
		m.previews.release(m.preview)
		m.preview = nil
	}
}

// Close releases every preview the model built or is still building. It is
// safe to call more than once.
func (m Model) Close() {
	m.previews.close()
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.releasePreview()
		m.attaching = ""
		m.previews.close()
		return m, teardownCmd(m.ctrl)
	}

	if m.screen == ScreenHome {
		if msg.String() == KeyEnter || msg.String() == KeySpace {
			m.screen = ScreenRecorder
		}
		return m, nil
	}

	switch msg.String() {
	case KeySpace:
		if m.ctrl == nil || m.session.Pending {
			return m, nil
		}
		if m.session.Status == recorder.StatusRecording {
			return m, stopCmd(m.ctrl)
		}
		m.releasePreview()
		m.attaching = ""
		return m, startCmd(m.ctrl)

	case KeyPlay, KeyEnter:
		if m.preview == nil {
			return m, nil
		}
		if err := m.preview.TogglePlayback(); err != nil {
			m.errorMessage = describeErr(err)
			m.errorTransient = true
			return m, clearTransientErrorCmd()
		}
		if m.preview.Playing() {
			return m, playbackTickCmd()
		}
		return m, nil

	case KeyRerecord:
		if m.ctrl != nil && m.ctrl.Discard() {
			m.releasePreview()
			m.savedPath = ""
		}
		return m, nil

	case KeySave:
		if m.session.Status != recorder.StatusStopped || m.session.Clip == nil {
			return m, nil
		}
		return m, saveCmd(*m.session.Clip, m.recordingsDir)

	case KeyBack, KeyEsc:
		if m.session.Status == recorder.StatusRecording || m.session.Pending {
			return m, nil
		}
		m.screen = ScreenHome
		return m, nil
	}

	return m, nil
}

func (m Model) surface() waveform.Surface {
	w := m.width - 4
	if w > 96 {
		w = 96
	}
	if w < 8 {
		w = 8
	}
	return waveform.Surface{Width: w, Height: m.previewHeight}
}

func describeErr(err error) string {
	switch {
	case errors.Is(err, recorder.ErrPermissionDenied):
		return "Microphone permission denied"
	case errors.Is(err, waveform.ErrNoPlayer):
		return "No audio player configured (preview.player)"
	default:
		return err.Error()
	}
}
