package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jwulff/evening/internal/audio"
	"github.com/jwulff/evening/internal/recorder"
)

// Mock is a capture device that needs no microphone. It records a synthetic tone
// as long as the wall time between start and stop.
type Mock struct {
	sampleRate int
	toneHz     float64
	deny       bool
	now        func() time.Time

	mu      sync.Mutex
	started time.Time
	active  bool
}

// NewMock returns a tone device. With deny set, every start is refused as if the
// user had declined microphone access.
func NewMock(sampleRate int, toneHz float64, deny bool) *Mock {
	return &Mock{sampleRate: sampleRate, toneHz: toneHz, deny: deny, now: time.Now}
}

// StartCapture marks the start of the recording.
func (m *Mock) StartCapture(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.deny {
		return fmt.Errorf("%w: mock device configured to deny access", recorder.ErrPermissionDenied)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return fmt.Errorf("%w: mock device already recording", recorder.ErrDeviceUnavailable)
	}
	m.started = m.now()
	m.active = true
	return nil
}

// StopCapture synthesizes the tone for the elapsed time.
func (m *Mock) StopCapture(ctx context.Context) (audio.Clip, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return audio.Clip{}, fmt.Errorf("%w: not recording", recorder.ErrDeviceUnavailable)
	}
	m.active = false
	elapsed := m.now().Sub(m.started)
	m.mu.Unlock()

	n := int(elapsed.Seconds() * float64(m.sampleRate))
	if n < 1 {
		n = 1
	}

	dir, err := os.MkdirTemp("", "evening-mock-")
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "tone.wav")
	if err := audio.WriteWAV(path, audio.Tone(n, m.sampleRate, m.toneHz), m.sampleRate); err != nil {
		return audio.Clip{}, fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	return audio.ReadClip(path)
}
