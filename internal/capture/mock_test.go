package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/config"
	"github.com/jwulff/evening/internal/recorder"
)

func TestMockRecordsWallTime(t *testing.T) {
	m := NewMock(8000, 440, false)
	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	if err := m.StartCapture(ctx); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	now = now.Add(3 * time.Second)
	clip, err := m.StopCapture(ctx)
	if err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
	if clip.Duration != 3*time.Second {
		t.Errorf("duration = %v, want 3s", clip.Duration)
	}
	if clip.SampleRate != 8000 {
		t.Errorf("sampleRate = %d, want 8000", clip.SampleRate)
	}
}

func TestMockDeniesPermission(t *testing.T) {
	m := NewMock(8000, 440, true)
	if err := m.StartCapture(context.Background()); !errors.Is(err, recorder.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestMockDoubleStart(t *testing.T) {
	m := NewMock(8000, 440, false)
	ctx := context.Background()
	if err := m.StartCapture(ctx); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if err := m.StartCapture(ctx); !errors.Is(err, recorder.ErrDeviceUnavailable) {
		t.Fatalf("second start = %v, want ErrDeviceUnavailable", err)
	}
}

func TestMockDrivesController(t *testing.T) {
	ctx := context.Background()
	c := recorder.NewController(NewMock(8000, 440, false), recorder.WithInterval(10*time.Millisecond))
	defer c.Close(ctx)

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	s := c.Snapshot()
	if s.Status != recorder.StatusStopped || s.Clip == nil {
		t.Fatalf("snapshot = %+v, want stopped with clip", s)
	}
	if s.Clip.Duration <= 0 {
		t.Errorf("clip duration = %v, want > 0", s.Clip.Duration)
	}
}

func TestNewSelectsMode(t *testing.T) {
	cfg := config.Default().Capture
	logger := zap.NewNop()

	dev, err := New(cfg, logger)
	if err != nil {
		t.Fatalf("New(mock): %v", err)
	}
	if _, ok := dev.(*Mock); !ok {
		t.Errorf("mock mode gave %T", dev)
	}

	cfg.Mode = "exec"
	cfg.Command = "arecord -q -f S16_LE {output}"
	if dev, err = New(cfg, logger); err != nil {
		t.Fatalf("New(exec): %v", err)
	}
	if _, ok := dev.(*Exec); !ok {
		t.Errorf("exec mode gave %T", dev)
	}

	cfg.Mode = "daemon"
	if dev, err = New(cfg, logger); err != nil {
		t.Fatalf("New(daemon): %v", err)
	}
	if _, ok := dev.(recorder.FaultNotifier); !ok {
		t.Errorf("daemon device should report faults, got %T", dev)
	}

	cfg.Mode = "bluetooth"
	if _, err := New(cfg, logger); err == nil {
		t.Error("expected error for unknown mode")
	}
}
