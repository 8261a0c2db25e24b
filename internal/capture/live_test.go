package capture

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jwulff/evening/internal/config"
)

// TestLiveDaemonRecording records two seconds through a running capture daemon.
// Skipped if the daemon socket doesn't exist.
func TestLiveDaemonRecording(t *testing.T) {
	sockPath := config.Default().Capture.Socket
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("capture daemon not running (no socket at", sockPath, ")")
	}

	dev := NewDaemon(sockPath, 16000, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := dev.StartCapture(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(2 * time.Second)

	clip, err := dev.StopCapture(ctx)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	fmt.Printf("Recorded %s: %v at %d Hz, %d bytes\n", clip.ID, clip.Duration, clip.SampleRate, len(clip.Data))
	if clip.Duration < time.Second {
		t.Errorf("duration = %v, want about 2s", clip.Duration)
	}
}
