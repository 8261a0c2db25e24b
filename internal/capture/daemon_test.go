package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jwulff/evening/internal/audio"
	"github.com/jwulff/evening/internal/recorder"
)

// fakeCaptureDaemon serves every connection, answers commands with handle, and
// can push events to subscribed connections.
type fakeCaptureDaemon struct {
	t      *testing.T
	sock   string
	handle func(Command) Response

	mu   sync.Mutex
	subs []net.Conn
	cmds []string
}

func startFakeCaptureDaemon(t *testing.T, handle func(Command) Response) *fakeCaptureDaemon {
	t.Helper()
	d := &fakeCaptureDaemon{t: t, sock: filepath.Join(t.TempDir(), "capture.sock"), handle: handle}
	ln, err := net.Listen("unix", d.sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go d.serve(conn)
		}
	}()
	return d
}

func (d *fakeCaptureDaemon) serve(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			return
		}
		d.mu.Lock()
		d.cmds = append(d.cmds, cmd.Cmd)
		d.mu.Unlock()

		resp := Response{OK: true}
		if cmd.Cmd == "subscribe" {
			d.mu.Lock()
			d.subs = append(d.subs, conn)
			d.mu.Unlock()
		} else {
			resp = d.handle(cmd)
		}
		data, _ := json.Marshal(resp)
		conn.Write(append(data, '\n'))
	}
}

func (d *fakeCaptureDaemon) push(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, _ := json.Marshal(ev)
	for _, c := range d.subs {
		c.Write(append(data, '\n'))
	}
}

func (d *fakeCaptureDaemon) subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func writeFixtureWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daemon.wav")
	if err := audio.WriteWAV(path, audio.Tone(8000, 8000, 330), 8000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	return path
}

func TestDaemonStartStop(t *testing.T) {
	wavPath := writeFixtureWAV(t)
	d := startFakeCaptureDaemon(t, func(cmd Command) Response {
		switch cmd.Cmd {
		case "start":
			return Response{OK: true, SessionID: "s-1"}
		case "stop":
			if cmd.SessionID != "s-1" {
				return Response{OK: false, Error: "unknown session"}
			}
			return Response{OK: true, Path: wavPath}
		}
		return Response{OK: false, Error: "unknown command"}
	})

	dev := NewDaemon(d.sock, 8000, nil)
	ctx := context.Background()
	if err := dev.StartCapture(ctx); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	clip, err := dev.StopCapture(ctx)
	if err != nil {
		t.Fatalf("StopCapture: %v", err)
	}
	if clip.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", clip.Duration)
	}
	if _, err := os.Stat(wavPath); !os.IsNotExist(err) {
		t.Error("daemon recording should be removed once loaded")
	}
}

func TestDaemonPermissionDenied(t *testing.T) {
	d := startFakeCaptureDaemon(t, func(cmd Command) Response {
		return Response{OK: false, Error: "microphone access denied", Code: CodePermissionDenied}
	})

	err := NewDaemon(d.sock, 16000, nil).StartCapture(context.Background())
	if !errors.Is(err, recorder.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestDaemonOtherErrorIsUnavailable(t *testing.T) {
	d := startFakeCaptureDaemon(t, func(cmd Command) Response {
		return Response{OK: false, Error: "no input devices", Code: CodeNoDevice}
	})

	err := NewDaemon(d.sock, 16000, nil).StartCapture(context.Background())
	if !errors.Is(err, recorder.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestDaemonNotRunning(t *testing.T) {
	dev := NewDaemon(filepath.Join(t.TempDir(), "missing.sock"), 16000, nil)
	if err := dev.StartCapture(context.Background()); !errors.Is(err, recorder.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestDaemonErrorEventFaults(t *testing.T) {
	d := startFakeCaptureDaemon(t, func(cmd Command) Response {
		return Response{OK: true, SessionID: "s-9"}
	})

	dev := NewDaemon(d.sock, 16000, nil)
	faults := make(chan error, 1)
	dev.OnFault(func(err error) { faults <- err })

	if err := dev.StartCapture(context.Background()); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for d.subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("device never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	d.push(Event{Event: "error", SessionID: "s-9", Message: "input device removed"})

	select {
	case err := <-faults:
		if err.Error() != "input device removed" {
			t.Errorf("fault = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fault reported")
	}

	if _, err := dev.StopCapture(context.Background()); !errors.Is(err, recorder.ErrDeviceUnavailable) {
		t.Errorf("StopCapture after fault = %v, want ErrDeviceUnavailable", err)
	}
}

func TestDaemonStopDoesNotFault(t *testing.T) {
	wavPath := writeFixtureWAV(t)
	d := startFakeCaptureDaemon(t, func(cmd Command) Response {
		if cmd.Cmd == "stop" {
			return Response{OK: true, Path: wavPath}
		}
		return Response{OK: true, SessionID: "s-2"}
	})

	dev := NewDaemon(d.sock, 8000, nil)
	faults := make(chan error, 1)
	dev.OnFault(func(err error) { faults <- err })

	ctx := context.Background()
	if err := dev.StartCapture(ctx); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if _, err := dev.StopCapture(ctx); err != nil {
		t.Fatalf("StopCapture: %v", err)
	}

	select {
	case err := <-faults:
		t.Errorf("unexpected fault after stop: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}
