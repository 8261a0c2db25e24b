package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/audio"
	"github.com/jwulff/evening/internal/recorder"
)

// Daemon records through an external capture daemon. Each recording uses one
// command connection for start and stop, and a second subscribed connection that
// watches for the daemon reporting a failure.
type Daemon struct {
	socket     string
	sampleRate int
	logger     *zap.Logger

	mu      sync.Mutex
	client  *Client
	events  *Client
	session string
	onFault func(error)
}

// NewDaemon returns a device bound to the daemon socket at socket.
func NewDaemon(socket string, sampleRate int, logger *zap.Logger) *Daemon {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Daemon{socket: socket, sampleRate: sampleRate, logger: logger}
}

// OnFault registers the callback for a recording that dies on the daemon side.
func (d *Daemon) OnFault(fn func(error)) {
	d.mu.Lock()
	d.onFault = fn
	d.mu.Unlock()
}

// StartCapture asks the daemon to begin recording.
func (d *Daemon) StartCapture(ctx context.Context) error {
	d.mu.Lock()
	busy := d.client != nil
	d.mu.Unlock()
	if busy {
		return fmt.Errorf("%w: daemon session already open", recorder.ErrDeviceUnavailable)
	}

	client, err := Connect(ctx, d.socket)
	if err != nil {
		return fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	resp, err := client.SendCommand(Command{Cmd: "start", Format: "wav", SampleRate: d.sampleRate})
	if err != nil {
		client.Close()
		return fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	if !resp.OK {
		client.Close()
		return responseError(resp)
	}

	d.mu.Lock()
	d.client = client
	d.session = resp.SessionID
	d.mu.Unlock()

	d.subscribe(ctx, resp.SessionID)
	d.logger.Debug("daemon capture started", zap.String("session", resp.SessionID))
	return nil
}

// StopCapture ends the recording and loads the WAV the daemon wrote.
func (d *Daemon) StopCapture(ctx context.Context) (audio.Clip, error) {
	d.mu.Lock()
	client, events, session := d.client, d.events, d.session
	d.client, d.events, d.session = nil, nil, ""
	d.mu.Unlock()

	if client == nil {
		return audio.Clip{}, fmt.Errorf("%w: not recording", recorder.ErrDeviceUnavailable)
	}
	defer client.Close()
	if events != nil {
		events.Close()
	}

	resp, err := client.SendCommand(Command{Cmd: "stop", SessionID: session})
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	if !resp.OK {
		return audio.Clip{}, responseError(resp)
	}
	if resp.Path == "" {
		return audio.Clip{}, fmt.Errorf("%w: daemon returned no recording path", recorder.ErrDeviceUnavailable)
	}

	clip, err := audio.ReadClip(resp.Path)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	if err := os.Remove(resp.Path); err != nil {
		d.logger.Warn("remove daemon recording", zap.String("path", resp.Path), zap.Error(err))
	}
	return clip, nil
}

// subscribe opens the event connection. Failure to subscribe is logged and the
// recording carries on without fault reporting.
func (d *Daemon) subscribe(ctx context.Context, session string) {
	events, err := Connect(ctx, d.socket)
	if err != nil {
		d.logger.Warn("daemon event subscribe failed", zap.Error(err))
		return
	}
	resp, err := events.SendCommand(Command{Cmd: "subscribe", Events: []string{"error"}})
	if err != nil || !resp.OK {
		events.Close()
		d.logger.Warn("daemon event subscribe rejected", zap.Error(err), zap.String("reason", resp.Error))
		return
	}

	d.mu.Lock()
	d.events = events
	d.mu.Unlock()
	go d.watch(events, session)
}

func (d *Daemon) watch(events *Client, session string) {
	for {
		ev, err := events.ReadEvent()
		if err != nil {
			d.fault(session, fmt.Errorf("daemon connection lost: %w", err))
			return
		}
		if ev.Event == "error" && (ev.SessionID == "" || ev.SessionID == session) {
			d.fault(session, errors.New(ev.Message))
			return
		}
	}
}

// fault reports err only if session is still the live recording.
func (d *Daemon) fault(session string, err error) {
	d.mu.Lock()
	if d.session != session || d.client == nil {
		d.mu.Unlock()
		return
	}
	client, events := d.client, d.events
	d.client, d.events, d.session = nil, nil, ""
	fn := d.onFault
	d.mu.Unlock()

	client.Close()
	if events != nil {
		events.Close()
	}
	d.logger.Warn("daemon capture fault", zap.String("session", session), zap.Error(err))
	if fn != nil {
		fn(err)
	}
}

func responseError(resp Response) error {
	msg := resp.Error
	if msg == "" {
		msg = "daemon refused command"
	}
	if resp.Code == CodePermissionDenied {
		return fmt.Errorf("%w: %s", recorder.ErrPermissionDenied, msg)
	}
	return fmt.Errorf("%w: %s", recorder.ErrDeviceUnavailable, msg)
}
