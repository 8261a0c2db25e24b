package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/audio"
)

// Controller owns one RecordingSession. It is the only writer of session state;
// device completions, device faults and ticks all go through its methods.
type Controller struct {
	device     CaptureDevice
	scheduler  Scheduler
	interval   time.Duration
	logger     *zap.Logger
	onRecorded func(audio.Clip)

	mu      sync.Mutex
	status  Status
	elapsed int
	clip    *audio.Clip
	err     error
	pending bool
	ticker  Task
	tickGen uint64
	closed  bool
	updates chan Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the wall-clock ticker.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.scheduler = s }
}

// WithInterval sets the tick period. Each tick adds one to Elapsed.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnRecorded registers a callback run after each successful stop, outside the lock.
func WithOnRecorded(fn func(audio.Clip)) Option {
	return func(c *Controller) { c.onRecorded = fn }
}

// NewController creates an Idle session bound to device.
func NewController(device CaptureDevice, opts ...Option) *Controller {
	c := &Controller{
		device:    device,
		scheduler: TimeScheduler{},
		interval:  time.Second,
		logger:    zap.NewNop(),
		updates:   make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if fn, ok := device.(FaultNotifier); ok {
		fn.OnFault(c.deviceFault)
	}
	return c
}

// Updates delivers the latest snapshot after every change. Intermediate snapshots
// may be dropped if the reader is slow. The channel is closed by Close.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start begins a new recording from Idle or Stopped. It is a no-op while already
// recording. If the device refuses, the session lands in Idle with Err set and the
// device error is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.pending:
		c.mu.Unlock()
		return ErrBusy
	case c.status == StatusRecording:
		c.mu.Unlock()
		return nil
	}
	c.pending = true
	c.err = nil
	c.publishLocked()
	c.mu.Unlock()

	err := c.device.StartCapture(ctx)

	c.mu.Lock()
	c.pending = false
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			c.releaseDevice(ctx)
		}
		return ErrClosed
	}
	if err != nil {
		err = deviceError(err)
		c.status = StatusIdle
		c.clip = nil
		c.err = err
		c.publishLocked()
		c.mu.Unlock()
		c.logger.Warn("capture start failed", zap.Error(err))
		return err
	}
	c.status = StatusRecording
	c.elapsed = 0
	c.clip = nil
	c.startTickerLocked()
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("recording started")
	return nil
}

// Stop ends the current recording. It is a no-op unless the session is Recording.
// Elapsed is frozen the moment Stop is called; the session becomes Stopped once the
// device hands back the clip.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.status != StatusRecording:
		c.mu.Unlock()
		return nil
	case c.pending:
		c.mu.Unlock()
		return ErrBusy
	}
	c.stopTickerLocked()
	c.pending = true
	c.publishLocked()
	c.mu.Unlock()

	clip, err := c.device.StopCapture(ctx)

	c.mu.Lock()
	c.pending = false
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		err = deviceError(err)
		c.status = StatusIdle
		c.clip = nil
		c.err = err
		c.publishLocked()
		c.mu.Unlock()
		c.logger.Warn("capture stop failed", zap.Error(err))
		return err
	}
	c.status = StatusStopped
	c.clip = &clip
	c.publishLocked()
	cb := c.onRecorded
	elapsed := c.elapsed
	c.mu.Unlock()

	c.logger.Info("recording stopped",
		zap.String("clip", clip.ID),
		zap.Int("elapsed", elapsed),
		zap.Duration("duration", clip.Duration),
	)
	if cb != nil {
		cb(clip)
	}
	return nil
}

// Discard drops the captured clip and returns to Idle. It only applies to a
// Stopped session and reports whether anything was discarded.
func (c *Controller) Discard() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.pending || c.status != StatusStopped {
		return false
	}
	c.status = StatusIdle
	c.clip = nil
	c.publishLocked()
	return true
}

// Close tears the session down: the ticker stops, the clip is released, a live
// recording is stopped on a best-effort basis, and Updates is closed.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTickerLocked()
	recording := c.status == StatusRecording && !c.pending
	c.status = StatusIdle
	c.clip = nil
	close(c.updates)
	c.mu.Unlock()

	if recording {
		c.releaseDevice(ctx)
	}
	c.logger.Debug("recorder closed")
	return nil
}

func (c *Controller) deviceFault(err error) {
	c.mu.Lock()
	if c.closed || c.pending || c.status != StatusRecording {
		c.mu.Unlock()
		return
	}
	err = deviceError(err)
	c.stopTickerLocked()
	c.status = StatusIdle
	c.err = err
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Warn("capture device fault", zap.Error(err))
}

func (c *Controller) releaseDevice(ctx context.Context) {
	if _, err := c.device.StopCapture(ctx); err != nil {
		c.logger.Warn("best-effort capture stop failed", zap.Error(err))
	}
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.ticker == nil || gen != c.tickGen || c.status != StatusRecording || c.pending {
		return
	}
	c.elapsed++
	c.publishLocked()
}

func (c *Controller) startTickerLocked() {
	c.stopTickerLocked()
	gen := c.tickGen
	c.ticker = c.scheduler.Every(c.interval, func() { c.tick(gen) })
}

// stopTickerLocked cancels the ticker and bumps the generation so a tick that is
// already waiting on the lock is ignored.
func (c *Controller) stopTickerLocked() {
	if c.ticker != nil {
		c.ticker.Cancel()
		c.ticker = nil
	}
	c.tickGen++
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:  c.status,
		Elapsed: c.elapsed,
		Err:     c.err,
		Pending: c.pending,
	}
	if c.clip != nil {
		cp := *c.clip
		s.Clip = &cp
	}
	return s
}

func (c *Controller) publishLocked() {
	if c.closed {
		return
	}
	s := c.snapshotLocked()
	select {
	case c.updates <- s:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- s:
	default:
	}
}

func deviceError(err error) error {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
