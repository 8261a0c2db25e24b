package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/audio"
	"github.com/jwulff/evening/internal/recorder"
)

// OutputPlaceholder is replaced with the WAV path in the recorder command.
const OutputPlaceholder = "{output}"

const (
	defaultStartGrace = 300 * time.Millisecond
	defaultStopWait   = 5 * time.Second
)

// Exec records by running an external command such as ffmpeg or arecord. The
// command writes a WAV to the path substituted for {output} and finishes the
// file when it receives an interrupt.
type Exec struct {
	args   []string
	logger *zap.Logger

	// startGrace is how long StartCapture waits for the command to fail fast,
	// which is how a denied microphone shows up.
	startGrace time.Duration
	stopWait   time.Duration

	mu      sync.Mutex
	run     *execRun
	onFault func(error)
}

type execRun struct {
	cmd      *exec.Cmd
	dir      string
	output   string
	stderr   *lockedBuffer
	exited   chan struct{}
	waitErr  error
	stopping bool
}

// NewExec parses command with shell quoting rules.
func NewExec(command string, logger *zap.Logger) (*Exec, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("capture command is empty")
	}
	if !strings.Contains(command, OutputPlaceholder) {
		return nil, fmt.Errorf("capture command must contain %s", OutputPlaceholder)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exec{
		args:       args,
		logger:     logger,
		startGrace: defaultStartGrace,
		stopWait:   defaultStopWait,
	}, nil
}

// OnFault registers the callback for a recorder command that exits on its own.
func (e *Exec) OnFault(fn func(error)) {
	e.mu.Lock()
	e.onFault = fn
	e.mu.Unlock()
}

// StartCapture launches the recorder command.
func (e *Exec) StartCapture(ctx context.Context) error {
	e.mu.Lock()
	busy := e.run != nil
	e.mu.Unlock()
	if busy {
		return fmt.Errorf("%w: recorder command already running", recorder.ErrDeviceUnavailable)
	}

	dir, err := os.MkdirTemp("", "evening-capture-")
	if err != nil {
		return fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	output := filepath.Join(dir, "capture.wav")

	args := make([]string, len(e.args))
	for i, a := range e.args {
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, output)
	}

	run := &execRun{
		cmd:    exec.Command(args[0], args[1:]...),
		dir:    dir,
		output: output,
		stderr: &lockedBuffer{},
		exited: make(chan struct{}),
	}
	run.cmd.Stderr = run.stderr
	if err := run.cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	go func() {
		run.waitErr = run.cmd.Wait()
		close(run.exited)
	}()

	select {
	case <-run.exited:
		os.RemoveAll(dir)
		return e.exitError(run)
	case <-ctx.Done():
		run.cmd.Process.Kill()
		<-run.exited
		os.RemoveAll(dir)
		return ctx.Err()
	case <-time.After(e.startGrace):
	}

	e.mu.Lock()
	e.run = run
	e.mu.Unlock()
	go e.watch(run)

	e.logger.Debug("capture command started",
		zap.String("cmd", args[0]),
		zap.Int("pid", run.cmd.Process.Pid),
	)
	return nil
}

// StopCapture interrupts the recorder command, waits for it to finalize the WAV,
// and loads it.
func (e *Exec) StopCapture(ctx context.Context) (audio.Clip, error) {
	e.mu.Lock()
	run := e.run
	if run != nil {
		run.stopping = true
	}
	e.run = nil
	e.mu.Unlock()

	if run == nil {
		return audio.Clip{}, fmt.Errorf("%w: not recording", recorder.ErrDeviceUnavailable)
	}
	defer os.RemoveAll(run.dir)

	if err := run.cmd.Process.Signal(os.Interrupt); err != nil {
		run.cmd.Process.Kill()
	}
	select {
	case <-run.exited:
	case <-ctx.Done():
		run.cmd.Process.Kill()
		<-run.exited
		return audio.Clip{}, ctx.Err()
	case <-time.After(e.stopWait):
		e.logger.Warn("capture command ignored interrupt, killing")
		run.cmd.Process.Kill()
		<-run.exited
	}

	// Recorders commonly exit non-zero on interrupt; the file decides.
	clip, err := audio.ReadClip(run.output)
	if err != nil {
		if run.waitErr != nil {
			return audio.Clip{}, e.exitError(run)
		}
		return audio.Clip{}, fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err)
	}
	return clip, nil
}

func (e *Exec) watch(run *execRun) {
	<-run.exited

	e.mu.Lock()
	if run.stopping || e.run != run {
		e.mu.Unlock()
		return
	}
	e.run = nil
	fn := e.onFault
	e.mu.Unlock()

	os.RemoveAll(run.dir)
	err := e.exitError(run)
	e.logger.Warn("capture command exited while recording", zap.Error(err))
	if fn != nil {
		fn(err)
	}
}

// exitError classifies a recorder command that exited on its own.
func (e *Exec) exitError(run *execRun) error {
	stderr := strings.TrimSpace(run.stderr.String())
	detail := stderr
	if detail == "" && run.waitErr != nil {
		detail = run.waitErr.Error()
	}
	if detail == "" {
		detail = "recorder command exited"
	}
	if idx := strings.LastIndexByte(detail, '\n'); idx >= 0 {
		detail = detail[idx+1:]
	}
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "not authorized") {
		return fmt.Errorf("%w: %s", recorder.ErrPermissionDenied, detail)
	}
	return fmt.Errorf("%w: %s", recorder.ErrDeviceUnavailable, detail)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
