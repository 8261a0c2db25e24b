package waveform

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"
)

// player runs the playback command for one file. Pausing suspends the process
// where the platform allows it.
type player struct {
	args     []string
	duration time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	paused  bool
	resumed time.Time
	played  time.Duration
}

func newPlayer(command, path string, duration time.Duration, logger *zap.Logger) (*player, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, ErrNoPlayer
	}
	return &player{
		args:     append(args, path),
		duration: duration,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (p *player) toggle() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.cmd == nil:
		return p.launchLocked()
	case p.paused:
		if err := resumeProcess(p.cmd.Process); err != nil {
			return fmt.Errorf("resume playback: %w", err)
		}
		p.paused = false
		p.resumed = p.now()
		return nil
	case canSuspend:
		if err := suspendProcess(p.cmd.Process); err != nil {
			return fmt.Errorf("pause playback: %w", err)
		}
		p.paused = true
		p.played += p.now().Sub(p.resumed)
		return nil
	default:
		p.killLocked()
		return nil
	}
}

func (p *player) launchLocked() error {
	cmd := exec.Command(p.args[0], p.args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	exited := make(chan struct{})
	p.cmd = cmd
	p.exited = exited
	p.paused = false
	p.played = 0
	p.resumed = p.now()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd = nil
			p.paused = false
			p.played = 0
		}
		p.mu.Unlock()
		close(exited)
		p.logger.Debug("playback finished", zap.Error(err))
	}()
	return nil
}

// killLocked ends playback and waits for the process. The wait goroutine needs
// the lock, so it is released while waiting.
func (p *player) killLocked() {
	cmd, exited := p.cmd, p.exited
	if cmd == nil {
		return
	}
	p.cmd = nil
	p.paused = false
	p.played = 0
	cmd.Process.Kill()
	p.mu.Unlock()
	<-exited
	p.mu.Lock()
}

func (p *player) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
}

func (p *player) playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil && !p.paused
}

func (p *player) progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.duration <= 0 {
		return 0
	}
	played := p.played
	if !p.paused {
		played += p.now().Sub(p.resumed)
	}
	f := float64(played) / float64(p.duration)
	if f > 1 {
		f = 1
	}
	return f
}
