// Package waveform renders a finished clip as a terminal waveform and plays it
// back through an external player. A Preview owns a temporary WAV file that
// stands in for the playable resource; Release frees it.
package waveform

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/audio"
	"github.com/jwulff/evening/internal/ui"
)

var (
	// ErrDecode means the clip could not be decoded for drawing.
	ErrDecode = errors.New("waveform decode failed")
	// ErrNoPlayer is returned by TogglePlayback when no player is configured.
	ErrNoPlayer = errors.New("no audio player configured")
	// ErrReleased is returned by operations on a released preview.
	ErrReleased = errors.New("preview released")
)

// envelopeSize is the resolution kept after decoding. Resize rebins from it.
const envelopeSize = 2048

// Surface is the area the waveform is drawn into, in terminal cells.
type Surface struct {
	Width  int
	Height int
}

// Options control drawing and playback.
type Options struct {
	// Player is the playback command; the WAV path is appended as the last argument.
	Player    string
	BarWidth  int
	BarGap    int
	Normalize bool
	// TempDir holds the playable file. Empty means the system temp dir.
	TempDir string
	Logger  *zap.Logger
}

// Preview is a waveform bound to one clip.
type Preview struct {
	clipID   string
	dir      string
	path     string
	envelope []float64
	opts     Options
	player   *player
	logger   *zap.Logger

	mu       sync.Mutex
	surface  Surface
	released bool
}

// Attach prepares a preview for clip: it writes the playable file, decodes the
// samples and builds the player. On error nothing is left behind.
func Attach(surface Surface, clip audio.Clip, opts Options) (p *Preview, err error) {
	if opts.BarWidth < 1 {
		opts.BarWidth = 1
	}
	if opts.BarGap < 0 {
		opts.BarGap = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(clip.Data) == 0 {
		return nil, fmt.Errorf("%w: empty clip", ErrDecode)
	}

	dir, err := os.MkdirTemp(opts.TempDir, "evening-preview-")
	if err != nil {
		return nil, fmt.Errorf("preview temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	path := filepath.Join(dir, "preview.wav")
	if err := clip.WriteFile(path); err != nil {
		return nil, err
	}

	samples, err := clip.PCM()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrDecode)
	}

	var pl *player
	if opts.Player != "" {
		pl, err = newPlayer(opts.Player, path, clip.Duration, logger)
		if err != nil {
			return nil, err
		}
	}

	env := peaks(samples, envelopeSize)
	if opts.Normalize {
		normalize(env)
	}

	logger.Debug("preview attached", zap.String("clip", clip.ID), zap.String("path", path))
	return &Preview{
		clipID:   clip.ID,
		dir:      dir,
		path:     path,
		envelope: env,
		opts:     opts,
		player:   pl,
		logger:   logger,
		surface:  surface,
	}, nil
}

// ClipID is the ID of the clip the preview was attached to.
func (p *Preview) ClipID() string { return p.clipID }

// Path is the playable file.
func (p *Preview) Path() string { return p.path }

// TogglePlayback plays, pauses or resumes.
func (p *Preview) TogglePlayback() error {
	p.mu.Lock()
	released := p.released
	p.mu.Unlock()
	if released {
		return ErrReleased
	}
	if p.player == nil {
		return ErrNoPlayer
	}
	return p.player.toggle()
}

// Playing reports whether audio is currently coming out.
func (p *Preview) Playing() bool {
	if p.player == nil {
		return false
	}
	return p.player.playing()
}

// Progress is the played fraction in [0, 1]. It drops back to 0 when playback ends.
func (p *Preview) Progress() float64 {
	if p.player == nil {
		return 0
	}
	return p.player.progress()
}

// Resize redraws at a new size without decoding again.
func (p *Preview) Resize(s Surface) {
	p.mu.Lock()
	p.surface = s
	p.mu.Unlock()
}

// Release stops playback and removes the playable file. It is safe to call more
// than once.
func (p *Preview) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.mu.Unlock()

	if p.player != nil {
		p.player.stop()
	}
	if err := os.RemoveAll(p.dir); err != nil {
		p.logger.Warn("remove preview file", zap.String("path", p.path), zap.Error(err))
	}
	p.logger.Debug("preview released", zap.String("clip", p.clipID))
}

// Bars returns one height in [0, 1] per bar that fits the surface width.
func (p *Preview) Bars() []float64 {
	p.mu.Lock()
	width := p.surface.Width
	p.mu.Unlock()
	step := p.opts.BarWidth + p.opts.BarGap
	n := (width + p.opts.BarGap) / step
	if n < 1 {
		return nil
	}
	return rebin(p.envelope, n)
}

var levels = []rune(" ▁▂▃▄▅▆▇█")

// View draws the waveform. Bars left of the playback position use the progress
// colour.
func (p *Preview) View() string {
	p.mu.Lock()
	height := p.surface.Height
	p.mu.Unlock()
	if height < 1 {
		height = 1
	}
	bars := p.Bars()
	if len(bars) == 0 {
		return ""
	}
	played := int(math.Round(p.Progress() * float64(len(bars))))
	gap := strings.Repeat(" ", p.opts.BarGap)

	rows := make([]string, height)
	for r := 0; r < height; r++ {
		// Row 0 is the top; each row covers eight levels.
		floor := (height - 1 - r) * 8
		var wave, prog strings.Builder
		for i, b := range bars {
			eighths := int(math.Round(b*float64(height*8))) - floor
			if eighths < 0 {
				eighths = 0
			}
			if eighths > 8 {
				eighths = 8
			}
			cell := strings.Repeat(string(levels[eighths]), p.opts.BarWidth)
			if i < len(bars)-1 {
				cell += gap
			}
			if i < played {
				prog.WriteString(cell)
			} else {
				wave.WriteString(cell)
			}
		}
		rows[r] = ui.WaveProgressStyle.Render(prog.String()) + ui.WaveStyle.Render(wave.String())
	}
	return strings.Join(rows, "\n")
}

// peaks reduces samples to n absolute peaks.
func peaks(samples []float64, n int) []float64 {
	if len(samples) < n {
		n = len(samples)
	}
	out := make([]float64, n)
	for i := range out {
		lo := i * len(samples) / n
		hi := (i + 1) * len(samples) / n
		var m float64
		for _, s := range samples[lo:hi] {
			if a := math.Abs(s); a > m {
				m = a
			}
		}
		out[i] = m
	}
	return out
}

// rebin maps env onto n bars, taking the max of each bucket. With fewer envelope
// points than bars, points are repeated.
func rebin(env []float64, n int) []float64 {
	out := make([]float64, n)
	if len(env) == 0 {
		return out
	}
	for i := range out {
		lo := i * len(env) / n
		hi := (i + 1) * len(env) / n
		if hi <= lo {
			out[i] = env[lo]
			continue
		}
		var m float64
		for _, v := range env[lo:hi] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

func normalize(env []float64) {
	var m float64
	for _, v := range env {
		if v > m {
			m = v
		}
	}
	if m == 0 {
		return
	}
	for i := range env {
		env[i] /= m
	}
}
