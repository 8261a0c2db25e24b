package waveform

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jwulff/evening/internal/audio"
)

func toneClip(t *testing.T) audio.Clip {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.WriteWAV(path, audio.Tone(8000, 8000, 220), 8000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	clip, err := audio.ReadClip(path)
	if err != nil {
		t.Fatalf("ReadClip: %v", err)
	}
	return clip
}

func entries(t *testing.T, dir string) int {
	t.Helper()
	list, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(list)
}

func TestAttachWritesPlayableFile(t *testing.T) {
	tmp := t.TempDir()
	clip := toneClip(t)

	p, err := Attach(Surface{Width: 40, Height: 4}, clip, Options{BarWidth: 2, BarGap: 1, Normalize: true, TempDir: tmp})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer p.Release()

	if p.ClipID() != clip.ID {
		t.Errorf("clipID = %q, want %q", p.ClipID(), clip.ID)
	}
	data, err := os.ReadFile(p.Path())
	if err != nil {
		t.Fatalf("playable file: %v", err)
	}
	if len(data) != len(clip.Data) {
		t.Errorf("playable file has %d bytes, want %d", len(data), len(clip.Data))
	}
}

func TestReleaseFreesResource(t *testing.T) {
	tmp := t.TempDir()
	p, err := Attach(Surface{Width: 20, Height: 2}, toneClip(t), Options{TempDir: tmp})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if entries(t, tmp) != 1 {
		t.Fatalf("expected one preview dir in %s", tmp)
	}

	p.Release()
	if entries(t, tmp) != 0 {
		t.Error("release should remove the playable file")
	}
	p.Release()

	if err := p.TogglePlayback(); !errors.Is(err, ErrReleased) {
		t.Errorf("toggle after release = %v, want ErrReleased", err)
	}
}

func TestRepeatedAttachReleaseLeavesNothing(t *testing.T) {
	tmp := t.TempDir()
	clip := toneClip(t)
	for i := 0; i < 20; i++ {
		p, err := Attach(Surface{Width: 10, Height: 1}, clip, Options{TempDir: tmp})
		if err != nil {
			t.Fatalf("Attach %d: %v", i, err)
		}
		p.Release()
	}
	if n := entries(t, tmp); n != 0 {
		t.Errorf("%d preview files leaked", n)
	}
}

func TestAttachDecodeFailureCleansUp(t *testing.T) {
	tmp := t.TempDir()
	bad := audio.Clip{ID: "bad", Data: []byte("RIFF but not really a wav")}

	_, err := Attach(Surface{Width: 20, Height: 2}, bad, Options{TempDir: tmp})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if entries(t, tmp) != 0 {
		t.Error("failed attach should not leave a playable file")
	}

	if _, err := Attach(Surface{}, audio.Clip{}, Options{TempDir: tmp}); !errors.Is(err, ErrDecode) {
		t.Errorf("empty clip err = %v, want ErrDecode", err)
	}
}

func TestViewGeometry(t *testing.T) {
	p, err := Attach(Surface{Width: 30, Height: 3}, toneClip(t), Options{BarWidth: 2, BarGap: 1, Normalize: true, TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer p.Release()

	if n := len(p.Bars()); n != 10 {
		t.Errorf("bars = %d, want 10", n)
	}
	view := p.View()
	lines := strings.Split(view, "\n")
	if len(lines) != 3 {
		t.Fatalf("view has %d rows, want 3", len(lines))
	}
	for i, l := range lines {
		if w := lipgloss.Width(l); w != 29 {
			t.Errorf("row %d width = %d, want 29", i, w)
		}
	}
	if !strings.Contains(view, "█") {
		t.Error("normalized waveform should reach full height somewhere")
	}

	p.Resize(Surface{Width: 8, Height: 1})
	if n := len(p.Bars()); n != 3 {
		t.Errorf("bars after resize = %d, want 3", n)
	}
	if rows := strings.Count(p.View(), "\n"); rows != 0 {
		t.Errorf("resized view has %d newlines, want 0", rows)
	}
}

func TestNormalizeScalesPeak(t *testing.T) {
	env := []float64{0.1, 0.25, 0.05}
	normalize(env)
	if env[1] != 1 {
		t.Errorf("peak = %v, want 1", env[1])
	}
	if env[0] != 0.4 {
		t.Errorf("env[0] = %v, want 0.4", env[0])
	}

	silent := []float64{0, 0}
	normalize(silent)
	if silent[0] != 0 {
		t.Error("silence should stay silent")
	}
}

func TestRebinMoreBarsThanPoints(t *testing.T) {
	out := rebin([]float64{0.2, 0.8}, 4)
	want := []float64{0.2, 0.2, 0.8, 0.8}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("rebin = %v, want %v", out, want)
		}
	}
}

func TestToggleWithoutPlayer(t *testing.T) {
	p, err := Attach(Surface{Width: 10, Height: 1}, toneClip(t), Options{TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer p.Release()

	if err := p.TogglePlayback(); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("err = %v, want ErrNoPlayer", err)
	}
	if p.Playing() || p.Progress() != 0 {
		t.Error("preview without a player should never be playing")
	}
}

func TestTogglePlayPauseResume(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs process suspend")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	p, err := Attach(Surface{Width: 10, Height: 1}, toneClip(t), Options{
		Player:  `sh -c 'sleep 5'`,
		TempDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer p.Release()

	if err := p.TogglePlayback(); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !p.Playing() {
		t.Fatal("should be playing after first toggle")
	}
	if err := p.TogglePlayback(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if p.Playing() {
		t.Fatal("should be paused after second toggle")
	}
	paused := p.Progress()
	time.Sleep(20 * time.Millisecond)
	if p.Progress() != paused {
		t.Error("progress should not advance while paused")
	}
	if err := p.TogglePlayback(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !p.Playing() {
		t.Fatal("should be playing after resume")
	}

	p.Release()
	if p.Playing() {
		t.Error("release should stop playback")
	}
}

func TestPlaybackEndsOnItsOwn(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	p, err := Attach(Surface{Width: 10, Height: 1}, toneClip(t), Options{Player: "true", TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer p.Release()

	if err := p.TogglePlayback(); err != nil {
		t.Fatalf("play: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.Playing() {
		if time.Now().After(deadline) {
			t.Fatal("playback never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if p.Progress() != 0 {
		t.Errorf("progress = %v after playback ended, want 0", p.Progress())
	}
}
