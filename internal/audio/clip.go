// Package audio holds the captured audio object and the WAV plumbing around it.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// MIMEWAV is the only container evening produces.
const MIMEWAV = "audio/wav"

// ErrInvalidWAV is returned when data is not a readable PCM WAV file.
var ErrInvalidWAV = errors.New("invalid wav data")

// Clip is a finished recording. It is immutable once created and safe to share.
type Clip struct {
	ID         string
	Data       []byte
	MIMEType   string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	CapturedAt time.Time
}

// NewClip validates WAV data and wraps it in a Clip with a fresh ID.
func NewClip(data []byte) (Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}
	buf, err := decodePCM(data)
	if err != nil {
		return Clip{}, err
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	var dur time.Duration
	if channels > 0 && rate > 0 {
		frames := len(buf.Data) / channels
		dur = time.Duration(frames) * time.Second / time.Duration(rate)
	}

	return Clip{
		ID:         uuid.NewString(),
		Data:       data,
		MIMEType:   MIMEWAV,
		SampleRate: rate,
		Channels:   channels,
		BitDepth:   buf.SourceBitDepth,
		Duration:   dur,
		CapturedAt: time.Now(),
	}, nil
}

// ReadClip loads a WAV file from disk.
func ReadClip(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("read clip: %w", err)
	}
	clip, err := NewClip(data)
	if err != nil {
		return Clip{}, fmt.Errorf("read clip %s: %w", path, err)
	}
	return clip, nil
}

// PCM decodes the clip into mono samples in [-1, 1]. Multi-channel audio is
// averaged per frame.
func (c Clip) PCM() ([]float64, error) {
	buf, err := decodePCM(c.Data)
	if err != nil {
		return nil, err
	}
	channels := max(1, buf.Format.NumChannels)
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := float64(int64(1) << (bitDepth - 1))
	// 8-bit WAV is unsigned with silence at 128.
	var offset float64
	if bitDepth == 8 {
		offset = full
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) - offset
		}
		out[i] = sum / float64(channels) / full
	}
	return out, nil
}

// WriteFile writes the clip's WAV bytes to path.
func (c Clip) WriteFile(path string) error {
	if err := os.WriteFile(path, c.Data, 0o644); err != nil {
		return fmt.Errorf("write clip: %w", err)
	}
	return nil
}

func decodePCM(data []byte) (*goaudio.IntBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidWAV)
	}
	return buf, nil
}
