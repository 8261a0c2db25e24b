package audio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes 16-bit mono PCM samples to path.
func WriteWAV(path string, samples []int, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// Tone returns n samples of a sine at freq Hz with a slow swell, so the preview
// has some shape to draw.
func Tone(n, sampleRate int, freq float64) []int {
	out := make([]int, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		env := 0.35 + 0.3*math.Sin(2*math.Pi*0.5*t)
		out[i] = int(env * 32767 * math.Sin(2*math.Pi*freq*t))
	}
	return out
}
