package audio

import (
	"context"
	"fmt"
	"os"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

const frameSize = 320 // 20ms at 16kHz

// RecordFixed captures mono 16-bit PCM for the given duration and writes it
// as a WAV file at path. The caller owns the file.
func (p *Port) RecordFixed(ctx context.Context, dur time.Duration, path string) error {
	buf := make([]int16, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.sampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, p.sampleRate, 16, 1, 1)

	frame := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: p.sampleRate},
		Data:           make([]int, frameSize),
		SourceBitDepth: 16,
	}

	deadline := time.Now().Add(dur)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			enc.Close()
			return ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			enc.Close()
			return fmt.Errorf("read input stream: %w", err)
		}

		for i, s := range buf {
			frame.Data[i] = int(s)
		}
		if err := enc.Write(frame); err != nil {
			enc.Close()
			return fmt.Errorf("write wav: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// Frames opens a fresh input stream and feeds fixed-length frames to fn
// until fn reports done or ctx ends. Used by the wake-word pump, which
// needs the classifier's own frame length rather than ours.
func (p *Port) Frames(ctx context.Context, frameLen int, fn func([]int16) bool) error {
	buf := make([]int16, frameLen)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.sampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(); err != nil {
			return fmt.Errorf("read input stream: %w", err)
		}
		if fn(buf) {
			return nil
		}
	}
}
