package wake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptDetector struct {
	results []int
	i       int
	err     error
}

func (d *scriptDetector) FrameLength() int { return 4 }
func (d *scriptDetector) SampleRate() int  { return 16000 }
func (d *scriptDetector) Close() error     { return nil }

func (d *scriptDetector) Process(frame []int16) (int, error) {
	if d.err != nil {
		return -1, d.err
	}
	if d.i >= len(d.results) {
		return -1, nil
	}
	r := d.results[d.i]
	d.i++
	return r, nil
}

// fakeMic feeds silence frames as fast as the callback consumes them.
type fakeMic struct{}

func (fakeMic) Frames(ctx context.Context, frameLen int, fn func([]int16) bool) error {
	frame := make([]int16, frameLen)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fn(frame) {
			return nil
		}
	}
}

func TestWaitReturnsOnMatch(t *testing.T) {
	det := &scriptDetector{results: []int{-1, -1, 0}}
	l := NewListener(det, fakeMic{}, time.Second)

	ok, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, det.i)
}

func TestWaitWindowElapsesWithoutMatch(t *testing.T) {
	det := &scriptDetector{} // always -1
	l := NewListener(det, fakeMic{}, 20*time.Millisecond)

	ok, err := l.Wait(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestWaitSurfacesCallerCancellation(t *testing.T) {
	det := &scriptDetector{}
	l := NewListener(det, fakeMic{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := l.Wait(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitClassifierErrorsDoNotMatch(t *testing.T) {
	det := &scriptDetector{err: errors.New("engine fault")}
	l := NewListener(det, fakeMic{}, 20*time.Millisecond)

	ok, err := l.Wait(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}
