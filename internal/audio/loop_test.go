package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopStopWaitsForGoroutine(t *testing.T) {
	l := newLoop(time.Second)

	stopped := make(chan struct{})
	go func() {
		defer close(l.done)
		<-l.stop
		close(stopped)
	}()

	l.Stop()

	select {
	case <-stopped:
	default:
		t.Fatal("Stop returned before the loop goroutine observed the flag")
	}
}

func TestLoopStopIdempotent(t *testing.T) {
	l := newLoop(time.Second)
	go func() {
		<-l.stop
		close(l.done)
	}()

	l.Stop()
	assert.NotPanics(t, func() { l.Stop() })
	assert.NotPanics(t, func() { l.Stop() })
}

func TestLoopStopBoundedWhenStuck(t *testing.T) {
	l := newLoop(50 * time.Millisecond)
	// No goroutine ever closes done: Stop must give up on its own.

	start := time.Now()
	l.Stop()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestStopLoopNilIsNoop(t *testing.T) {
	p := NewPort("sound", 16000, 0, 0)
	assert.NotPanics(t, func() { p.StopLoop(nil) })
}
