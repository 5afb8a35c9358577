package audio

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	log "log/slog"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Loop is a handle to one looping cue. Exactly one goroutine owns the
// playback; Stop asks it to quit and waits, bounded, for it to comply.
type Loop struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wait     time.Duration
}

func newLoop(wait time.Duration) *Loop {
	return &Loop{
		stop: make(chan struct{}),
		done: make(chan struct{}),
		wait: wait,
	}
}

// Stop is idempotent and safe from any goroutine. It blocks until the loop
// goroutine has actually ceased, or until the bounded wait elapses, after
// which the loop is treated as stopped so shutdown can never deadlock here.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	select {
	case <-l.done:
	case <-time.After(l.wait):
		log.Warn("Looped playback did not stop in time")
	}
}

// PlayLooped starts a cue looping on a background goroutine and returns its
// handle. At most one loop runs at a time; starting a new one stops any
// prior loop first.
func (p *Port) PlayLooped(cue string) *Loop {
	p.mu.Lock()
	prev := p.loop
	p.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	l := newLoop(p.stopWait)
	p.mu.Lock()
	p.loop = l
	p.mu.Unlock()

	go p.runLoop(cue, l)
	return l
}

// StopLoop stops the given loop and forgets it if it is the current one.
func (p *Port) StopLoop(l *Loop) {
	if l == nil {
		return
	}
	l.Stop()

	p.mu.Lock()
	if p.loop == l {
		p.loop = nil
	}
	p.mu.Unlock()
}

func (p *Port) runLoop(cue string, l *Loop) {
	defer close(l.done)

	path := filepath.Join(p.soundDir, cue)
	f, err := os.Open(path)
	if err != nil {
		// Keep the loop's lifecycle intact even without sound, so the
		// caller's stop sequencing stays the same.
		log.Warn("Cue file missing", "cue", cue)
		<-l.stop
		return
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		log.Warn("Cue decode failed", "cue", cue, "err", err)
		f.Close()
		<-l.stop
		return
	}
	defer streamer.Close()

	if err := p.initSpeaker(format.SampleRate); err != nil {
		log.Warn("Speaker init failed", "err", err)
		<-l.stop
		return
	}

	speaker.Play(beep.Loop(-1, streamer))

	t := time.NewTicker(p.loopPoll)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			speaker.Clear()
			return
		case <-t.C:
		}
	}
}
