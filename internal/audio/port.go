// Package audio owns the device's sound I/O: fixed-duration capture,
// blocking cue playback and the single looped cue used while a backend
// request is in flight.
package audio

import (
	"sync"
	"time"

	log "log/slog"

	"github.com/faiface/beep"
	"github.com/gordonklaus/portaudio"
)

type Port struct {
	soundDir   string
	sampleRate int
	loopPoll   time.Duration
	stopWait   time.Duration

	mu          sync.Mutex
	loop        *Loop
	speakerRate beep.SampleRate
}

func NewPort(soundDir string, sampleRate int, loopPoll, stopWait time.Duration) *Port {
	if loopPoll <= 0 {
		loopPoll = 100 * time.Millisecond
	}
	if stopWait <= 0 {
		stopWait = 2 * time.Second
	}
	return &Port{
		soundDir:   soundDir,
		sampleRate: sampleRate,
		loopPoll:   loopPoll,
		stopWait:   stopWait,
	}
}

func (p *Port) Init() error {
	return portaudio.Initialize()
}

// Close stops any running loop before releasing the audio device, so a
// stuck loop can never hold the hardware past shutdown.
func (p *Port) Close() {
	p.mu.Lock()
	l := p.loop
	p.mu.Unlock()
	if l != nil {
		l.Stop()
	}
	if err := portaudio.Terminate(); err != nil {
		log.Warn("Audio terminate failed", "err", err)
	}
}
