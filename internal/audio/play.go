package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "log/slog"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// PlayBlocking plays a named cue from the sound directory to completion.
// A missing cue file is logged and swallowed; the device must keep working
// without its full cue set.
func (p *Port) PlayBlocking(cue string) error {
	path := filepath.Join(p.soundDir, cue)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn("Cue file missing", "cue", cue)
		return nil
	}
	return p.PlayFile(path)
}

// PlayFile plays an arbitrary WAV file to completion. Unlike PlayBlocking
// a missing or broken file is an error: callers use this for fetched reply
// audio, where silence would hide the failure.
func (p *Port) PlayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	if err := p.initSpeaker(format.SampleRate); err != nil {
		return err
	}

	done := make(chan bool)
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		done <- true
	})))
	<-done

	return nil
}

func (p *Port) initSpeaker(rate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.speakerRate == rate {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	p.speakerRate = rate
	return nil
}
