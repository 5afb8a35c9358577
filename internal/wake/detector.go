// Package wake turns microphone frames into a single answer: did the user
// say the keyword. The classifier itself is pluggable; the shipped one is
// Porcupine.
package wake

import (
	"errors"
	"fmt"
	"os"

	pv "github.com/Picovoice/porcupine/binding/go/v3"
)

// Detector classifies one fixed-length PCM frame at a time. Process returns
// the matched keyword index, or -1 for no match.
type Detector interface {
	FrameLength() int
	SampleRate() int
	Process(frame []int16) (int, error)
	Close() error
}

// Porcupine wraps the Picovoice engine behind the Detector contract.
type Porcupine struct {
	engine pv.Porcupine
}

func NewPorcupine(accessKey, keywordPath string, sensitivity float32) (*Porcupine, error) {
	if accessKey == "" {
		return nil, errors.New("picovoice access key not set")
	}
	if _, err := os.Stat(keywordPath); err != nil {
		return nil, fmt.Errorf("keyword model: %w", err)
	}

	engine := pv.Porcupine{
		AccessKey:     accessKey,
		KeywordPaths:  []string{keywordPath},
		Sensitivities: []float32{sensitivity},
	}
	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("init porcupine: %w", err)
	}

	return &Porcupine{engine: engine}, nil
}

func (p *Porcupine) FrameLength() int { return pv.FrameLength }
func (p *Porcupine) SampleRate() int  { return pv.SampleRate }

func (p *Porcupine) Process(frame []int16) (int, error) {
	return p.engine.Process(frame)
}

func (p *Porcupine) Close() error {
	return p.engine.Delete()
}
