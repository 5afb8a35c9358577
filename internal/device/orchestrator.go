// Package device owns the top-level loop: it arbitrates between idle
// listening, wake-word conversations and medication-reminder cycles, and
// guarantees that no session failure ever takes the loop down with it.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	log "log/slog"

	"saathi/internal/backend"
	"saathi/internal/sched"
	"saathi/internal/store"
)

type State int32

const (
	StateIdle State = iota
	StateListening
	StateRecording
	StateAwaitingBackend
	StatePlayingResponse
	StateMedicationValidating
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecording:
		return "recording"
	case StateAwaitingBackend:
		return "awaiting_backend"
	case StatePlayingResponse:
		return "playing_response"
	case StateMedicationValidating:
		return "medication_validating"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Cue file names under the sound directory.
const (
	CueStart              = "start.wav"
	CueWaiting            = "waiting.wav"
	CueEnding             = "ending.wav"
	CueError              = "error.wav"
	CueMedicationReminder = "medication_reminder.wav"
)

// CueFiles lists every cue the device may play; all are optional at
// startup (missing ones degrade to silence with a warning).
func CueFiles() []string {
	return []string{CueStart, CueWaiting, CueEnding, CueError, CueMedicationReminder}
}

// CueLoop is a running looped cue. Stop is idempotent and blocks, bounded,
// until the loop has ceased.
type CueLoop interface {
	Stop()
}

// AudioPort is the device's sound hardware.
type AudioPort interface {
	RecordFixed(ctx context.Context, dur time.Duration, path string) error
	PlayBlocking(cue string) error
	PlayFile(path string) error
	PlayLooped(cue string) CueLoop
}

// WakeWaiter runs one bounded listening attempt. (false, nil) means the
// window elapsed quietly; the loop just tries again after re-checking its
// other triggers.
type WakeWaiter interface {
	Wait(ctx context.Context) (bool, error)
}

// BackendClient talks to the remote inference service.
type BackendClient interface {
	Submit(ctx context.Context, wavPath string) (*backend.Response, error)
	FetchAudio(ctx context.Context, url, path string) error
}

// ReminderSource surfaces at most one due reminder and takes the single
// acknowledgement call after a successful pouch validation.
type ReminderSource interface {
	Active() *sched.Reminder
	Acknowledge(id string)
}

// PouchValidator decides whether the user is holding the right pouch.
type PouchValidator interface {
	Validate(ctx context.Context, expectedColor string) bool
	Snapshot(ctx context.Context, path string) error
}

// VerificationLog persists proof of each validated intake.
type VerificationLog interface {
	Record(ctx context.Context, v store.Verification) error
}

type Config struct {
	RecordDuration time.Duration
	TickPause      time.Duration
	TempDir        string
	SnapshotDir    string
}

type Orchestrator struct {
	cfg       Config
	audio     AudioPort
	wake      WakeWaiter
	backend   BackendClient
	reminders ReminderSource
	validator PouchValidator
	verlog    VerificationLog

	state   atomic.Int32
	trigger atomic.Bool
}

func New(cfg Config, audio AudioPort, wake WakeWaiter, be BackendClient,
	rem ReminderSource, val PouchValidator, vlog VerificationLog) *Orchestrator {

	if cfg.RecordDuration <= 0 {
		cfg.RecordDuration = 8 * time.Second
	}
	if cfg.TickPause <= 0 {
		cfg.TickPause = 100 * time.Millisecond
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.SnapshotDir == "" {
		cfg.SnapshotDir = "verifications"
	}
	return &Orchestrator{
		cfg:       cfg,
		audio:     audio,
		wake:      wake,
		backend:   be,
		reminders: rem,
		validator: val,
		verlog:    vlog,
	}
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	log.Debug("State", "state", s)
}

// Trigger makes the next listening window succeed immediately, as if the
// keyword had been spoken. Used by the control socket.
func (o *Orchestrator) Trigger() {
	o.trigger.Store(true)
}

// Status summarizes the device for the control socket.
func (o *Orchestrator) Status() string {
	s := fmt.Sprintf("state=%s", o.State())
	if rem := o.reminders.Active(); rem != nil {
		s += fmt.Sprintf(" reminder=%s(%s)", rem.MedicationID, rem.Color)
	}
	return s
}

// Run drives the loop until ctx is cancelled. Due reminders take priority
// over plain conversation; either path requires the user to engage via the
// wake word first.
func (o *Orchestrator) Run(ctx context.Context) {
	o.setState(StateIdle)
	defer o.setState(StateShuttingDown)

	for {
		if ctx.Err() != nil {
			return
		}

		if rem := o.reminders.Active(); rem != nil {
			// The cycle starts only once the user engages, so background
			// noise can never walk a pouch validation through unattended.
			log.Info("Medication reminder due", "med", rem.Name, "say", sched.ReminderMessage(rem))
			o.audio.PlayBlocking(CueMedicationReminder)
			if o.waitForWake(ctx) {
				o.runSession(ctx, TriggerMedication, rem)
			}
			continue
		}

		if o.waitForWake(ctx) {
			o.runSession(ctx, TriggerWake, nil)
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(o.cfg.TickPause):
		}
	}
}

func (o *Orchestrator) waitForWake(ctx context.Context) bool {
	o.setState(StateListening)
	defer o.setState(StateIdle)

	if o.trigger.CompareAndSwap(true, false) {
		log.Info("Manual trigger")
		return true
	}

	ok, err := o.wake.Wait(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("Wake listening failed", "err", err)
		}
		return false
	}
	if ok {
		log.Info("Wake word detected")
	}
	return ok
}
