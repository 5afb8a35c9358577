package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "log/slog"

	"saathi/internal/backend"
	"saathi/internal/sched"
	"saathi/internal/store"
)

type TriggerKind string

const (
	TriggerWake       TriggerKind = "wake"
	TriggerMedication TriggerKind = "medication"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeAborted Outcome = "aborted"
)

// Session is one wake- or reminder-triggered exchange. It exists only for
// the duration of runSession and is owned by the loop goroutine alone.
type Session struct {
	Trigger   TriggerKind
	StartedAt time.Time
	AudioPath string
	Response  *backend.Response
	Outcome   Outcome
}

// runSession drives one full cycle: pouch validation when a reminder is
// attached, then record, submit, play reply. Every failure resolves to an
// error cue and a normal return; nothing propagates out.
func (o *Orchestrator) runSession(ctx context.Context, kind TriggerKind, rem *sched.Reminder) {
	sess := &Session{
		Trigger:   kind,
		StartedAt: time.Now(),
		AudioPath: filepath.Join(o.cfg.TempDir, "recording.wav"),
		Outcome:   OutcomeAborted,
	}
	defer o.finishSession(sess)

	if rem != nil {
		if !o.validatePouch(ctx, rem) {
			// Not acknowledged: the reminder stays active and is offered
			// again on the next pass, until its own staleness eviction.
			o.audio.PlayBlocking(CueError)
			sess.Outcome = OutcomeError
			return
		}
	}

	o.audio.PlayBlocking(CueStart)

	o.setState(StateRecording)
	if err := o.audio.RecordFixed(ctx, o.cfg.RecordDuration, sess.AudioPath); err != nil {
		log.Error("Recording failed", "err", err)
		o.audio.PlayBlocking(CueError)
		sess.Outcome = sessionOutcome(ctx)
		return
	}

	o.setState(StateAwaitingBackend)
	loop := o.audio.PlayLooped(CueWaiting)
	resp, err := o.backend.Submit(ctx, sess.AudioPath)
	// The waiting cue must be silent before anything else plays, on every
	// exit path. Stop blocks until that holds.
	loop.Stop()
	if err != nil {
		log.Error("Backend request failed", "kind", errorKind(err), "err", err)
		o.audio.PlayBlocking(CueError)
		sess.Outcome = sessionOutcome(ctx)
		return
	}
	sess.Response = resp
	log.Info("Backend replied", "intent", resp.Intent, "text", resp.TranscribedText)
	if resp.Contact != nil {
		log.Info("Contact resolved", "name", resp.Contact.Name, "phone", resp.Contact.Phone)
	}

	o.setState(StatePlayingResponse)
	if o.playResponse(ctx, sess) {
		sess.Outcome = OutcomeSuccess
	} else {
		sess.Outcome = OutcomeError
	}
}

// playResponse plays whatever came back. A reply without playable audio
// closes a medication cycle with the ending cue (the exchange itself
// succeeded) but counts as a failure for plain conversation, where the
// spoken reply is the whole point.
func (o *Orchestrator) playResponse(ctx context.Context, sess *Session) bool {
	resp := sess.Response

	if resp.FullPlayURL == "" {
		if sess.Trigger == TriggerMedication {
			o.audio.PlayBlocking(CueEnding)
			return true
		}
		log.Warn("Backend reply had no playable audio", "intent", resp.Intent)
		o.audio.PlayBlocking(CueError)
		return false
	}

	replyPath := filepath.Join(o.cfg.TempDir, "response.wav")
	defer os.Remove(replyPath)

	if err := o.backend.FetchAudio(ctx, resp.FullPlayURL, replyPath); err != nil {
		log.Error("Reply audio fetch failed", "err", err)
		o.audio.PlayBlocking(CueError)
		return false
	}
	if err := o.audio.PlayFile(replyPath); err != nil {
		log.Error("Reply playback failed", "err", err)
		o.audio.PlayBlocking(CueError)
		return false
	}

	if sess.Trigger == TriggerWake {
		o.audio.PlayBlocking(CueEnding)
	}
	return true
}

// validatePouch runs the visual check and, on success, acknowledges the
// reminder and persists the verification artifact.
func (o *Orchestrator) validatePouch(ctx context.Context, rem *sched.Reminder) bool {
	o.setState(StateMedicationValidating)
	log.Info("Expecting pouch", "med", rem.Name, "color", rem.Color)

	if !o.validator.Validate(ctx, rem.Color) {
		log.Warn("Pouch validation rejected", "med", rem.MedicationID)
		return false
	}

	o.reminders.Acknowledge(rem.MedicationID)

	snap := filepath.Join(o.cfg.SnapshotDir,
		fmt.Sprintf("med_%s_%s.jpg", rem.MedicationID, time.Now().Format("20060102_150405")))
	if err := o.validator.Snapshot(ctx, snap); err != nil {
		log.Warn("Verification snapshot failed", "err", err)
		snap = ""
	}

	if o.verlog != nil {
		err := o.verlog.Record(ctx, store.Verification{
			MedicationID: rem.MedicationID,
			Name:         rem.Name,
			Color:        rem.Color,
			ImagePath:    snap,
			VerifiedAt:   time.Now(),
		})
		if err != nil {
			log.Warn("Verification log write failed", "err", err)
		}
	}

	log.Info("Pouch validated", "med", rem.MedicationID)
	return true
}

func (o *Orchestrator) finishSession(sess *Session) {
	if err := os.Remove(sess.AudioPath); err != nil && !os.IsNotExist(err) {
		log.Warn("Temp file cleanup failed", "path", sess.AudioPath, "err", err)
	}
	log.Info("Session finished",
		"trigger", sess.Trigger, "outcome", sess.Outcome, "took", time.Since(sess.StartedAt))
	o.setState(StateIdle)
}

func sessionOutcome(ctx context.Context) Outcome {
	if ctx.Err() != nil {
		return OutcomeAborted
	}
	return OutcomeError
}

// errorKind names the failure class for logs without the loop having to
// inspect transport details.
func errorKind(err error) string {
	var se *backend.StatusError
	var de *backend.DecodeError
	var te *backend.TransientError
	switch {
	case errors.As(err, &se):
		return "backend_status"
	case errors.As(err, &de):
		return "backend_malformed"
	case errors.As(err, &te):
		return "network"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
