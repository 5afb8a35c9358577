package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "log/slog"
)

type ValidatorOptions struct {
	Attempts     int           // classification attempts per validation
	AttemptPause time.Duration // pause between attempts
	Warmup       time.Duration // time for the user to position the pouch
}

// Validator reduces a handful of classifications to one verdict.
type Validator struct {
	camera   Camera
	classify Classifier
	attempts int
	pause    time.Duration
	warmup   time.Duration
}

func NewValidator(camera Camera, classify Classifier, opt ValidatorOptions) *Validator {
	if opt.Attempts <= 0 {
		opt.Attempts = 3
	}
	if opt.AttemptPause < 0 {
		opt.AttemptPause = 0
	}
	return &Validator{
		camera:   camera,
		classify: classify,
		attempts: opt.Attempts,
		pause:    opt.AttemptPause,
		warmup:   opt.Warmup,
	}
}

// Validate captures and classifies a few frames, tallies votes per color,
// and accepts only when the plurality color matches expected with at least
// half the attempts behind it. "Wrong pouch" and "no pouch shown" are
// indistinguishable here on purpose: both come back false, and the caller's
// retry story stays uniform.
func (v *Validator) Validate(ctx context.Context, expected string) bool {
	if !sleepCtx(ctx, v.warmup) {
		return false
	}

	votes := make(map[string]int)
	for i := 0; i < v.attempts; i++ {
		if i > 0 && !sleepCtx(ctx, v.pause) {
			return false
		}

		frame, err := v.camera.Capture(ctx)
		if err != nil {
			log.Warn("Camera capture failed", "attempt", i+1, "err", err)
			continue
		}
		color, err := v.classify.DetectColor(ctx, frame)
		if err != nil {
			log.Warn("Color classification failed", "attempt", i+1, "err", err)
			continue
		}
		if !Palette[color] {
			continue // "none" and noise don't vote
		}
		votes[color]++
	}

	if len(votes) == 0 {
		log.Warn("No color detected", "expected", expected)
		return false
	}

	winner, count := "", 0
	for color, n := range votes {
		if n > count || (n == count && color < winner) {
			winner, count = color, n
		}
	}

	confidence := 100 * count / v.attempts
	log.Info("Pouch classification tallied", "winner", winner, "confidence", confidence, "expected", expected)

	return winner == expected && confidence >= 50
}

// Snapshot stores a verification photo at path.
func (v *Validator) Snapshot(ctx context.Context, path string) error {
	frame, err := v.camera.Capture(ctx)
	if err != nil {
		return fmt.Errorf("verification capture: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, frame, 0o644)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
