package wake

import (
	"context"
	"errors"
	"time"

	log "log/slog"
)

// FramePuller opens a fresh input stream and feeds fixed-length frames to
// fn until fn reports done or the context ends.
type FramePuller interface {
	Frames(ctx context.Context, frameLen int, fn func([]int16) bool) error
}

// Listener runs bounded listening attempts against the detector. Each Wait
// opens its own stream; no state carries over between attempts beyond what
// the classifier itself keeps.
type Listener struct {
	det    Detector
	mic    FramePuller
	window time.Duration
}

func NewListener(det Detector, mic FramePuller, window time.Duration) *Listener {
	return &Listener{det: det, mic: mic, window: window}
}

// Wait pulls frames until the keyword fires, the listening window elapses,
// or ctx is cancelled. It returns true only on a match; an elapsed window
// is (false, nil) so the caller can re-check its other triggers and listen
// again.
func (l *Listener) Wait(ctx context.Context) (bool, error) {
	wctx := ctx
	if l.window > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, l.window)
		defer cancel()
	}

	matched := false
	err := l.mic.Frames(wctx, l.det.FrameLength(), func(frame []int16) bool {
		idx, perr := l.det.Process(frame)
		if perr != nil {
			log.Warn("Keyword classifier error", "err", perr)
			return false
		}
		if idx >= 0 {
			matched = true
			return true
		}
		return false
	})

	if matched {
		return true, nil
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return false, err
	}
	// Surface cancellation of the caller's context, not of our window.
	return false, ctx.Err()
}
