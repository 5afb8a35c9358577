package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	log "log/slog"

	rcron "github.com/robfig/cron/v3"
)

// Reminder is one due medication instance. The scheduler's sweep creates
// and evicts reminders; only the device loop flips Acknowledged, via
// Acknowledge, so the flag has a single writer.
type Reminder struct {
	MedicationID string
	Name         string
	Color        string
	Dosage       string
	Instructions string
	ScheduledAt  string // "HH:MM" of the slot that raised it
	CreatedAt    time.Time
	Acknowledged bool
}

type Options struct {
	SweepEvery time.Duration    // cadence of the background sweep
	Window     time.Duration    // ± tolerance around each scheduled time
	Staleness  time.Duration    // reminders older than this are evicted
	Now        func() time.Time // test hook
}

type Scheduler struct {
	schedule   Schedule
	sweepEvery time.Duration
	window     time.Duration
	staleness  time.Duration
	now        func() time.Time

	mu     sync.Mutex
	active map[string]*Reminder
	// raised remembers which (medication, slot, day) already produced a
	// reminder, so an evicted or acknowledged one is never re-offered while
	// its time window is still open.
	raised map[string]time.Time

	cron *rcron.Cron
}

func New(schedule Schedule, opt Options) *Scheduler {
	if opt.SweepEvery <= 0 {
		opt.SweepEvery = time.Minute
	}
	if opt.Window <= 0 {
		opt.Window = 30 * time.Minute
	}
	if opt.Staleness <= 0 {
		opt.Staleness = time.Hour
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Scheduler{
		schedule:   schedule,
		sweepEvery: opt.SweepEvery,
		window:     opt.Window,
		staleness:  opt.Staleness,
		now:        opt.Now,
		active:     make(map[string]*Reminder),
		raised:     make(map[string]time.Time),
	}
}

// Start begins the background sweep on its own cadence.
func (s *Scheduler) Start() error {
	s.cron = rcron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.sweepEvery), s.Sweep); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}
	s.cron.Start()
	log.Info("Medication scheduler started", "medications", len(s.schedule), "sweep", s.sweepEvery)
	return nil
}

// Stop halts the sweep, waiting at most timeout for a running sweep to
// drain.
func (s *Scheduler) Stop(timeout time.Duration) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
		log.Warn("Scheduler sweep did not drain in time")
	}
	log.Info("Medication scheduler stopped")
}

// Sweep evicts stale reminders and raises new ones for every medication
// whose scheduled time-of-day is within the tolerance window of now.
func (s *Scheduler) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.active {
		if now.Sub(r.CreatedAt) > s.staleness {
			delete(s.active, id)
			log.Info("Medication reminder evicted", "med", id)
		}
	}
	for key, at := range s.raised {
		if now.Sub(at) > 24*time.Hour {
			delete(s.raised, key)
		}
	}

	for _, id := range s.sortedIDs() {
		if _, ok := s.active[id]; ok {
			continue
		}
		med := s.schedule[id]
		for _, hhmm := range med.Times {
			slot, err := nearestOccurrence(hhmm, now)
			if err != nil {
				log.Warn("Bad schedule time", "med", id, "time", hhmm)
				continue
			}
			if absDur(now.Sub(slot)) > s.window {
				continue
			}

			key := fmt.Sprintf("%s@%s@%s", id, hhmm, slot.Format("2006-01-02"))
			if _, seen := s.raised[key]; seen {
				continue
			}

			s.active[id] = &Reminder{
				MedicationID: id,
				Name:         med.Name,
				Color:        med.Color,
				Dosage:       med.Dosage,
				Instructions: med.Instructions,
				ScheduledAt:  hhmm,
				CreatedAt:    now,
			}
			s.raised[key] = now
			log.Info("Medication reminder raised", "med", med.Name, "color", med.Color, "slot", hhmm)
			break
		}
	}
}

// Active returns a copy of the one reminder currently surfaced: the
// unacknowledged reminder with the earliest scheduled time-of-day, ties
// broken by medication id. Nil when nothing is due.
func (s *Scheduler) Active() *Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Reminder
	for _, r := range s.active {
		if r.Acknowledged {
			continue
		}
		if best == nil ||
			r.ScheduledAt < best.ScheduledAt ||
			(r.ScheduledAt == best.ScheduledAt && r.MedicationID < best.MedicationID) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

// Acknowledge marks a reminder taken. Idempotent; unknown ids are ignored.
// The entry stays in the active set (flagged) until staleness eviction so a
// later sweep cannot resurrect it inside the same window.
func (s *Scheduler) Acknowledge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.active[id]; ok && !r.Acknowledged {
		r.Acknowledged = true
		log.Info("Medication reminder acknowledged", "med", id)
	}
}

func (s *Scheduler) sortedIDs() []string {
	ids := make([]string, 0, len(s.schedule))
	for id := range s.schedule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// nearestOccurrence resolves "HH:MM" to the concrete occurrence closest to
// now, looking one day either side so windows that straddle midnight work.
func nearestOccurrence(hhmm string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}

	best := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	for _, cand := range []time.Time{best.AddDate(0, 0, -1), best.AddDate(0, 0, 1)} {
		if absDur(now.Sub(cand)) < absDur(now.Sub(best)) {
			best = cand
		}
	}
	return best, nil
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
