package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

// Policy decides what happens to a due reminder that could not be delivered.
type Policy string

const (
	// PolicyDrop marks undelivered reminders fired anyway (at most once).
	PolicyDrop Policy = "drop"
	// PolicyRequeue leaves undelivered reminders pending for the next sweep.
	PolicyRequeue Policy = "requeue"
)

// Registry is the part of the reminder registry the sweeper needs.
type Registry interface {
	Due(now time.Time) []domain.Reminder
	MarkFired(ctx context.Context, ids ...string) (int, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Due         int
	Delivered   int
	Undelivered int
	Requeued    int
}

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	Interval       time.Duration // default 5s
	Policy         Policy        // default PolicyDrop
	DeliverTimeout time.Duration // per delivery; default 10s
	Now            func() time.Time
}

// Sweeper periodically fires due reminders. Sweeps are serialized, so a
// manual Sweep and a scheduled tick can never fire the same reminder twice.
type Sweeper struct {
	reg  Registry
	dir  *Directory
	opts SweeperOptions

	mu   sync.Mutex // one sweep at a time
	cron *cron.Cron
}

// NewSweeper returns a stopped sweeper.
func NewSweeper(reg Registry, dir *Directory, opts SweeperOptions) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Policy == "" {
		opts.Policy = PolicyDrop
	}
	if opts.DeliverTimeout <= 0 {
		opts.DeliverTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{reg: reg, dir: dir, opts: opts}
}

// every fires at a fixed period. cron.Every rounds to whole seconds, which
// would stretch sub-second and fractional intervals.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// Start schedules a sweep every Interval. Ticks that would overlap a
// running sweep are skipped.
func (s *Sweeper) Start() error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(every(s.opts.Interval), cron.FuncJob(func() {
		s.Sweep(context.Background(), s.opts.Now())
	}))
	s.cron = c
	c.Start()
	log.Info().Str("component", "sweeper").Dur("interval", s.opts.Interval).
		Str("policy", string(s.opts.Policy)).Msg("reminder sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep fires every reminder due at now: each one is resolved through the
// directory and, when a target is bound, sent a reminder:fire notification.
// Reminders are then marked fired and the store is persisted once.
// Undelivered reminders are marked fired under PolicyDrop and left pending
// under PolicyRequeue.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	due := s.reg.Due(now)
	res := SweepResult{Due: len(due)}
	if len(due) == 0 {
		return res
	}

	fired := make([]string, 0, len(due))
	for _, r := range due {
		ok := s.deliver(ctx, r)
		switch {
		case ok:
			res.Delivered++
			fired = append(fired, r.ID)
		case s.opts.Policy == PolicyRequeue:
			res.Undelivered++
			res.Requeued++
			remindersFired.WithLabelValues(outcomeRequeued).Inc()
		default:
			res.Undelivered++
			fired = append(fired, r.ID)
		}
	}

	if _, err := s.reg.MarkFired(ctx, fired...); err != nil {
		// In-memory state is already marked; the next write catches up.
		log.Error().Err(err).Str("component", "sweeper").Int("fired", len(fired)).
			Msg("persist after sweep failed")
	}

	log.Debug().Str("component", "sweeper").Int("due", res.Due).Int("delivered", res.Delivered).
		Int("undelivered", res.Undelivered).Int("requeued", res.Requeued).Msg("sweep done")
	return res
}

func (s *Sweeper) deliver(ctx context.Context, r domain.Reminder) bool {
	t, ok := s.dir.Resolve(r.Identity)
	if !ok {
		remindersFired.WithLabelValues(outcomeUnresolved).Inc()
		return false
	}
	dctx, cancel := context.WithTimeout(ctx, s.opts.DeliverTimeout)
	defer cancel()
	if err := t.Deliver(dctx, domain.FireNotification(r)); err != nil {
		remindersFired.WithLabelValues(outcomeFailed).Inc()
		log.Warn().Err(err).Str("component", "sweeper").Str("reminder_id", r.ID).
			Str("identity", r.Identity).Str("target", t.Kind()).Msg("reminder delivery failed")
		return false
	}
	remindersFired.WithLabelValues(outcomeDelivered).Inc()
	return true
}
