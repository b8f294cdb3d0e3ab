package sched

import (
	"math/rand"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	logx "tickkit/pkg/logx"
)

// Phase names one of the two dispatch passes of a frame.
type Phase string

const (
	PhaseUpdate Phase = "update"
	PhaseLate   Phase = "late"
)

// PassStats describes one registry walk. Delivered to the Observer after
// every Tick/LateTick.
type PassStats struct {
	Phase      Phase
	Tick       int64
	Registered int // live entries when the pass began
	Due        int
	Invoked    int
	Purged     int // expired registrants removed defensively
	Recovered  int // panicking callbacks isolated
	Elapsed    time.Duration
}

// PhaseTotals accumulates pass counters for one phase.
type PhaseTotals struct {
	Passes    uint64
	Due       uint64
	Invoked   uint64
	Purged    uint64
	Recovered uint64
}

func (t *PhaseTotals) add(st passStats) {
	t.Passes++
	t.Due += uint64(st.due)
	t.Invoked += uint64(st.invoked)
	t.Purged += uint64(st.purged)
	t.Recovered += uint64(st.recovered)
}

// Stats is a point-in-time snapshot of scheduler counters, intended for
// diagnostics and reporting.
type Stats struct {
	Update PhaseTotals
	Late   PhaseTotals

	RegisteredUpdate int
	RegisteredLate   int
}

// Config controls a Scheduler.
type Config struct {
	// Rand supplies phase offsets. Nil falls back to Seed, or to a
	// time-based seed when Seed is zero. Inject a seeded source for
	// deterministic offset placement in tests.
	Rand *rand.Rand
	Seed int64

	// Observer, when set, receives PassStats after every pass. It runs
	// inline on the frame goroutine and must be cheap.
	Observer func(PassStats)

	// ViolationsPerSec caps how often expired-registrant warnings are
	// logged. Zero means 1/sec.
	ViolationsPerSec float64
}

// Scheduler owns the two phase registries and the dispatch entry points.
//
// One scheduler per process is a deployment choice, not a structural one:
// the composition root creates an instance and hands it to anything that
// registers. Not safe for concurrent use; see the package documentation.
type Scheduler struct {
	log logx.Logger
	rng *rand.Rand

	update *registry[Task]
	late   *registry[LateTask]

	tick int64 // next tick for Step

	obs       func(PassStats)
	totUpdate PhaseTotals
	totLate   PhaseTotals

	vlim *rate.Limiter
}

func New(cfg Config, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	rng := cfg.Rand
	if rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	vps := cfg.ViolationsPerSec
	if vps <= 0 {
		vps = 1
	}
	return &Scheduler{
		log:    log,
		rng:    rng,
		update: newRegistry[Task](rng),
		late:   newRegistry[LateTask](rng),
		obs:    cfg.Observer,
		vlim:   rate.NewLimiter(rate.Limit(vps), 5),
	}
}

// Register adds task to the update phase with the given cadence (ticks
// between invocations; values below 1 are normalized to 1). The task
// identity is the removal handle. Registering the same task again creates an
// independent second entry with its own offset.
func (s *Scheduler) Register(task Task, cadence int) {
	if task == nil {
		s.log.Warn("ignoring nil task registration", logx.String("phase", string(PhaseUpdate)))
		return
	}
	s.update.register(task, int64(cadence))
}

// Unregister removes every update-phase entry for task. Unknown tasks are a
// no-op. Safe to call from inside any callback, including the task's own.
func (s *Scheduler) Unregister(task Task) {
	if task == nil {
		return
	}
	s.update.unregister(task)
}

// RegisterLate and UnregisterLate mirror Register/Unregister for the late
// phase. The two registries are fully independent.
func (s *Scheduler) RegisterLate(task LateTask, cadence int) {
	if task == nil {
		s.log.Warn("ignoring nil task registration", logx.String("phase", string(PhaseLate)))
		return
	}
	s.late.register(task, int64(cadence))
}

func (s *Scheduler) UnregisterLate(task LateTask) {
	if task == nil {
		return
	}
	s.late.unregister(task)
}

// Tick dispatches the update phase for the host-supplied tick. The host
// calls it exactly once per frame, with a monotonically increasing tick.
func (s *Scheduler) Tick(tick int64) {
	start := time.Now()
	st := s.update.pass(tick, s.invokeUpdate, s.expiredTask)
	s.totUpdate.add(st)
	s.observe(PhaseUpdate, tick, st, time.Since(start))
}

// LateTick dispatches the late phase. Must be called after Tick for the
// same tick value, once all update-phase work of the frame is done.
func (s *Scheduler) LateTick(tick int64) {
	start := time.Now()
	st := s.late.pass(tick, s.invokeLate, s.expiredLateTask)
	s.totLate.add(st)
	s.observe(PhaseLate, tick, st, time.Since(start))
}

// Step runs both phases at the scheduler's internal tick counter and then
// advances it. Hosts that do not track their own tick drive the loop with
// Step alone.
func (s *Scheduler) Step() {
	s.Tick(s.tick)
	s.LateTick(s.tick)
	s.tick++
}

// Len and LateLen report live entry counts per phase.
func (s *Scheduler) Len() int     { return s.update.len() }
func (s *Scheduler) LateLen() int { return s.late.len() }

func (s *Scheduler) Stats() Stats {
	return Stats{
		Update:           s.totUpdate,
		Late:             s.totLate,
		RegisteredUpdate: s.update.len(),
		RegisteredLate:   s.late.len(),
	}
}

func (s *Scheduler) observe(phase Phase, tick int64, st passStats, elapsed time.Duration) {
	if s.obs == nil {
		return
	}
	s.obs(PassStats{
		Phase:      phase,
		Tick:       tick,
		Registered: st.registered,
		Due:        st.due,
		Invoked:    st.invoked,
		Purged:     st.purged,
		Recovered:  st.recovered,
		Elapsed:    elapsed,
	})
}

// invokeUpdate runs one callback with panic isolation: a failing task is
// reported and the pass continues for everyone else.
func (s *Scheduler) invokeUpdate(task Task) (panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			s.log.Error("task panicked in update",
				logx.Any("panic", rec),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	task.Update()
	return false
}

func (s *Scheduler) invokeLate(task LateTask) (panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			s.log.Error("task panicked in late update",
				logx.Any("panic", rec),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	task.LateUpdate()
	return false
}

func (s *Scheduler) expiredTask(task Task) bool {
	return s.expired(task, PhaseUpdate)
}

func (s *Scheduler) expiredLateTask(task LateTask) bool {
	return s.expired(task, PhaseLate)
}

// expired reports whether a registrant opted into lazy purge and has gone
// stale. Going stale without unregistering violates the usage contract, so
// it is surfaced in the log, rate-limited so a flood of stale entries after
// a mass despawn cannot drown everything else out.
func (s *Scheduler) expired(task any, phase Phase) bool {
	ex, ok := task.(Expirable)
	if !ok || !ex.Expired() {
		return false
	}
	if s.vlim.Allow() {
		s.log.Warn("purging expired registrant; tasks must unregister before becoming invalid",
			logx.String("phase", string(phase)),
		)
	}
	return true
}
