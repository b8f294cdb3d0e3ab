package sim

import (
	"math/rand"
	"time"

	"tickkit/internal/sched"
	logx "tickkit/pkg/logx"
)

type Config struct {
	Agents      int
	Cadences    []int
	LateShare   float64
	ToggleEvery int
	Seed        int64
}

func (c Config) withDefaults() Config {
	if c.Agents <= 0 {
		c.Agents = 500
	}
	if len(c.Cadences) == 0 {
		c.Cadences = []int{1, 2, 4, 8}
	}
	if c.LateShare < 0 || c.LateShare > 1 {
		c.LateShare = 0.5
	}
	if c.ToggleEvery <= 0 {
		c.ToggleEvery = 64
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// World owns the agent population and acts as the census task: registered
// at its own cadence, it churns the population from inside a scheduler
// callback, which is exactly where real games mutate registration state.
type World struct {
	log logx.Logger
	cfg Config
	rng *rand.Rand

	sched  *sched.Scheduler
	agents []*Agent
	late   map[*Agent]bool
}

func NewWorld(cfg Config, log logx.Logger, s *sched.Scheduler) *World {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &World{
		log:   log,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		sched: s,
		late:  map[*Agent]bool{},
	}
}

// Spawn builds the initial population and registers the census.
func (w *World) Spawn() {
	for i := 0; i < w.cfg.Agents; i++ {
		w.spawnOne()
	}
	w.sched.Register(w, w.cfg.ToggleEvery)
	w.log.Info("world spawned",
		logx.Int("agents", len(w.agents)),
		logx.Int("cadence_pool", len(w.cfg.Cadences)),
		logx.Int("census_cadence", w.cfg.ToggleEvery),
	)
}

// AgentCount reports the live population. Only valid on the frame-loop
// goroutine.
func (w *World) AgentCount() int { return len(w.agents) }

func (w *World) spawnOne() {
	a := newAgent(w.rng)
	w.agents = append(w.agents, a)
	cadence := w.cfg.Cadences[w.rng.Intn(len(w.cfg.Cadences))]
	w.sched.Register(a, cadence)
	if w.rng.Float64() < w.cfg.LateShare {
		w.sched.RegisterLate(a, cadence)
		w.late[a] = true
	}
}

// Enabled and Update make World a sched.Task: the census job.
func (w *World) Enabled() bool { return true }

// Update toggles a slice of the population and churns a little of it:
// some agents despawn politely (unregister), some go stale so the
// scheduler's defensive purge has something to do, and replacements keep
// the population level.
func (w *World) Update() {
	if len(w.agents) == 0 {
		return
	}

	toggles := len(w.agents) / 20
	for i := 0; i < toggles; i++ {
		a := w.agents[w.rng.Intn(len(w.agents))]
		a.enabled = !a.enabled
	}

	churn := len(w.agents) / 100
	for i := 0; i < churn; i++ {
		idx := w.rng.Intn(len(w.agents))
		a := w.agents[idx]
		if w.rng.Intn(2) == 0 {
			w.despawn(a)
		} else {
			// Rude despawn: the entry goes stale and is purged at its
			// next due check.
			a.stale = true
			a.enabled = false
			delete(w.late, a)
		}
		w.agents[idx] = w.agents[len(w.agents)-1]
		w.agents = w.agents[:len(w.agents)-1]
		w.spawnOne()
	}
}

func (w *World) despawn(a *Agent) {
	w.sched.Unregister(a)
	if w.late[a] {
		w.sched.UnregisterLate(a)
		delete(w.late, a)
	}
}

// Teardown unregisters everything that is still politely registered.
func (w *World) Teardown() {
	for _, a := range w.agents {
		w.despawn(a)
	}
	w.agents = nil
	w.sched.Unregister(w)
}
