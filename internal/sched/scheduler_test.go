package sched

import (
	"math/rand"
	"testing"

	logx "tickkit/pkg/logx"
)

// zeroSource pins every drawn phase offset to 0, making due ticks line up
// with tick 0 for any cadence.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func newTestScheduler(extra ...func(*Config)) *Scheduler {
	cfg := Config{Rand: rand.New(zeroSource{})}
	for _, fn := range extra {
		fn(&cfg)
	}
	return New(cfg, logx.Nop())
}

type recordTask struct {
	enabled bool
	ticks   []int64
	current *int64 // shared frame counter owned by the test
	hook    func()
}

func (t *recordTask) Enabled() bool { return t.enabled }
func (t *recordTask) Update() {
	t.ticks = append(t.ticks, *t.current)
	if t.hook != nil {
		t.hook()
	}
}

func TestConcreteCadenceScenario(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	var tick int64
	a := &recordTask{enabled: true, current: &tick}
	s.Register(a, 4)

	for tick = 0; tick <= 4; tick++ {
		s.Tick(tick)
	}
	want := []int64{0, 4}
	if len(a.ticks) != len(want) || a.ticks[0] != 0 || a.ticks[1] != 4 {
		t.Fatalf("invoked at %v, want %v", a.ticks, want)
	}
}

func TestDisableDoesNotShiftPhase(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	var tick int64
	a := &recordTask{enabled: true, current: &tick}
	s.Register(a, 4) // offset 0: due at 0, 4, 8, 12, ...

	for tick = 0; tick <= 12; tick++ {
		switch tick {
		case 3:
			a.enabled = false
		case 9:
			a.enabled = true
		}
		s.Tick(tick)
	}
	// Due ticks 4 and 8 fall in the disabled span and are consumed, not
	// deferred; re-enabling at 9 resumes at the next natural due tick.
	want := []int64{0, 12}
	if len(a.ticks) != 2 || a.ticks[0] != want[0] || a.ticks[1] != want[1] {
		t.Fatalf("invoked at %v, want %v", a.ticks, want)
	}
}

func TestUnregisterUnknownAndTwice(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	var tick int64
	a := &recordTask{enabled: true, current: &tick}
	s.Register(a, 1)
	s.Unregister(a)
	s.Unregister(a)
	s.Unregister(&recordTask{enabled: true, current: &tick})
	s.UnregisterLate(&lateRecord{})

	s.Tick(0)
	if len(a.ticks) != 0 {
		t.Fatalf("unregistered task invoked at %v", a.ticks)
	}
	if s.Len() != 0 || s.LateLen() != 0 {
		t.Fatalf("registries not empty: %d/%d", s.Len(), s.LateLen())
	}
}

func TestSelfUnregisterDuringCallback(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	var tick int64
	other := &recordTask{enabled: true, current: &tick}
	quitter := &recordTask{enabled: true, current: &tick}
	quitter.hook = func() { s.Unregister(quitter) }
	s.Register(quitter, 1)
	s.Register(other, 1)

	for tick = 0; tick < 3; tick++ {
		s.Tick(tick)
	}
	if len(quitter.ticks) != 1 || quitter.ticks[0] != 0 {
		t.Fatalf("quitter invoked at %v, want [0]", quitter.ticks)
	}
	if len(other.ticks) != 3 {
		t.Fatalf("other invoked %d times, want 3 (pass must survive self-removal)", len(other.ticks))
	}
}

type lateRecord struct {
	calls *[]string
}

func (l *lateRecord) Enabled() bool { return true }
func (l *lateRecord) LateUpdate() {
	if l.calls != nil {
		*l.calls = append(*l.calls, "late")
	}
}

type updateRecord struct {
	calls *[]string
}

func (u *updateRecord) Enabled() bool { return true }

func (u *updateRecord) Update() { *u.calls = append(*u.calls, "update") }

func TestPhaseOrdering(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	var calls []string
	s.Register(&updateRecord{calls: &calls}, 1)
	s.RegisterLate(&lateRecord{calls: &calls}, 1)

	for i := 0; i < 3; i++ {
		s.Step()
	}
	want := []string{"update", "late", "update", "late", "update", "late"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls[%d] = %s, want %s (full: %v)", i, calls[i], want[i], calls)
		}
	}
}

func TestLoadSpreading(t *testing.T) {
	t.Parallel()
	const (
		n       = 1000
		cadence = 16
	)
	s := New(Config{Rand: rand.New(rand.NewSource(12345))}, logx.Nop())
	var tick int64
	for i := 0; i < n; i++ {
		s.Register(&recordTask{enabled: true, current: &tick}, cadence)
	}

	perTick := make([]int, cadence)
	prev := s.Stats()
	for tick = 0; tick < cadence; tick++ {
		s.Tick(tick)
		cur := s.Stats()
		perTick[tick] = int(cur.Update.Due - prev.Update.Due)
		prev = cur
	}

	total := 0
	for tickIdx, count := range perTick {
		total += count
		// Expected n/cadence = 62.5 per tick. Random offsets must keep any
		// single tick far from absorbing a large share of n.
		if count == 0 || count > n/4 {
			t.Fatalf("tick %d has %d due tasks (distribution %v)", tickIdx, count, perTick)
		}
	}
	if total != n {
		t.Fatalf("total due over one window = %d, want %d", total, n)
	}
}

type expiringTask struct {
	enabled bool
	expired bool
	count   int
}

func (t *expiringTask) Enabled() bool { return t.enabled }
func (t *expiringTask) Expired() bool { return t.expired }
func (t *expiringTask) Update()       { t.count++ }

func TestExpiredRegistrantPurged(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	task := &expiringTask{enabled: true}
	s.Register(task, 1)

	s.Tick(0)
	task.expired = true // went stale without unregistering
	s.Tick(1)
	s.Tick(2)

	if task.count != 1 {
		t.Fatalf("count = %d, want 1 (no invocation after expiry)", task.count)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after defensive purge", s.Len())
	}
	if got := s.Stats().Update.Purged; got != 1 {
		t.Fatalf("Purged = %d, want 1", got)
	}
}

type panickyTask struct{}

func (panickyTask) Enabled() bool { return true }
func (panickyTask) Update()       { panic("boom") }

func TestPanicIsolatedToFailingTask(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	var tick int64
	healthy := &recordTask{enabled: true, current: &tick}
	s.Register(panickyTask{}, 1)
	s.Register(healthy, 1)

	for tick = 0; tick < 2; tick++ {
		s.Tick(tick)
	}
	if len(healthy.ticks) != 2 {
		t.Fatalf("healthy task invoked %d times, want 2", len(healthy.ticks))
	}
	if got := s.Stats().Update.Recovered; got != 2 {
		t.Fatalf("Recovered = %d, want 2", got)
	}
}

func TestObserverReceivesPassStats(t *testing.T) {
	t.Parallel()
	var seen []PassStats
	s := newTestScheduler(func(cfg *Config) {
		cfg.Observer = func(st PassStats) { seen = append(seen, st) }
	})
	var tick int64
	s.Register(&recordTask{enabled: true, current: &tick}, 1)
	s.Step()

	if len(seen) != 2 {
		t.Fatalf("observer saw %d passes, want 2", len(seen))
	}
	if seen[0].Phase != PhaseUpdate || seen[1].Phase != PhaseLate {
		t.Fatalf("phase order = %s,%s", seen[0].Phase, seen[1].Phase)
	}
	if seen[0].Invoked != 1 || seen[0].Registered != 1 {
		t.Fatalf("update pass stats = %+v", seen[0])
	}
}

func TestNilRegistrationIgnored(t *testing.T) {
	t.Parallel()
	s := newTestScheduler()
	s.Register(nil, 1)
	s.RegisterLate(nil, 1)
	s.Unregister(nil)
	s.UnregisterLate(nil)
	if s.Len() != 0 || s.LateLen() != 0 {
		t.Fatalf("nil registration created entries: %d/%d", s.Len(), s.LateLen())
	}
}
