package sim

import (
	"testing"

	"tickkit/internal/sched"
	logx "tickkit/pkg/logx"
)

func TestWorldKeepsPopulationLevel(t *testing.T) {
	t.Parallel()
	s := sched.New(sched.Config{Seed: 7}, logx.Nop())
	w := NewWorld(Config{Agents: 200, ToggleEvery: 8, Seed: 7}, logx.Nop(), s)
	w.Spawn()

	if w.AgentCount() != 200 {
		t.Fatalf("AgentCount = %d, want 200", w.AgentCount())
	}
	for i := 0; i < 256; i++ {
		s.Step()
	}
	if w.AgentCount() != 200 {
		t.Fatalf("AgentCount after churn = %d, want 200 (spawn must replace despawns)", w.AgentCount())
	}
	// Registered entries: 200 agents + census, minus stale entries not yet
	// purged, plus late entries. Update registry can never be empty here.
	if s.Len() == 0 {
		t.Fatal("scheduler lost all entries")
	}
}

func TestWorldAgentsMove(t *testing.T) {
	t.Parallel()
	s := sched.New(sched.Config{Seed: 11}, logx.Nop())
	w := NewWorld(Config{Agents: 32, Cadences: []int{1}, Seed: 11}, logx.Nop(), s)
	// Agents only, no census: nothing may toggle enablement mid-test.
	for i := 0; i < w.cfg.Agents; i++ {
		w.spawnOne()
	}

	type pos struct{ x, y float64 }
	before := make(map[*Agent]pos, len(w.agents))
	for _, a := range w.agents {
		before[a] = pos{a.x, a.y}
	}
	for i := 0; i < 16; i++ {
		s.Step()
	}
	moved := 0
	for _, a := range w.agents {
		if p := before[a]; p.x != a.x || p.y != a.y {
			moved++
		}
	}
	if moved != len(w.agents) {
		t.Fatalf("%d of %d cadence-1 agents moved, want all", moved, len(w.agents))
	}
}

func TestWorldTeardownEmptiesScheduler(t *testing.T) {
	t.Parallel()
	s := sched.New(sched.Config{Seed: 3}, logx.Nop())
	w := NewWorld(Config{Agents: 100, ToggleEvery: 8, Seed: 3}, logx.Nop(), s)
	w.Spawn()

	for i := 0; i < 64; i++ {
		s.Step()
	}
	w.Teardown()
	// Stale entries linger until their next due check; the widest default
	// cadence bounds how long that takes.
	for i := 0; i < 16; i++ {
		s.Step()
	}
	if s.Len() != 0 || s.LateLen() != 0 {
		t.Fatalf("entries remain after teardown: update=%d late=%d", s.Len(), s.LateLen())
	}
	if w.AgentCount() != 0 {
		t.Fatalf("AgentCount = %d after teardown", w.AgentCount())
	}
}
