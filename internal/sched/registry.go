package sched

import (
	"math/rand"
)

// registrant is what a registry can hold: an identity-comparable value with
// an enable flag. Instantiated with Task and LateTask.
type registrant interface {
	comparable
	Enabled() bool
}

// registry is the backing store for one phase: a growable arena of entries
// plus a side index from task identity to arena positions.
//
// Removal tombstones the entry and drops the index reference; the arena is
// compacted opportunistically after a pass, never during one. That makes
// unregistering safe from inside a callback: a tombstoned entry that has not
// been visited yet is skipped for the rest of the pass, and iteration over
// the remaining entries is unaffected.
//
// Duplicate registration of the same identity creates an independent second
// entry; unregister removes every entry for the identity.
type registry[T registrant] struct {
	entries []entry[T]
	index   map[T][]int
	dead    int
	rng     *rand.Rand
	inPass  bool
}

func newRegistry[T registrant](rng *rand.Rand) *registry[T] {
	return &registry[T]{index: map[T][]int{}, rng: rng}
}

// register appends a new entry. Cadence values below 1 are normalized to 1;
// that is policy, not an error. The offset is drawn once and never changes.
func (r *registry[T]) register(task T, cadence int64) {
	if cadence < 1 {
		cadence = 1
	}
	var offset int64
	if cadence > 1 {
		offset = r.rng.Int63n(cadence)
	}
	r.index[task] = append(r.index[task], len(r.entries))
	r.entries = append(r.entries, entry[T]{task: task, cadence: cadence, offset: offset})
}

// unregister tombstones every entry for the identity. Unknown identities are
// a no-op.
func (r *registry[T]) unregister(task T) {
	positions, ok := r.index[task]
	if !ok {
		return
	}
	delete(r.index, task)
	for _, i := range positions {
		if !r.entries[i].dead {
			r.entries[i].dead = true
			r.dead++
		}
	}
	r.maybeCompact()
}

// len reports the number of live entries.
func (r *registry[T]) len() int {
	return len(r.entries) - r.dead
}

// passStats is the per-pass accounting for one registry walk.
type passStats struct {
	registered int
	due        int
	invoked    int
	purged     int
	recovered  int
}

// pass walks the arena once for the given tick. invoke runs the task's
// phase callback and reports whether it panicked (the caller recovers and
// logs). expired is consulted only for due entries; a true result purges the
// entry without invoking it.
//
// Entries registered during the pass are not visited until the next pass;
// the bound is captured up front so dispatch for a tick covers exactly the
// entries that existed when the pass began.
func (r *registry[T]) pass(tick int64, invoke func(T) bool, expired func(T) bool) passStats {
	r.inPass = true
	n := len(r.entries)
	st := passStats{registered: r.len()}
	for i := 0; i < n; i++ {
		if r.entries[i].dead {
			continue
		}
		if !dueOn(tick, r.entries[i].cadence, r.entries[i].offset) {
			continue
		}
		st.due++
		task := r.entries[i].task
		if expired != nil && expired(task) {
			r.removeAt(i)
			st.purged++
			continue
		}
		// A due-but-disabled entry still consumes the tick; the cadence
		// phase neither shifts nor pauses.
		if !task.Enabled() {
			continue
		}
		st.invoked++
		if invoke(task) {
			st.recovered++
		}
	}
	r.inPass = false
	r.maybeCompact()
	return st
}

// removeAt tombstones a single arena position and detaches it from the
// index, leaving any sibling entries for the same identity registered.
func (r *registry[T]) removeAt(i int) {
	if r.entries[i].dead {
		return
	}
	task := r.entries[i].task
	r.entries[i].dead = true
	r.dead++

	positions := r.index[task]
	for j, p := range positions {
		if p == i {
			positions = append(positions[:j], positions[j+1:]...)
			break
		}
	}
	if len(positions) == 0 {
		delete(r.index, task)
	} else {
		r.index[task] = positions
	}
}

// maybeCompact rewrites the arena without tombstones once they dominate.
// Deferred while a pass is running; the pass calls it again on the way out.
func (r *registry[T]) maybeCompact() {
	if r.inPass || r.dead == 0 {
		return
	}
	if r.dead*2 < len(r.entries) && r.dead < 1024 {
		return
	}
	live := make([]entry[T], 0, r.len())
	index := make(map[T][]int, len(r.index))
	for _, e := range r.entries {
		if e.dead {
			continue
		}
		index[e.task] = append(index[e.task], len(live))
		live = append(live, e)
	}
	r.entries = live
	r.index = index
	r.dead = 0
}
