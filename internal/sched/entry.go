package sched

// entry is one registration. Immutable after creation except the tombstone
// flag; changing cadence or offset requires re-registration.
type entry[T registrant] struct {
	task    T
	cadence int64
	offset  int64 // in [0, cadence)
	dead    bool
}

// dueOn reports whether an entry with the given cadence and offset is due on
// tick. Over any window of cadence consecutive ticks the condition holds for
// exactly one tick, placed by the offset.
func dueOn(tick, cadence, offset int64) bool {
	return (tick+offset)%cadence == 0
}
