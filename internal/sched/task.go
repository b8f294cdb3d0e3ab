package sched

// Task is the capability set required to participate in the update phase.
//
// Contract:
//   - Enabled may change at any time; a due tick for a disabled task still
//     consumes the tick (the phase never shifts, there is no catch-up).
//   - Update must return promptly. It runs inline inside the host's frame
//     callback; a blocking task stalls every other task and the host loop.
//   - Update may call Register/Unregister, including on its own task.
type Task interface {
	Enabled() bool
	Update()
}

// LateTask is the capability set for the late phase. The same contract as
// Task applies; LateUpdate runs strictly after all update-phase invocations
// of the same tick.
type LateTask interface {
	Enabled() bool
	LateUpdate()
}

// Expirable is an optional capability. A registrant that can become
// permanently invalid without unregistering first implements it; the
// registry purges such entries when Expired() reports true at a due check.
// Registrants without it are bound by the strict contract: unregister
// before becoming invalid.
type Expirable interface {
	Expired() bool
}
