// Package sched provides an amortized periodic-update scheduler.
//
// # Overview
//
// The scheduler lets a large number of independently registered tasks each be
// invoked once every "cadence" ticks without inspecting all of them on every
// tick and without bursty frames when many tasks share a cadence. Each entry
// gets a random phase offset in [0, cadence) at registration, so tasks with
// the same cadence spread their due ticks evenly across the cadence window.
//
// An entry with cadence c and offset o is due on tick t exactly when
// (t + o) mod c == 0: once per c consecutive ticks, deterministically placed
// by the offset.
//
// # Phases
//
// A frame has two dispatch passes: update, then late. The two phases are
// backed by independent registries; a task may participate in one, both, or
// neither, with independent cadences and offsets. The host must finish
// Tick(t) before calling LateTick(t) for the same tick.
//
// # Concurrency
//
// The scheduler is single-threaded and cooperative. All calls (Register,
// Unregister, Tick, LateTick, Step) must come from the one goroutine that
// owns the frame loop. There are no locks inside; callbacks run inline and
// must return promptly.
//
// # Lifetime
//
// The scheduler never owns a task. Callers register on activation and must
// unregister before the task becomes invalid. Registrants that can go stale
// without a chance to unregister may implement Expirable; the registry then
// purges them defensively at their next due check and logs the contract
// violation.
package sched
