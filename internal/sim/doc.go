// Package sim provides tickd's synthetic workload: a population of
// wandering agents registered with the periodic-update scheduler at mixed
// cadences.
//
// The workload exists to exercise the scheduler the way a real entity
// system would: agents flip their enable flags, despawn from inside
// callbacks (both politely, by unregistering, and rudely, by going stale so
// the defensive purge path runs), and a share of them participates in the
// late phase.
//
// Everything in this package runs on the frame-loop goroutine, inside
// scheduler callbacks or app setup; it needs no synchronization of its own.
package sim
