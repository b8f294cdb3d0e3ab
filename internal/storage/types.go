package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default

	// Retention keeps at most this many frame rows. 0 means 100000.
	Retention int
}

// FrameRow records one completed frame (both phases combined).
// Keep it compact and schema-stable.
type FrameRow struct {
	Tick       int64
	At         time.Time
	Registered int // live update-phase entries
	LateReg    int // live late-phase entries
	Due        int
	Invoked    int
	LateDue    int
	LateInvoke int
	Purged     int
	Recovered  int
	Elapsed    time.Duration
}

// SummaryRow records one reporter snapshot of cumulative counters.
type SummaryRow struct {
	At             time.Time
	Ticks          uint64
	Invoked        uint64
	LateInvoked    uint64
	Purged         uint64
	Recovered      uint64
	Registered     int
	LateRegistered int
	Agents         int
}

// Store is the minimal persistence API used by the app and reporter.
type Store interface {
	AppendFrames(ctx context.Context, rows []FrameRow) error
	AppendSummary(ctx context.Context, s SummaryRow) error
	Close() error
}
