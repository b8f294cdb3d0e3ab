package app

import (
	"strings"
	"testing"
	"time"

	"tickkit/internal/config"
	"tickkit/internal/sched"
	logx "tickkit/pkg/logx"
)

func TestFrameRowDeltas(t *testing.T) {
	t.Parallel()

	prev := sched.Stats{
		Update:           sched.PhaseTotals{Passes: 10, Due: 100, Invoked: 90, Purged: 1, Recovered: 0},
		Late:             sched.PhaseTotals{Passes: 10, Due: 40, Invoked: 40, Purged: 0, Recovered: 1},
		RegisteredUpdate: 50,
		RegisteredLate:   20,
	}
	cur := sched.Stats{
		Update:           sched.PhaseTotals{Passes: 11, Due: 112, Invoked: 100, Purged: 2, Recovered: 0},
		Late:             sched.PhaseTotals{Passes: 11, Due: 45, Invoked: 44, Purged: 0, Recovered: 2},
		RegisteredUpdate: 49,
		RegisteredLate:   19,
	}

	at := time.Now()
	row := frameRow(7, at, prev, cur, 3*time.Millisecond)

	if row.Tick != 7 || !row.At.Equal(at) {
		t.Fatalf("tick/at mismatch: %+v", row)
	}
	if row.Registered != 49 || row.LateReg != 19 {
		t.Fatalf("registered counts should be point-in-time, got %d/%d", row.Registered, row.LateReg)
	}
	if row.Due != 12 || row.Invoked != 10 {
		t.Fatalf("update deltas: due=%d invoked=%d", row.Due, row.Invoked)
	}
	if row.LateDue != 5 || row.LateInvoke != 4 {
		t.Fatalf("late deltas: due=%d invoked=%d", row.LateDue, row.LateInvoke)
	}
	if row.Purged != 1 || row.Recovered != 1 {
		t.Fatalf("purged/recovered deltas: %d/%d", row.Purged, row.Recovered)
	}
	if row.Elapsed != 3*time.Millisecond {
		t.Fatalf("elapsed: %v", row.Elapsed)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	boolPtr := func(b bool) *bool { return &b }

	cases := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{name: "defaults ok", mutate: func(*config.Config) {}},
		{
			name:    "bad tick rate",
			mutate:  func(cfg *config.Config) { cfg.Tick.Rate = "fast" },
			wantErr: "tick.rate",
		},
		{
			name:    "negative violations rate",
			mutate:  func(cfg *config.Config) { cfg.Scheduler.ViolationsPerSec = -1 },
			wantErr: "violations_per_sec",
		},
		{
			name:    "late share out of range",
			mutate:  func(cfg *config.Config) { cfg.Sim.LateShare = 1.5 },
			wantErr: "late_share",
		},
		{
			name:    "zero cadence",
			mutate:  func(cfg *config.Config) { cfg.Sim.Cadences = []int{4, 0} },
			wantErr: "cadence",
		},
		{
			name: "bad storage flush",
			mutate: func(cfg *config.Config) {
				cfg.Storage = &config.StorageConfig{Driver: "sqlite", FlushEvery: "soon"}
			},
			wantErr: "flush_every",
		},
		{
			name:   "sim disabled skips nothing else",
			mutate: func(cfg *config.Config) { cfg.Sim.Enabled = boolPtr(false) },
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{}
			tc.mutate(cfg)
			err := validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestOpenStorageDisabled(t *testing.T) {
	t.Parallel()

	store, flushEvery, err := openStorage(nil, logx.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store != nil {
		t.Fatal("nil section should disable storage")
	}
	if flushEvery != 2*time.Second {
		t.Fatalf("default flush interval: %v", flushEvery)
	}

	store, _, err = openStorage(&config.StorageConfig{Driver: "none"}, logx.Nop())
	if err != nil || store != nil {
		t.Fatalf("driver none should disable storage, got store=%v err=%v", store, err)
	}
}
