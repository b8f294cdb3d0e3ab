// Package reporter emits periodic wall-clock snapshots of the frame loop:
// cumulative scheduler counters plus the workload census, logged and
// persisted as a summary row. Runs on a cron spec so operators can line
// reports up with their other tooling.
package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"tickkit/internal/storage"
	logx "tickkit/pkg/logx"
)

type Config struct {
	Enabled bool
	Spec    string // cron spec or descriptor; default "@every 1m"
}

// Snapshot is the data a report covers. Produced by the app from its own
// synchronized view of the loop; the provider must be safe for concurrent
// use since reports fire on the cron goroutine.
type Snapshot struct {
	Ticks          uint64
	Invoked        uint64
	LateInvoked    uint64
	Purged         uint64
	Recovered      uint64
	Registered     int
	LateRegistered int
	Agents         int
}

type Service struct {
	log    logx.Logger
	cfg    Config
	parser cron.Parser
	c      *cron.Cron

	snapshot func() Snapshot
	store    storage.Store

	last Snapshot
}

func New(cfg Config, log logx.Logger, snapshot func() Snapshot, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		snapshot: snapshot,
		store:    store,
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.snapshot == nil {
		return errors.New("reporter: snapshot provider is required")
	}
	spec := s.cfg.Spec
	if spec == "" {
		spec = "@every 1m"
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return err
	}

	s.c = cron.New(cron.WithParser(s.parser))
	s.c.Schedule(schedule, cron.FuncJob(s.run))
	s.c.Start()
	s.log.Info("reporter started", logx.String("spec", spec))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if s.c == nil {
		return
	}
	stop := s.c.Stop()
	select {
	case <-stop.Done():
	case <-ctx.Done():
	}
	s.c = nil
	s.log.Info("reporter stopped")
}

func (s *Service) run() {
	snap := s.snapshot()

	// Deltas against the previous report read better in logs than raw
	// monotonic totals.
	s.log.Info("frame report",
		logx.Uint64("ticks", snap.Ticks),
		logx.Uint64("invoked_delta", snap.Invoked-s.last.Invoked),
		logx.Uint64("late_invoked_delta", snap.LateInvoked-s.last.LateInvoked),
		logx.Uint64("purged", snap.Purged),
		logx.Uint64("recovered", snap.Recovered),
		logx.Int("registered", snap.Registered),
		logx.Int("late_registered", snap.LateRegistered),
		logx.Int("agents", snap.Agents),
	)
	s.last = snap

	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.store.AppendSummary(ctx, storage.SummaryRow{
		At:             time.Now(),
		Ticks:          snap.Ticks,
		Invoked:        snap.Invoked,
		LateInvoked:    snap.LateInvoked,
		Purged:         snap.Purged,
		Recovered:      snap.Recovered,
		Registered:     snap.Registered,
		LateRegistered: snap.LateRegistered,
		Agents:         snap.Agents,
	})
	if err != nil && !errors.Is(err, storage.ErrDisabled) {
		s.log.Warn("summary append failed", logx.Any("err", err))
	}
}
