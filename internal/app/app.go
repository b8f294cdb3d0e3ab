package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tickkit/internal/config"
	"tickkit/internal/eventbus"
	"tickkit/internal/runtime/supervisor"
	"tickkit/internal/sched"
	"tickkit/internal/services/ops"
	"tickkit/internal/services/reporter"
	"tickkit/internal/sim"
	"tickkit/internal/storage"
	logx "tickkit/pkg/logx"
)

// StopReason labels why the app is shutting down, for the final log line.
type StopReason string

const (
	StopSignal StopReason = "signal"
	StopFatal  StopReason = "fatal"
)

// App wires the daemon together: config manager, log service, event bus,
// storage, scheduler, sim world, ops server and reporter. Everything
// long-running runs under the supervisor; the frame loop is the only
// goroutine that touches the scheduler.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	bus   eventbus.Bus
	store storage.Store

	sched *sched.Scheduler
	world *sim.World

	ops *ops.Service
	rep *reporter.Service

	tickRate   time.Duration
	flushEvery time.Duration
	rateCh     chan time.Duration

	// snap is the loop's synchronized view of cumulative counters; the
	// reporter reads it from the cron goroutine.
	mu   sync.Mutex
	snap reporter.Snapshot
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// Logging service mapping
	logs, log := logx.New(mapLogging(cfg.Logging))
	log = log.With(logx.String("comp", "app"))

	tickRate, err := config.ParseDurationOrDefault("tick.rate", cfg.Tick.Rate, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	store, flushEvery, err := openStorage(cfg.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	core := sched.New(sched.Config{
		Seed:             cfg.Scheduler.Seed,
		ViolationsPerSec: cfg.Scheduler.ViolationsPerSec,
	}, log.With(logx.String("comp", "sched")))

	var world *sim.World
	if cfg.SimEnabled() {
		world = sim.NewWorld(sim.Config{
			Agents:      cfg.Sim.Agents,
			Cadences:    cfg.Sim.Cadences,
			LateShare:   cfg.Sim.LateShare,
			ToggleEvery: cfg.Sim.ToggleEvery,
			Seed:        cfg.Sim.Seed,
		}, log.With(logx.String("comp", "sim")), core)
	}

	a := &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logs,
		bus:        bus,
		store:      store,
		sched:      core,
		world:      world,
		tickRate:   tickRate,
		flushEvery: flushEvery,
		rateCh:     make(chan time.Duration, 1),
	}

	a.ops = ops.New(ops.Config{
		Enabled: cfg.Ops.Enabled,
		Addr:    cfg.Ops.Addr,
		Pprof:   cfg.Ops.Pprof,
	}, log.With(logx.String("comp", "ops")))

	a.rep = reporter.New(reporter.Config{
		Enabled: cfg.Reporter.Enabled,
		Spec:    cfg.Reporter.Spec,
	}, log.With(logx.String("comp", "reporter")), a.snapshot, store)

	return a, nil
}

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if a.ops.Enabled() {
		if err := a.ops.Start(a.sup.Context()); err != nil {
			return err
		}
		a.sup.Go0("ops.consume", func(c context.Context) {
			a.ops.Consume(c, a.bus)
		})
	}

	if a.store != nil {
		a.sup.Go0("storage.flush", a.flushLoop)
	}

	a.sup.Go("frame.loop", a.runLoop)

	if a.rep.Enabled() {
		if err := a.rep.Start(); err != nil {
			return err
		}
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("app started", logx.Duration("tick_rate", a.tickRate))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		fn(stepCtx)
		a.log.Debug("stop step done", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("reporter", 3*time.Second, a.rep.Stop)
	step("ops", 3*time.Second, a.ops.Stop)

	a.sup.Stop(5 * time.Second)

	if a.store != nil {
		step("storage", 3*time.Second, func(context.Context) {
			if err := a.store.Close(); err != nil {
				a.log.Warn("storage close failed", logx.Err(err))
			}
		})
	}

	a.log.Info("app stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return a.sup.Err()
}

// reloadLoop applies hot-reloadable sections (logging, tick rate) and logs
// which sections need a restart to take effect.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				lastApplied = newCfg
				continue
			}
			lastApplied = newCfg

			a.logs.Apply(mapLogging(newCfg.Logging))

			if has(sections, "tick") {
				rate, err := config.ParseDurationOrDefault("tick.rate", newCfg.Tick.Rate, 50*time.Millisecond)
				if err != nil {
					a.log.Warn("invalid tick.rate; keeping current", logx.Err(err))
				} else {
					// Drop-stale: only the latest rate matters.
					select {
					case <-a.rateCh:
					default:
					}
					a.rateCh <- rate
				}
			}

			for _, s := range sections {
				switch s {
				case "logging", "tick":
				default:
					a.log.Info("config change requires restart", logx.String("section", s))
				}
			}

			a.log.Info("config reloaded",
				append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
		}
	}
}

func validate(cfg *config.Config) error {
	if _, err := config.ParseDurationField("tick.rate", cfg.Tick.Rate); err != nil {
		return err
	}
	if cfg.Scheduler.ViolationsPerSec < 0 {
		return fmt.Errorf("scheduler.violations_per_sec must be >= 0")
	}
	if cfg.Sim.Agents < 0 {
		return fmt.Errorf("sim.agents must be >= 0")
	}
	if cfg.Sim.LateShare < 0 || cfg.Sim.LateShare > 1 {
		return fmt.Errorf("sim.late_share must be in [0, 1]")
	}
	for _, c := range cfg.Sim.Cadences {
		if c < 1 {
			return fmt.Errorf("sim.cadences: cadence must be >= 1, got %d", c)
		}
	}
	if cfg.Storage != nil {
		if _, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
		if _, err := config.ParseDurationField("storage.flush_every", cfg.Storage.FlushEvery); err != nil {
			return err
		}
		if cfg.Storage.Retention < 0 {
			return fmt.Errorf("storage.retention must be >= 0")
		}
	}
	return nil
}

func mapLogging(cfg config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   cfg.Level,
		Console: cfg.Console,
		File: logx.FileConfig{
			Enabled: cfg.File.Enabled,
			Path:    cfg.File.Path,
		},
	}
}

func openStorage(cfg *config.StorageConfig, log logx.Logger) (storage.Store, time.Duration, error) {
	const defaultFlush = 2 * time.Second
	if cfg == nil {
		return nil, defaultFlush, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.BusyTimeout)
	if err != nil {
		return nil, 0, err
	}
	flushEvery, err := config.ParseDurationOrDefault("storage.flush_every", cfg.FlushEvery, defaultFlush)
	if err != nil {
		return nil, 0, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Driver,
		Path:        cfg.Path,
		BusyTimeout: busy,
		Retention:   cfg.Retention,
	}, log)
	if err != nil {
		return nil, 0, err
	}
	return store, flushEvery, nil
}

func has(sections []string, name string) bool {
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}
