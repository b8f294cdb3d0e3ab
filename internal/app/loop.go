package app

import (
	"context"
	"time"

	"tickkit/internal/eventbus"
	"tickkit/internal/sched"
	"tickkit/internal/services/reporter"
	"tickkit/internal/storage"
	logx "tickkit/pkg/logx"
)

// runLoop is the fixed-timestep frame loop. It is the only goroutine that
// calls into the scheduler; every frame runs the update pass then the late
// pass on the same tick, publishes the combined frame stats, and refreshes
// the reporter snapshot.
func (a *App) runLoop(ctx context.Context) error {
	if a.world != nil {
		a.world.Spawn()
	}

	ticker := time.NewTicker(a.tickRate)
	defer ticker.Stop()

	var tick int64
	prev := a.sched.Stats()
	for {
		select {
		case <-ctx.Done():
			return nil
		case rate := <-a.rateCh:
			ticker.Reset(rate)
			a.log.Info("tick rate changed", logx.Duration("rate", rate))
		case <-ticker.C:
			start := time.Now()
			a.sched.Tick(tick)
			a.sched.LateTick(tick)
			cur := a.sched.Stats()

			row := frameRow(tick, start, prev, cur, time.Since(start))
			a.bus.Publish(eventbus.Event{Type: eventbus.TypeFrame, Time: start, Data: row})
			a.refreshSnapshot(cur)

			prev = cur
			tick++
		}
	}
}

// frameRow turns two consecutive counter snapshots into one per-frame row.
func frameRow(tick int64, at time.Time, prev, cur sched.Stats, elapsed time.Duration) storage.FrameRow {
	return storage.FrameRow{
		Tick:       tick,
		At:         at,
		Registered: cur.RegisteredUpdate,
		LateReg:    cur.RegisteredLate,
		Due:        int(cur.Update.Due - prev.Update.Due),
		Invoked:    int(cur.Update.Invoked - prev.Update.Invoked),
		LateDue:    int(cur.Late.Due - prev.Late.Due),
		LateInvoke: int(cur.Late.Invoked - prev.Late.Invoked),
		Purged:     int(cur.Update.Purged - prev.Update.Purged + cur.Late.Purged - prev.Late.Purged),
		Recovered:  int(cur.Update.Recovered - prev.Update.Recovered + cur.Late.Recovered - prev.Late.Recovered),
		Elapsed:    elapsed,
	}
}

func (a *App) refreshSnapshot(st sched.Stats) {
	agents := 0
	if a.world != nil {
		agents = a.world.AgentCount()
	}
	a.mu.Lock()
	a.snap = reporter.Snapshot{
		Ticks:          st.Update.Passes,
		Invoked:        st.Update.Invoked,
		LateInvoked:    st.Late.Invoked,
		Purged:         st.Update.Purged + st.Late.Purged,
		Recovered:      st.Update.Recovered + st.Late.Recovered,
		Registered:     st.RegisteredUpdate,
		LateRegistered: st.RegisteredLate,
		Agents:         agents,
	}
	a.mu.Unlock()
}

func (a *App) snapshot() reporter.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// flushLoop drains frame events into batched storage writes. A final flush
// runs on shutdown so the tail of the run is not lost.
func (a *App) flushLoop(ctx context.Context) {
	events, unsub := a.bus.Subscribe(256)
	defer unsub()

	t := time.NewTicker(a.flushEvery)
	defer t.Stop()

	batch := make([]storage.FrameRow, 0, 256)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.store.AppendFrames(wctx, batch); err != nil {
			a.log.Warn("frame flush failed", logx.Err(err), logx.Int("rows", len(batch)))
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-t.C:
			flush()
		case ev, ok := <-events:
			if !ok {
				flush()
				return
			}
			if ev.Type != eventbus.TypeFrame {
				continue
			}
			if row, ok := ev.Data.(storage.FrameRow); ok {
				batch = append(batch, row)
				if len(batch) >= 256 {
					flush()
				}
			}
		}
	}
}
