package config

import (
	"reflect"
	"strings"

	logx "tickkit/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus structured
// attrs for logging the new values. Used by the app when a hot reload lands
// so operators can see what actually changed.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Tick.Rate) != strings.TrimSpace(newCfg.Tick.Rate) {
		changed = append(changed, "tick")
		attrs = append(attrs, logx.String("tick.rate", strings.TrimSpace(newCfg.Tick.Rate)))
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Int64("scheduler.seed", newCfg.Scheduler.Seed),
			logx.Float64("scheduler.violations_per_sec", newCfg.Scheduler.ViolationsPerSec),
		)
	}

	if !reflect.DeepEqual(oldCfg.Sim, newCfg.Sim) {
		changed = append(changed, "sim")
		attrs = append(attrs,
			logx.Bool("sim.enabled", newCfg.SimEnabled()),
			logx.Int("sim.agents", newCfg.Sim.Agents),
			logx.Int("sim.cadence_count", len(newCfg.Sim.Cadences)),
		)
	}

	if !storageEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		attrs = append(attrs, logx.String("storage.driver", driver))
	}

	if oldCfg.Ops != newCfg.Ops {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", strings.TrimSpace(newCfg.Ops.Addr)),
		)
	}

	if oldCfg.Reporter != newCfg.Reporter {
		changed = append(changed, "reporter")
		attrs = append(attrs,
			logx.Bool("reporter.enabled", newCfg.Reporter.Enabled),
			logx.String("reporter.spec", strings.TrimSpace(newCfg.Reporter.Spec)),
		)
	}

	return changed, attrs
}

func storageEqual(a, b *StorageConfig) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
