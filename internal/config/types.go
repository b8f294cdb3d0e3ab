package config

// Config is the whole tickd configuration file (YAML or JSON).
//
// All durations are Go duration strings (e.g. "50ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Tick      TickConfig      `json:"tick"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Sim       SimConfig       `json:"sim"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Ops       OpsConfig       `json:"ops,omitempty"`
	Reporter  ReporterConfig  `json:"reporter,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// TickConfig controls the fixed-timestep frame loop.
type TickConfig struct {
	// Rate is the wall-clock interval between ticks. Defaults to "50ms".
	Rate string `json:"rate,omitempty"`
}

// SchedulerConfig controls the periodic-update scheduler core.
type SchedulerConfig struct {
	// Seed pins the phase-offset RNG for reproducible runs. Zero means a
	// time-based seed.
	Seed int64 `json:"seed,omitempty"`

	// ViolationsPerSec caps how often expired-registrant warnings hit the
	// log. Zero means 1/sec.
	ViolationsPerSec float64 `json:"violations_per_sec,omitempty"`
}

// SimConfig sizes the synthetic agent workload.
//
// Enabled is a pointer so that an omitted section defaults to enabled.
type SimConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	// Agents is the number of wandering agents to spawn. Default 500.
	Agents int `json:"agents,omitempty"`

	// Cadences is the pool of update cadences agents draw from.
	// Default [1, 2, 4, 8].
	Cadences []int `json:"cadences,omitempty"`

	// LateShare is the fraction of agents also registered in the late
	// phase. Default 0.5.
	LateShare float64 `json:"late_share,omitempty"`

	// ToggleEvery is the census cadence in ticks: every that many ticks a
	// fraction of agents flips enablement. Default 64.
	ToggleEvery int `json:"toggle_every,omitempty"`

	// Seed pins the workload RNG. Zero means a time-based seed.
	Seed int64 `json:"seed,omitempty"`
}

// StorageConfig controls frame-history persistence.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If the section is omitted or Driver is empty/"none", storage is disabled.
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`

	// FlushEvery batches frame rows before writing. Default "2s".
	FlushEvery string `json:"flush_every,omitempty"`

	// Retention keeps at most this many frame rows. Zero means 100000.
	Retention int `json:"retention,omitempty"`
}

// OpsConfig controls the metrics/health HTTP server.
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default 127.0.0.1:9190

	// Pprof exposes /debug/pprof/ on the ops listener.
	Pprof bool `json:"pprof,omitempty"`
}

// ReporterConfig controls the wall-clock snapshot reporter.
type ReporterConfig struct {
	Enabled bool `json:"enabled"`

	// Spec is a cron spec or descriptor ("@every 1m", "*/5 * * * *").
	// Default "@every 1m".
	Spec string `json:"spec,omitempty"`
}

// SimEnabled resolves the pointer default: an omitted sim section means on.
func (c *Config) SimEnabled() bool {
	if c.Sim.Enabled == nil {
		return true
	}
	return *c.Sim.Enabled
}
