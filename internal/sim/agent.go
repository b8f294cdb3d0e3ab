package sim

import (
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// Agent is one wandering entity. It carries both phase capabilities:
// Update moves it, LateUpdate trails a smoothed position the way a camera
// or interpolation pass would.
type Agent struct {
	ID uuid.UUID

	x, y   float64
	vx, vy float64

	smoothX, smoothY float64

	enabled bool
	stale   bool // despawned without unregistering; purged lazily

	rng *rand.Rand
}

func newAgent(rng *rand.Rand) *Agent {
	a := &Agent{
		ID:      uuid.New(),
		x:       rng.Float64()*200 - 100,
		y:       rng.Float64()*200 - 100,
		enabled: true,
		rng:     rng,
	}
	a.retarget()
	return a
}

func (a *Agent) Enabled() bool { return a.enabled }

// Expired reports whether the agent despawned without unregistering.
// Opting into lazy purge keeps a rude despawn from leaving a dangling
// entry behind.
func (a *Agent) Expired() bool { return a.stale }

func (a *Agent) Update() {
	// Occasionally pick a new heading, then drift.
	if a.rng.Intn(16) == 0 {
		a.retarget()
	}
	a.x += a.vx
	a.y += a.vy
}

func (a *Agent) LateUpdate() {
	const alpha = 0.2
	a.smoothX += alpha * (a.x - a.smoothX)
	a.smoothY += alpha * (a.y - a.smoothY)
}

func (a *Agent) retarget() {
	angle := a.rng.Float64() * 2 * math.Pi
	speed := 0.5 + a.rng.Float64()
	a.vx = math.Cos(angle) * speed
	a.vy = math.Sin(angle) * speed
}
