// Package ops runs tickd's operational HTTP endpoint.
//
// It exposes:
//   - /healthz       (liveness)
//   - /metrics       (Prometheus)
//   - /debug/pprof/  (optional, config-gated)
//
// The collectors are fed from frame events on the event bus, so the frame
// loop never touches Prometheus directly.
//
// Security: bind to localhost unless the deployment fronts the port with
// something that handles auth.
package ops
