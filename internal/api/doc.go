// Package api serves the live state of a dispatcher run over HTTP.
//
// Routes:
//
//	GET /api/status   engine status with per-core details
//	GET /api/cores    per-core details only
//	GET /api/metrics  metrics snapshot as JSON
//	GET /metrics      Prometheus exposition
//	    /ws           WebSocket stream of dispatcher events
package api
