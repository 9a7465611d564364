// Package api hosts the HTTP server, middleware, and handlers. Routes:
//   - POST /api/hours accepts the chat slash command (form fields user_id, channel_id).
//   - GET /api/snapshots returns the raw snapshot log.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
