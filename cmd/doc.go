// Package cmd defines the CLI commands for the hourswatch executable.
//
// Architecture overview:
//   - Poller: a single background loop renders the dashboard with headless Chrome, extracts
//     the two hour counts, and appends a snapshot to the configured log (local JSONL file,
//     GCS objects, Postgres table, or memory). Failed cycles back off before retrying.
//   - Responder: POST /api/hours acknowledges the Slack slash command at once and answers
//     later with an ephemeral message from a background task. Commands never write the log.
//   - Fanout: persisted snapshots are optionally published to Pub/Sub with trace context.
//   - Plumbing: Viper reads config from file and HOURSWATCH_* env vars; zap provides structured
//     logs; Prometheus metrics are served on /metrics.
//
// Commands:
//   - hourswatch serve runs the poller and HTTP API until SIGINT/SIGTERM.
//   - hourswatch poll runs the poller alone; --once runs one cycle and exits.
//   - hourswatch snapshots prints the raw snapshot log.
package cmd
