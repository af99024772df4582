// Package daemon coordinates the long-running scribe process.
//
// It wires configuration, the job registry, admission control, the workflow
// manager, the expiry reaper, and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances. The Daemon type is the
// transport-agnostic surface (Submit, Status, List, Health); the HTTP server
// in this package is one adapter over it.
//
// Keep orchestration logic here: individual workflow steps should live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
