// Package services defines shared utilities consumed by the workflow manager
// and the external media collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag failures so they
//     can be classified (rejected, validation, extraction, inference,
//     not_found, timeout, internal) without string matching.
//   - FailureMessage, which renders the classified text stored on failed jobs.
//
// Use these helpers when wiring new collaborator logic so failure surfacing
// stays uniform across the service.
package services
