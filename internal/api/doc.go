// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal job records into transport-friendly DTOs so
// clients can render them without coupling to internal types.
//
// # Key Types
//
// Job: transport representation of a job record. Result fields are present
// only for completed jobs and error_message only for failed ones.
//
// SubmitResponse: acknowledgement returned when an upload is accepted.
//
// Health: active job count, per-status counts, workflow lanes, and external
// dependency availability.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the service's public contract.
// Timestamps use RFC3339 with milliseconds in UTC.
package api
