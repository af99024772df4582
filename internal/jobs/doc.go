// Package jobs holds transcription jobs in a memory-resident SQLite registry
// and exposes helpers for driving their lifecycle.
//
// The Store owns every record: creation assigns a monotonically increasing id
// (SQLite AUTOINCREMENT, so ids are never reused even after expiry), updates
// are validated against the status state machine inside a transaction, and
// Claim hands the oldest pending upload to exactly one worker while clearing
// the payload from the registry. All statements share a single connection, so
// the database itself is the one lock guarding the record set.
//
// Nothing survives a restart. The registry is a bounded working set whose
// records are removed by the reaper once they outlive the retention horizon.
package jobs
