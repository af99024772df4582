// Package workflow drives pending transcription jobs through audio extraction
// and speech inference.
//
// The Manager runs a fixed number of lanes, never more than the configured
// inference instances. Each lane claims the oldest pending job from the
// registry, extracts mono PCM audio, transcribes it, and records exactly one
// terminal state. Lanes block on a wake signal raised after admission or a
// poll interval, whichever comes first.
//
// Every job runs under its own wall-clock ceiling. Collaborator failures are
// classified (extraction, inference, timeout) before they are written to the
// record; panics are recovered and recorded as internal faults so the lane
// survives. Nothing is retried automatically.
package workflow
