// Package ffprobe builds ffprobe invocations and decodes their JSON output.
//
// Callers run the command through their own runner so tests can script it;
// this package only owns the argument list and the typed view of the result.
package ffprobe
