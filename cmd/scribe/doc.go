// Package main hosts the scribe CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground and turns
// terminal invocations into HTTP calls against it: uploading media, polling
// job status, listing jobs, and reading the health summary. Configuration
// resolution and client construction live here so subcommands stay focused
// on presentation.
package main
