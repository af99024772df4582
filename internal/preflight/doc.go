// Package preflight provides readiness checks for the filesystem paths and
// external binaries scribe depends on.
//
// The daemon runs RunAll at startup and refuses to serve when a required
// check fails; the CLI health command renders the same results.
package preflight
