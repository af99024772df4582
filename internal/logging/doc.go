// Package logging builds the slog loggers used by the scribe daemon and CLI.
//
// Two formats are supported: a console line format that lifts component, lane,
// and job into a readable prefix, and line-delimited JSON. Error records can be
// routed to additional sinks such as stderr. Context helpers attach job, stage,
// and request identifiers carried by a context.Context.
package logging
