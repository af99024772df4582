package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/jobs"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show daemon health, job counts, and dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			health, err := daemonClient.Health(cmd.Context())
			if err != nil {
				return wrapClientError(err, daemonClient)
			}
			if jsonOutput {
				return writeJSON(cmd, health)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderHealth(health, daemonClient.BaseURL(), shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderHealth(health api.Health, address string, colorize bool) string {
	var b strings.Builder
	writeLines := func(lines ...string) {
		for _, line := range lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	writeLines(sectionHeader("Daemon", colorize)...)
	overall := severityOK
	if health.Status != "healthy" {
		overall = severityWarn
	}
	writeLines(
		statusLine("Address", severityInfo, address, colorize),
		statusLine("Status", overall, health.Status, colorize),
		statusLine("Workflow running", boolSeverity(health.Workflow.Running), yesNo(health.Workflow.Running), colorize),
		statusLine("Workers busy", severityInfo, fmt.Sprintf("%d of %d", health.Workflow.Busy, health.Workflow.Workers), colorize),
		statusLine("Active jobs", severityInfo, strconv.Itoa(health.ActiveTranscriptions), colorize),
	)
	if health.Workflow.LastError != "" {
		writeLines(statusLine("Last error", severityError, health.Workflow.LastError, colorize))
	}
	b.WriteByte('\n')

	writeLines(sectionHeader("Jobs", colorize)...)
	rows := make([][]string, 0, len(health.Counts)+1)
	for _, status := range jobs.AllStatuses() {
		rows = append(rows, []string{formatJobStatus(string(status), colorize), strconv.Itoa(health.Counts[string(status)])})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(health.Total)})
	writeLines(renderTable([]column{left("Status"), right("Count")}, rows))
	b.WriteByte('\n')

	writeLines(sectionHeader("Dependencies", colorize)...)
	if len(health.Dependencies) == 0 {
		writeLines(indent + "No dependency snapshot recorded")
		return b.String()
	}
	for _, dep := range health.Dependencies {
		kind := severityOK
		message := dep.Command
		if !dep.Available {
			kind = severityError
			if dep.Optional {
				kind = severityWarn
			}
			message = strings.TrimSpace(dep.Detail)
			if message == "" {
				message = "not found"
			}
		}
		writeLines(statusLine(dep.Name, kind, message, colorize))
	}
	return b.String()
}

func boolSeverity(ok bool) severity {
	if ok {
		return severityOK
	}
	return severityError
}
