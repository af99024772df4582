package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/jobs"
	"scribe/internal/language"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show a transcription job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			job, err := daemonClient.Job(cmd.Context(), id)
			if err != nil {
				return wrapClientError(err, daemonClient)
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			printJob(out, job, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcription jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, status := range statuses {
				if _, ok := jobs.ParseStatus(status); !ok {
					return fmt.Errorf("unknown status %q", status)
				}
			}
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			list, err := daemonClient.List(cmd.Context(), statuses...)
			if err != nil {
				return wrapClientError(err, daemonClient)
			}
			if jsonOutput {
				if list == nil {
					list = []api.Job{}
				}
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderJobTable(list, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderJobTable(list []api.Job, colorize bool) string {
	list = api.SortJobsNewestFirst(list)
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			formatJobStatus(job.Status, colorize),
			valueOrDash(job.OriginalFilename),
			languageLabel(job),
			durationLabel(job.AudioDurationSeconds),
			valueOrDash(job.CreatedAt),
		})
	}
	return renderTable([]column{
		right("ID"), left("Status"), left("File"), left("Language"), right("Duration"), left("Created"),
	}, rows)
}

func printJob(out io.Writer, job api.Job, colorize bool) {
	fmt.Fprintf(out, "Job %d: %s\n", job.ID, formatJobStatus(job.Status, colorize))
	if job.OriginalFilename != "" {
		fmt.Fprintf(out, "  File:      %s\n", job.OriginalFilename)
	}
	fmt.Fprintf(out, "  Language:  %s\n", languageLabel(job))
	if job.AudioDurationSeconds != nil {
		fmt.Fprintf(out, "  Duration:  %s\n", durationLabel(job.AudioDurationSeconds))
	}
	fmt.Fprintf(out, "  Created:   %s\n", valueOrDash(job.CreatedAt))
	if job.CompletedAt != "" {
		fmt.Fprintf(out, "  Finished:  %s\n", job.CompletedAt)
	}
	if job.ErrorMessage != nil {
		fmt.Fprintf(out, "  Error:     %s\n", *job.ErrorMessage)
	}
	if job.Text != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, *job.Text)
	}
}

func languageLabel(job api.Job) string {
	code := job.LanguageHint
	if job.DetectedLanguage != nil && *job.DetectedLanguage != "" {
		code = *job.DetectedLanguage
	}
	if code == "" {
		return "auto"
	}
	if name := language.DisplayName(code); name != "" && !strings.EqualFold(name, code) {
		return fmt.Sprintf("%s (%s)", name, code)
	}
	return code
}

func durationLabel(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", *seconds)
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
