package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var languageHint string
	var wait bool
	var pollInterval time.Duration
	var timeout time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a media file for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open media: %w", err)
			}
			defer file.Close()

			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}

			resp, err := daemonClient.Submit(cmd.Context(), path, file, languageHint)
			if err != nil {
				return wrapClientError(err, daemonClient)
			}
			out := cmd.OutOrStdout()
			if !wait {
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(out, "Job %d %s\n", resp.ID, resp.Status)
				return nil
			}

			waitCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(waitCtx, timeout)
				defer cancel()
			}
			if !jsonOutput {
				fmt.Fprintf(out, "Job %d submitted; waiting for result\n", resp.ID)
			}
			job, err := daemonClient.WaitForJob(waitCtx, resp.ID, pollInterval)
			if err != nil {
				return wrapClientError(err, daemonClient)
			}
			if jsonOutput {
				if err := writeJSON(cmd, job); err != nil {
					return err
				}
			} else {
				printJob(out, job, shouldColorize(out))
			}
			if job.Status == "failed" {
				return fmt.Errorf("job %d failed", job.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&languageHint, "language", "l", "", "Spoken language hint (e.g. en, fr, English)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes and print the transcript")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "Polling interval used with --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits indefinitely)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
