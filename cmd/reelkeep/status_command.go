package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelkeep/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check dependencies and summarise the library state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			status, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Dependencies", colorize)
			checks := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range checks {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed := preflight.Failed(checks); len(failed) > 0 {
				lines = append(lines, renderStatusLine("Summary", statusWarn, fmt.Sprintf("%d of %d checks failed", len(failed), len(checks)), colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Library", colorize)...)
			counts := status.Counts
			lines = append(lines,
				renderStatusLine("Titles", statusInfo, fmt.Sprintf("%s cached, %s in library", humanize.Comma(int64(counts.Titles)), humanize.Comma(int64(counts.InLibrary))), colorize),
				renderStatusLine("Cleanup", cleanupKind(counts.Pending), fmt.Sprintf("%d pending, %d ignored, %d processed", counts.Pending, counts.Ignored, counts.Processed), colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Task", colorize)...)
			task := status.Task
			switch {
			case task.ID == "":
				lines = append(lines, renderStatusLine("Last task", statusInfo, "none in this process", colorize))
			case task.Percent < 0:
				lines = append(lines, renderStatusLine(task.Name, statusError, task.Message, colorize))
			default:
				lines = append(lines, renderStatusLine(task.Name, statusOK, taskSummary(task.Percent, task.Message, task.Finished), colorize))
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func cleanupKind(pending int) statusKind {
	if pending > 0 {
		return statusWarn
	}
	return statusOK
}

func taskSummary(percent int, message, finished string) string {
	summary := fmt.Sprintf("%d%% %s", percent, message)
	if t, err := time.Parse(time.RFC3339, finished); err == nil {
		summary += " (" + humanize.Time(t) + ")"
	}
	return summary
}
