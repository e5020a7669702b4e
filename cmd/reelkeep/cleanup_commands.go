package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelkeep/internal/api"
	"reelkeep/internal/media"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Review and act on titles flagged by a scan",
	}
	cleanupCmd.AddCommand(newCleanupListCommand(ctx))
	cleanupCmd.AddCommand(newCleanupShowCommand(ctx))
	cleanupCmd.AddCommand(newCleanupIgnoreCommand(ctx))
	cleanupCmd.AddCommand(newCleanupDeleteCommand(ctx))
	cleanupCmd.AddCommand(newCleanupClearCommand(ctx))
	cleanupCmd.AddCommand(newCleanupExecuteCommand(ctx))
	cleanupCmd.AddCommand(newCleanupExecuteAllCommand(ctx))
	return cleanupCmd
}

func newCleanupListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cleanup entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			items, err := svc.ListCleanup(cmd.Context(), media.CleanupStatus(strings.ToLower(strings.TrimSpace(status))))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.CleanupListResponse{Items: items})
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No cleanup entries")
				return nil
			}
			fmt.Fprintln(out, renderCleanupTable(items))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "pending", "Entry status: pending, ignored or processed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func renderCleanupTable(items []api.CleanupItem) string {
	titleCase := cases.Title(language.English)
	rows := make([][]string, 0, len(items))
	var total uint64
	for _, item := range items {
		reclaim := reclaimBytes(item)
		total += reclaim
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.DisplayTitle,
			titleCase.String(item.ItemType),
			strconv.Itoa(len(item.Versions)),
			strings.Join(item.Winner.IDs(), ", "),
			strconv.Itoa(item.Deletes),
			humanize.IBytes(reclaim),
			titleCase.String(item.Status),
		})
	}
	return tableSpec{
		headers: []string{"ID", "Title", "Type", "Versions", "Keep", "Delete", "Reclaim", "Status"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
		footer:  []string{"", fmt.Sprintf("%d titles", len(items)), "", "", "", "", humanize.IBytes(total), ""},
	}.render()
}

// reclaimBytes sums the sizes of the versions a cleanup would delete.
func reclaimBytes(item api.CleanupItem) uint64 {
	if item.Winner.IsZero() {
		return 0
	}
	var total uint64
	for _, v := range item.Versions {
		if v.Filesize > 0 && !item.Winner.Keeps(v.ID) {
			total += uint64(v.Filesize)
		}
	}
	return total
}

func newCleanupShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the versions of one cleanup entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			for _, status := range []media.CleanupStatus{media.CleanupPending, media.CleanupIgnored, media.CleanupProcessed} {
				items, err := svc.ListCleanup(cmd.Context(), status)
				if err != nil {
					return err
				}
				for _, item := range items {
					if item.ID == ids[0] {
						fmt.Fprintln(cmd.OutOrStdout(), renderVersions(item))
						return nil
					}
				}
			}
			return fmt.Errorf("cleanup entry %d not found", ids[0])
		},
	}
}

func renderVersions(item api.CleanupItem) string {
	rows := make([][]string, 0, len(item.Versions))
	for _, v := range item.Versions {
		action := "delete"
		if item.Winner.Keeps(v.ID) {
			action = "keep"
		}
		rows = append(rows, []string{
			v.ID,
			action,
			v.Resolution,
			v.Effect,
			v.Codec,
			v.Quality,
			fmt.Sprintf("%.1f", v.BitrateMbps),
			humanize.IBytes(uint64(max(v.Filesize, 0))),
			v.Path,
		})
	}
	header := fmt.Sprintf("%s (entry %d, %s)", item.DisplayTitle, item.ID, item.Status)
	return header + "\n" + renderTable(
		[]string{"Item", "Action", "Resolution", "Effect", "Codec", "Quality", "Mbps", "Size", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func newCleanupIgnoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <id>...",
		Short: "Exclude entries from execution and future scans",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			count, err := svc.Ignore(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignored %d entries\n", count)
			return nil
		},
	}
}

func newCleanupDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Remove entries from the cleanup list without touching the media server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			count, err := svc.Delete(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", count)
			return nil
		},
	}
}

func newCleanupClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every pending entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			if err := svc.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pending cleanup list cleared")
			return nil
		},
	}
}

func newCleanupExecuteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>...",
		Short: "Delete the losing versions of the given entries from the media server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return executeEntries(cmd, ctx, ids)
		},
	}
}

func newCleanupExecuteAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "execute-all",
		Short: "Execute every pending entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			ids, err := svc.PendingIDs(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to do")
				return nil
			}
			return executeEntries(cmd, ctx, ids)
		},
	}
}

func executeEntries(cmd *cobra.Command, ctx *commandContext, ids []int64) error {
	svc, err := ctx.service()
	if err != nil {
		return err
	}
	fn, err := svc.ExecuteTask(ids)
	if err != nil {
		return err
	}
	if err := runTask(cmd, svc, api.TaskExecute, fn); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), svc.TaskStatus().Message)
	return nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for part := range strings.SplitSeq(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid entry id %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one entry id is required")
	}
	return ids, nil
}
