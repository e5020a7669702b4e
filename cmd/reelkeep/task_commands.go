package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelkeep/internal/api"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Find titles with redundant versions and rebuild the pending cleanup list",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			if err := runTask(cmd, svc, api.TaskScan, svc.ScanTask()); err != nil {
				return err
			}
			ids, err := svc.PendingIDs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d titles pending cleanup. Review them with `reelkeep cleanup list`.\n", len(ids))
			return nil
		},
	}
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Sync the metadata cache with the media server library",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			fn, err := svc.ReconcileTask(full)
			if err != nil {
				return err
			}
			if err := runTask(cmd, svc, api.TaskReconcile, fn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.TaskStatus().Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Refresh every title instead of only new or changed ones")
	return cmd
}
