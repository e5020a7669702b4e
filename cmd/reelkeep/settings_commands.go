package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelkeep/internal/cleanup"
	"reelkeep/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect or change the cleanup ranking settings",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSaveCommand(ctx))
	settingsCmd.AddCommand(newSettingsLibrariesCommand(ctx))
	return settingsCmd
}

func newSettingsLibrariesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List media server libraries and which ones scans are limited to",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			libs, err := svc.Libraries(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(libs) == 0 {
				fmt.Fprintln(out, "No libraries reported by the media server")
				return nil
			}
			rows := make([][]string, 0, len(libs))
			for _, lib := range libs {
				rows = append(rows, []string{lib.ID, lib.Name, lib.Type, yesNo(lib.Selected)})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Name", "Type", "In scope"}, rows, nil))
			return nil
		},
	}
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the ranking rules and scan scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			value, err := svc.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, value)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSettings(value))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func renderSettings(value settings.Settings) string {
	rows := make([][]string, 0, len(value.Rules))
	for i, rule := range value.Rules {
		preference := string(rule.Direction)
		if rule.ID.Categorical() {
			preference = strings.Join(rule.Priority, " > ")
		} else if preference == "" {
			preference = string(cleanup.Desc)
		}
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), string(rule.ID), yesNo(rule.Enabled), preference})
	}
	scope := "all libraries"
	if len(value.LibraryIDs) > 0 {
		scope = strings.Join(value.LibraryIDs, ", ")
	}
	return renderTable([]string{"#", "Rule", "Enabled", "Preference"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}) +
		fmt.Sprintf("\nScan scope: %s\nKeep one per resolution: %s", scope, yesNo(value.KeepOnePerResolution))
}

func newSettingsSaveCommand(ctx *commandContext) *cobra.Command {
	var (
		rulesFile     string
		libraries     []string
		perResolution bool
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Update the ranking rules, scan scope or per-resolution mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.service()
			if err != nil {
				return err
			}
			value, err := svc.Settings(cmd.Context())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("rules-file") && !flags.Changed("libraries") && !flags.Changed("per-resolution") {
				return fmt.Errorf("nothing to save: pass --rules-file, --libraries or --per-resolution")
			}
			if flags.Changed("rules-file") {
				rules, err := readRules(rulesFile)
				if err != nil {
					return err
				}
				value.Rules = rules
			}
			if flags.Changed("libraries") {
				value.LibraryIDs = libraries
			}
			if flags.Changed("per-resolution") {
				value.KeepOnePerResolution = perResolution
			}
			if err := svc.SaveSettings(cmd.Context(), value); err != nil {
				return err
			}
			saved, err := svc.Settings(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings saved")
			fmt.Fprintln(cmd.OutOrStdout(), renderSettings(saved))
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules-file", "", "JSON file with the ordered rule list")
	cmd.Flags().StringSliceVar(&libraries, "libraries", nil, "Library IDs to scan (empty for all)")
	cmd.Flags().BoolVar(&perResolution, "per-resolution", false, "Keep the best version in each resolution")
	return cmd
}

func readRules(path string) (cleanup.RuleSet, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules cleanup.RuleSet
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return rules, nil
}
