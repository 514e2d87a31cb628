package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentrt/agentd/internal/config"
	"github.com/agentrt/agentd/internal/store"
)

// buildAutomationCmd adds an operational "automation list" subcommand for
// inspecting stored automations without starting the daemon. Grounded on
// the teacher's "mote cron list" (tabwriter table + --json flag), adapted
// to read the data directory directly since agentd is the server itself
// rather than a client talking to one over HTTP.
func buildAutomationCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "automation",
		Short: "Inspect stored automations",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the settings YAML file")
	cmd.AddCommand(buildAutomationListCmd(&configPath))
	return cmd
}

func buildAutomationListCmd(configPath *string) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every automation across all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutomationList(cmd, *configPath, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}

func runAutomationList(cmd *cobra.Command, configPath string, jsonOutput bool) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return &configError{err}
	}

	layout := store.NewLayout(settings.DataDir)
	automations := store.NewAutomationStore(layout)
	all, err := automations.ListAll()
	if err != nil {
		return fmt.Errorf("list automations: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJECT\tNAME\tSCHEDULE\tENABLED")
	for _, a := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s:%s\t%t\n", a.ID, a.ProjectID, a.Name, a.Schedule.Type, a.Schedule.Value, a.Enabled)
	}
	return tw.Flush()
}
