package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentrt/agentd/internal/config"
)

// buildInitCmd scaffolds a new settings.yaml, grounded on the teacher's
// "mote init" (here trimmed to the single settings file this daemon needs).
func buildInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default settings to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing settings file")
	return cmd
}
