package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "settings [key] [value]",
		Short: "Show or change runtime settings",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			switch len(args) {
			case 0:
				values, err := client.Settings(cmd.Context())
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(values))
				for key := range values {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					rows = append(rows, []string{key, values[key]})
				}
				fmt.Fprintln(cmd.OutOrStdout(), buildTable([]string{"KEY", "VALUE"}, rows))
			case 1:
				values, err := client.Settings(cmd.Context())
				if err != nil {
					return err
				}
				value, ok := values[args[0]]
				if !ok {
					return fmt.Errorf("unknown settings key: %s", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
			case 2:
				if _, err := client.UpdateSettings(cmd.Context(), map[string]string{args[0]: args[1]}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			}
			return nil
		},
	}
}
