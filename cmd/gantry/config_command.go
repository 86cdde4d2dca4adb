package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gantry/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or bootstrap the daemon configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"config file", ctx.cfgPath},
				{"data dir", cfg.Paths.DataDir},
				{"log dir", cfg.Paths.LogDir},
				{"api bind", cfg.Paths.APIBind},
				{"printer device", cfg.Printer.Device},
				{"printer baud", fmt.Sprintf("%d", cfg.Printer.Baud)},
				{"converter url", cfg.Converter.ServerURL},
				{"log format", cfg.Logging.Format},
				{"log level", cfg.Logging.Level},
			}
			fmt.Fprintln(cmd.OutOrStdout(), buildTable([]string{"SETTING", "VALUE"}, rows))
			return nil
		},
	}
}
