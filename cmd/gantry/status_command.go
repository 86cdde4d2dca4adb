package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's job and link status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Gantry Status", colorize) {
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out, renderStatusLine("Device", statusInfo, status.DeviceName, colorize))
			fmt.Fprintln(out, renderStatusLine("Phase", phaseKind(status.Job.Phase), status.Job.Phase, colorize))
			if status.Job.File != "" {
				fmt.Fprintln(out, renderStatusLine("File", statusInfo, status.Job.File, colorize))
			}
			if status.Job.Phase == "printing" {
				fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%d%%", status.Job.Progress), colorize))
			}
			if status.Job.Error != "" {
				fmt.Fprintln(out, renderStatusLine("Detail", statusError, status.Job.Error, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Storage", presenceKind(status.Link.StoragePresent), presenceLabel(status.Link.StoragePresent), colorize))
			fmt.Fprintln(out, renderStatusLine("Machine", presenceKind(status.Link.MachineConnected), presenceLabel(status.Link.MachineConnected), colorize))
			return nil
		},
	}
}

func phaseKind(phase string) statusKind {
	switch strings.ToLower(phase) {
	case "error":
		return statusError
	case "idle":
		return statusOK
	default:
		return statusWarn
	}
}

func presenceKind(present bool) statusKind {
	if present {
		return statusOK
	}
	return statusError
}

func presenceLabel(present bool) string {
	if present {
		return "available"
	}
	return "unavailable"
}
