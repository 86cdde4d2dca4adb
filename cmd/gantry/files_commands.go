package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gantry/internal/storage"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "files [dir]",
		Short: "List files in a collection (uploads, converted, gcode)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := string(storage.Instructions)
			if len(args) == 1 {
				dir = args[0]
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			files, err := client.Files(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no files in %s\n", dir)
				return nil
			}

			rows := make([][]string, 0, len(files))
			for _, file := range files {
				kind := "file"
				if file.IsDirectory {
					kind = "dir"
				}
				rows = append(rows, []string{file.Name, formatSize(file.SizeBytes), kind})
			}
			fmt.Fprintln(cmd.OutOrStdout(), buildTable([]string{"NAME", "SIZE", "TYPE"}, rows, 1))
			return nil
		},
	}
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a local file to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			name, size, err := client.Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%s)\n", name, formatSize(size))
			return nil
		},
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var dirFlag string
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert an uploaded file into machine instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			output, err := client.Convert(cmd.Context(), args[0], dirFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "converted to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&dirFlag, "dir", "", "Source collection (defaults to uploads)")
	return cmd
}

func newPrintCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "print <file>",
		Short: "Start printing an instruction file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Print(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "printing %s\n", args[0])
			return nil
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <dir> <file>",
		Short: "Delete a file from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", args[0], args[1])
			return nil
		},
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}
	value := float64(bytes)
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}
	for _, suffix := range suffixes {
		value /= unit
		if value < unit {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
	}
	return fmt.Sprintf("%.1f PiB", value/unit)
}
