package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <category> <name>",
		Short: "Download the original of a beat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			ref, data, err := rt.Catalog.Fetch(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			target, err := resolveOutput(output, ref.Name)
			if err != nil {
				return err
			}
			published, err := writeOutput(target, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, sha256 %x)\n", published.Path, formatBytes(published.Size), published.SHA256)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default: ./<name>)")
	return cmd
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var output string
	var duration int

	cmd := &cobra.Command{
		Use:   "preview <category> <name>",
		Short: "Cut an MP3 preview of a beat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			clip, ref, err := rt.Catalog.Preview(cmd.Context(), args[0], args[1], duration)
			if err != nil {
				return err
			}
			base := ref.Name
			if i := strings.LastIndex(base, "."); i > 0 {
				base = base[:i]
			}
			target, err := resolveOutput(output, base+"-preview.mp3")
			if err != nil {
				return err
			}
			published, err := writeOutput(target, clip.Data)
			if err != nil {
				return err
			}
			note := ""
			if !clip.Truncated {
				note = " (full source)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %.1fs%s, %s\n", published.Path, clip.Duration.Seconds(), note, formatBytes(published.Size))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default: ./<name>-preview.mp3)")
	cmd.Flags().IntVarP(&duration, "duration", "d", 0, "Preview length in seconds (default: preview.duration_seconds)")
	return cmd
}
