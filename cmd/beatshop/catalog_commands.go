package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"beatshop/internal/api"
)

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories with beat counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			summaries, err := rt.Catalog.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.CategoryListResponse{Categories: api.FromSummaries(summaries)})
			}
			tbl := newListing("Category", "Label", "Beats").alignRight(2)
			total := 0
			for _, s := range summaries {
				tbl.add(s.Name, s.Label, strconv.Itoa(s.Beats))
				total += s.Beats
			}
			tbl.total("", "Total", strconv.Itoa(total))
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <category>",
		Short: "List the beats in a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.services(cmd.Context())
			if err != nil {
				return err
			}
			refs, err := rt.Catalog.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.BeatListResponse{Category: args[0], Beats: api.FromAssetRefs(refs)})
			}
			out := cmd.OutOrStdout()
			if len(refs) == 0 {
				fmt.Fprintf(out, "No beats in %s\n", args[0])
				return nil
			}
			tbl := newListing("Name", "Size", "Type", "Added").alignRight(1)
			var size int64
			for _, ref := range refs {
				tbl.add(ref.Name, formatBytes(ref.Size), ref.ContentType, formatTime(ref.CreatedAt))
				size += ref.Size
			}
			tbl.total(fmt.Sprintf("%d beats", len(refs)), formatBytes(size))
			fmt.Fprintln(out, tbl)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
