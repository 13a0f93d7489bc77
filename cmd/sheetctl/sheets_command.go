package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/service"
)

func newSheetsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Inspect the song sheet library",
	}
	cmd.AddCommand(newSheetsListCommand(ctx))
	cmd.AddCommand(newSheetsCheckCommand(ctx))
	return cmd
}

func newSheetsListCommand(ctx *commandContext) *cobra.Command {
	var params service.ListSheetsParams
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sheets in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := ctx.sheetService()
			if err != nil {
				return err
			}
			list, err := sheets.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sheets")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, sh := range list {
				rows = append(rows, []string{
					sh.ID,
					sh.Name,
					sh.Artist,
					string(sh.Key),
					sh.ArrangedBy,
					sh.Category.String(),
					sh.BPM,
					string(sh.Language),
					strconv.Itoa(len(sh.Pages)),
				})
			}
			headers := []string{"ID", "Name", "Artist", "Key", "Arranged By", "Category", "BPM", "Language", "Pages"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Sort, "sort", service.SortNewest, "Sort order (newest, name)")
	cmd.Flags().StringVar(&params.Key, "key", "", "Only sheets in this key")
	cmd.Flags().StringVar(&params.Category, "category", "", "Only sheets in this category")
	cmd.Flags().StringVar(&params.Language, "language", "", "Only sheets in this language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSheetsCheckCommand(ctx *commandContext) *cobra.Command {
	var q resolver.Query
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Predict how a submission would be resolved without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := ctx.sheetService()
			if err != nil {
				return err
			}
			result, err := sheets.Check(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Label: %s\n", result.Label)
			if result.SheetID != "" {
				fmt.Fprintf(out, "Matches: %s\n", result.SheetID)
			}
			if len(result.Versions) > 0 {
				rows := make([][]string, 0, len(result.Versions))
				for _, v := range result.Versions {
					rows = append(rows, []string{v.SheetID, string(v.Key), v.ArrangedBy, strconv.Itoa(v.Pages)})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"Sheet", "Key", "Arranged By", "Pages"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
			}
			for _, c := range result.Conflicts {
				fmt.Fprintf(out, "conflict: %s stored %q, given %q\n", c.Axis, c.Existing, c.Candidate)
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "warning: %s on %s stored %q, given %q\n", w.Axis, w.SheetID, w.Existing, w.Candidate)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&q.SongName, "name", "", "Song name")
	cmd.Flags().StringVar(&q.SongArtist, "artist", "", "Song artist")
	cmd.Flags().StringVar(&q.SongKey, "key", "", "Song key")
	cmd.Flags().StringVar(&q.SongArrangedBy, "arranged-by", "", "Arranger")
	cmd.Flags().StringVar(&q.SongCategory, "category", "", "Comma separated categories")
	cmd.Flags().StringVar(&q.SongBPM, "bpm", "", "Tempo")
	cmd.Flags().StringVar(&q.SongLanguage, "language", "", "Lyric language")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
