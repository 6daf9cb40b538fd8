// Command reportctl inspects a recommendations CSV offline: summary stats,
// row diagnostics, and spreadsheet export.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kjannette/watchtower-backend/internal/dashboard"
	"github.com/kjannette/watchtower-backend/internal/export"
	"github.com/kjannette/watchtower-backend/internal/report"
)

var errInvalidRows = errors.New("report has invalid rows")

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "reportctl",
		Short:         "Inspect recommendation reports",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.AddCommand(newSummarizeCmd(), newValidateCmd(), newExportCmd())
	return root
}

func newSummarizeCmd() *cobra.Command {
	var filter string
	var top int
	cmd := &cobra.Command{
		Use:   "summarize FILE",
		Short: "Print stat cards, category counts, and the top markets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readFile(args[0])
			if err != nil {
				return err
			}
			all := report.Ingest(text)
			if !dashboard.ValidFilter(filter) {
				return fmt.Errorf("unknown filter %q", filter)
			}
			records := report.Filter(all, filter)
			sum := report.Summarize(records)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Total markets\t%d\n", sum.TotalMarkets)
			fmt.Fprintf(w, "Average edge\t%s\n", report.FormatPercent(sum.AvgEdge))
			fmt.Fprintf(w, "High confidence\t%d\n", sum.HighConfidence)
			fmt.Fprintf(w, "Strong buys\t%d\n", sum.StrongBuys)
			fmt.Fprintln(w)

			counts := report.CategoryCounts(all)
			for _, c := range report.Categories {
				fmt.Fprintf(w, "%s\t%d\n", c, counts[c.String()])
			}
			fmt.Fprintln(w)

			fmt.Fprintln(w, "RANK\tALPHA\tEDGE\tCLOSES\tQUESTION")
			for _, m := range report.TopByAlpha(records, top) {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", m.Rank,
					report.FormatPercent(m.AlphaScore), report.FormatPercent(m.Edge),
					report.FormatHours(m.HoursUntilClose), m.Question)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&filter, "filter", report.FilterAll, "category filter")
	cmd.Flags().IntVar(&top, "top", report.TopN, "number of top markets to list")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Report rows the parser had to coerce or skip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readFile(args[0])
			if err != nil {
				return err
			}
			res := report.ParseStrict(text)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d data lines, %d records, %d skipped, %d without usable edge, %d diagnostics\n",
				res.DataLines, len(res.Records), res.Skipped, res.Unusable, len(res.Diagnostics))
			for _, d := range res.Diagnostics {
				fmt.Fprintln(out, d.String())
			}
			if len(res.Diagnostics) > 0 {
				return errInvalidRows
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the report as an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readFile(args[0])
			if err != nil {
				return err
			}
			records := report.Ingest(text)
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			if err := export.WriteWorkbook(f, records); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d markets to %s\n", len(records), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "markets.xlsx", "output path")
	return cmd
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(b), nil
}
