package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"calsplit/internal/config"
	"calsplit/internal/ics"
	"calsplit/internal/model"
	"calsplit/internal/split"
)

func newListCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <calendar.ics | URL>",
		Short: "Show the classes found in a calendar without writing files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd.OutOrStdout(), opts.conf, args[0], time.Now())
		},
	}
}

// runList prints one row per class: component and event counts plus the
// first and last occurrence up to now + HorizonDays.
func runList(ctx context.Context, stdout io.Writer, conf *config.Config, src string, now time.Time) error {
	classes, err := loadClasses(ctx, conf, src)
	if err != nil {
		return err
	}
	groups, err := classes.Groups()
	if err != nil {
		return err
	}

	cfg := ics.ExpandConfig{
		DisplayLocation:        now.Location(),
		RangeEnd:               now.AddDate(0, 0, conf.HorizonDays),
		MaxOccurrencesPerEvent: conf.MaxOccurrencesPerEvent,
	}

	summaries := make([]model.ClassSummary, 0, len(groups))
	for _, g := range groups {
		if g.Class == split.DefaultClass && len(g.Components) == 0 {
			continue
		}
		sum, err := ics.SummarizeClass(g.Class, g.Components, cfg)
		if err != nil {
			return err
		}
		summaries = append(summaries, sum)
	}

	return printSummaries(stdout, summaries)
}

func printSummaries(stdout io.Writer, summaries []model.ClassSummary) error {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCOMPONENTS\tEVENTS\tOCCURRENCES\tFIRST\tLAST")
	for _, s := range summaries {
		occ := fmt.Sprint(s.Occurrences)
		if s.Truncated {
			occ += "+"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			s.Class, s.Components, s.Events, occ, formatDay(s.First), formatDay(s.Last))
	}
	return tw.Flush()
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
