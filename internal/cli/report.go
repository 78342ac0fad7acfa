package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/internal/report"
)

func (a *app) newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the inventory (dashboard by default)",
		Args:  cobra.NoArgs,
		RunE:  a.runDashboard,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dashboard",
		Short: "Totals, new items this month and reminder counts",
		Args:  cobra.NoArgs,
		RunE:  a.runDashboard,
	})
	cmd.AddCommand(a.newGroupReportCmd("category", "Items, quantity and value per category",
		func(ctx context.Context, r *report.Reporter) ([]report.Group, error) { return r.ByCategory(ctx) }))
	cmd.AddCommand(a.newGroupReportCmd("status", "Items, quantity and value per status",
		func(ctx context.Context, r *report.Reporter) ([]report.Group, error) { return r.ByStatus(ctx) }))
	cmd.AddCommand(a.newGroupReportCmd("location", "Items, quantity and value per location",
		func(ctx context.Context, r *report.Reporter) ([]report.Group, error) { return r.ByLocation(ctx) }))
	return cmd
}

func (a *app) runDashboard(cmd *cobra.Command, args []string) error {
	st, err := a.open(cmd)
	if err != nil {
		return err
	}
	stats, err := st.Reports().Dashboard(cmd.Context(), st.Now())
	if err != nil {
		return err
	}
	if a.jsonMode {
		return printJSON(cmd, stats)
	}
	tw := newTable(cmd)
	fmt.Fprintf(tw, "Items:\t%d\n", stats.TotalItems)
	fmt.Fprintf(tw, "Quantity:\t%d\n", stats.TotalQuantity)
	fmt.Fprintf(tw, "Value:\t%.2f\n", stats.TotalValue)
	fmt.Fprintf(tw, "New this month:\t%d\n", stats.NewItemsThisMonth)
	fmt.Fprintf(tw, "Categories:\t%d\n", stats.Categories)
	fmt.Fprintf(tw, "Reminders overdue:\t%d\n", stats.Reminders.Overdue)
	fmt.Fprintf(tw, "Reminders upcoming:\t%d\n", stats.Reminders.Upcoming)
	fmt.Fprintf(tw, "Reminders scheduled:\t%d\n", stats.Reminders.Scheduled)
	fmt.Fprintf(tw, "Reminders completed:\t%d\n", stats.Reminders.Completed)
	return flushTable(tw)
}

func (a *app) newGroupReportCmd(use, short string, run func(context.Context, *report.Reporter) ([]report.Group, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			groups, err := run(cmd.Context(), st.Reports())
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, groups)
			}
			tw := newTable(cmd)
			fmt.Fprintf(tw, "%s\tITEMS\tQTY\tVALUE\n", strings.ToUpper(use))
			items, qty := 0, 0
			for _, g := range groups {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", g.Label, g.Items, g.Quantity, g.Value.StringFixed(2))
				items += g.Items
				qty += g.Quantity
			}
			fmt.Fprintf(tw, "Total\t%d\t%d\t%s\n", items, qty, report.Total(groups).StringFixed(2))
			return flushTable(tw)
		},
	}
}
