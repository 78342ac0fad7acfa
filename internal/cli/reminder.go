package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/pkg/types"
)

func (a *app) newReminderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reminder",
		Aliases: []string{"reminders"},
		Short:   "Manage reminders attached to items",
	}
	cmd.AddCommand(a.newReminderAddCmd())
	cmd.AddCommand(a.newReminderListCmd())
	cmd.AddCommand(a.newReminderCompleteCmd("done", "Mark a reminder as done", true))
	cmd.AddCommand(a.newReminderCompleteCmd("undo", "Reopen a completed reminder", false))
	cmd.AddCommand(a.newReminderDeleteCmd())
	cmd.AddCommand(a.newReminderStatusCmd())
	return cmd
}

func (a *app) newReminderAddCmd() *cobra.Command {
	var due string
	var notify int
	cmd := &cobra.Command{
		Use:     "add <item-id> <title>",
		Short:   "Add a reminder to an item",
		Example: `  othings reminder add 3f0c... "Renew warranty" --due 2025-06-01 --notify-before 14`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			in := types.ReminderInput{ItemID: args[0], Title: args[1], DueDate: due}
			if cmd.Flags().Changed("notify-before") {
				in.NotifyBefore = &notify
			}
			r, err := st.Reminders().Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added reminder %s due %s (%s)\n", r.Title, r.DueDate, r.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&notify, "notify-before", types.DefaultNotifyBefore, "days before the due date at which the reminder becomes upcoming")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func (a *app) newReminderListCmd() *cobra.Command {
	var itemID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var reminders []types.Reminder
			if itemID != "" {
				reminders, err = st.Reminders().FindByItemID(ctx, itemID)
			} else {
				reminders, err = st.Reminders().FindAll(ctx)
			}
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, reminders)
			}
			return printReminders(cmd, reminders, st.Now())
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "only reminders of this item")
	return cmd
}

func (a *app) newReminderCompleteCmd(use, short string, done bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			var r types.Reminder
			if done {
				r, err = st.Reminders().MarkComplete(cmd.Context(), args[0])
			} else {
				r, err = st.Reminders().MarkIncomplete(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reminder %s is %s\n", r.Title, r.Status(st.Now()))
			return nil
		},
	}
}

func (a *app) newReminderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			if err := st.Reminders().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted reminder %s\n", args[0])
			return nil
		},
	}
}

func (a *app) newReminderStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Group reminders into overdue, upcoming, scheduled and completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			buckets, err := st.Reminders().GetByStatus(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, buckets)
			}

			tw := newTable(cmd)
			groups := []struct {
				label     string
				reminders []types.Reminder
			}{
				{"Overdue", buckets.Overdue},
				{"Upcoming", buckets.Upcoming},
				{"Scheduled", buckets.Scheduled},
				{"Completed", buckets.Completed},
			}
			for _, g := range groups {
				fmt.Fprintf(tw, "%s (%d)\t\t\n", g.label, len(g.reminders))
				for _, r := range g.reminders {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", r.DueDate, r.Title, r.ID)
				}
			}
			return flushTable(tw)
		},
	}
}

func printReminders(cmd *cobra.Command, reminders []types.Reminder, now time.Time) error {
	if len(reminders) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reminders.")
		return nil
	}
	tw := newTable(cmd)
	fmt.Fprintln(tw, "ID\tITEM\tTITLE\tDUE\tSTATUS")
	for _, r := range reminders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.ItemID, r.Title, r.DueDate, r.Status(now))
	}
	return flushTable(tw)
}
