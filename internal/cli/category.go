package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/pkg/types"
)

func (a *app) newCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories"},
		Short:   "Manage categories",
	}
	cmd.AddCommand(a.newCategoryAddCmd())
	cmd.AddCommand(a.newCategoryListCmd())
	cmd.AddCommand(a.newCategoryUpdateCmd())
	cmd.AddCommand(a.newCategoryDeleteCmd())
	return cmd
}

func (a *app) newCategoryAddCmd() *cobra.Command {
	var in types.CategoryInput
	var parent string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			in.Name = args[0]
			if parent != "" {
				id, err := resolveCategory(ctx, st, parent)
				if err != nil {
					return err
				}
				in.ParentID = &id
			}
			c, err := st.Categories().Create(ctx, in)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added category %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Color, "color", "", "hex color such as #ff8800")
	cmd.Flags().StringVar(&in.Icon, "icon", "", "icon name")
	cmd.Flags().StringVar(&parent, "parent", "", "parent category id or name")
	return cmd
}

func (a *app) newCategoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			cats, err := st.Categories().FindAll(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, cats)
			}

			names := make(map[string]string, len(cats))
			for _, c := range cats {
				names[c.ID] = c.Name
			}
			tw := newTable(cmd)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tICON\tPARENT\tCUSTOM")
			for _, c := range cats {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
					c.ID, c.Name, c.Color, dash(c.Icon), categoryLabel(c.ParentID, names), c.IsCustom)
			}
			return flushTable(tw)
		},
	}
}

func (a *app) newCategoryUpdateCmd() *cobra.Command {
	var name, color, icon, parent string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a category",
		Long:  `Change the fields given as flags. Pass --parent "" to make the category top-level.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fs := cmd.Flags()

			var p types.CategoryPatch
			if fs.Changed("name") {
				p.Name = &name
			}
			if fs.Changed("color") {
				p.Color = &color
			}
			if fs.Changed("icon") {
				p.Icon = &icon
			}
			if fs.Changed("parent") {
				if parent == "" {
					p.ParentID = types.Null[string]()
				} else {
					id, err := resolveCategory(ctx, st, parent)
					if err != nil {
						return err
					}
					p.ParentID = types.Set(id)
				}
			}

			c, err := st.Categories().Update(ctx, args[0], p)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated category %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&color, "color", "", "hex color such as #ff8800")
	cmd.Flags().StringVar(&icon, "icon", "", "icon name")
	cmd.Flags().StringVar(&parent, "parent", "", "parent category id or name")
	return cmd
}

func (a *app) newCategoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Long: `Delete a category. Items in it become uncategorized and its child
categories become top-level.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			if err := st.Categories().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
			return nil
		},
	}
}
