package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/internal/store"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// itemFlags holds the field flags shared by item add and item update.
type itemFlags struct {
	category     string
	quantity     int
	description  string
	location     string
	status       string
	price        string
	purchaseDate string
	warranty     string
	fields       []string
	clearFields  bool
}

func (f *itemFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.category, "category", "", "category id or name")
	fs.IntVar(&f.quantity, "quantity", 0, "quantity (default 1)")
	fs.StringVar(&f.description, "description", "", "free-form description")
	fs.StringVar(&f.location, "location", "", "where the item is kept")
	fs.StringVar(&f.status, "status", "", "active, inactive or discarded")
	fs.StringVar(&f.price, "price", "", "purchase price")
	fs.StringVar(&f.purchaseDate, "purchase-date", "", "purchase date (YYYY-MM-DD)")
	fs.StringVar(&f.warranty, "warranty", "", "warranty expiry date (YYYY-MM-DD)")
	fs.StringArrayVar(&f.fields, "field", nil, "custom field as key=value (repeatable)")
}

func (a *app) newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage inventory items",
	}
	cmd.AddCommand(a.newItemAddCmd())
	cmd.AddCommand(a.newItemListCmd())
	cmd.AddCommand(a.newItemRecentCmd())
	cmd.AddCommand(a.newItemGetCmd())
	cmd.AddCommand(a.newItemUpdateCmd())
	cmd.AddCommand(a.newItemDeleteCmd())
	return cmd
}

func (a *app) newItemAddCmd() *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item",
		Example: `  othings item add "Cordless drill" --category Tools --price 89.90 --location Garage
  othings item add Passport --field number=X1234567 --warranty 2031-05-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			in := types.ItemInput{
				Name:        args[0],
				Quantity:    f.quantity,
				Description: f.description,
				Location:    f.location,
				Status:      types.ItemStatus(f.status),
			}
			if f.category != "" {
				id, err := resolveCategory(ctx, st, f.category)
				if err != nil {
					return err
				}
				in.CategoryID = &id
			}
			if f.price != "" {
				p, err := parsePrice(f.price)
				if err != nil {
					return err
				}
				in.PurchasePrice = &p
			}
			if f.purchaseDate != "" {
				in.PurchaseDate = &f.purchaseDate
			}
			if f.warranty != "" {
				in.WarrantyExpiry = &f.warranty
			}
			if len(f.fields) > 0 {
				in.CustomFields = map[string]any{}
				if err := parseFields(f.fields, in.CustomFields); err != nil {
					return err
				}
			}

			item, err := st.Items().Create(ctx, in)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added item %s (%s)\n", item.Name, item.ID)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) newItemListCmd() *cobra.Command {
	var filter types.ItemFilter
	var category, status string
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, most recently updated first",
		Long: `List items, most recently updated first. With --page the listing is split
into pages of --page-size items; the page size defaults to the itemsPerPage
setting.`,
		Example: `  othings item list --location Garage
  othings item list --page 2
  othings item list --page 1 --page-size 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if category != "" {
				if filter.CategoryID, err = resolveCategory(ctx, st, category); err != nil {
					return err
				}
			}
			filter.Status = types.ItemStatus(status)

			if cmd.Flags().Changed("page-size") && !cmd.Flags().Changed("page") {
				page = 1
			}
			if page != 0 || cmd.Flags().Changed("page") {
				return a.printItemPage(cmd, st, filter, page, pageSize)
			}

			items, err := st.Items().FindAll(ctx, filter)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, items)
			}
			names, err := categoryNames(ctx, st)
			if err != nil {
				return err
			}
			return printItems(cmd, items, names)
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "show only this page, counting from 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "items per page (default: the itemsPerPage setting)")
	cmd.Flags().StringVar(&filter.Search, "search", "", "substring of name, description or location")
	cmd.Flags().StringVar(&category, "category", "", "category id or name")
	cmd.Flags().StringVar(&status, "status", "", "active, inactive or discarded")
	cmd.Flags().StringVar(&filter.Location, "location", "", "exact location")
	return cmd
}

func (a *app) printItemPage(cmd *cobra.Command, st *store.Store, filter types.ItemFilter, page, size int) error {
	ctx := cmd.Context()
	if size == 0 {
		s, err := st.Settings().Get(ctx)
		if err != nil {
			return err
		}
		size = s.ItemsPerPage
	}
	res, err := st.Items().FindPage(ctx, filter, page, size)
	if err != nil {
		return err
	}
	if a.jsonMode {
		return printJSON(cmd, res)
	}
	names, err := categoryNames(ctx, st)
	if err != nil {
		return err
	}
	if err := printItems(cmd, res.Items, names); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d (%d items)\n", res.Page, res.TotalPages, res.Total)
	return nil
}

func (a *app) newItemRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recently added items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			items, err := st.Items().Recent(ctx, limit)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, items)
			}
			names, err := categoryNames(ctx, st)
			if err != nil {
				return err
			}
			return printItems(cmd, items, names)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", types.DefaultRecentItems, "number of items to show")
	return cmd
}

func (a *app) newItemGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one item and its reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			item, ok, err := st.Items().FindByID(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("item %s: %w", args[0], types.ErrNotFound)
			}
			reminders, err := st.Reminders().FindByItemID(ctx, item.ID)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, map[string]any{"item": item, "reminders": reminders})
			}

			names, err := categoryNames(ctx, st)
			if err != nil {
				return err
			}
			tw := newTable(cmd)
			fmt.Fprintf(tw, "ID:\t%s\n", item.ID)
			fmt.Fprintf(tw, "Name:\t%s\n", item.Name)
			fmt.Fprintf(tw, "Category:\t%s\n", categoryLabel(item.CategoryID, names))
			fmt.Fprintf(tw, "Quantity:\t%d\n", item.Quantity)
			fmt.Fprintf(tw, "Status:\t%s\n", item.Status)
			fmt.Fprintf(tw, "Location:\t%s\n", dash(item.Location))
			fmt.Fprintf(tw, "Description:\t%s\n", dash(item.Description))
			fmt.Fprintf(tw, "Price:\t%s\n", money(item.PurchasePrice))
			fmt.Fprintf(tw, "Purchased:\t%s\n", orDash(item.PurchaseDate))
			fmt.Fprintf(tw, "Warranty:\t%s\n", orDash(item.WarrantyExpiry))
			for _, k := range slices.Sorted(maps.Keys(item.CustomFields)) {
				fmt.Fprintf(tw, "%s:\t%v\n", k, item.CustomFields[k])
			}
			for _, r := range reminders {
				fmt.Fprintf(tw, "Reminder:\t%s due %s (%s)\n", r.Title, r.DueDate, r.Status(st.Now()))
			}
			return flushTable(tw)
		},
	}
}

func (a *app) newItemUpdateCmd() *cobra.Command {
	var f itemFlags
	var name string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an item",
		Long: `Change the fields given as flags and leave the rest as they are.
Pass an empty value to --category, --price, --purchase-date or --warranty to
clear it. --field key= removes a custom field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			fs := cmd.Flags()

			var p types.ItemPatch
			if fs.Changed("name") {
				p.Name = &name
			}
			if fs.Changed("quantity") {
				p.Quantity = &f.quantity
			}
			if fs.Changed("description") {
				p.Description = &f.description
			}
			if fs.Changed("location") {
				p.Location = &f.location
			}
			if fs.Changed("status") {
				s := types.ItemStatus(f.status)
				p.Status = &s
			}
			if fs.Changed("category") {
				if f.category == "" {
					p.CategoryID = types.Null[string]()
				} else {
					id, err := resolveCategory(ctx, st, f.category)
					if err != nil {
						return err
					}
					p.CategoryID = types.Set(id)
				}
			}
			if fs.Changed("price") {
				if f.price == "" {
					p.PurchasePrice = types.Null[float64]()
				} else {
					v, err := parsePrice(f.price)
					if err != nil {
						return err
					}
					p.PurchasePrice = types.Set(v)
				}
			}
			if fs.Changed("purchase-date") {
				p.PurchaseDate = optionalDate(f.purchaseDate)
			}
			if fs.Changed("warranty") {
				p.WarrantyExpiry = optionalDate(f.warranty)
			}
			if f.clearFields {
				p.CustomFields = types.Null[map[string]any]()
			}
			if len(f.fields) > 0 {
				cur, ok, err := st.Items().FindByID(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("item %s: %w", args[0], types.ErrNotFound)
				}
				merged := map[string]any{}
				if !f.clearFields {
					maps.Copy(merged, cur.CustomFields)
				}
				if err := parseFields(f.fields, merged); err != nil {
					return err
				}
				p.CustomFields = types.Set(merged)
			}

			item, err := st.Items().Update(ctx, args[0], p)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated item %s (%s)\n", item.Name, item.ID)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().BoolVar(&f.clearFields, "clear-fields", false, "remove all custom fields")
	return cmd
}

func (a *app) newItemDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item and its reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			if err := st.Items().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted item %s\n", args[0])
			return nil
		},
	}
}

func printItems(cmd *cobra.Command, items []types.Item, names map[string]string) error {
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No items.")
		return nil
	}
	tw := newTable(cmd)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tQTY\tSTATUS\tLOCATION\tPRICE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			it.ID, it.Name, categoryLabel(it.CategoryID, names), it.Quantity,
			it.Status, dash(it.Location), money(it.PurchasePrice))
	}
	return flushTable(tw)
}

// resolveCategory accepts a category id or a case-insensitive name.
func resolveCategory(ctx context.Context, st *store.Store, ref string) (string, error) {
	if _, ok, err := st.Categories().FindByID(ctx, ref); err != nil {
		return "", err
	} else if ok {
		return ref, nil
	}
	cats, err := st.Categories().FindAll(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return "", types.Invalid("categoryId", fmt.Errorf("no category %q: %w", ref, types.ErrInvalidReference))
}

func categoryNames(ctx context.Context, st *store.Store) (map[string]string, error) {
	cats, err := st.Categories().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

func categoryLabel(id *string, names map[string]string) string {
	if id == nil {
		return "-"
	}
	if n, ok := names[*id]; ok {
		return n
	}
	return *id
}

func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, types.Invalid("purchasePrice", fmt.Errorf("%q is not a number", s))
	}
	return d.Round(2).InexactFloat64(), nil
}

func optionalDate(s string) types.Nullable[string] {
	if s == "" {
		return types.Null[string]()
	}
	return types.Set(s)
}

// parseFields adds key=value pairs to dst. Values that parse as JSON numbers
// or booleans keep that type; everything else is a string. An empty value
// removes the key.
func parseFields(pairs []string, dst map[string]any) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return types.Invalid("customFields", fmt.Errorf("invalid field %q (expected key=value)", pair))
		}
		if value == "" {
			delete(dst, key)
			continue
		}
		dst[key] = fieldValue(value)
	}
	return nil
}

func fieldValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
