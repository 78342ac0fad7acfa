package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/internal/transfer"
	"github.com/mesh-intelligence/othings/pkg/types"
)

func (a *app) newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the inventory as JSON or CSV",
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	cmd.AddCommand(&cobra.Command{
		Use:   "json",
		Short: "Export every record and the settings as a JSON document",
		Long: `Export items, categories, reminders and settings as one JSON document
that import accepts. The LLM API key is never exported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			data, err := st.Export(cmd.Context())
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, func(w io.Writer) error {
				return transfer.WriteJSON(w, data)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "csv",
		Short: "Export items as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			items, err := st.Items().FindAll(ctx, types.ItemFilter{})
			if err != nil {
				return err
			}
			cats, err := st.Categories().FindAll(ctx)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, func(w io.Writer) error {
				return transfer.WriteCSV(w, items, cats)
			})
		},
	})
	return cmd
}

// writeOutput runs write against the named file, or stdout when path is
// empty.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		if err := write(cmd.OutOrStdout()); err != nil {
			return sysError("write export: %w", err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return sysError("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return sysError("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return sysError("close %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}

func (a *app) newImportCmd() *cobra.Command {
	var dryRun, withSettings bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON export",
		Long: `Import the records of a JSON export. Records whose id already exists are
skipped; invalid records are reported and the rest are imported. Use "-" to
read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readExport(cmd, args[0])
			if err != nil {
				return err
			}
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if dryRun {
				res, err := st.Preflight(ctx, data)
				if err != nil {
					return err
				}
				if a.jsonMode {
					return printJSON(cmd, res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Would import %d items, %d categories and %d reminders (%d already present)\n",
					res.NewItems, res.NewCategories, res.NewReminders, res.Conflicts)
				return nil
			}

			var opts []transfer.ImportOption
			if withSettings {
				opts = append(opts, transfer.WithSettings())
			}
			rep, err := st.Import(ctx, data, opts...)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd, rep)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items, %d categories and %d reminders (%d skipped, %d failed)\n",
				rep.Items, rep.Categories, rep.Reminders, rep.Skipped, rep.Failed())
			if rep.SettingsApplied {
				fmt.Fprintln(cmd.OutOrStdout(), "Settings replaced")
			}
			for _, e := range rep.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s\n", e.Kind, e.ID, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report what would be imported")
	cmd.Flags().BoolVar(&withSettings, "settings", false, "also replace the settings with the imported ones")
	return cmd
}

func readExport(cmd *cobra.Command, path string) (types.ExportData, error) {
	if path == "-" {
		return transfer.ReadJSON(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return types.ExportData{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return transfer.ReadJSON(f)
}
