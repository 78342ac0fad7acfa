package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/internal/paths"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize othings storage",
		Long: `Create the configuration file if it is missing, open the data directory
and write an initial snapshot with the built-in categories.`,
		Args: cobra.NoArgs,
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	path := paths.ConfigFile(a.resolvedConfigDir)
	dataDir := ""
	if a.dataDir != "" {
		dataDir = a.cfg.DataDir
	}
	created, err := writeConfigIfMissing(path, dataDir)
	if err != nil {
		return sysError("write config: %w", err)
	}

	st, err := a.open(cmd)
	if err != nil {
		return err
	}
	if err := st.SaveNow(cmd.Context()); err != nil {
		return sysError("initialize storage: %w", err)
	}

	status := st.Mode()
	if a.jsonMode {
		return printJSON(cmd, map[string]any{
			"configFile":    path,
			"configCreated": created,
			"dataDir":       a.cfg.DataDir,
			"storage":       status,
			"warnings":      st.Warnings(),
		})
	}
	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	fmt.Fprintf(out, "othings initialized (%s: %s)\n", status.Mode, status.Label)
	printWarnings(cmd, st.Warnings())
	return nil
}
