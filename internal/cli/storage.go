package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/internal/paths"
	"github.com/mesh-intelligence/othings/internal/storage"
)

func (a *app) newStorageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Show or change where the inventory is saved",
	}
	cmd.AddCommand(a.newStorageStatusCmd())
	cmd.AddCommand(a.newStorageUseFileCmd())
	cmd.AddCommand(a.newStorageUseLocalCmd())
	return cmd
}

// storageStatus is the JSON shape of storage status.
type storageStatus struct {
	Mode     storage.Mode `json:"mode"`
	Target   string       `json:"target"`
	DataDir  string       `json:"dataDir"`
	Driver   string       `json:"driver"`
	Sync     string       `json:"sync"`
	Warnings []string     `json:"warnings"`
}

func (a *app) newStorageStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active storage target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			mode := st.Mode()
			status := storageStatus{
				Mode:     mode.Mode,
				Target:   mode.Label,
				DataDir:  a.cfg.DataDir,
				Driver:   a.cfg.LocalDriver,
				Sync:     a.cfg.SyncStrategy,
				Warnings: st.Warnings(),
			}
			if status.Warnings == nil {
				status.Warnings = []string{}
			}
			if a.jsonMode {
				return printJSON(cmd, status)
			}
			tw := newTable(cmd)
			fmt.Fprintf(tw, "Mode:\t%s\n", status.Mode)
			fmt.Fprintf(tw, "Target:\t%s\n", status.Target)
			fmt.Fprintf(tw, "Data dir:\t%s\n", status.DataDir)
			fmt.Fprintf(tw, "Driver:\t%s\n", status.Driver)
			fmt.Fprintf(tw, "Sync:\t%s\n", status.Sync)
			for _, w := range status.Warnings {
				fmt.Fprintf(tw, "Warning:\t%s\n", w)
			}
			return flushTable(tw)
		},
	}
}

func (a *app) newStorageUseFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-file <path>",
		Short: "Save to a sync file, for example in a cloud-synced folder",
		Long: `Switch saving to the given file and remember it in config.yaml. If the
file already holds an inventory, that inventory replaces the current one;
otherwise the current inventory is written to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if strings.TrimSpace(path) != "" {
				var err error
				if path, err = paths.Abs(path); err != nil {
					return err
				}
			}
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			if err := st.UseExternal(cmd.Context(), storage.PathPicker(path)); err != nil {
				return err
			}
			mode := st.Mode()
			if err := setConfigValue(paths.ConfigFile(a.resolvedConfigDir), cfgKeyExternalFile, mode.Label); err != nil {
				return sysError("update config: %w", err)
			}
			return a.printMode(cmd, mode)
		},
	}
}

func (a *app) newStorageUseLocalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-local",
		Short: "Stop using the sync file and save locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open(cmd)
			if err != nil {
				return err
			}
			if err := st.UseLocal(cmd.Context()); err != nil {
				return sysError("save locally: %w", err)
			}
			if err := setConfigValue(paths.ConfigFile(a.resolvedConfigDir), cfgKeyExternalFile, ""); err != nil {
				return sysError("update config: %w", err)
			}
			return a.printMode(cmd, st.Mode())
		},
	}
}

func (a *app) printMode(cmd *cobra.Command, status storage.Status) error {
	if a.jsonMode {
		return printJSON(cmd, status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saving to %s (%s)\n", status.Label, status.Mode)
	return nil
}
