// Package cli implements the othings command-line interface. Each invocation
// opens the store, runs one command and closes the store, which forces the
// final save.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/internal/logging"
	"github.com/mesh-intelligence/othings/internal/paths"
	"github.com/mesh-intelligence/othings/internal/store"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// systemError marks failures of the environment rather than of the input:
// unwritable directories, failed saves, broken output streams.
type systemError struct {
	err error
}

func (e *systemError) Error() string { return e.err.Error() }
func (e *systemError) Unwrap() error { return e.err }

func sysError(format string, args ...any) error {
	return &systemError{err: fmt.Errorf(format, args...)}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *systemError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}

// app holds the global flag values and the store opened for the running
// command.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	// resolved by the root pre-run hook
	resolvedConfigDir string
	cfg               types.Config

	store   *store.Store
	options []store.Option
}

func newApp(opts ...store.Option) *app {
	return &app{options: opts}
}

// NewRootCmd creates the top-level "othings" command with global flags and
// all subcommands registered. The returned command does not close the store;
// use Execute or run for that.
func NewRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "othings",
		Short: "Keep track of the things you own",
		Long: `othings is a local-first inventory of personal belongings. Items,
categories, reminders and settings live in an embedded database that is saved
to a local key-value store or to a sync file of your choice.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.loadConfig,
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/othings)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/othings)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newItemCmd())
	root.AddCommand(a.newCategoryCmd())
	root.AddCommand(a.newReminderCmd())
	root.AddCommand(a.newSettingsCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newImportCmd())
	root.AddCommand(a.newStorageCmd())
	root.AddCommand(a.newReportCmd())
	root.AddCommand(a.newSearchCmd())

	return root
}

// Execute runs the CLI with os.Args and returns the exit code.
func Execute() int {
	err := newApp().run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "othings:", err)
	}
	return exitCode(err)
}

// run executes one command and closes the store afterwards, even when the
// command failed.
func (a *app) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// loadConfig resolves the configuration directory and reads config.yaml.
func (a *app) loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError("resolve config dir: %w", err)
	}
	a.resolvedConfigDir = configDir

	v, err := readConfig(configDir)
	if err != nil {
		return err
	}
	cfg, err := configFromViper(v, a.dataDir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// open returns the store, opening it on first use.
func (a *app) open(cmd *cobra.Command) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	logger := logging.New(cmd.ErrOrStderr(), a.cfg.LogLevel, a.cfg.LogFormat)
	opts := append([]store.Option{store.WithLogger(logger)}, a.options...)

	st, err := store.Open(cmd.Context(), a.cfg, opts...)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

// close flushes and releases the store if a command opened it.
func (a *app) close(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	st := a.store
	a.store = nil
	if err := st.Close(ctx); err != nil {
		return sysError("close store: %w", err)
	}
	return nil
}
