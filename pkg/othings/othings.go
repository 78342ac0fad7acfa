// Package othings is the public entry point for embedding the inventory
// store in another program.
//
// Example:
//
//	st, err := othings.Open(ctx, types.Config{DataDir: dir})
//	if err != nil {
//	    return err
//	}
//	defer st.Close(ctx)
//	item, err := st.Items().Create(ctx, types.ItemInput{Name: "Drill"})
//
// The repositories, reporter and searcher returned by Store live in internal
// packages; the aliases below let callers name them.
package othings

import (
	"context"

	"github.com/mesh-intelligence/othings/internal/logging"
	"github.com/mesh-intelligence/othings/internal/report"
	"github.com/mesh-intelligence/othings/internal/scheduler"
	"github.com/mesh-intelligence/othings/internal/search"
	"github.com/mesh-intelligence/othings/internal/sqlite"
	"github.com/mesh-intelligence/othings/internal/storage"
	"github.com/mesh-intelligence/othings/internal/store"
	"github.com/mesh-intelligence/othings/internal/transfer"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// Version is the release of the module.
const Version = "0.1.0"

// Store is an open inventory.
type Store = store.Store

// Option configures Open.
type Option = store.Option

// Types returned by Store methods.
type (
	ItemsTable      = sqlite.ItemsTable
	CategoriesTable = sqlite.CategoriesTable
	RemindersTable  = sqlite.RemindersTable
	SettingsTable   = sqlite.SettingsTable
	Reporter        = report.Reporter
	ReportGroup     = report.Group
	Searcher        = search.Searcher
	SearchResult    = search.Result
	StorageStatus   = storage.Status
	ImportOption    = transfer.ImportOption
)

// Types accepted by the options and by Store.UseExternal.
type (
	Logger          = logging.Logger
	Target          = storage.Target
	Picker          = storage.Picker
	PathPicker      = storage.PathPicker
	Clock           = scheduler.Clock
	Classifier      = search.Classifier
	ClassifierFunc  = search.ClassifierFunc
	ClassifierMatch = search.Match
)

// ImportWithSettings makes Store.Import also replace the settings.
var ImportWithSettings = transfer.WithSettings

// Options accepted by Open.
var (
	WithLogger         = store.WithLogger
	WithRegisterer     = store.WithRegisterer
	WithSchedulerClock = store.WithSchedulerClock
	WithNow            = store.WithNow
	WithLocalTarget    = store.WithLocalTarget
	WithClassifier     = store.WithClassifier
)

// Open loads the inventory described by cfg. It fails only on invalid
// configuration; storage problems degrade the store and are reported by
// Store.Warnings.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Store, error) {
	return store.Open(ctx, cfg, opts...)
}
