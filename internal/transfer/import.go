package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/othings/internal/logging"
	"github.com/mesh-intelligence/othings/internal/sqlite"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// Record kinds used in ImportError.
const (
	KindCategory = "category"
	KindItem     = "item"
	KindReminder = "reminder"
	KindSettings = "settings"
)

// ImportOption configures Import.
type ImportOption func(*importer)

// WithSettings applies the document's settings, if present. An empty API
// key in the document keeps the stored key.
func WithSettings() ImportOption {
	return func(im *importer) { im.settings = true }
}

// WithLogger reports each rejected record at WARN.
func WithLogger(l logging.Logger) ImportOption {
	return func(im *importer) {
		if l != nil {
			im.logger = l
		}
	}
}

type importer struct {
	engine   *sqlite.Engine
	settings bool
	logger   logging.Logger

	report types.ImportReport
	// builtIn maps exported built-in category ids to the local built-in
	// category with the same name.
	builtIn map[string]string
}

// Preflight counts what Import would add without changing anything.
// Built-in categories that match a local one by name are neither new nor
// conflicts.
func Preflight(ctx context.Context, e *sqlite.Engine, data types.ExportData) (types.PreflightResult, error) {
	var res types.PreflightResult
	builtIn, err := builtInByName(ctx, e)
	if err != nil {
		return res, err
	}

	for _, c := range data.Categories {
		_, ok, err := e.Categories().FindByID(ctx, c.ID)
		if err != nil {
			return res, err
		}
		switch {
		case ok:
			res.Conflicts++
		case !c.IsCustom && builtIn[c.Name] != "":
		default:
			res.NewCategories++
		}
	}
	for _, it := range data.Items {
		_, ok, err := e.Items().FindByID(ctx, it.ID)
		if err != nil {
			return res, err
		}
		if ok {
			res.Conflicts++
		} else {
			res.NewItems++
		}
	}
	for _, r := range data.Reminders {
		_, ok, err := e.Reminders().FindByID(ctx, r.ID)
		if err != nil {
			return res, err
		}
		if ok {
			res.Conflicts++
		} else {
			res.NewReminders++
		}
	}
	return res, nil
}

// Import inserts the document's records, keeping their ids and timestamps.
// Categories go first, parents before children, then items, then reminders.
// Records whose id already exists are skipped; any other failure is listed
// in the report and the batch continues. The returned error is reserved for
// failures that stop the whole import, such as a closed store.
func Import(ctx context.Context, e *sqlite.Engine, data types.ExportData, opts ...ImportOption) (types.ImportReport, error) {
	im := &importer{engine: e, logger: logging.Discard(), report: types.ImportReport{Errors: []types.ImportError{}}}
	for _, opt := range opts {
		opt(im)
	}

	names, err := builtInByName(ctx, e)
	if err != nil {
		return im.report, err
	}
	im.builtIn = make(map[string]string)
	for _, c := range data.Categories {
		if local := names[c.Name]; !c.IsCustom && local != "" && local != c.ID {
			if _, ok, err := e.Categories().FindByID(ctx, c.ID); err != nil {
				return im.report, err
			} else if !ok {
				im.builtIn[c.ID] = local
			}
		}
	}

	if err := im.categories(ctx, data.Categories); err != nil {
		return im.report, err
	}
	for _, it := range data.Items {
		it.CategoryID = im.mapCategory(it.CategoryID)
		if err := im.record(ctx, KindItem, it.ID, &im.report.Items, e.Items().Insert(ctx, it)); err != nil {
			return im.report, err
		}
	}
	for _, r := range data.Reminders {
		if err := im.record(ctx, KindReminder, r.ID, &im.report.Reminders, e.Reminders().Insert(ctx, r)); err != nil {
			return im.report, err
		}
	}
	if im.settings && data.Settings != nil {
		if err := im.applySettings(ctx, *data.Settings); err != nil {
			return im.report, err
		}
	}
	return im.report, nil
}

// categories inserts in passes so a parent always lands before its
// children, whatever the document order.
func (im *importer) categories(ctx context.Context, cats []types.Category) error {
	pending := make([]types.Category, 0, len(cats))
	for _, c := range cats {
		if _, ok := im.builtIn[c.ID]; ok {
			im.report.Skipped++
			continue
		}
		pending = append(pending, c)
	}

	inDoc := make(map[string]bool, len(pending))
	for _, c := range pending {
		inDoc[c.ID] = true
	}
	done := make(map[string]bool, len(pending))
	for len(pending) > 0 {
		var next []types.Category
		for _, c := range pending {
			c.ParentID = im.mapCategory(c.ParentID)
			if c.ParentID != nil && inDoc[*c.ParentID] && !done[*c.ParentID] {
				next = append(next, c)
				continue
			}
			done[c.ID] = true
			if err := im.record(ctx, KindCategory, c.ID, &im.report.Categories, im.engine.Categories().Insert(ctx, c)); err != nil {
				return err
			}
		}
		if len(next) == len(pending) {
			// Every remaining parent is itself waiting: a cycle.
			for _, c := range next {
				im.fail(ctx, KindCategory, c.ID, types.Invalid("parentId", types.ErrInvalidParent))
			}
			return nil
		}
		pending = next
	}
	return nil
}

// record classifies the outcome of one insert. Only a closed engine or a
// cancelled context is returned; everything else lands in the report.
func (im *importer) record(ctx context.Context, kind, id string, counter *int, err error) error {
	switch {
	case err == nil:
		*counter++
	case errors.Is(err, types.ErrAlreadyExists):
		im.report.Skipped++
	case errors.Is(err, types.ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		im.fail(ctx, kind, id, err)
	}
	return nil
}

func (im *importer) fail(ctx context.Context, kind, id string, err error) {
	im.report.Errors = append(im.report.Errors, types.ImportError{Kind: kind, ID: id, Reason: err.Error()})
	im.logger.WarnCtx(ctx, "import record rejected", "kind", kind, "id", id, "error", err)
}

func (im *importer) mapCategory(id *string) *string {
	if id == nil {
		return nil
	}
	if local, ok := im.builtIn[*id]; ok {
		return &local
	}
	return id
}

func (im *importer) applySettings(ctx context.Context, s types.Settings) error {
	if s.LLMAPIKey == "" {
		current, err := im.engine.Settings().Get(ctx)
		if err != nil {
			return err
		}
		s.LLMAPIKey = current.LLMAPIKey
	}
	err := im.engine.Settings().Replace(ctx, s)
	if errors.Is(err, types.ErrClosed) {
		return err
	}
	if err != nil {
		im.fail(ctx, KindSettings, "", err)
		return nil
	}
	im.report.SettingsApplied = true
	return nil
}

// builtInByName maps built-in category names to local ids.
func builtInByName(ctx context.Context, e *sqlite.Engine) (map[string]string, error) {
	cats, err := e.Categories().FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	names := make(map[string]string)
	for _, c := range cats {
		if !c.IsCustom {
			names[c.Name] = c.ID
		}
	}
	return names, nil
}
