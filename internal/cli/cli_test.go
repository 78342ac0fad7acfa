package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/othings/internal/report"
	"github.com/mesh-intelligence/othings/internal/storage"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// cliEnv is an isolated pair of config and data directories.
type cliEnv struct {
	configDir string
	dataDir   string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	for _, k := range []string{"OTHINGS_CONFIG_DIR", "OTHINGS_DATA_DIR", "OTHINGS_EXTERNAL_FILE", "OTHINGS_LOCAL_DRIVER", "OTHINGS_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return cliEnv{configDir: t.TempDir(), dataDir: t.TempDir()}
}

// run executes one CLI invocation with its own app, like a separate process.
func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	full := append([]string{"--config-dir", e.configDir, "--data-dir", e.dataDir}, args...)
	var stdout, stderr bytes.Buffer
	err := newApp().run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (e cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := e.run(t, args...)
	require.NoError(t, err, "othings %s\nstderr: %s", strings.Join(args, " "), stderr)
	return out
}

// runJSON runs a command with --json and decodes its output into v.
func (e cliEnv) runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := e.mustRun(t, append([]string{"--json"}, args...)...)
	require.NoError(t, json.Unmarshal([]byte(out), v), "output: %s", out)
}

func (e cliEnv) configFile() string {
	return filepath.Join(e.configDir, "config.yaml")
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun(t, "version")
	assert.Contains(t, out, "othings v")
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "init")
	assert.Contains(t, out, "Wrote "+env.configFile())
	assert.Contains(t, out, "othings initialized (local:")

	data, err := os.ReadFile(env.configFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), "local_driver: pebble")
	assert.Contains(t, string(data), "data_dir: "+env.dataDir)
	assert.DirExists(t, filepath.Join(env.dataDir, "pebble"))

	out = env.mustRun(t, "init")
	assert.NotContains(t, out, "Wrote", "existing config is kept")
}

func TestItemLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	var item types.Item
	env.runJSON(t, &item, "item", "add", "Cordless drill",
		"--category", "tools", "--price", "89.90", "--location", "Garage", "--field", "volts=18", "--field", "brand=Acme")
	require.NotEmpty(t, item.ID)
	require.NotNil(t, item.CategoryID)
	require.NotNil(t, item.PurchasePrice)
	assert.InDelta(t, 89.9, *item.PurchasePrice, 0.001)
	assert.Equal(t, map[string]any{"volts": 18.0, "brand": "Acme"}, item.CustomFields)

	out := env.mustRun(t, "item", "list")
	assert.Contains(t, out, "Cordless drill")
	assert.Contains(t, out, "Tools")
	assert.Contains(t, out, "89.90")

	out = env.mustRun(t, "item", "get", item.ID)
	assert.Contains(t, out, "Garage")
	assert.Contains(t, out, "brand:")

	var updated types.Item
	env.runJSON(t, &updated, "item", "update", item.ID, "--quantity", "2", "--price", "", "--field", "volts=")
	assert.Equal(t, 2, updated.Quantity)
	assert.Nil(t, updated.PurchasePrice)
	assert.Equal(t, map[string]any{"brand": "Acme"}, updated.CustomFields)
	assert.Equal(t, "Cordless drill", updated.Name)

	var list []types.Item
	env.runJSON(t, &list, "item", "list", "--search", "drill")
	require.Len(t, list, 1)

	env.mustRun(t, "item", "delete", item.ID)
	_, _, err := env.run(t, "item", "get", item.ID)
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestItemAddRejectsInvalidInput(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"blank name", []string{"item", "add", "  "}},
		{"bad price", []string{"item", "add", "Lamp", "--price", "cheap"}},
		{"bad date", []string{"item", "add", "Lamp", "--purchase-date", "03/04/2024"}},
		{"unknown category", []string{"item", "add", "Lamp", "--category", "Nope"}},
		{"bad field", []string{"item", "add", "Lamp", "--field", "novalue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.run(t, tt.args...)
			require.ErrorIs(t, err, types.ErrValidation)
			assert.Equal(t, exitUserError, exitCode(err))
		})
	}

	var list []types.Item
	env.runJSON(t, &list, "item", "list")
	assert.Empty(t, list)
}

func TestItemPaging(t *testing.T) {
	env := newCLIEnv(t)
	for i := 1; i <= 5; i++ {
		env.mustRun(t, "item", "add", fmt.Sprintf("Box %d", i))
	}
	env.mustRun(t, "settings", "set", "itemsPerPage=2")

	var page types.ItemPage
	env.runJSON(t, &page, "item", "list", "--page", "3")
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.PageSize, "page size comes from the itemsPerPage setting")
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 1)

	env.runJSON(t, &page, "item", "list", "--page-size", "4")
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Items, 4)

	out := env.mustRun(t, "item", "list", "--page", "1")
	assert.Contains(t, out, "Page 1 of 3 (5 items)")

	_, _, err := env.run(t, "item", "list", "--page", "0")
	assert.ErrorIs(t, err, types.ErrInvalidPage)

	var recent []types.Item
	env.runJSON(t, &recent, "item", "recent", "--limit", "2")
	require.Len(t, recent, 2)
	assert.Equal(t, "Box 5", recent[0].Name)
	assert.Equal(t, "Box 4", recent[1].Name)
}

func TestStateSurvivesRepeatedInvocations(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "init")

	var first types.Item
	env.runJSON(t, &first, "item", "add", "Lamp")
	for i := 0; i < 3; i++ {
		var items []types.Item
		env.runJSON(t, &items, "item", "list")
		require.Len(t, items, i+1, "invocation %d", i)
		assert.Equal(t, first.ID, items[len(items)-1].ID)
		env.mustRun(t, "item", "add", fmt.Sprintf("Chair %d", i))
	}
}

func TestCategoryCommands(t *testing.T) {
	env := newCLIEnv(t)

	var camping types.Category
	env.runJSON(t, &camping, "category", "add", "Camping", "--color", "#336699", "--parent", "Sports")
	assert.True(t, camping.IsCustom)
	require.NotNil(t, camping.ParentID)

	var renamed types.Category
	env.runJSON(t, &renamed, "category", "update", camping.ID, "--name", "Outdoors", "--parent", "")
	assert.Equal(t, "Outdoors", renamed.Name)
	assert.Nil(t, renamed.ParentID)

	out := env.mustRun(t, "category", "list")
	assert.Contains(t, out, "Outdoors")
	assert.Contains(t, out, "#336699")

	env.mustRun(t, "category", "delete", camping.ID)
	var cats []types.Category
	env.runJSON(t, &cats, "category", "list")
	for _, c := range cats {
		assert.NotEqual(t, camping.ID, c.ID)
	}

	t.Run("protected built-ins", func(t *testing.T) {
		require.NoError(t, setConfigValue(env.configFile(), cfgKeyProtect, "true"))
		var tools string
		for _, c := range cats {
			if c.Name == "Tools" {
				tools = c.ID
			}
		}
		require.NotEmpty(t, tools)

		_, _, err := env.run(t, "category", "delete", tools)
		require.ErrorIs(t, err, types.ErrProtectedCategory)
		assert.Equal(t, exitUserError, exitCode(err))
	})
}

func TestReminderCommands(t *testing.T) {
	env := newCLIEnv(t)

	var item types.Item
	env.runJSON(t, &item, "item", "add", "Car")

	var r types.Reminder
	env.runJSON(t, &r, "reminder", "add", item.ID, "Service", "--due", "2999-01-01", "--notify-before", "30")
	assert.Equal(t, 30, r.NotifyBefore)

	out := env.mustRun(t, "reminder", "list", "--item", item.ID)
	assert.Contains(t, out, "Service")
	assert.Contains(t, out, string(types.ReminderScheduled))

	var done types.Reminder
	env.runJSON(t, &done, "reminder", "done", r.ID)
	assert.True(t, done.Completed)
	assert.NotNil(t, done.CompletedAt)

	var buckets types.ReminderBuckets
	env.runJSON(t, &buckets, "reminder", "status")
	assert.Len(t, buckets.Completed, 1)
	assert.Empty(t, buckets.Scheduled)

	var reopened types.Reminder
	env.runJSON(t, &reopened, "reminder", "undo", r.ID)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedAt)

	_, _, err := env.run(t, "reminder", "add", "missing-item", "Oops", "--due", "2999-01-01")
	require.ErrorIs(t, err, types.ErrValidation)

	_, _, err = env.run(t, "reminder", "add", item.ID, "No date")
	require.Error(t, err, "--due is required")

	env.mustRun(t, "reminder", "delete", r.ID)
	var all []types.Reminder
	env.runJSON(t, &all, "reminder", "list")
	assert.Empty(t, all)
}

func TestSettingsCommands(t *testing.T) {
	env := newCLIEnv(t)

	var s types.Settings
	env.runJSON(t, &s, "settings", "get")
	assert.Equal(t, types.DefaultSettings(), s)

	env.runJSON(t, &s, "settings", "set", "theme=dark", "itemsPerPage=50", "llmApiKey=secret", "notifications=false")
	assert.Equal(t, types.ThemeDark, s.Theme)
	assert.Equal(t, 50, s.ItemsPerPage)
	assert.False(t, s.Notifications)
	assert.Equal(t, "[redacted]", s.LLMAPIKey)

	out := env.mustRun(t, "settings", "get")
	assert.Contains(t, out, "dark")
	assert.NotContains(t, out, "secret")

	for _, args := range [][]string{
		{"settings", "set", "theme=neon"},
		{"settings", "set", "itemsPerPage=many"},
		{"settings", "set", "colour=blue"},
		{"settings", "set", "theme"},
	} {
		_, _, err := env.run(t, args...)
		assert.ErrorIs(t, err, types.ErrValidation, "args %v", args)
	}

	env.runJSON(t, &s, "settings", "reset")
	assert.Equal(t, types.DefaultSettings(), s)
}

func TestExportImport(t *testing.T) {
	src := newCLIEnv(t)
	var item types.Item
	src.runJSON(t, &item, "item", "add", "Tent", "--category", "Sports", "--price", "120")
	src.mustRun(t, "reminder", "add", item.ID, "Reproof", "--due", "2999-05-01")
	src.mustRun(t, "settings", "set", "theme=dark", "llmApiKey=secret")

	file := filepath.Join(t.TempDir(), "export.json")
	src.mustRun(t, "export", "json", "-o", file)
	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	csvOut := src.mustRun(t, "export", "csv")
	lines := strings.Split(strings.TrimSpace(csvOut), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Tent")
	assert.Contains(t, lines[1], "120.00")

	dst := newCLIEnv(t)
	var pre types.PreflightResult
	dst.runJSON(t, &pre, "import", "--dry-run", file)
	assert.Equal(t, types.PreflightResult{NewItems: 1, NewReminders: 1}, pre)

	var rep types.ImportReport
	dst.runJSON(t, &rep, "import", "--settings", file)
	assert.Equal(t, 1, rep.Items)
	assert.Equal(t, 1, rep.Reminders)
	assert.True(t, rep.SettingsApplied)
	assert.Empty(t, rep.Errors)

	var items []types.Item
	dst.runJSON(t, &items, "item", "list", "--category", "sports")
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)

	var s types.Settings
	dst.runJSON(t, &s, "settings", "get")
	assert.Equal(t, types.ThemeDark, s.Theme)

	out := dst.mustRun(t, "import", file)
	assert.Contains(t, out, "Imported 0 items")

	_, _, err = dst.run(t, "import", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestStorageCommands(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "item", "add", "Guitar")

	var status storageStatus
	env.runJSON(t, &status, "storage", "status")
	assert.Equal(t, storage.ModeLocal, status.Mode)
	assert.Equal(t, types.DriverPebble, status.Driver)
	assert.Empty(t, status.Warnings)

	syncFile := filepath.Join(t.TempDir(), "othings.json")
	out := env.mustRun(t, "storage", "use-file", syncFile)
	assert.Contains(t, out, "external")
	assert.FileExists(t, syncFile)

	cfg, err := os.ReadFile(env.configFile())
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "external_file: "+syncFile)

	env.runJSON(t, &status, "storage", "status")
	assert.Equal(t, storage.ModeExternal, status.Mode)
	assert.Equal(t, syncFile, status.Target)

	var items []types.Item
	env.runJSON(t, &items, "item", "list")
	require.Len(t, items, 1, "inventory survives the switch")

	env.mustRun(t, "storage", "use-local")
	env.runJSON(t, &status, "storage", "status")
	assert.Equal(t, storage.ModeLocal, status.Mode)

	_, _, err = env.run(t, "storage", "use-file", "")
	require.ErrorIs(t, err, storage.ErrPickerUnsupported)
}

func TestReportAndSearch(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "item", "add", "Drill", "--category", "Tools", "--price", "50", "--quantity", "2")
	env.mustRun(t, "item", "add", "Hammer", "--category", "Tools", "--price", "10.25")
	env.mustRun(t, "item", "add", "Kettle", "--location", "Kitchen")

	var stats types.DashboardStats
	env.runJSON(t, &stats, "report")
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 4, stats.TotalQuantity)
	assert.InDelta(t, 110.25, stats.TotalValue, 0.001)
	assert.Equal(t, 3, stats.NewItemsThisMonth)

	var groups []report.Group
	env.runJSON(t, &groups, "report", "category")
	require.Len(t, groups, 2)
	assert.Equal(t, "Tools", groups[0].Label)
	assert.Equal(t, 2, groups[0].Items)
	assert.Equal(t, report.UncategorizedLabel, groups[1].Label)

	out := env.mustRun(t, "report", "location")
	assert.Contains(t, out, "Kitchen")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "110.25")

	out = env.mustRun(t, "search", "ham")
	assert.Contains(t, out, "Hammer")
	assert.NotContains(t, out, "Drill")

	env.mustRun(t, "settings", "set", "searchMode=llm")
	_, stderr, err := env.run(t, "search", "kettle")
	require.NoError(t, err)
	assert.Contains(t, stderr, "using normal search")

	_, _, err = env.run(t, "search", "x", "--mode", "fuzzy")
	require.ErrorIs(t, err, types.ErrValidation)
}

func TestInvalidConfig(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, setConfigValue(env.configFile(), cfgKeySyncStrategy, "sometimes"))

	_, _, err := env.run(t, "item", "list")
	require.ErrorIs(t, err, types.ErrSyncStrategyUnknown)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitSuccess},
		{"not found", fmt.Errorf("item x: %w", types.ErrNotFound), exitUserError},
		{"validation", types.Invalid("name", types.ErrInvalidName), exitUserError},
		{"usage", errors.New(`unknown flag: --nope`), exitUserError},
		{"system", sysError("write output: %w", os.ErrPermission), exitSysError},
		{"wrapped system", fmt.Errorf("outer: %w", sysError("close store")), exitSysError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestSetConfigValue(t *testing.T) {
	t.Run("keeps other keys and comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("# my settings\nlocal_driver: badger\nexternal_file: /old.json\n"), 0o644))

		require.NoError(t, setConfigValue(path, cfgKeyExternalFile, "/new.json"))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "# my settings")
		assert.Contains(t, string(data), "local_driver: badger")
		assert.Contains(t, string(data), "external_file: /new.json")
		assert.NotContains(t, string(data), "/old.json")
	})

	t.Run("creates a missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")
		require.NoError(t, setConfigValue(path, cfgKeyLogLevel, "debug"))

		v, err := readConfig(filepath.Dir(path))
		require.NoError(t, err)
		assert.Equal(t, "debug", v.GetString(cfgKeyLogLevel))
	})
}

func TestConfigFromViper(t *testing.T) {
	dir := t.TempDir()
	for _, k := range []string{"OTHINGS_DATA_DIR", "OTHINGS_SAVE_DELAY", "OTHINGS_SYNC_STRATEGY"} {
		t.Setenv(k, "")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("data_dir: /srv/othings\nsave_delay: 250ms\nlocal_driver: badger\n"), 0o644))

	v, err := readConfig(dir)
	require.NoError(t, err)
	cfg, err := configFromViper(v, "")
	require.NoError(t, err)
	assert.Equal(t, "/srv/othings", cfg.DataDir)
	assert.Equal(t, types.DriverBadger, cfg.LocalDriver)
	assert.Equal(t, types.SyncDebounce, cfg.SyncStrategy)
	assert.Equal(t, "250ms", cfg.SaveDelay.String())
	assert.Equal(t, defaultCLILogLevel, cfg.LogLevel)

	t.Setenv("OTHINGS_SYNC_STRATEGY", types.SyncImmediate)
	v, err = readConfig(dir)
	require.NoError(t, err)
	cfg, err = configFromViper(v, "/flag/data")
	require.NoError(t, err)
	assert.Equal(t, types.SyncImmediate, cfg.SyncStrategy)
	assert.Equal(t, "/flag/data", cfg.DataDir)
}

func TestParseFields(t *testing.T) {
	dst := map[string]any{"old": "x"}
	require.NoError(t, parseFields([]string{"n=3.5", "ok=true", "serial=AB-12", "old="}, dst))
	assert.Equal(t, map[string]any{"n": 3.5, "ok": true, "serial": "AB-12"}, dst)

	err := parseFields([]string{"=v"}, dst)
	assert.ErrorIs(t, err, types.ErrValidation)
}
