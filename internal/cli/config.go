package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/othings/internal/paths"
	"github.com/mesh-intelligence/othings/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// Config keys in config.yaml.
	cfgKeyDataDir      = "data_dir"
	cfgKeyLocalDriver  = "local_driver"
	cfgKeyExternalFile = "external_file"
	cfgKeySyncStrategy = "sync_strategy"
	cfgKeySaveDelay    = "save_delay"
	cfgKeyProtect      = "protect_system_categories"
	cfgKeyLogLevel     = "log_level"
	cfgKeyLogFormat    = "log_format"

	// The CLI keeps routine store messages off the terminal.
	defaultCLILogLevel = "warn"
)

// envKeys are the config keys that OTHINGS_<KEY> environment variables may
// override. data_dir is absent: its precedence is handled by paths.
var envKeys = []string{
	cfgKeyLocalDriver,
	cfgKeyExternalFile,
	cfgKeySyncStrategy,
	cfgKeySaveDelay,
	cfgKeyProtect,
	cfgKeyLogLevel,
	cfgKeyLogFormat,
}

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	DataDir      string `yaml:"data_dir,omitempty"`
	LocalDriver  string `yaml:"local_driver"`
	SyncStrategy string `yaml:"sync_strategy"`
	SaveDelay    string `yaml:"save_delay"`
	LogLevel     string `yaml:"log_level"`
}

// readConfig reads config.yaml from configDir. A missing file is not an
// error; defaults apply.
func readConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyLocalDriver, types.DriverPebble)
	v.SetDefault(cfgKeySyncStrategy, types.SyncDebounce)
	v.SetDefault(cfgKeySaveDelay, types.DefaultSaveDelay)
	v.SetDefault(cfgKeyLogLevel, defaultCLILogLevel)
	v.SetDefault(cfgKeyLogFormat, types.DefaultLogFormat)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("OTHINGS")
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// configFromViper builds the store configuration. The data directory follows
// --data-dir > config.yaml > OTHINGS_DATA_DIR > platform default.
func configFromViper(v *viper.Viper, dataDirFlag string) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}

	dataDir, err := paths.ResolveDataDir(dataDirFlag, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysError("resolve data dir: %w", err)
	}
	if cfg.DataDir, err = paths.Abs(dataDir); err != nil {
		return types.Config{}, sysError("resolve data dir: %w", err)
	}
	if cfg.ExternalFile != "" {
		if cfg.ExternalFile, err = paths.Abs(cfg.ExternalFile); err != nil {
			return types.Config{}, sysError("resolve external file: %w", err)
		}
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left alone.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		DataDir:      dataDir,
		LocalDriver:  types.DriverPebble,
		SyncStrategy: types.SyncDebounce,
		SaveDelay:    types.DefaultSaveDelay.String(),
		LogLevel:     defaultCLILogLevel,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(path, data, 0o644)
}

// setConfigValue sets one top-level key in config.yaml, keeping the other
// entries and their comments. The file is created when missing.
func setConfigValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	m := doc.Content[0]
	if m.Kind != yaml.MappingNode {
		return fmt.Errorf("config %s is not a mapping", path)
	}

	found := false
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1].SetString(value)
			found = true
			break
		}
	}
	if !found {
		k := &yaml.Node{}
		k.SetString(key)
		val := &yaml.Node{}
		val.SetString(value)
		m.Content = append(m.Content, k, val)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
