package types

import (
	"errors"
	"time"
)

// Config holds storage selection and tuning parameters for the store.
type Config struct {
	DataDir                 string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	LocalDriver             string        `json:"local_driver" yaml:"local_driver" mapstructure:"local_driver"`
	ExternalFile            string        `json:"external_file" yaml:"external_file,omitempty" mapstructure:"external_file"`
	SyncStrategy            string        `json:"sync_strategy" yaml:"sync_strategy" mapstructure:"sync_strategy"`
	SaveDelay               time.Duration `json:"save_delay" yaml:"save_delay" mapstructure:"save_delay"`
	ProtectSystemCategories bool          `json:"protect_system_categories" yaml:"protect_system_categories" mapstructure:"protect_system_categories"`
	LogLevel                string        `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat               string        `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
}

// Local key-value drivers.
const (
	DriverPebble = "pebble"
	DriverBadger = "badger"

	// DriverMemory keeps snapshots in process memory only. Used for tests and
	// for degraded operation when no durable store can be opened.
	DriverMemory = "memory"
)

// Sync strategies control when mutation-triggered saves reach the backend.
const (
	SyncDebounce  = "debounce"
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
)

// Defaults applied by WithDefaults.
const (
	DefaultSaveDelay = time.Second
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config validation errors.
var (
	ErrDataDirEmpty        = errors.New("data directory must not be empty")
	ErrDriverUnknown       = errors.New("unknown local driver")
	ErrSyncStrategyUnknown = errors.New("unknown sync strategy")
	ErrSaveDelayInvalid    = errors.New("save delay must be positive")
	ErrLogLevelUnknown     = errors.New("unknown log level")
	ErrLogFormatUnknown    = errors.New("unknown log format")
)

var knownDrivers = map[string]bool{
	DriverPebble: true,
	DriverBadger: true,
	DriverMemory: true,
}

var knownSyncStrategies = map[string]bool{
	SyncDebounce:  true,
	SyncImmediate: true,
	SyncOnClose:   true,
}

var knownLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// WithDefaults returns a copy of c with empty fields filled in.
func (c Config) WithDefaults() Config {
	if c.LocalDriver == "" {
		c.LocalDriver = DriverPebble
	}
	if c.SyncStrategy == "" {
		c.SyncStrategy = SyncDebounce
	}
	if c.SaveDelay == 0 {
		c.SaveDelay = DefaultSaveDelay
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	return c
}

// Validate checks that the Config is well-formed. Empty optional fields are
// accepted; call WithDefaults first to validate the effective configuration.
func (c Config) Validate() error {
	if c.DataDir == "" && c.LocalDriver != DriverMemory {
		return ErrDataDirEmpty
	}
	if c.LocalDriver != "" && !knownDrivers[c.LocalDriver] {
		return ErrDriverUnknown
	}
	if c.SyncStrategy != "" && !knownSyncStrategies[c.SyncStrategy] {
		return ErrSyncStrategyUnknown
	}
	if c.SaveDelay < 0 {
		return ErrSaveDelayInvalid
	}
	if c.LogLevel != "" && !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return ErrLogFormatUnknown
	}
	return nil
}
