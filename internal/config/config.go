// Package config provides configuration management for the LaTeX workbench.
//
// Values come from, in rising priority: built-in defaults, a YAML config
// file, LATEXWB_* environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "config.yaml"
	// DefaultDirName is the per-user directory under $HOME
	DefaultDirName = ".latex-workbench"
	// EnvPrefix prefixes environment overrides, e.g. LATEXWB_MAX_LEVEL
	EnvPrefix = "LATEXWB"

	// DefaultMaxLevel is the outline depth used by the workbench
	DefaultMaxLevel = 3
	// DefaultEncoding reads UTF-8 and BOM-marked files
	DefaultEncoding = "auto"
	// DefaultBackupKeep is the number of backups kept per file
	DefaultBackupKeep = 5
	// DefaultRecentMax is the length of the recent files list
	DefaultRecentMax = 5
	// DefaultLogLevel is the log level when none is configured
	DefaultLogLevel = "info"
	// DefaultLogFileName is created inside DefaultDirName
	DefaultLogFileName = "latex-workbench.log"
)

// DefaultDir returns ~/.latex-workbench.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *types.Config {
	logFile := DefaultLogFileName
	if dir, err := DefaultDir(); err == nil {
		logFile = filepath.Join(dir, DefaultLogFileName)
	}
	return &types.Config{
		MaxLevel:   DefaultMaxLevel,
		Encoding:   DefaultEncoding,
		BackupDir:  "",
		BackupKeep: DefaultBackupKeep,
		RecentMax:  DefaultRecentMax,
		AidDir:     "",
		Log: types.LogConfig{
			File:    logFile,
			Level:   DefaultLogLevel,
			Console: false,
		},
	}
}

// ConfigManager manages application configuration
type ConfigManager struct {
	mu         sync.RWMutex
	v          *viper.Viper
	configPath string
	config     *types.Config
	callbacks  []func(*types.Config)
}

// NewConfigManager creates a ConfigManager for configPath. If configPath is
// empty, ./config.yaml and ~/.latex-workbench/config.yaml are searched.
// A missing file is not an error.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	m := &ConfigManager{
		v:          viper.New(),
		configPath: configPath,
	}
	m.initViper()
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ConfigManager) initViper() {
	defaults := DefaultConfig()
	m.v.SetDefault("max_level", defaults.MaxLevel)
	m.v.SetDefault("encoding", defaults.Encoding)
	m.v.SetDefault("backup_dir", defaults.BackupDir)
	m.v.SetDefault("backup_keep", defaults.BackupKeep)
	m.v.SetDefault("recent_max", defaults.RecentMax)
	m.v.SetDefault("aid_dir", defaults.AidDir)
	m.v.SetDefault("log.file", defaults.Log.File)
	m.v.SetDefault("log.level", defaults.Log.Level)
	m.v.SetDefault("log.console", defaults.Log.Console)

	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	if m.configPath != "" {
		m.v.SetConfigFile(m.configPath)
		return
	}
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")
	m.v.AddConfigPath(".")
	m.v.AddConfigPath(filepath.Join("$HOME", DefaultDirName))
}

// Load reads the config file (if any) and rebuilds the configuration.
func (m *ConfigManager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			logger.Debug("no config file found, using defaults")
		case errors.Is(err, os.ErrNotExist):
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		default:
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppErrorWithDetails(types.ErrConfig, "failed to read config file", m.configPath, err)
		}
	}

	cfg, err := m.unmarshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	logger.Debug("configuration loaded",
		logger.String("path", m.GetConfigPath()),
		logger.Int("maxLevel", cfg.MaxLevel),
		logger.String("encoding", cfg.Encoding))
	return nil
}

func (m *ConfigManager) unmarshal() (*types.Config, error) {
	var cfg types.Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to parse config", err)
	}
	cfg.BackupDir = expandHome(cfg.BackupDir)
	cfg.AidDir = expandHome(cfg.AidDir)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func Validate(cfg *types.Config) error {
	if cfg.MaxLevel < 1 || cfg.MaxLevel > 4 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "max_level must be between 1 and 4",
			fmt.Sprintf("got %d", cfg.MaxLevel), nil)
	}
	if cfg.BackupKeep < 0 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "backup_keep must not be negative",
			fmt.Sprintf("got %d", cfg.BackupKeep), nil)
	}
	if cfg.RecentMax < 0 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "recent_max must not be negative",
			fmt.Sprintf("got %d", cfg.RecentMax), nil)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// BindFlag lets a command line flag override key when the flag is set.
func (m *ConfigManager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	if err := m.v.BindPFlag(key, flag); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to bind flag "+flag.Name, err)
	}
	return m.Load()
}

// Get returns the current configuration (thread-safe).
func (m *ConfigManager) Get() *types.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigPath returns the config file in use, or the configured path
// when no file was found.
func (m *ConfigManager) GetConfigPath() string {
	if used := m.v.ConfigFileUsed(); used != "" {
		return used
	}
	return m.configPath
}

// OnChange registers a callback for config changes.
func (m *ConfigManager) OnChange(fn func(*types.Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// WatchConfig reloads the configuration whenever the file changes. Invalid
// edits are logged and the previous configuration is kept.
func (m *ConfigManager) WatchConfig() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := m.unmarshal()
		if err != nil {
			logger.Warn("config reload rejected", logger.Err(err), logger.String("file", e.Name))
			return
		}

		m.mu.Lock()
		m.config = cfg
		callbacks := make([]func(*types.Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		logger.Info("configuration reloaded", logger.String("file", e.Name))
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.v.WatchConfig()
}

// WriteDefault writes the default configuration to path as YAML.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	header := []byte(`# latex-workbench configuration
# Every key can be overridden with LATEXWB_<KEY>, e.g. LATEXWB_MAX_LEVEL=2 or LATEXWB_LOG_LEVEL=debug
# encoding: auto | utf-8 | gbk | utf-16le | utf-16be

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return types.NewIOError("failed to create config directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return types.NewIOError("failed to write config file", path, err)
	}
	logger.Info("default configuration written", logger.String("path", path))
	return nil
}
