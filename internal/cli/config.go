package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/healthlog/internal/paths"
	"github.com/mesh-intelligence/healthlog/pkg/types"
)

// Config keys in config.yaml.
const (
	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyLogLevel  = "log.level"
	cfgKeyLogFormat = "log.format"
)

// Environment overrides for the log keys.
const (
	envLogLevel  = "HEALTHLOG_LOG_LEVEL"
	envLogFormat = "HEALTHLOG_LOG_FORMAT"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# healthlog configuration

# Storage backend: sqlite or fixture (in memory, nothing is saved).
backend: sqlite

# Journal directory. --data-dir and HEALTHLOG_DATA_DIR override it.
# data_dir:

log:
  # debug, info, warn or error
  level: warn
  # text or json
  format: text
`

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyLogFormat, "text")
	if err := v.BindEnv(cfgKeyLogLevel, envLogLevel); err != nil {
		return nil, err
	}
	if err := v.BindEnv(cfgKeyLogFormat, envLogFormat); err != nil {
		return nil, err
	}
	v.SetConfigFile(filepath.Join(configDir, paths.ConfigFileName))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
