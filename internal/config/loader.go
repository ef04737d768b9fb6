package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ning0612/fsbridge/internal/domain"
)

// EnvPrefix prefixes environment overrides, e.g. FSBRIDGE_DEBUG_LEVEL
const EnvPrefix = "FSBRIDGE"

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
		"./configs",
	}

	// Add user config directory
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "fsbridge"))
	}

	// Add home directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".fsbridge"))
	}

	return paths
}

// DefaultDataDir is where history and locks live unless data_dir is set
func DefaultDataDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "fsbridge")
	}
	return filepath.Join(os.TempDir(), "fsbridge")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("debug_level", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.max_backups", 5)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads and parses a configuration file
// If path is empty, searches default locations for config.yaml
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		// Use specific file
		v.SetConfigFile(ExpandPath(path))
	} else {
		// Search default paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

// Default returns the configuration used when no file exists.
// Environment overrides still apply.
func Default() (*Config, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	cfg.expandPaths()

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
