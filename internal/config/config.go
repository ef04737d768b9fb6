package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/logger"
)

// Config represents the complete configuration for fsbridge
type Config struct {
	// LocalDir is the preferred local directory; see StartupPath
	LocalDir string `mapstructure:"local_dir"`

	// DebugLevel selects hex dump length and forces debug logging when > 0
	DebugLevel int `mapstructure:"debug_level"`

	// DataDir holds the transfer history and lock files
	DataDir string `mapstructure:"data_dir"`

	Log LogConfig `mapstructure:"log"`

	// Transports define storage backend configurations
	Transports []domain.Transport `mapstructure:"transports"`
}

// LogConfig mirrors logger.Config in YAML form
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   FileLogConfig `mapstructure:"file"`
}

// FileLogConfig configures the rotating log file
type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if c.DebugLevel < 0 {
		return fmt.Errorf("%w: debug_level cannot be negative: %d", domain.ErrConfigInvalid, c.DebugLevel)
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when file logging is enabled", domain.ErrConfigInvalid)
	}

	// Check transport name uniqueness
	transportNames := make(map[string]bool)
	for _, t := range c.Transports {
		if t.Name == "" {
			return fmt.Errorf("%w: transport name cannot be empty", domain.ErrConfigInvalid)
		}
		if transportNames[t.Name] {
			return fmt.Errorf("%w: duplicate transport name: %s", domain.ErrConfigInvalid, t.Name)
		}
		if !t.Type.IsValid() {
			return fmt.Errorf("%w: invalid transport type: %s", domain.ErrConfigInvalid, t.Type)
		}
		if strings.ContainsAny(t.Extension, "./\\") {
			return fmt.Errorf("%w: transport %s: extension must not contain '.' or separators: %q",
				domain.ErrConfigInvalid, t.Name, t.Extension)
		}
		if err := validateTransport(t); err != nil {
			return err
		}
		transportNames[t.Name] = true
	}

	return nil
}

func validateTransport(t domain.Transport) error {
	switch t.Type {
	case domain.TransportSMB:
		if t.Host == "" || t.Share == "" {
			return fmt.Errorf("%w: transport %s: smb requires host and share", domain.ErrConfigInvalid, t.Name)
		}
	case domain.TransportGDrive:
		if t.Credentials == "" {
			return fmt.Errorf("%w: transport %s: gdrive requires credentials", domain.ErrConfigInvalid, t.Name)
		}
	case domain.TransportSlots:
		if t.Root == "" {
			return fmt.Errorf("%w: transport %s: slots requires root", domain.ErrConfigInvalid, t.Name)
		}
		if t.Slots < 0 {
			return fmt.Errorf("%w: transport %s: slots cannot be negative", domain.ErrConfigInvalid, t.Name)
		}
	}
	return nil
}

// GetTransport returns a transport by name
func (c *Config) GetTransport(name string) (*domain.Transport, error) {
	for i := range c.Transports {
		if c.Transports[i].Name == name {
			return &c.Transports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTransportNotFound, name)
}

// TransportNames lists the configured transports in file order
func (c *Config) TransportNames() []string {
	names := make([]string, 0, len(c.Transports))
	for _, t := range c.Transports {
		names = append(names, t.Name)
	}
	return names
}

// LoggerConfig builds the logger configuration.
// verbosity overrides debug_level when positive.
func (c *Config) LoggerConfig(verbosity int) logger.Config {
	if verbosity <= 0 {
		verbosity = c.DebugLevel
	}

	lc := logger.Config{
		Level:     logger.ParseLevel(c.Log.Level),
		Format:    logger.ParseFormat(c.Log.Format),
		Outputs:   []logger.OutputConfig{{Type: logger.OutputStderr}},
		Verbosity: logger.Verbosity(verbosity),
		File: logger.FileConfig{
			Enabled:    c.Log.File.Enabled,
			Path:       c.Log.File.Path,
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			MaxBackups: c.Log.File.MaxBackups,
			Compress:   c.Log.File.Compress,
		},
	}
	if c.Log.File.Enabled {
		lc.Outputs = append(lc.Outputs, logger.OutputConfig{Type: logger.OutputFile})
	}
	return lc
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	// Expand ~ to home directory
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	// Expand environment variables
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}

// expandPaths applies ExpandPath to every filesystem path in the config
func (c *Config) expandPaths() {
	c.LocalDir = ExpandPath(c.LocalDir)
	c.DataDir = ExpandPath(c.DataDir)
	c.Log.File.Path = ExpandPath(c.Log.File.Path)
	for i := range c.Transports {
		t := &c.Transports[i]
		t.Credentials = ExpandPath(t.Credentials)
		t.TokenPath = ExpandPath(t.TokenPath)
		if t.Type == domain.TransportLocal || t.Type == domain.TransportSlots {
			t.Root = ExpandPath(t.Root)
		}
	}
}
