// Package config manages YAML-based configuration with environment and CLI overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CLARVFS_PORT.
const EnvPrefix = "CLARVFS"

// Storage backends a host can serve from.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendGit    = "git"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEV"`
}

// Config holds all configuration options for clarvfs
type Config struct {
	// Host side
	Root    string   `yaml:"root" envconfig:"ROOT"`
	Port    int      `yaml:"port" envconfig:"PORT"`
	Backend string   `yaml:"backend" envconfig:"BACKEND"`
	GitRef  string   `yaml:"git_ref,omitempty" envconfig:"GIT_REF"`
	Watch   bool     `yaml:"watch" envconfig:"WATCH"`
	Exclude []string `yaml:"exclude" envconfig:"EXCLUDE"`

	// Extensions limits change notifications to these file types.
	Extensions []string `yaml:"extensions" envconfig:"EXTENSIONS"`

	// Client side
	HostURL          string        `yaml:"host_url,omitempty" envconfig:"HOST_URL"`
	ConfineToProject bool          `yaml:"confine_to_project" envconfig:"CONFINE_TO_PROJECT"`
	RequestTimeout   time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`

	Log LogConfig `yaml:"log" envconfig:"LOG"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Root:             ".",
		Port:             8080,
		Backend:          BackendLocal,
		Watch:            true,
		Exclude:          []string{"node_modules", ".git", ".cache"},
		Extensions:       []string{".clar", ".toml"},
		ConfineToProject: true,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/clarvfs"
	}
	return filepath.Join(home, ".config", "clarvfs")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load reads configuration from configFile, or from the first of
// ~/.config/clarvfs/config.yaml and ./clarvfs.yaml that exists, then applies
// CLARVFS_* environment overrides. A missing file is only an error when
// configFile was given explicitly; a file that exists but cannot be parsed
// is always an error.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	var cfgPath string
	if configFile != "" {
		cfgPath = configFile
	} else if _, err := os.Stat(GetConfigPath()); err == nil {
		cfgPath = GetConfigPath()
	} else if _, err := os.Stat("clarvfs.yaml"); err == nil {
		cfgPath = "clarvfs.yaml"
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil {
			return nil, errors.WrapIff(err, "config: load %s", cfgPath)
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.WrapIf(err, "config: environment")
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates the backend and resolves Root to an absolute path.
// Call it again after applying flag overrides.
func (c *Config) Normalize() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "":
		c.Backend = BackendLocal
	case BackendLocal, BackendMemory, BackendGit:
	default:
		return errors.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.GitRef != "" && c.Backend == BackendLocal {
		c.Backend = BackendGit
	}

	if c.Root == "" {
		c.Root = "."
	}
	if abs, err := filepath.Abs(c.Root); err == nil {
		c.Root = abs
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	return nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0644)
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// SetConfigFilePath changes where Save writes to.
func (c *Config) SetConfigFilePath(path string) {
	c.configPath = path
}

// IsExcluded checks if a path should be excluded
func (c *Config) IsExcluded(path string) bool {
	base := filepath.Base(path)
	for _, exclude := range c.Exclude {
		if matched, _ := filepath.Match(exclude, base); matched {
			return true
		}
	}
	return false
}

// IsWatchedFile checks if a file has one of the configured extensions.
// An empty extension list watches everything.
func (c *Config) IsWatchedFile(path string) bool {
	if len(c.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range c.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
