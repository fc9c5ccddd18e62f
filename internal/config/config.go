// internal/config/config.go
//
// Configuration lives in the user's ~/.neuroscan directory: a versioned
// config.yaml with defaults written on first run, plus environment overrides
// (a .env in the working directory is honored for development setups).

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// StateDirName is the directory created under the user's home.
	StateDirName = ".neuroscan"

	defaultBaseURL        = "http://127.0.0.1:8000"
	defaultTimeoutSeconds = 15
	defaultLogLevel       = "info"
)

const defaultConfigYAML = `# neuroscan console configuration
version: 1

api:
  # Backend root. Override with NEUROSCAN_API_URL.
  base_url: http://127.0.0.1:8000
  timeout_seconds: 15

log:
  # debug | info | warn | error
  level: info

downloads:
  # Where PDF reports are saved. Empty means ~/.neuroscan/reports.
  dir: ""
`

// APIConfig holds backend connection settings.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DownloadsConfig holds report download settings.
type DownloadsConfig struct {
	Dir string `yaml:"dir"`
}

// FileConfig models config.yaml.
type FileConfig struct {
	Version   int             `yaml:"version"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
	Downloads DownloadsConfig `yaml:"downloads"`
}

// Config is the resolved runtime configuration.
type Config struct {
	// StateDir is ~/.neuroscan (or the override used in tests).
	StateDir string

	File FileConfig
}

// InitStateDir creates the state directory structure:
//
// ~/.neuroscan/
// ├── config.yaml
// ├── logs/      <- session logs
// └── reports/   <- downloaded PDF reports (default)
func InitStateDir(stateDir string) error {
	dirs := []string{
		stateDir,
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "reports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return ensureConfigFile(filepath.Join(stateDir, "config.yaml"))
}

// New loads configuration rooted at stateDir and applies environment
// overrides. A .env file in the working directory is loaded first when
// present (missing is fine).
func New(stateDir string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StateDir: stateDir,
		File:     defaultFileConfig(),
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.File.normalize()
	if err := cfg.File.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// DefaultStateDir resolves ~/.neuroscan, honoring the NEUROSCAN_HOME
// override.
func DefaultStateDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("NEUROSCAN_HOME")); dir != "" {
		return filepath.Clean(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, StateDirName), nil
}

// ConfigPath returns the on-disk location of config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// LogsDir returns the session log directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// ReportsDir returns where PDF reports are written.
func (c *Config) ReportsDir() string {
	if dir := strings.TrimSpace(c.File.Downloads.Dir); dir != "" {
		return dir
	}
	return filepath.Join(c.StateDir, "reports")
}

// BaseURL returns the backend root.
func (c *Config) BaseURL() string {
	return c.File.API.BaseURL
}

// TimeoutSeconds returns the per-request timeout.
func (c *Config) TimeoutSeconds() int {
	return c.File.API.TimeoutSeconds
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string {
	return c.File.Log.Level
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	c.File = parsed
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("NEUROSCAN_API_URL")); v != "" {
		c.File.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("NEUROSCAN_API_TIMEOUT")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.File.API.TimeoutSeconds = secs
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEUROSCAN_LOG_LEVEL")); v != "" {
		c.File.Log.Level = v
	}
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version: 1,
		API: APIConfig{
			BaseURL:        defaultBaseURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Log: LogConfig{Level: defaultLogLevel},
	}
}

func (fc *FileConfig) applyDefaults() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	if strings.TrimSpace(fc.API.BaseURL) == "" {
		fc.API.BaseURL = defaultBaseURL
	}
	if fc.API.TimeoutSeconds <= 0 {
		fc.API.TimeoutSeconds = defaultTimeoutSeconds
	}
	if strings.TrimSpace(fc.Log.Level) == "" {
		fc.Log.Level = defaultLogLevel
	}
}

func (fc *FileConfig) normalize() {
	fc.API.BaseURL = strings.TrimRight(strings.TrimSpace(fc.API.BaseURL), "/")
	fc.Log.Level = strings.ToLower(strings.TrimSpace(fc.Log.Level))
	fc.Downloads.Dir = strings.TrimSpace(fc.Downloads.Dir)
}

func (fc FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !strings.HasPrefix(fc.API.BaseURL, "http://") && !strings.HasPrefix(fc.API.BaseURL, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	switch fc.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
