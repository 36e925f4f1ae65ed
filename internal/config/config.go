package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains connection settings for the pipeline backend.
type API struct {
	BaseURL        string `toml:"base_url" json:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

// Dashboard contains refresh cadence and paging settings.
type Dashboard struct {
	PollIntervalSeconds  int    `toml:"poll_interval_seconds" json:"poll_interval_seconds"`
	PageSize             int    `toml:"page_size" json:"page_size"`
	DefaultView          string `toml:"default_view" json:"default_view"`
	CountdownTickSeconds int    `toml:"countdown_tick_seconds" json:"countdown_tick_seconds"`
}

// Paths contains local directories used by the client.
type Paths struct {
	StateDir string `toml:"state_dir" json:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" json:"format"`
	Level  string `toml:"level" json:"level"`
	File   string `toml:"file" json:"file,omitempty"`
}

// Mock contains settings for the in-memory backend served by `prmanager mock-server`.
type Mock struct {
	Bind string `toml:"bind" json:"bind"`
	Seed bool   `toml:"seed" json:"seed"`
}

// Config encapsulates all configuration values for prmanager.
//
// Configuration sections by subsystem:
//   - API: backend base URL and request timeout
//   - Dashboard: polling interval, page size, initial view
//   - Paths: state directory (watch lock, default log file)
//   - Logging: log format, level, and optional file
//   - Mock: bind address for the mock backend
type Config struct {
	API       API       `toml:"api" json:"api"`
	Dashboard Dashboard `toml:"dashboard" json:"dashboard"`
	Paths     Paths     `toml:"paths" json:"paths"`
	Logging   Logging   `toml:"logging" json:"logging"`
	Mock      Mock      `toml:"mock" json:"mock"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("prmanager.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// RequestTimeout returns the per-request timeout for backend calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// PollInterval returns the dashboard refresh cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Dashboard.PollIntervalSeconds) * time.Second
}

// CountdownTick returns how often the watch view re-renders the health countdown.
func (c *Config) CountdownTick() time.Duration {
	return time.Duration(c.Dashboard.CountdownTickSeconds) * time.Second
}

// WatchLockPath returns the lock file guarding a single `prmanager watch` per state dir.
func (c *Config) WatchLockPath() string {
	return filepath.Join(c.Paths.StateDir, "watch.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
