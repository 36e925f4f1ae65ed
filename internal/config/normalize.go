package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeAPI()
	c.normalizeDashboard()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.Mock.Bind = strings.TrimSpace(c.Mock.Bind)
	if c.Mock.Bind == "" {
		c.Mock.Bind = defaultMockBind
	}
	return nil
}

func (c *Config) normalizeAPI() {
	if value, ok := os.LookupEnv("PRMANAGER_API_URL"); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	if !strings.Contains(c.API.BaseURL, "://") {
		c.API.BaseURL = "http://" + c.API.BaseURL
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = defaultAPITimeoutSeconds
	}
}

func (c *Config) normalizeDashboard() {
	c.Dashboard.DefaultView = strings.ToLower(strings.TrimSpace(c.Dashboard.DefaultView))
	if c.Dashboard.DefaultView == "" {
		c.Dashboard.DefaultView = defaultView
	}
	if c.Dashboard.CountdownTickSeconds == 0 {
		c.Dashboard.CountdownTickSeconds = defaultCountdownTickSeconds
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	file := strings.TrimSpace(c.Logging.File)
	if file == "" {
		c.Logging.File = ""
		return nil
	}
	var err error
	if c.Logging.File, err = expandPath(file); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
