package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birabittoh/pr-manager/internal/config"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PRMANAGER_API_URL", "")
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateHome(t)

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, exists, "expected config file to be absent in temp HOME")
	assert.Equal(t, filepath.Join(home, ".config", "prmanager", "config.toml"), resolved)

	assert.Equal(t, filepath.Join(home, ".local", "share", "prmanager"), cfg.Paths.StateDir)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 20, cfg.Dashboard.PageSize)
	assert.Equal(t, config.ViewWorkflow, cfg.Dashboard.DefaultView)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, filepath.Join(cfg.Paths.StateDir, "watch.lock"), cfg.WatchLockPath())
}

func TestLoadEnvOverridesBaseURL(t *testing.T) {
	isolateHome(t)
	t.Setenv("PRMANAGER_API_URL", "pipeline.local:9000/")

	cfg, _, _, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://pipeline.local:9000", cfg.API.BaseURL)
}

func TestLoadReadsTOMLFile(t *testing.T) {
	isolateHome(t)

	custom := config.Default()
	custom.API.BaseURL = "https://pipeline.example.com"
	custom.Dashboard.PageSize = 50
	custom.Dashboard.DefaultView = "Publications"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "prmanager.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, "https://pipeline.example.com", cfg.API.BaseURL)
	assert.Equal(t, 50, cfg.Dashboard.PageSize)
	assert.Equal(t, config.ViewPublications, cfg.Dashboard.DefaultView)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad scheme":     "[api]\nbase_url = \"ftp://example.com\"\n",
		"zero page size": "[dashboard]\npage_size = -1\n",
		"unknown view":   "[dashboard]\ndefault_view = \"threads\"\n",
		"bad log format": "[logging]\nformat = \"xml\"\n",
		"bad interval":   "[dashboard]\npoll_interval_seconds = -5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			isolateHome(t)
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, _, _, err := config.Load(path)
			require.Error(t, err)
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	cfg, _, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, config.Default().Dashboard.PollIntervalSeconds, cfg.Dashboard.PollIntervalSeconds)
}

func TestEnsureDirectoriesCreatesStateDir(t *testing.T) {
	isolateHome(t)
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")
	require.NoError(t, cfg.EnsureDirectories())

	info, err := os.Stat(cfg.Paths.StateDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
