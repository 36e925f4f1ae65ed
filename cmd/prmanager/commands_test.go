package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/mockapi"
	"github.com/birabittoh/pr-manager/internal/remote"
	"github.com/birabittoh/pr-manager/internal/testsupport"
)

func TestStatusReportsOnlinePipeline(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.SetThreads([]api.Thread{{Name: "scheduler", IsAlive: true}})

	stdout, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	require.NoError(t, err)

	var payload statusJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, "online", payload.State)
	assert.Equal(t, env.backend.URL, payload.BaseURL)
	require.NotNil(t, payload.NextCheckInSeconds)
	require.Len(t, payload.Threads, 1)
	assert.Equal(t, "scheduler", payload.Threads[0].Name)
}

func TestStatusReportsOfflineWithoutFailing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.FailNext(mockapi.RouteHealth, mockapi.StatusDropConnection)

	stdout, _, err := runCLI(t, []string{"status"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "offline")
	assert.Contains(t, stdout, "unknown")
}

func TestPublicationsAddListRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"publications", "add", "daily-times", "--issue-id", "DT", "--max-scale", "3", "--language", "en"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Added Daily Times")

	stdout, _, err = runCLI(t, []string{"publications", "list"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "daily-times")
	assert.Contains(t, stdout, "Daily Times")

	stdout, _, err = runCLI(t, []string{"publications", "rm", "daily-times", "--yes"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Deleted Daily Times")
	_, ok := env.backend.Server.Publication("daily-times")
	assert.False(t, ok)
}

func TestPublicationsAddRejectsDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))

	_, _, err := runCLI(t, []string{"publications", "add", "daily-times", "--issue-id", "DT", "--max-scale", "3", "--language", "en"}, env.configPath)
	require.Error(t, err)
	assert.True(t, remote.IsConflict(err))
}

func TestPublicationsRemoveAbortsWithoutConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))

	stdout, _, err := runCLIWithInput(t, []string{"publications", "rm", "daily-times"}, env.configPath, "n\n")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Aborted")
	_, ok := env.backend.Server.Publication("daily-times")
	assert.True(t, ok)
}

func TestPublicationsDisable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))

	stdout, _, err := runCLI(t, []string{"publications", "disable", "daily-times"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Disabled Daily Times")
	pub, ok := env.backend.Server.Publication("daily-times")
	require.True(t, ok)
	assert.False(t, pub.Enabled)
}

func TestWorkflowTableUsesDisplayLabels(t *testing.T) {
	env := setupCLITestEnv(t)
	pub := testsupport.Publication("daily-times")
	pub.DisplayName = "The Daily"
	env.backend.Server.AddPublication(pub)
	env.backend.AddEntries(testsupport.Entries("daily-times", 3)...)

	stdout, _, err := runCLI(t, []string{"workflow"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "The Daily")
	assert.Contains(t, stdout, "03/01/2024")
	assert.NotContains(t, stdout, "Page 1 of")
}

func TestWorkflowJSONPaginates(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))
	env.backend.AddEntries(testsupport.Entries("daily-times", 25)...)

	stdout, _, err := runCLI(t, []string{"workflow", "--page", "2", "--json"}, env.configPath)
	require.NoError(t, err)

	var payload workflowJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, 2, payload.Page)
	assert.Equal(t, 2, payload.TotalPages)
	assert.Len(t, payload.Rows, 5)
}

func TestDownloadThenCheck(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))

	stdout, _, err := runCLI(t, []string{"download", "daily-times", "2024-02-01", "20240202"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Queued 2 download(s)")

	stdout, _, err = runCLI(t, []string{"check", "--json"}, env.configPath)
	require.NoError(t, err)
	var payload outcomeJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, 2, payload.Discovered)

	stdout, _, err = runCLI(t, []string{"check"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "No new items found")
}

func TestDownloadRejectsBadDateLocally(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))

	_, _, err := runCLI(t, []string{"download", "daily-times", "2024-13-45"}, env.configPath)
	require.Error(t, err)
	assert.True(t, remote.IsValidation(err))
	assert.Zero(t, env.backend.Server.Requests(mockapi.RouteDownload))
}

func TestFetchWritesFile(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))
	env.backend.AddEntries(testsupport.Entries("daily-times", 1)...)

	target := filepath.Join(env.baseDir, "out.pdf")
	_, stderr, err := runCLI(t, []string{"fetch", "daily-times", "2024-01-01", "-o", target}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Saved")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFetchMissingFileLeavesNothingBehind(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Server.AddPublication(testsupport.Publication("daily-times"))

	target := filepath.Join(env.baseDir, "missing.pdf")
	_, _, err := runCLI(t, []string{"fetch", "daily-times", "2024-01-01", "-o", target}, env.configPath)
	require.ErrorIs(t, err, remote.ErrNotFound)
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))

	leftovers, err := filepath.Glob(filepath.Join(env.baseDir, ".prmanager-fetch-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestConfigInitAndValidate(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("PRMANAGER_API_URL", "")
	target := filepath.Join(base, "prmanager.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	require.NoError(t, err)
	assert.Contains(t, stdout, target)

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	stdout, _, err = runCLI(t, []string{"config", "validate"}, target)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration valid")
}

func TestConfigValidateReportsBadValues(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	path := filepath.Join(base, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[dashboard]\ndefault_view = \"calendar\"\n"), 0o644))

	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard.default_view")
}

func TestConfigShowJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"config", "show", "--json"}, env.configPath)
	require.NoError(t, err)
	var payload map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, env.backend.URL, payload["api"]["base_url"])
}
