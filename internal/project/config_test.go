package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootstack/bootstack/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("reads the project file", func(t *testing.T) {
		dir := t.TempDir()
		content := "repo_owner: acme\nrepo_name: backend\nrepo_branch: release\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))

		cfg, err := Load(dir)

		require.NoError(t, err)
		assert.Equal(t, "acme", cfg.RepoOwner)
		assert.Equal(t, "backend", cfg.RepoName)
		assert.Equal(t, "release", cfg.RepoBranch)
		assert.Empty(t, cfg.StackName)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(t.TempDir())

		require.Error(t, err)
		assert.Contains(t, err.Error(), FileName)
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("repo_owner: [oops\n"), 0o600))

		_, err := Load(dir)

		require.Error(t, err)
	})
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))

	require.NoError(t, Save(&Config{RepoOwner: "acme"}, dir))
	assert.True(t, Exists(dir))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	saved := &Config{RepoOwner: "acme", RepoName: "backend", Environment: "staging"}

	require.NoError(t, Save(saved, dir))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestConfig_ApplyTo(t *testing.T) {
	global := &config.Config{
		Region:      "us-east-1",
		Environment: "dev",
		StackName:   "bootstack-app",
		RepoOwner:   "bootstack",
		RepoName:    "sample-app",
		RepoBranch:  "main",
	}

	overlay := &Config{RepoOwner: "acme", RepoName: "backend", Environment: "production"}
	overlay.ApplyTo(global)

	assert.Equal(t, "acme", global.RepoOwner)
	assert.Equal(t, "backend", global.RepoName)
	assert.Equal(t, "production", global.Environment)
	// Untouched fields keep their global values.
	assert.Equal(t, "main", global.RepoBranch)
	assert.Equal(t, "bootstack-app", global.StackName)
	assert.Equal(t, "us-east-1", global.Region)
}
