package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadStoreDefaults(t *testing.T) {
	store, err := LoadStore(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	cfg := store.Current()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "Research Archive", cfg.Site.Title)
	assert.Equal(t, 10, cfg.Ranking.Limit)
	assert.Equal(t, []string{".pdf", ".mp4", ".png"}, cfg.Uploads.AllowedExtensions)
	assert.Equal(t, 30*time.Minute, cfg.Uploads.SignedURLTTL)
}

func TestStoreReloadSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeConfig(t, path, "site:\n  title: Lab Archive\nranking:\n  limit: 5\n")

	store, err := LoadStore(path)
	require.NoError(t, err)
	first := store.Current()
	require.Equal(t, "Lab Archive", first.Site.Title)
	require.Equal(t, 5, first.Ranking.Limit)

	var notified *Config
	store.OnChange(func(cfg *Config) { notified = cfg })

	writeConfig(t, path, "site:\n  title: Renamed Archive\nranking:\n  limit: 3\n")
	require.NoError(t, store.Reload())

	second := store.Current()
	assert.Equal(t, "Renamed Archive", second.Site.Title)
	assert.Equal(t, 3, second.Ranking.Limit)
	assert.Same(t, second, notified)
	assert.Equal(t, "Lab Archive", first.Site.Title, "earlier snapshot must stay untouched")
}

func TestStoreReloadKeepsPreviousOnInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeConfig(t, path, "site:\n  title: Lab Archive\n")

	store, err := LoadStore(path)
	require.NoError(t, err)

	writeConfig(t, path, "ranking:\n  limit: -1\n")
	require.Error(t, store.Reload())
	assert.Equal(t, "Lab Archive", store.Current().Site.Title)
	assert.Equal(t, 10, store.Current().Ranking.Limit)
}

func TestNewStoreWithoutFileIgnoresReload(t *testing.T) {
	store := NewStore(&Config{Port: 9000})
	require.NoError(t, store.Reload())
	store.Watch(nil)
	assert.Equal(t, 9000, store.Current().Port)
}
