package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "shoplist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("SHOPLIST_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BackendJSON, cfg.Store.Backend)
	assert.Equal(t, "products", cfg.Store.Collection)
	assert.Equal(t, "shoplist.json", cfg.Store.JSONPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "classic", cfg.UI.Theme)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeYAML(t, dir, `
store:
  backend: memory
  collection: groceries
ui:
  theme: neon
`)
	t.Setenv("SHOPLIST_THEME", "mono")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "groceries", cfg.Store.Collection)
	assert.Equal(t, "mono", cfg.UI.Theme, "env wins over yaml")
	assert.Equal(t, "json", cfg.Log.Format, "defaults fill the rest")
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_LeavesValidationToCaller(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "store:\n  backend: firestore\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "store.project_id")

	cfg.Store.Backend = BackendMemory
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"firestore needs project", func(c *Config) { c.Store.Backend = BackendFirestore }, "store.project_id"},
		{"unknown theme", func(c *Config) { c.UI.Theme = "pink" }, "ui.theme"},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Store: StoreConfig{Backend: BackendJSON, Collection: "products", JSONPath: "x.json"},
				Log:   LogConfig{Level: "info", Format: "json"},
				UI:    UIConfig{Theme: "classic"},
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
