package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PROXIMITY_COOLDOWN", "PROXIMITY_RADIUS_METERS", "LOCATION_PERSIST_INTERVAL", "STORAGE_BACKEND"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Proximity.PollingInterval)
	assert.Equal(t, 5*time.Minute, cfg.Proximity.Cooldown)
	assert.Equal(t, 500.0, cfg.Proximity.RadiusMeters)
	assert.Equal(t, 30*time.Second, cfg.Location.MinPersistInterval)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.False(t, cfg.Formance.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROXIMITY_COOLDOWN", "2m")
	t.Setenv("PROXIMITY_RADIUS_METERS", "250.5")
	t.Setenv("DB_TX_MAX_ATTEMPTS", "9")
	t.Setenv("FORMANCE_STACK_URL", "http://localhost:3068")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Proximity.Cooldown)
	assert.Equal(t, 250.5, cfg.Proximity.RadiusMeters)
	assert.Equal(t, 9, cfg.Database.TxMaxAttempts)
	assert.True(t, cfg.Formance.Enabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("PROXIMITY_COOLDOWN", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PROXIMITY_COOLDOWN", "")
	t.Setenv("PROXIMITY_RADIUS_METERS", "far")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadCategories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - name: " Saobraćaj "
    description: Putevi
  - name: Ostalo
`), 0644))

	categories, err := LoadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Saobraćaj", "Ostalo"}, CategoryNames(categories))
	assert.Equal(t, "Putevi", categories[0].Description)
}

func TestLoadCategories_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", "categories: []"},
		{"missing name", "categories:\n  - description: x"},
		{"duplicate", "categories:\n  - name: Ostalo\n  - name: ostalo"},
		{"not yaml", "categories: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadCategories(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadCategoriesOrDefault(t *testing.T) {
	categories, err := LoadCategoriesOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCategories, categories)
}
