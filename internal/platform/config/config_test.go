package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "review", cfg.ServiceName)
	require.Equal(t, "127.0.0.1:8787", cfg.HTTP.Addr)
	require.Equal(t, "file", cfg.Storage.Backend)
	require.Equal(t, 5*time.Second, cfg.Storage.WriteTimeout)
	require.Equal(t, "frameio", cfg.Review.Namespace)
	require.Equal(t, 2.0, cfg.Review.Tolerance)
	require.Equal(t, 500, cfg.Review.MaxTextLength)
	require.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("REVIEW_NAMESPACE", "dailies")
	t.Setenv("REVIEW_TOLERANCE", "1.5")
	t.Setenv("APP_ENV", "Production")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Storage.Backend)
	require.Equal(t, "dailies", cfg.Review.Namespace)
	require.Equal(t, 1.5, cfg.Review.Tolerance)
	require.True(t, cfg.IsProduction())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "review.yaml")
	body := []byte("service_name: review-local\nstorage:\n  backend: memory\nreview:\n  namespace: spot\n  max_text_length: 120\n")
	require.NoError(t, os.WriteFile(p, body, 0o644))

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "review-local", cfg.ServiceName)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.Equal(t, "spot", cfg.Review.Namespace)
	require.Equal(t, 120, cfg.Review.MaxTextLength)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsNegativeTolerance(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("REVIEW_TOLERANCE", "-1")

	_, err := Load("")
	require.Error(t, err)
}
