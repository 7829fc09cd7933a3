package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volviewer3d/pkg/render"
)

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, render.Smart, cfg.MapperValue())
}

func TestConfigRoundTrip(t *testing.T) {
	for _, name := range []string{"viewer.yaml", "viewer.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "conf", name)
			cfg := DefaultConfig()
			cfg.Viewer.Mapper = "gpu"
			cfg.Viewer.QueueLatest = true
			cfg.Converter.CacheMB = 64
			cfg.Cache.MaxVolumes = 8
			cfg.Loader.Workers = 2
			cfg.Logging.Level = "debug"
			require.NoError(t, SaveConfig(cfg, path))

			got, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
			assert.Equal(t, render.GPU, got.MapperValue())
		})
	}
}

func TestLoadConfigPartialYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := "viewer:\n  mapper: texture3d\n  numDisplayedAxes: 0\nloader:\n  workers: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, render.Texture3D, cfg.MapperValue())
	assert.Equal(t, 1, cfg.Viewer.NumDisplayedAxes)
	assert.Equal(t, 1, cfg.Loader.Workers)
	assert.Equal(t, DefaultConfig().Converter, cfg.Converter)
}

func TestLoadConfigPartialTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	data := "[converter]\ncompress = true\n\n[logging]\nfile = \"viewer.log\"\nmax_log_size = 10\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Converter.Compress)
	assert.Equal(t, "viewer.log", cfg.Logging.Logfile)
	assert.Equal(t, 10, cfg.Logging.MaxSize)
	assert.Equal(t, DefaultConfig().Viewer, cfg.Viewer)
}

func TestLoadConfigRejectsUnknownMapper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("viewer:\n  mapper: raster\n"), 0644))
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, render.ErrUnknownMapper)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[viewer\ncaching = yes"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}
