// Package config provides configuration loading and management for volviewer3d.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"volviewer3d/internal/logger"
	"volviewer3d/pkg/axis"
	"volviewer3d/pkg/convert"
	"volviewer3d/pkg/render"
)

// Config represents the application configuration
type Config struct {
	// Viewer parameters
	Viewer struct {
		// Caching enables the volume cache of the image admin
		Caching bool `yaml:"caching" toml:"caching"`

		// Mapper names the rendering algorithm: smart, texture3d, rayfixedpoint or gpu
		Mapper string `yaml:"mapper" toml:"mapper"`

		// NumDisplayedAxes is the number of axes forming a volume
		NumDisplayedAxes int `yaml:"numDisplayedAxes" toml:"num_displayed_axes"`

		// MaxVolumes bounds how many volumes one enumeration may produce; 0 removes the bound
		MaxVolumes int `yaml:"maxVolumes" toml:"max_volumes"`

		// QueueLatest loads the latest request made while a load runs instead of dropping it
		QueueLatest bool `yaml:"queueLatest" toml:"queue_latest"`
	} `yaml:"viewer" toml:"viewer"`

	// Converter parameters
	Converter struct {
		// Caching keeps converted grids in memory
		Caching bool `yaml:"caching" toml:"caching"`

		// CacheMB is the size of the grid cache in megabytes
		CacheMB int `yaml:"cacheMB" toml:"cache_mb"`

		// Compress stores cached grids snappy-compressed
		Compress bool `yaml:"compress" toml:"compress"`
	} `yaml:"converter" toml:"converter"`

	// Cache parameters
	Cache struct {
		// MaxVolumes is the number of built volumes kept; 0 means unbounded
		MaxVolumes int `yaml:"maxVolumes" toml:"max_volumes"`
	} `yaml:"cache" toml:"cache"`

	// Loader parameters
	Loader struct {
		// Workers is the number of volumes built at once
		Workers int `yaml:"workers" toml:"workers"`
	} `yaml:"loader" toml:"loader"`

	// Output parameters
	Output struct {
		// ExportDir receives exported slice images
		ExportDir string `yaml:"exportDir" toml:"export_dir"`

		// Plane is the slice plane exported: x, y, z or a plane name
		Plane string `yaml:"plane" toml:"plane"`
	} `yaml:"output" toml:"output"`

	// Logging parameters
	Logging logger.LogConfig `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Viewer.Caching = true
	cfg.Viewer.Mapper = render.Smart.String()
	cfg.Viewer.NumDisplayedAxes = axis.DefaultDisplayed
	cfg.Viewer.MaxVolumes = axis.DefaultMaxVolumes
	cfg.Viewer.QueueLatest = true

	cfg.Converter.Caching = true
	cfg.Converter.CacheMB = convert.DefaultCacheMB
	cfg.Converter.Compress = false

	cfg.Cache.MaxVolumes = 0

	cfg.Loader.Workers = runtime.NumCPU()

	cfg.Output.ExportDir = "slices"
	cfg.Output.Plane = "axial"

	cfg.Logging.Level = "info"
	cfg.Logging.Console = true

	return cfg
}

// Validate checks the configuration and fills in values that are out of range.
func (c *Config) Validate() error {
	if _, err := render.ParseMapper(c.Viewer.Mapper); err != nil {
		return fmt.Errorf("viewer.mapper: %w", err)
	}
	if c.Viewer.NumDisplayedAxes < axis.MinDisplayed {
		c.Viewer.NumDisplayedAxes = axis.MinDisplayed
	}
	if c.Converter.CacheMB <= 0 {
		c.Converter.CacheMB = convert.DefaultCacheMB
	}
	if c.Cache.MaxVolumes < 0 {
		return fmt.Errorf("cache.maxVolumes must not be negative, got %d", c.Cache.MaxVolumes)
	}
	if c.Loader.Workers < 1 {
		c.Loader.Workers = 1
	}
	return nil
}

// MapperValue returns the configured mapper.
func (c *Config) MapperValue() render.Mapper {
	m, err := render.ParseMapper(c.Viewer.Mapper)
	if err != nil {
		return render.Smart
	}
	return m
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
