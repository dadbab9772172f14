package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file and applies defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional loads path when it exists. A missing file yields defaults
// unless required is set.
func LoadOptional(path string, required bool) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !required {
		return Default(), nil
	}
	return Load(path)
}

// Decode parses YAML configuration bytes and applies defaults.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Encode serializes the configuration as YAML. The sandbox child receives
// the parent's resolved configuration this way.
func (c *Config) Encode() ([]byte, error) {
	return yaml.Marshal(c)
}

// ApplyEnv overrides fields from EDGECHECK_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvTimeout); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v := getenv(EnvBuildDir); v != "" {
		c.BuildDir = v
	}
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	return nil
}

// Resolve turns every path into an absolute path relative to base. Children
// run with WorkDir as their working directory, so relative paths would
// otherwise change meaning.
func (c *Config) Resolve(base string) error {
	for _, p := range []*string{&c.Suite, &c.BuildDir, &c.DataDir, &c.WorkDir} {
		if filepath.IsAbs(*p) {
			*p = filepath.Clean(*p)
			continue
		}
		abs, err := filepath.Abs(filepath.Join(base, *p))
		if err != nil {
			return err
		}
		*p = abs
	}
	return nil
}
