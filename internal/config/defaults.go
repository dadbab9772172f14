package config

import "time"

// Default configuration values.
const (
	DefaultConfigFile = "edgecheck.yaml"
	DefaultSuite      = "tests/suite.yaml"
	DefaultBuildDir   = "bin"
	DefaultDataDir    = "tests/data"
	DefaultWorkDir    = "."
	DefaultTimeout    = 20 * time.Second
)

// Environment variables consulted by ApplyEnv.
const (
	EnvTimeout  = "EDGECHECK_TIMEOUT"
	EnvBuildDir = "EDGECHECK_BUILD_DIR"
	EnvDataDir  = "EDGECHECK_DATA_DIR"
)

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Suite == "" {
		cfg.Suite = DefaultSuite
	}
	if cfg.BuildDir == "" {
		cfg.BuildDir = DefaultBuildDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(DefaultTimeout)
	}
	if cfg.Color == "" {
		cfg.Color = ColorAuto
	}
}
