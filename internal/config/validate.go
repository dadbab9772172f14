package config

import (
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors.
func Validate(cfg *Config) error {
	if cfg.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Message: "must be positive"}
	}
	switch cfg.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return &ValidationError{
			Field:   "color",
			Message: fmt.Sprintf("must be one of auto, always, never (got %q)", cfg.Color),
		}
	}
	for field, value := range map[string]string{
		"suite":     cfg.Suite,
		"build_dir": cfg.BuildDir,
		"data_dir":  cfg.DataDir,
		"work_dir":  cfg.WorkDir,
	} {
		if value == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
	}
	return nil
}
