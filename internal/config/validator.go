package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))

	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}

	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Lock.StaleAfter < time.Second {
		errs = append(errs, ValidationError{
			Field:   "lock.stale_after",
			Value:   c.Lock.StaleAfter,
			Message: "must be at least 1s",
		})
	}

	if c.Sync.ConfirmScans < 1 {
		errs = append(errs, ValidationError{
			Field:   "sync.confirm_scans",
			Value:   c.Sync.ConfirmScans,
			Message: "must be at least 1",
		})
	}

	if c.Sync.WatchInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "sync.watch_interval",
			Value:   c.Sync.WatchInterval,
			Message: "must be positive",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}
