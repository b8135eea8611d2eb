package config

import (
	"fmt"
	"os"
	"strconv"
)

// EventRetentionConfig holds configuration for pipeline event retention
type EventRetentionConfig struct {
	// RetentionDays is the retention period for info and warning events
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// RetentionCriticalDays is the retention period for error and critical
	// events. Must be >= RetentionDays
	// Default: 90, Range: 1-730
	RetentionCriticalDays int `yaml:"retention_critical_days"`

	// CleanupBatchSize is the number of events to delete per statement
	// Default: 1000, Range: 100-10000
	CleanupBatchSize int `yaml:"cleanup_batch_size"`

	// CleanupEnabled runs cleanup at the start of every release
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`
}

// DefaultEventRetentionConfig returns the default event retention configuration
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:         30,
		RetentionCriticalDays: 90,
		CleanupBatchSize:      1000,
		CleanupEnabled:        true,
	}
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}
	if c.RetentionCriticalDays < 1 || c.RetentionCriticalDays > 730 {
		return fmt.Errorf("retention_critical_days must be between 1 and 730 (got %d)",
			c.RetentionCriticalDays)
	}
	if c.RetentionCriticalDays < c.RetentionDays {
		return fmt.Errorf("retention_critical_days (%d) must be >= retention_days (%d)",
			c.RetentionCriticalDays, c.RetentionDays)
	}
	if c.CleanupBatchSize < 100 {
		return fmt.Errorf("cleanup_batch_size must be at least 100 (got %d)",
			c.CleanupBatchSize)
	}
	if c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size too large (got %d, max 10000)",
			c.CleanupBatchSize)
	}
	return nil
}

// applyEnv overrides fields from environment variables:
//   - ATLAS_EVENT_RETENTION_DAYS
//   - ATLAS_EVENT_RETENTION_CRITICAL_DAYS
//   - ATLAS_EVENT_CLEANUP_BATCH_SIZE
//   - ATLAS_EVENT_CLEANUP_ENABLED
func (c *EventRetentionConfig) applyEnv() error {
	if err := parseEnvInt("ATLAS_EVENT_RETENTION_DAYS", &c.RetentionDays); err != nil {
		return err
	}
	if err := parseEnvInt("ATLAS_EVENT_RETENTION_CRITICAL_DAYS", &c.RetentionCriticalDays); err != nil {
		return err
	}
	if err := parseEnvInt("ATLAS_EVENT_CLEANUP_BATCH_SIZE", &c.CleanupBatchSize); err != nil {
		return err
	}
	return parseEnvBool("ATLAS_EVENT_CLEANUP_ENABLED", &c.CleanupEnabled)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt64 parses an int64 from an environment variable
func parseEnvInt64(key string, dest *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
