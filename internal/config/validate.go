package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateConverter(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MinPollIntervalMS <= 0 {
		return errors.New("workflow.min_poll_interval_ms must be positive")
	}
	if c.Workflow.MaxPollIntervalMS < c.Workflow.MinPollIntervalMS {
		return errors.New("workflow.max_poll_interval_ms must be >= workflow.min_poll_interval_ms")
	}
	if c.Workflow.BatchSize <= 0 {
		return errors.New("workflow.batch_size must be positive")
	}
	if c.Workflow.LeaseTTLSeconds <= 0 {
		return errors.New("workflow.lease_ttl_seconds must be positive")
	}
	if c.Workflow.MaxAttempts <= 0 {
		return errors.New("workflow.max_attempts must be positive")
	}
	if len(c.Workflow.BackoffSeconds) < c.Workflow.MaxAttempts {
		return fmt.Errorf("workflow.backoff_seconds needs %d entries for max_attempts=%d, got %d",
			c.Workflow.MaxAttempts, c.Workflow.MaxAttempts, len(c.Workflow.BackoffSeconds))
	}
	for i, seconds := range c.Workflow.BackoffSeconds {
		if seconds < 0 {
			return fmt.Errorf("workflow.backoff_seconds[%d] must be >= 0", i)
		}
	}
	return nil
}

func (c *Config) validateConverter() error {
	if c.Converter.Binary == "" {
		return errors.New("converter.binary must be set")
	}
	if c.Converter.MaxConcurrency < 0 {
		return errors.New("converter.max_concurrency must be >= 0")
	}
	if c.Converter.TimeoutSeconds <= 0 {
		return errors.New("converter.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxBytes <= 0 {
		return errors.New("cache.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
