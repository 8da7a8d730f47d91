package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":          c.Workflow.Workers,
		"workflow.queue_capacity":   c.Workflow.QueueCapacity,
		"workflow.max_iterations":   c.Workflow.MaxIterations,
		"workflow.shutdown_timeout": c.Workflow.ShutdownTimeout,
		"llm.timeout_seconds":       c.LLM.TimeoutSeconds,
	}); err != nil {
		return err
	}
	switch c.Workflow.Backpressure {
	case BackpressureReject, BackpressureBlock:
	default:
		return fmt.Errorf("workflow.backpressure must be %q or %q, got %q", BackpressureReject, BackpressureBlock, c.Workflow.Backpressure)
	}
	if c.Workflow.RecoverySchedule != "" {
		if _, err := cron.ParseStandard(c.Workflow.RecoverySchedule); err != nil {
			return fmt.Errorf("workflow.recovery_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"notifications.event_buffer":    c.Notifications.EventBuffer,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return errors.New("logging.format must be console or json")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
