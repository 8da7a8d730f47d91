package workflow

import (
	"strings"

	"quill/internal/config"
	"quill/internal/engine"
)

// Settings sizes the scheduler.
type Settings struct {
	Workers          int
	QueueCapacity    int
	Backpressure     string
	MaxIterations    int
	RecoverySchedule string
}

// SettingsFromConfig extracts scheduler settings from the [workflow] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}.normalized()
	}
	return Settings{
		Workers:          cfg.Workflow.Workers,
		QueueCapacity:    cfg.Workflow.QueueCapacity,
		Backpressure:     cfg.Workflow.Backpressure,
		MaxIterations:    cfg.Workflow.MaxIterations,
		RecoverySchedule: cfg.Workflow.RecoverySchedule,
	}.normalized()
}

func (s Settings) normalized() Settings {
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.QueueCapacity <= 0 {
		s.QueueCapacity = 1
	}
	s.Backpressure = strings.ToLower(strings.TrimSpace(s.Backpressure))
	if s.Backpressure != config.BackpressureBlock {
		s.Backpressure = config.BackpressureReject
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = engine.DefaultMaxIterations
	}
	s.RecoverySchedule = strings.TrimSpace(s.RecoverySchedule)
	return s
}
