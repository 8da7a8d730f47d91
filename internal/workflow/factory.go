package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"quill/internal/config"
	"quill/internal/engine"
	"quill/internal/generation"
	"quill/internal/services/llm"
)

// NewGenerator builds an LLM-backed generator from the resolved LLM settings.
func NewGenerator(llmCfg config.LLMConfig, logger *slog.Logger) (*generation.Generator, error) {
	client := llm.NewClient(llm.Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
	}, llm.WithLogger(logger))
	gen, err := generation.New(client, generation.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}
	return gen, nil
}

// NewEngineFactory returns a RunnerFactory that builds a fresh LLM client,
// generator, and engine for every dequeued workflow. The repository is shared;
// engineOpts should carry the daemon's notifier and lock set.
func NewEngineFactory(llmCfg config.LLMConfig, repo engine.Repository, logger *slog.Logger, engineOpts ...engine.Option) RunnerFactory {
	return func(context.Context) (Runner, error) {
		gen, err := NewGenerator(llmCfg, logger)
		if err != nil {
			return nil, err
		}
		opts := append([]engine.Option{engine.WithLogger(logger)}, engineOpts...)
		eng, err := engine.New(repo, gen, opts...)
		if err != nil {
			return nil, fmt.Errorf("build engine: %w", err)
		}
		return eng, nil
	}
}
