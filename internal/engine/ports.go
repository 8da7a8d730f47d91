package engine

import (
	"context"

	"quill/internal/content"
)

// Repository loads and stores workflows. Get returns (nil, nil) for unknown ids.
type Repository interface {
	Create(ctx context.Context, wf *content.Workflow) error
	Get(ctx context.Context, id string) (*content.Workflow, error)
	Save(ctx context.Context, wf *content.Workflow) error
}

// Generator performs the content work of each phase.
type Generator interface {
	Research(ctx context.Context, brief content.Brief) (string, error)
	Outline(ctx context.Context, brief content.Brief, research string) (string, error)
	Draft(ctx context.Context, brief content.Brief, outline string) (string, error)
	Edit(ctx context.Context, draft string) (string, []string, error)
	AnalyzeSEO(ctx context.Context, text, topic string) (content.SEOResult, error)
	OptimizeContent(ctx context.Context, text string, seo content.SEOResult) (string, error)
	Reply(ctx context.Context, wf *content.Workflow, message string) (string, error)
}

// Notifier is told about every persisted workflow change. Failures are logged
// and otherwise ignored.
type Notifier interface {
	NotifyUpdated(ctx context.Context, wf *content.Workflow) error
}

// Scheduler queues a workflow id for a background step loop.
type Scheduler interface {
	Enqueue(ctx context.Context, id string) error
}
