package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"quill/internal/content"
	"quill/internal/logging"
	"quill/internal/services"
	"quill/internal/services/llm"
)

const (
	maxReplyTurns      = 20
	maxContextRunes    = 6000
	tracerInstrumentor = "quill/internal/generation"
)

// Completer is the subset of the LLM client the generator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Chat(ctx context.Context, systemPrompt string, turns []llm.Message) (string, error)
}

// Generator performs the content work of each workflow phase through an LLM.
type Generator struct {
	client  Completer
	prompts *Catalog
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger sets the logger used for soft failures.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithCatalog replaces the embedded prompt catalogue.
func WithCatalog(catalog *Catalog) Option {
	return func(g *Generator) {
		if catalog != nil {
			g.prompts = catalog
		}
	}
}

// New constructs a generator backed by client.
func New(client Completer, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, errors.New("generation: llm client is nil")
	}
	g := &Generator{
		client: client,
		logger: logging.NewNop(),
		tracer: otel.Tracer(tracerInstrumentor),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.prompts == nil {
		catalog, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		g.prompts = catalog
	}
	g.logger = logging.NewComponentLogger(g.logger, "generation")
	return g, nil
}

// Research gathers background notes for the topic.
func (g *Generator) Research(ctx context.Context, brief content.Brief) (string, error) {
	return g.text(ctx, PhaseResearch, content.StateResearching, promptData{
		Topic: brief.Topic,
		Tone:  brief.Tone,
	})
}

// Outline turns research into an outline, addressing reviewer feedback when present.
func (g *Generator) Outline(ctx context.Context, brief content.Brief, research string) (string, error) {
	return g.text(ctx, PhaseOutline, content.StateOutlining, promptData{
		Topic:    brief.Topic,
		Tone:     brief.Tone,
		Feedback: brief.Feedback,
		Research: research,
	})
}

// Draft writes the full post from the outline.
func (g *Generator) Draft(ctx context.Context, brief content.Brief, outline string) (string, error) {
	return g.text(ctx, PhaseDraft, content.StateDrafting, promptData{
		Topic:    brief.Topic,
		Tone:     brief.Tone,
		Feedback: brief.Feedback,
		Outline:  outline,
	})
}

// Edit returns the edited post and a description of each change.
func (g *Generator) Edit(ctx context.Context, draft string) (string, []string, error) {
	ctx, span := g.startSpan(ctx, PhaseEdit)
	defer span.End()

	payload, err := g.jsonObject(ctx, PhaseEdit, content.StateEditing, promptData{Content: draft})
	if err != nil {
		recordError(span, err)
		return "", nil, err
	}
	if err := validateJSONSchema(payload, editSchema); err != nil {
		err = services.Wrap(services.ErrValidation, string(content.StateEditing), "edit", "reply did not match schema", err)
		recordError(span, err)
		return "", nil, err
	}
	var parsed struct {
		Content string   `json:"content"`
		Changes []string `json:"changes"`
	}
	if err := remarshal(payload, &parsed); err != nil {
		err = services.Wrap(services.ErrValidation, string(content.StateEditing), "edit", "decode reply", err)
		recordError(span, err)
		return "", nil, err
	}
	changes := make([]string, 0, len(parsed.Changes))
	for _, change := range parsed.Changes {
		if change = strings.TrimSpace(change); change != "" {
			changes = append(changes, change)
		}
	}
	span.SetAttributes(attribute.Int("quill.edit.changes", len(changes)))
	return strings.TrimSpace(parsed.Content), changes, nil
}

// AnalyzeSEO scores the content. A reply that cannot be decoded yields the
// fallback result instead of an error; only transport failures are errors.
func (g *Generator) AnalyzeSEO(ctx context.Context, text, topic string) (content.SEOResult, error) {
	ctx, span := g.startSpan(ctx, PhaseSEO)
	defer span.End()

	system, user, err := g.prompts.render(PhaseSEO, promptData{Topic: topic, Content: text})
	if err != nil {
		recordError(span, err)
		return content.SEOResult{}, err
	}
	raw, err := g.client.CompleteJSON(ctx, system, user)
	if err != nil {
		err = wrapClientError(content.StateOptimizing, PhaseSEO, err)
		recordError(span, err)
		return content.SEOResult{}, err
	}

	result, parseErr := parseSEO(raw)
	if parseErr != nil {
		logging.WarnWithContext(logging.WithContext(ctx, g.logger), "seo analysis reply unusable; storing fallback result", "seo_parse_failed",
			logging.Error(parseErr),
			logging.String(logging.FieldErrorHint, "the model ignored the JSON format; re-run optimization with a revise request"),
			logging.String(logging.FieldImpact, "SEO score shows 0 with a parse failure suggestion"),
		)
		span.SetAttributes(attribute.Bool("quill.seo.fallback", true))
		return content.FallbackSEOResult(), nil
	}
	span.SetAttributes(attribute.Int("quill.seo.score", result.Score))
	return result, nil
}

// OptimizeContent rewrites content using the SEO suggestions and keywords.
func (g *Generator) OptimizeContent(ctx context.Context, text string, seo content.SEOResult) (string, error) {
	return g.text(ctx, PhaseOptimize, content.StateOptimizing, promptData{
		Content:     text,
		Keywords:    seo.Keywords,
		Suggestions: seo.Suggestions,
	})
}

// Reply answers a chat message in the context of the workflow. The workflow's
// chat history supplies earlier turns; message is sent as the final user turn.
func (g *Generator) Reply(ctx context.Context, wf *content.Workflow, message string) (string, error) {
	ctx, span := g.startSpan(ctx, PhaseReply)
	defer span.End()

	data := promptData{
		Topic:   wf.Topic,
		State:   wf.State.Label(),
		Outline: truncateRunes(wf.Outline, maxContextRunes),
		Draft:   truncateRunes(wf.DraftContent, maxContextRunes),
		Content: message,
	}
	system, _, err := g.prompts.render(PhaseReply, data)
	if err != nil {
		recordError(span, err)
		return "", err
	}

	reply, err := g.client.Chat(ctx, system, replyTurns(wf.ChatHistory, message))
	if err != nil {
		err = wrapClientError(wf.State, PhaseReply, err)
		recordError(span, err)
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (g *Generator) text(ctx context.Context, phase string, state content.State, data promptData) (string, error) {
	ctx, span := g.startSpan(ctx, phase)
	defer span.End()

	system, user, err := g.prompts.render(phase, data)
	if err != nil {
		recordError(span, err)
		return "", err
	}
	out, err := g.client.Complete(ctx, system, user)
	if err != nil {
		err = wrapClientError(state, phase, err)
		recordError(span, err)
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		err = services.Wrap(services.ErrValidation, string(state), phase, "empty reply", nil)
		recordError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.Int("quill.output.runes", len([]rune(out))))
	return out, nil
}

func (g *Generator) jsonObject(ctx context.Context, phase string, state content.State, data promptData) (map[string]any, error) {
	system, user, err := g.prompts.render(phase, data)
	if err != nil {
		return nil, err
	}
	raw, err := g.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return nil, wrapClientError(state, phase, err)
	}
	var payload map[string]any
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, string(state), phase, "reply is not a JSON object", err)
	}
	return normalizeKeys(payload), nil
}

func (g *Generator) startSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "generation."+phase, trace.WithAttributes(
		attribute.String("quill.phase", phase),
	))
}

func parseSEO(raw string) (content.SEOResult, error) {
	var payload map[string]any
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		return content.SEOResult{}, err
	}
	payload = normalizeKeys(payload)
	if err := validateJSONSchema(payload, seoSchema); err != nil {
		return content.SEOResult{}, err
	}
	var parsed struct {
		Keywords        []string `json:"keywords"`
		MetaTitle       string   `json:"metaTitle"`
		MetaDescription string   `json:"metaDescription"`
		Score           float64  `json:"score"`
		Suggestions     []string `json:"suggestions"`
	}
	if err := remarshal(payload, &parsed); err != nil {
		return content.SEOResult{}, err
	}
	score := int(parsed.Score + 0.5)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return content.SEOResult{
		Keywords:        nonNil(parsed.Keywords),
		MetaTitle:       strings.TrimSpace(parsed.MetaTitle),
		MetaDescription: strings.TrimSpace(parsed.MetaDescription),
		Score:           score,
		Suggestions:     nonNil(parsed.Suggestions),
	}, nil
}

func replyTurns(history []content.ChatMessage, message string) []llm.Message {
	turns := make([]llm.Message, 0, maxReplyTurns+1)
	for _, entry := range history {
		switch entry.Role {
		case content.RoleUser, content.RoleAssistant:
			turns = append(turns, llm.Message{Role: string(entry.Role), Content: entry.Content})
		}
	}
	// The caller usually records the message before asking for a reply.
	if n := len(turns); n > 0 && turns[n-1].Role == string(content.RoleUser) && turns[n-1].Content == message {
		turns = turns[:n-1]
	}
	if len(turns) > maxReplyTurns {
		turns = turns[len(turns)-maxReplyTurns:]
	}
	return append(turns, llm.Message{Role: string(content.RoleUser), Content: message})
}

func wrapClientError(state content.State, phase string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(llm.Marker(err), string(state), phase, "llm request failed", err)
}

func remarshal(payload map[string]any, target any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return json.Unmarshal(data, target)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
