package generation

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Phase names used as keys in the prompt catalogue.
const (
	PhaseResearch = "research"
	PhaseOutline  = "outline"
	PhaseDraft    = "draft"
	PhaseEdit     = "edit"
	PhaseSEO      = "seo"
	PhaseOptimize = "optimize"
	PhaseReply    = "reply"
)

var requiredPhases = []string{
	PhaseResearch,
	PhaseOutline,
	PhaseDraft,
	PhaseEdit,
	PhaseSEO,
	PhaseOptimize,
	PhaseReply,
}

type promptSource struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type prompt struct {
	system *template.Template
	user   *template.Template
}

// Catalog holds the parsed prompt templates for every phase.
type Catalog struct {
	prompts map[string]prompt
}

// promptData is the template input shared by all phases.
type promptData struct {
	Topic       string
	Tone        string
	Feedback    string
	Research    string
	Outline     string
	Content     string
	Draft       string
	State       string
	Keywords    []string
	Suggestions []string
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// DefaultCatalog parses the embedded prompts.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultPrompts)
}

// ParseCatalog decodes a YAML prompt catalogue. Every phase must define a
// user template.
func ParseCatalog(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("prompts: catalogue is empty")
	}
	var sources map[string]promptSource
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("prompts: decode catalogue: %w", err)
	}

	catalog := &Catalog{prompts: make(map[string]prompt, len(sources))}
	for _, phase := range requiredPhases {
		src, ok := sources[phase]
		if !ok || strings.TrimSpace(src.User) == "" {
			return nil, fmt.Errorf("prompts: phase %q missing user template", phase)
		}
		system, err := template.New(phase + ".system").Funcs(templateFuncs).Parse(src.System)
		if err != nil {
			return nil, fmt.Errorf("prompts: parse %s system template: %w", phase, err)
		}
		user, err := template.New(phase + ".user").Funcs(templateFuncs).Parse(src.User)
		if err != nil {
			return nil, fmt.Errorf("prompts: parse %s user template: %w", phase, err)
		}
		catalog.prompts[phase] = prompt{system: system, user: user}
	}
	return catalog, nil
}

// render executes the system and user templates for phase.
func (c *Catalog) render(phase string, data promptData) (string, string, error) {
	p, ok := c.prompts[phase]
	if !ok {
		return "", "", fmt.Errorf("prompts: unknown phase %q", phase)
	}
	var system, user bytes.Buffer
	if err := p.system.Execute(&system, data); err != nil {
		return "", "", fmt.Errorf("prompts: render %s system: %w", phase, err)
	}
	if err := p.user.Execute(&user, data); err != nil {
		return "", "", fmt.Errorf("prompts: render %s user: %w", phase, err)
	}
	return strings.TrimSpace(system.String()), strings.TrimSpace(user.String()), nil
}
