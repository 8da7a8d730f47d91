// Package generation implements the content work behind each workflow phase
// using an LLM chat client.
//
// Prompts come from an embedded YAML catalogue rendered with text/template.
// Edit and SEO replies are JSON; they are checked against JSON schemas before
// decoding. An unusable SEO reply is not an error: it produces
// content.FallbackSEOResult so the workflow still pauses in optimizing.
package generation
