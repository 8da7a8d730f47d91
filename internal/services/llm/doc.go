// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) used by the content generator and the LLM preflight check.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive free text.
// Client.Chat: send a system prompt plus prior conversation turns.
// Client.CompleteJSON: request a JSON object response.
// Client.HealthCheck: verify API key and model availability.
// DecodeJSON: decode model JSON, tolerating code fences and chatter.
// Marker: classify a client error as a services marker.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). Retry-After is honoured. Context cancellation aborts
// retries immediately.
package llm
