// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) used by the planner to ask a model for an Iterative Reduction
// Cascade plan.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, optionally with a strict
// JSON schema, and receive the raw JSON payload.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode a payload that may be wrapped in code fences.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx, empty content, and network
// timeouts with exponential backoff (base 1s, max 10s, 4 attempts by default).
// Retry-After headers are honoured. Context cancellation aborts retries
// immediately.
package llm
