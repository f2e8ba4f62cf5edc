// Package planner produces cascade plans for an artifact name and profile.
//
// Three providers are available: LLMProvider asks a chat model acting as a
// compression strategist, MockProvider returns a fixed four-rung ladder, and
// FileProvider reads a YAML or JSON plan from disk. NewFromConfig picks one
// according to planner.provider. Every provider runs Validate before handing a
// plan back, so callers never see an empty cascade.
package planner
