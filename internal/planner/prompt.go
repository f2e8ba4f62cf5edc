package planner

import (
	"fmt"
	"strings"

	"squish/internal/cascade"
)

const systemPrompt = `You are an expert compression strategist that designs a multi-step, iterative compression plan to forcefully reduce file size. You do not execute the compression; you only create the plan as a JSON object that follows the provided schema. The user's selected profile is the most important constraint.`

var profileGuidance = map[cascade.Profile]string{
	cascade.ProfileArchive:    "Gentle cascade. Prioritize quality. 1-2 steps.",
	cascade.ProfileBalanced:   "Moderate cascade. Good balance of format conversion and quality reduction. 2-3 steps.",
	cascade.ProfileSuperSmall: "Aggressive cascade. Use everything: format conversion, low quality, and finally resolution_scale as a last resort. 3-5 steps.",
}

func buildUserPrompt(artifactName string, profile cascade.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an Iterative Reduction Cascade (IRC) plan for a file named %q. ", artifactName)
	fmt.Fprintf(&b, "The user selected the %q profile, which is your highest priority. Your goal is to FORCE a file size reduction.\n\n", profile.Label())
	b.WriteString("Return a JSON object describing a ladder of strategies. The system tries each one in order and stops at the first success.\n\n")
	b.WriteString("The plan must include:\n")
	b.WriteString("1. quality_floor_info: the conceptual quality limit you are respecting (e.g. \"SSIM > 0.85\").\n")
	b.WriteString("2. planning_summary: a brief analysis of the file based on its name (fileType, complexity, visualFocus, textureProfile).\n")
	b.WriteString("3. cascade: strategies from gentlest to most aggressive. Each has strategy_name, tool (a plausible tool such as oxipng, AVIFenc, ImageMagick), ")
	b.WriteString("parameters with ONLY the keys it needs (format, quality in 0.0-1.0, resolution_scale such as 0.9; use {} for lossless), and rationale.\n\n")
	b.WriteString("Profile guidance:\n")
	for _, p := range cascade.Profiles() {
		fmt.Fprintf(&b, "- %s: %s\n", p.Label(), profileGuidance[p])
	}
	b.WriteString("\nThe cascade should be logical. Do not jump to resolution scaling immediately; try quality and format changes first.")
	return b.String()
}

// planSchema mirrors cascade.Plan's JSON shape.
func planSchema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	enum := func(values ...string) map[string]any {
		return map[string]any{"type": "string", "enum": values}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"quality_floor_info", "planning_summary", "cascade"},
		"properties": map[string]any{
			"quality_floor_info": str("Conceptual quality limit considered, e.g. 'SSIM 0.85 to prevent major degradation'."),
			"planning_summary": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"fileType", "complexity", "visualFocus", "textureProfile"},
				"properties": map[string]any{
					"fileType":       str("Detected file type, e.g. 'JPEG Image'."),
					"complexity":     enum("Simple", "Moderate", "Complex"),
					"visualFocus":    enum("Detected", "Not Detected"),
					"textureProfile": enum("Smooth", "Rough", "Mixed"),
				},
			},
			"cascade": map[string]any{
				"type":        "array",
				"minItems":    1,
				"description": "Compression strategies to try in order, gentlest first.",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"strategy_name", "tool", "parameters", "rationale"},
					"properties": map[string]any{
						"strategy_name": str("Descriptive name, e.g. 'Smart Format Conversion (AVIF)'."),
						"tool":          str("Conceptual tool for this strategy."),
						"parameters": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"properties": map[string]any{
								"format":           map[string]any{"type": "string", "enum": []string{"jpeg", "webp", "avif"}},
								"quality":          map[string]any{"type": "number", "minimum": 0, "maximum": 1},
								"resolution_scale": map[string]any{"type": "number", "exclusiveMinimum": 0, "maximum": 1},
							},
						},
						"rationale": str("Why this strategy is attempted at this stage."),
					},
				},
			},
		},
	}
}
