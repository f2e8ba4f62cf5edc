package planner

import (
	"context"

	"squish/internal/cascade"
)

// MockProvider returns the built-in ladder used when no model is configured.
// The ladder does not depend on the artifact name or profile.
type MockProvider struct{}

// NewMockProvider constructs the built-in ladder provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// FetchPlan implements Provider.
func (MockProvider) FetchPlan(ctx context.Context, _ string, _ cascade.Profile) (cascade.Plan, error) {
	if err := ctx.Err(); err != nil {
		return cascade.Plan{}, err
	}
	plan := DefaultLadder()
	return plan, Validate(plan)
}

// DefaultLadder is lossless first, then AVIF, then aggressive JPEG, then a 90%
// downscale as the last resort.
func DefaultLadder() cascade.Plan {
	return cascade.Plan{
		QualityFloorInfo: "Target SSIM > 0.85, to avoid visible artifacts.",
		Summary: cascade.Summary{
			FileType:       "PNG Image",
			Complexity:     "Complex",
			VisualFocus:    "Detected",
			TextureProfile: "Mixed",
		},
		Cascade: []cascade.Strategy{
			{
				Name:       "Native Format Optimization (PNG)",
				Tool:       "oxipng",
				Parameters: cascade.Parameters{},
				Rationale:  "First attempt: lossless compression to keep maximum quality.",
			},
			{
				Name:       "Smart Format Conversion (AVIF)",
				Tool:       "AVIFenc",
				Parameters: cascade.Parameters{Format: "avif", Quality: cascade.Float(0.8)},
				Rationale:  "Next-gen AVIF format for superior compression at high visual quality.",
			},
			{
				Name:       "Aggressive Quality Reduction (JPG)",
				Tool:       "cjpeg",
				Parameters: cascade.Parameters{Format: "jpeg", Quality: cascade.Float(0.65)},
				Rationale:  "If the others fail, trade transparency for size by converting to JPG with aggressive quality reduction.",
			},
			{
				Name:       "Resolution Reduction (90%)",
				Tool:       "ImageMagick",
				Parameters: cascade.Parameters{Format: "jpeg", Quality: cascade.Float(0.7), ResolutionScale: cascade.Float(0.9)},
				Rationale:  "Final attempt: slightly reduce resolution to guarantee a size reduction.",
			},
		},
	}
}
