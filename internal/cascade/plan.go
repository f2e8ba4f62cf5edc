package cascade

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Profile is the quality profile selected when an artifact is submitted.
type Profile string

const (
	ProfileArchive    Profile = "archive"
	ProfileBalanced   Profile = "balanced"
	ProfileSuperSmall Profile = "super-small"
)

var profileAliases = map[string]Profile{
	"archive":     ProfileArchive,
	"gentle":      ProfileArchive,
	"balanced":    ProfileBalanced,
	"super-small": ProfileSuperSmall,
	"supersmall":  ProfileSuperSmall,
	"small":       ProfileSuperSmall,
	"aggressive":  ProfileSuperSmall,
}

var profileLabels = map[Profile]string{
	ProfileArchive:    "Archive Quality",
	ProfileBalanced:   "Balanced",
	ProfileSuperSmall: "Super Small",
}

// Label is the human-facing profile name.
func (p Profile) Label() string {
	if label, ok := profileLabels[p]; ok {
		return label
	}
	return string(p)
}

// Profiles returns the closed set of profiles in display order.
func Profiles() []Profile {
	return []Profile{ProfileArchive, ProfileBalanced, ProfileSuperSmall}
}

// ParseProfile resolves a profile name or alias.
func ParseProfile(value string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.ReplaceAll(key, "_", "-")
	if profile, ok := profileAliases[key]; ok {
		return profile, nil
	}
	return "", fmt.Errorf("unknown profile %q (expected archive, balanced, or super-small)", value)
}

// Parameters are the optional knobs a strategy hands to the backend.
type Parameters struct {
	Format          string   `json:"format,omitempty" yaml:"format,omitempty"`
	Quality         *float64 `json:"quality,omitempty" yaml:"quality,omitempty"`
	ResolutionScale *float64 `json:"resolution_scale,omitempty" yaml:"resolution_scale,omitempty"`
}

// String renders parameters the way they appear in COMMAND trace entries.
func (p Parameters) String() string {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// Strategy is one rung of the cascade.
type Strategy struct {
	Name       string     `json:"strategy_name" yaml:"strategy_name"`
	Tool       string     `json:"tool" yaml:"tool"`
	Parameters Parameters `json:"parameters" yaml:"parameters"`
	Rationale  string     `json:"rationale" yaml:"rationale"`
}

// Summary is advisory metadata about the artifact; control flow ignores it.
type Summary struct {
	FileType       string `json:"fileType" yaml:"fileType"`
	Complexity     string `json:"complexity" yaml:"complexity"`
	VisualFocus    string `json:"visualFocus" yaml:"visualFocus"`
	TextureProfile string `json:"textureProfile" yaml:"textureProfile"`
}

// Focused reports whether the planner flagged a visual focal point.
func (s Summary) Focused() bool {
	return strings.EqualFold(strings.TrimSpace(s.VisualFocus), "detected")
}

// Plan is the ordered cascade returned by a planner.
type Plan struct {
	QualityFloorInfo string     `json:"quality_floor_info" yaml:"quality_floor_info"`
	Summary          Summary    `json:"planning_summary" yaml:"planning_summary"`
	Cascade          []Strategy `json:"cascade" yaml:"cascade"`
}

// Clone returns a deep copy so snapshots never alias a live plan.
func (p Plan) Clone() Plan {
	out := p
	if p.Cascade != nil {
		out.Cascade = make([]Strategy, len(p.Cascade))
		for i, s := range p.Cascade {
			out.Cascade[i] = s.Clone()
		}
	}
	return out
}

// Clone returns a copy that shares no parameter pointers with s.
func (s Strategy) Clone() Strategy {
	out := s
	if s.Parameters.Quality != nil {
		q := *s.Parameters.Quality
		out.Parameters.Quality = &q
	}
	if s.Parameters.ResolutionScale != nil {
		r := *s.Parameters.ResolutionScale
		out.Parameters.ResolutionScale = &r
	}
	return out
}

// Float returns a pointer to v, handy for building Parameters literals.
func Float(v float64) *float64 {
	return &v
}
