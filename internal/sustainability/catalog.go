// Package sustainability is the static scoring table behind every
// classification: per-category score, impact, disposal guidance and the
// eco score arithmetic.
package sustainability

import (
	"strings"

	"ecosort/internal/waste"
)

// Impact is the ordinal environmental impact of a category.
type Impact string

const (
	ImpactLow     Impact = "Low"
	ImpactMedium  Impact = "Medium"
	ImpactHigh    Impact = "High"
	ImpactUnknown Impact = "Unknown"
)

// Profile is the read-only record attached to a category.
type Profile struct {
	Score                 float64  `json:"score"`
	Impact                Impact   `json:"impact"`
	Tips                  []string `json:"tips"`
	EnvironmentalBenefits []string `json:"environmental_benefits"`
	DecompositionTime     string   `json:"decomposition_time"`
	CarbonFootprint       string   `json:"carbon_footprint"`
}

// Catalog maps categories to profiles. It is built once and never mutated,
// so a single value is shared by every request.
type Catalog struct {
	profiles     map[waste.Category]Profile
	alternatives map[waste.Category][]string
	impacts      map[waste.Category]ImpactBreakdown
	improvements map[waste.Category][]string
}

var shared = New()

// Default returns the process-wide catalog.
func Default() *Catalog { return shared }

func New() *Catalog {
	return &Catalog{
		profiles:     baseProfiles(),
		alternatives: disposalAlternatives(),
		impacts:      impactBreakdowns(),
		improvements: improvementTips(),
	}
}

// DefaultProfile is returned for any input that does not name a category.
func DefaultProfile() Profile {
	return Profile{
		Score:                 5.0,
		Impact:                ImpactUnknown,
		Tips:                  []string{"Please consult local waste management guidelines"},
		EnvironmentalBenefits: []string{"Proper disposal reduces environmental impact"},
		DecompositionTime:     "Unknown",
		CarbonFootprint:       "Unknown",
	}
}

// Score looks up the profile for category. Unknown input degrades to
// DefaultProfile instead of failing. The returned slices are copies.
func (c *Catalog) Score(category string) Profile {
	p, ok := c.profiles[waste.Category(strings.ToLower(strings.TrimSpace(category)))]
	if !ok {
		return DefaultProfile()
	}
	p.Tips = append([]string(nil), p.Tips...)
	p.EnvironmentalBenefits = append([]string(nil), p.EnvironmentalBenefits...)
	return p
}

// Comparison summarises every known category side by side.
type Comparison struct {
	Score             float64 `json:"score"`
	Impact            Impact  `json:"impact"`
	DecompositionTime string  `json:"decomposition_time"`
	CarbonFootprint   string  `json:"carbon_footprint"`
}

func (c *Catalog) Comparison() map[waste.Category]Comparison {
	out := make(map[waste.Category]Comparison, len(c.profiles))
	for cat, p := range c.profiles {
		out[cat] = Comparison{
			Score:             p.Score,
			Impact:            p.Impact,
			DecompositionTime: p.DecompositionTime,
			CarbonFootprint:   p.CarbonFootprint,
		}
	}
	return out
}

// DisposalAlternatives lists other acceptable disposal routes for category.
func (c *Catalog) DisposalAlternatives(category string) []string {
	if alts, ok := c.alternatives[waste.Category(strings.ToLower(strings.TrimSpace(category)))]; ok {
		return append([]string(nil), alts...)
	}
	return []string{"Consult local guidelines"}
}

// ImpactBreakdown describes where the category harms the environment. Unknown
// categories get a zero breakdown and false.
func (c *Catalog) ImpactBreakdown(category string) (ImpactBreakdown, bool) {
	b, ok := c.impacts[waste.Category(strings.ToLower(strings.TrimSpace(category)))]
	return b, ok
}

// ImprovementTips are habits that reduce how much of category gets produced.
func (c *Catalog) ImprovementTips(category string) []string {
	if tips, ok := c.improvements[waste.Category(strings.ToLower(strings.TrimSpace(category)))]; ok {
		return append([]string(nil), tips...)
	}
	return []string{"Reduce consumption and waste generation"}
}
