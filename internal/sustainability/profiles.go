package sustainability

import "ecosort/internal/waste"

// ImpactBreakdown rates a category's effect on each part of the environment.
type ImpactBreakdown struct {
	Landfill string `json:"landfill_impact"`
	Water    string `json:"water_impact"`
	Air      string `json:"air_impact"`
	Soil     string `json:"soil_impact"`
	Wildlife string `json:"wildlife_impact"`
}

func baseProfiles() map[waste.Category]Profile {
	return map[waste.Category]Profile{
		waste.Biodegradable: {
			Score:  8.5,
			Impact: ImpactLow,
			Tips: []string{
				"Compost at home or use municipal composting services",
				"Use as garden mulch or soil amendment",
				"Feed to animals if safe (check local regulations)",
				"Break down naturally in 2-6 months",
				"Reduces landfill methane emissions",
			},
			EnvironmentalBenefits: []string{
				"Reduces greenhouse gas emissions",
				"Creates nutrient-rich soil",
				"Minimizes landfill waste",
				"Supports circular economy",
			},
			DecompositionTime: "2-6 months",
			CarbonFootprint:   "Very Low",
		},
		waste.Recyclable: {
			Score:  7.0,
			Impact: ImpactMedium,
			Tips: []string{
				"Clean and sort materials properly",
				"Check local recycling guidelines",
				"Rinse containers before recycling",
				"Remove caps and labels when possible",
				"Use designated recycling bins",
			},
			EnvironmentalBenefits: []string{
				"Conserves natural resources",
				"Reduces energy consumption",
				"Decreases pollution",
				"Creates new products",
			},
			DecompositionTime: "100-1000 years",
			CarbonFootprint:   "Low",
		},
		waste.Hazardous: {
			Score:  2.0,
			Impact: ImpactHigh,
			Tips: []string{
				"Never dispose in regular trash or down drains",
				"Use designated hazardous waste collection sites",
				"Contact local waste management authorities",
				"Store safely until proper disposal",
				"Follow manufacturer disposal instructions",
			},
			EnvironmentalBenefits: []string{
				"Prevents soil and water contamination",
				"Protects human and animal health",
				"Reduces environmental pollution",
				"Ensures proper treatment",
			},
			DecompositionTime: "Never (persistent)",
			CarbonFootprint:   "Very High",
		},
	}
}

func disposalAlternatives() map[waste.Category][]string {
	return map[waste.Category][]string{
		waste.Biodegradable: {
			"Home composting",
			"Municipal composting",
			"Garden mulch",
			"Animal feed (if safe)",
			"Natural decomposition",
		},
		waste.Recyclable: {
			"Curbside recycling",
			"Recycling centers",
			"Upcycling projects",
			"Donation to reuse programs",
			"Manufacturer take-back programs",
		},
		waste.Hazardous: {
			"Hazardous waste facilities",
			"Special collection events",
			"Manufacturer disposal programs",
			"Professional waste management services",
			"Local government collection programs",
		},
	}
}

func impactBreakdowns() map[waste.Category]ImpactBreakdown {
	return map[waste.Category]ImpactBreakdown{
		waste.Biodegradable: {
			Landfill: "High (methane production)",
			Water:    "Low",
			Air:      "Medium (if not composted)",
			Soil:     "Positive (if composted)",
			Wildlife: "Low",
		},
		waste.Recyclable: {
			Landfill: "Medium (space usage)",
			Water:    "Medium (pollution)",
			Air:      "Medium (manufacturing emissions)",
			Soil:     "Low",
			Wildlife: "Medium (habitat disruption)",
		},
		waste.Hazardous: {
			Landfill: "Very High (contamination)",
			Water:    "Very High (pollution)",
			Air:      "High (toxic emissions)",
			Soil:     "Very High (contamination)",
			Wildlife: "Very High (toxicity)",
		},
	}
}

func improvementTips() map[waste.Category][]string {
	return map[waste.Category][]string{
		waste.Biodegradable: {
			"Start a home composting system",
			"Use reusable containers instead of disposable ones",
			"Buy products with minimal packaging",
			"Support local farmers markets",
			"Practice zero-waste cooking",
		},
		waste.Recyclable: {
			"Buy products made from recycled materials",
			"Choose products with recyclable packaging",
			"Reduce consumption of single-use items",
			"Support companies with recycling programs",
			"Educate others about proper recycling",
		},
		waste.Hazardous: {
			"Choose non-toxic alternatives when possible",
			"Buy only what you need to avoid waste",
			"Use rechargeable batteries",
			"Choose eco-friendly cleaning products",
			"Support hazardous waste collection programs",
		},
	}
}
