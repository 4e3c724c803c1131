package textclass

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ecosort/internal/waste"
)

// Keywords maps each category to its keyword list. Values handed out by the
// classifier are copies.
type Keywords map[waste.Category][]string

// "battery" is listed only as hazardous so the model and the substring
// fallback agree on it.
func defaultKeywords() Keywords {
	return Keywords{
		waste.Biodegradable: {
			"banana", "apple", "orange", "fruit", "vegetable", "food", "organic",
			"paper", "cardboard", "wood", "leaves", "grass", "compost", "tea bag",
			"coffee ground", "egg shell", "bread", "pasta", "rice", "meat",
			"fish", "dairy", "garden waste", "yard waste", "plant", "flower",
		},
		waste.Recyclable: {
			"plastic", "bottle", "container", "bag", "glass", "aluminum", "can",
			"metal", "steel", "tin", "paper", "newspaper", "magazine", "book",
			"cardboard", "box", "envelope", "carton", "milk jug", "soda can",
			"beer bottle", "wine bottle", "jar", "lotion bottle", "shampoo",
			"detergent", "fabric", "cloth", "textile", "electronics",
		},
		waste.Hazardous: {
			"battery", "chemical", "paint", "solvent", "oil", "gasoline",
			"pesticide", "herbicide", "medicine", "pharmaceutical", "syringe",
			"needle", "medical waste", "toxic", "poison", "mercury", "lead",
			"asbestos", "radioactive", "infectious", "corrosive", "flammable",
			"explosive", "aerosol", "spray can", "light bulb", "fluorescent",
			"thermometer", "thermostat", "electronics", "computer", "phone",
		},
	}
}

func (k Keywords) clone() Keywords {
	out := make(Keywords, len(k))
	for cat, words := range k {
		out[cat] = append([]string(nil), words...)
	}
	return out
}

// merge returns a new table with extra appended per category. Words are
// normalized and duplicates within a category are skipped.
func (k Keywords) merge(extra Keywords) Keywords {
	out := k.clone()
	for cat, words := range extra {
		seen := make(map[string]struct{}, len(out[cat]))
		for _, w := range out[cat] {
			seen[w] = struct{}{}
		}
		for _, w := range words {
			w = Normalize(w)
			if w == "" {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			out[cat] = append(out[cat], w)
		}
	}
	return out
}

// LoadKeywordFile reads a YAML document of the form
//
//	recyclable: [tetra pack, bubble wrap]
//	hazardous: [nail polish]
//
// and validates every key against the category set.
func LoadKeywordFile(path string) (Keywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword file: %w", err)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keyword file: %w", err)
	}
	out := make(Keywords, len(raw))
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cat, err := waste.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("keyword file %s: %w", path, err)
		}
		out[cat] = append(out[cat], raw[name]...)
	}
	return out, nil
}

// Normalize lower-cases text, turns everything that is not an ASCII letter
// into a space and collapses runs of whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
