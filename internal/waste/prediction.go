package waste

// Method records which prediction path produced a Prediction.
type Method string

const (
	MethodModel           Method = "model"
	MethodHeuristic       Method = "heuristic"
	MethodDefault         Method = "default"
	MethodKeywordFallback Method = "keyword_fallback"
)

// InputKind distinguishes the two classifier entry points.
type InputKind string

const (
	InputImage InputKind = "image"
	InputText  InputKind = "text"
)

// Prediction is the result of one classification. Probabilities carries an
// entry for every category.
type Prediction struct {
	Category      Category             `json:"category"`
	Confidence    float64              `json:"confidence"`
	Probabilities map[Category]float64 `json:"all_probabilities"`
	Method        Method               `json:"method,omitempty"`
	ProcessedText string               `json:"processed_text,omitempty"`
}

// Distribution builds a full probability map in enumeration order from
// values; missing trailing values are zero.
func Distribution(values ...float64) map[Category]float64 {
	out := make(map[Category]float64, len(categories))
	for i, c := range categories {
		if i < len(values) {
			out[c] = values[i]
		} else {
			out[c] = 0
		}
	}
	return out
}

// Clone returns a copy whose probability map is not shared with p.
func (p Prediction) Clone() Prediction {
	cp := p
	if p.Probabilities != nil {
		cp.Probabilities = make(map[Category]float64, len(p.Probabilities))
		for k, v := range p.Probabilities {
			cp.Probabilities[k] = v
		}
	}
	return cp
}
