package sustainability

// Condition describes the state of the item being disposed of.
type Condition string

const (
	ConditionDamaged      Condition = "damaged"
	ConditionContaminated Condition = "contaminated"
)

// Factors are optional adjustments to the eco score. A zero Quantity or empty
// Condition applies no penalty.
type Factors struct {
	Quantity  float64   `json:"quantity,omitempty"`
	Condition Condition `json:"condition,omitempty"`
}

const (
	minScore = 0.0
	maxScore = 10.0
)

// EcoScore scales the category's base score by confidence and the optional
// penalty factors, then clamps to [0, 10]. Quantity is applied before
// condition.
func (c *Catalog) EcoScore(category string, confidence float64, factors *Factors) float64 {
	score := c.Score(category).Score * min(confidence, 1.0)

	if factors != nil {
		switch q := factors.Quantity; {
		case q > 10:
			score *= 0.8
		case q > 5:
			score *= 0.9
		}
		switch factors.Condition {
		case ConditionDamaged:
			score *= 0.9
		case ConditionContaminated:
			score *= 0.7
		}
	}

	return min(max(score, minScore), maxScore)
}
