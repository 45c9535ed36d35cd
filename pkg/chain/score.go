package chain

import "math"

// CriterionScore pairs a model-reported criterion score with its rubric
// weight.
type CriterionScore struct {
	ID     string
	Score  int
	Weight float64
}

// DeterministicScore computes a 1-10 score as the weight-normalized rounded
// mean. Scores are clamped into [1, 10] and negative weights are ignored, so
// a hostile model response cannot push the final score off-scale.
func DeterministicScore(criteria []CriterionScore) int {
	if len(criteria) == 0 {
		return 1
	}

	var weightedSum, weights float64
	for _, c := range criteria {
		score := min(max(c.Score, 1), 10)
		weight := math.Max(0, c.Weight)
		weightedSum += float64(score) * weight
		weights += weight
	}
	if weights == 0 {
		return 1
	}
	// Half-to-even keeps rescoring stable: a mean ending in exactly .5
	// always lands on the same integer regardless of sign or platform.
	return int(math.RoundToEven(weightedSum / weights))
}

// WeightByID resolves rubric weights for the model's reported criteria.
// Unknown criterion IDs get zero weight and therefore no influence.
func (s *Spec) WeightByID(id string) float64 {
	for _, c := range s.Rubric.Criteria {
		if c.ID == id {
			return c.Weight
		}
	}
	return 0
}
