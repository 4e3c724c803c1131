package textclass

import (
	"math"

	"ecosort/internal/waste"
)

const smoothing = 1.0

// naiveBayes is a multinomial naive Bayes model over TF-IDF features.
type naiveBayes struct {
	classes       []waste.Category
	logPrior      []float64
	featureLogPrb [][]float64
}

func fitNaiveBayes(vectors []map[int]float64, labels []waste.Category, classes []waste.Category, features int) *naiveBayes {
	nb := &naiveBayes{
		classes:       classes,
		logPrior:      make([]float64, len(classes)),
		featureLogPrb: make([][]float64, len(classes)),
	}
	index := make(map[waste.Category]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	counts := make([]float64, len(classes))
	featureCounts := make([][]float64, len(classes))
	for i := range classes {
		featureCounts[i] = make([]float64, features)
	}
	for d, vec := range vectors {
		ci := index[labels[d]]
		counts[ci]++
		for f, w := range vec {
			featureCounts[ci][f] += w
		}
	}

	total := float64(len(vectors))
	for ci := range classes {
		nb.logPrior[ci] = math.Log(counts[ci] / total)
		var sum float64
		for _, fc := range featureCounts[ci] {
			sum += fc
		}
		denom := math.Log(sum + smoothing*float64(features))
		nb.featureLogPrb[ci] = make([]float64, features)
		for f, fc := range featureCounts[ci] {
			nb.featureLogPrb[ci][f] = math.Log(fc+smoothing) - denom
		}
	}
	return nb
}

// posterior returns P(class | vec) in class order.
func (nb *naiveBayes) posterior(vec map[int]float64) []float64 {
	jll := make([]float64, len(nb.classes))
	best := math.Inf(-1)
	for ci := range nb.classes {
		s := nb.logPrior[ci]
		for f, w := range vec {
			s += w * nb.featureLogPrb[ci][f]
		}
		jll[ci] = s
		best = math.Max(best, s)
	}
	var z float64
	for ci := range jll {
		jll[ci] = math.Exp(jll[ci] - best)
		z += jll[ci]
	}
	for ci := range jll {
		jll[ci] /= z
	}
	return jll
}
