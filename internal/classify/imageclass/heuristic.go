package imageclass

import (
	"image"

	"ecosort/internal/waste"
)

// HeuristicStrategy classifies by which colour channel dominates the image
// mean. The distribution gives every losing category a fixed share, so it
// does not sum to exactly one.
type HeuristicStrategy struct{}

func (HeuristicStrategy) Name() string { return string(waste.MethodHeuristic) }

func (HeuristicStrategy) Predict(img image.Image) (waste.Prediction, error) {
	r, g, b, err := meanChannels(img)
	if err != nil {
		return waste.Prediction{}, err
	}

	var (
		category   waste.Category
		confidence float64
	)
	switch {
	case g > r && g > b:
		category, confidence = waste.Biodegradable, 0.6
	case b > r && b > g:
		category, confidence = waste.Recyclable, 0.55
	default:
		category, confidence = waste.Hazardous, 0.5
	}

	dist := waste.Distribution(0.33, 0.33, 0.34)
	dist[category] = confidence
	return waste.Prediction{
		Category:      category,
		Confidence:    confidence,
		Probabilities: dist,
		Method:        waste.MethodHeuristic,
	}, nil
}

// meanChannels averages 8-bit R, G and B over every pixel.
func meanChannels(img image.Image) (r, g, b float64, err error) {
	if img == nil {
		return 0, 0, 0, errEmptyImage
	}
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return 0, 0, 0, errEmptyImage
	}
	var sr, sg, sb uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += uint64(cr >> 8)
			sg += uint64(cg >> 8)
			sb += uint64(cb >> 8)
		}
	}
	return float64(sr) / n, float64(sg) / n, float64(sb) / n, nil
}
