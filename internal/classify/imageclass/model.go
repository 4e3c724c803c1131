package imageclass

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"os"

	"golang.org/x/image/draw"

	"ecosort/internal/waste"
)

// Model is a single soft-max layer over the pixels of a square RGB image
// resized to InputSize. Channels are scaled to [-1, 1] before the layer.
//
// File format:
//
//	{"input_size": 32, "categories": ["biodegradable", ...],
//	 "weights": [[...3*32*32 floats...], ...], "bias": [0, 0, 0]}
type Model struct {
	InputSize  int         `json:"input_size"`
	Categories []string    `json:"categories"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`

	classes []waste.Category
}

func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode image model: %w", err)
	}
	if err := m.init(); err != nil {
		return nil, fmt.Errorf("image model %s: %w", path, err)
	}
	return &m, nil
}

func (m *Model) init() error {
	if m.InputSize <= 0 {
		return errors.New("input_size must be positive")
	}
	if len(m.Categories) == 0 || len(m.Weights) != len(m.Categories) || len(m.Bias) != len(m.Categories) {
		return errors.New("categories, weights and bias must have the same length")
	}
	features := 3 * m.InputSize * m.InputSize
	m.classes = make([]waste.Category, len(m.Categories))
	for i, name := range m.Categories {
		c, err := waste.ParseCategory(name)
		if err != nil {
			return err
		}
		m.classes[i] = c
		if len(m.Weights[i]) != features {
			return fmt.Errorf("weights[%d] has %d values, want %d", i, len(m.Weights[i]), features)
		}
	}
	return nil
}

func (m *Model) Name() string { return string(waste.MethodModel) }

func (m *Model) Predict(img image.Image) (waste.Prediction, error) {
	if img == nil || img.Bounds().Empty() {
		return waste.Prediction{}, errEmptyImage
	}
	x := m.features(img)

	logits := make([]float64, len(m.classes))
	top := math.Inf(-1)
	for i, w := range m.Weights {
		s := m.Bias[i]
		for j, v := range x {
			s += w[j] * v
		}
		logits[i] = s
		top = math.Max(top, s)
	}
	var z float64
	for i := range logits {
		logits[i] = math.Exp(logits[i] - top)
		z += logits[i]
	}

	dist := waste.Distribution()
	best := 0
	for i := range logits {
		logits[i] /= z
		dist[m.classes[i]] += logits[i]
		if logits[i] > logits[best] {
			best = i
		}
	}
	if math.IsNaN(logits[best]) {
		return waste.Prediction{}, errors.New("model produced NaN")
	}
	return waste.Prediction{
		Category:      m.classes[best],
		Confidence:    logits[best],
		Probabilities: dist,
		Method:        waste.MethodModel,
	}, nil
}

func (m *Model) features(img image.Image) []float64 {
	dst := image.NewRGBA(image.Rect(0, 0, m.InputSize, m.InputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	out := make([]float64, 0, 3*m.InputSize*m.InputSize)
	for i := 0; i < len(dst.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			out = append(out, float64(dst.Pix[i+c])/127.5-1)
		}
	}
	return out
}
