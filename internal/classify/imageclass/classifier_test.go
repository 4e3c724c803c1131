package imageclass

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecosort/internal/waste"
)

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestHeuristicSolidColours(t *testing.T) {
	c := New(Options{})
	require.False(t, c.ModelLoaded())

	cases := []struct {
		name       string
		colour     color.Color
		category   waste.Category
		confidence float64
	}{
		{"green", color.RGBA{G: 255, A: 255}, waste.Biodegradable, 0.6},
		{"blue", color.RGBA{B: 255, A: 255}, waste.Recyclable, 0.55},
		{"red", color.RGBA{R: 255, A: 255}, waste.Hazardous, 0.5},
		{"grey tie", color.RGBA{R: 90, G: 90, B: 90, A: 255}, waste.Hazardous, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := c.Predict(solid(tc.colour))
			assert.Equal(t, tc.category, p.Category)
			assert.Equal(t, tc.confidence, p.Confidence)
			assert.Equal(t, waste.MethodHeuristic, p.Method)
			assert.Equal(t, tc.confidence, p.Probabilities[tc.category])
		})
	}
}

func TestHeuristicDistributionQuirk(t *testing.T) {
	p := New(Options{}).Predict(solid(color.RGBA{G: 200, A: 255}))
	assert.Equal(t, map[waste.Category]float64{
		waste.Biodegradable: 0.6,
		waste.Recyclable:    0.33,
		waste.Hazardous:     0.34,
	}, p.Probabilities)
}

func TestPredictNeverFails(t *testing.T) {
	c := New(Options{})
	for name, img := range map[string]image.Image{
		"nil":   nil,
		"empty": image.NewRGBA(image.Rect(0, 0, 0, 0)),
	} {
		t.Run(name, func(t *testing.T) {
			p := c.Predict(img)
			assert.Equal(t, waste.Recyclable, p.Category)
			assert.Equal(t, 0.5, p.Confidence)
			assert.Equal(t, waste.MethodDefault, p.Method)
			assert.Equal(t, waste.Distribution(0.33, 0.34, 0.33), p.Probabilities)
		})
	}
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }
func (panicking) Predict(image.Image) (waste.Prediction, error) {
	panic("boom")
}

type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Predict(image.Image) (waste.Prediction, error) {
	return waste.Prediction{}, errors.New("no")
}

func TestChainRecoversAndReportsDegrade(t *testing.T) {
	var degraded []string
	c := NewWithStrategies(nil, func(name string, err error) {
		assert.Error(t, err)
		degraded = append(degraded, name)
	}, panicking{}, failing{}, HeuristicStrategy{})

	p := c.Predict(solid(color.RGBA{B: 255, A: 255}))
	assert.Equal(t, waste.Recyclable, p.Category)
	assert.Equal(t, waste.MethodHeuristic, p.Method)
	assert.Equal(t, []string{"panicking", "failing"}, degraded)
}

func writeModel(t *testing.T, m Model) string {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// blueModel votes recyclable in proportion to the blue channel.
func blueModel(size int) Model {
	n := 3 * size * size
	weights := [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i := 2; i < n; i += 3 {
		weights[1][i] = 1
	}
	return Model{
		InputSize:  size,
		Categories: []string{"biodegradable", "recyclable", "hazardous"},
		Weights:    weights,
		Bias:       []float64{0, 0, 0},
	}
}

func TestModelStrategy(t *testing.T) {
	c := New(Options{ModelPath: writeModel(t, blueModel(4))})
	require.True(t, c.ModelLoaded())

	p := c.Predict(solid(color.RGBA{B: 255, A: 255}))
	assert.Equal(t, waste.Recyclable, p.Category)
	assert.Equal(t, waste.MethodModel, p.Method)
	assert.Greater(t, p.Confidence, 0.99)

	var sum float64
	for _, v := range p.Probabilities {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestModelLoadFailureDegrades(t *testing.T) {
	bad := blueModel(4)
	bad.Weights[0] = bad.Weights[0][:3]

	c := New(Options{ModelPath: writeModel(t, bad)})
	assert.False(t, c.ModelLoaded())
	assert.Equal(t, waste.MethodHeuristic, c.Predict(solid(color.RGBA{G: 255, A: 255})).Method)

	c = New(Options{ModelPath: filepath.Join(t.TempDir(), "missing.json")})
	assert.False(t, c.ModelLoaded())

	_, err := LoadModel(writeModel(t, Model{InputSize: 1, Categories: []string{"sludge"}, Weights: [][]float64{{0, 0, 0}}, Bias: []float64{0}}))
	assert.True(t, errors.Is(err, waste.ErrUnknownCategory))
}
