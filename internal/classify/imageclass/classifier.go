// Package imageclass predicts a waste category from a decoded image. It runs
// a ranked chain of strategies and always returns a well-formed prediction.
package imageclass

import (
	"errors"
	"fmt"
	"image"

	"ecosort/internal/logger"
	"ecosort/internal/waste"
)

var errEmptyImage = errors.New("image has no pixels")

// Strategy is one tier of the prediction chain.
type Strategy interface {
	Name() string
	Predict(img image.Image) (waste.Prediction, error)
}

type Options struct {
	Logger *logger.Logger
	// ModelPath points at a JSON linear model. Empty means heuristic only.
	ModelPath string
	// OnDegrade is called whenever a strategy fails and the next one runs.
	OnDegrade func(strategy string, err error)
}

type Classifier struct {
	log        *logger.Logger
	strategies []Strategy
	onDegrade  func(string, error)
}

// New builds the chain model -> heuristic -> default. A model that cannot be
// loaded is logged and left out of the chain.
func New(opts Options) *Classifier {
	log := logger.OrNop(opts.Logger).With("component", "imageclass")
	var chain []Strategy
	if opts.ModelPath != "" {
		m, err := LoadModel(opts.ModelPath)
		if err != nil {
			log.Warn("image model unavailable, using heuristic", "path", opts.ModelPath, "error", err)
		} else {
			log.Info("image model loaded", "path", opts.ModelPath, "input_size", m.InputSize)
			chain = append(chain, m)
		}
	}
	chain = append(chain, HeuristicStrategy{})
	return NewWithStrategies(log, opts.OnDegrade, chain...)
}

// NewWithStrategies runs the given strategies in order. DefaultStrategy is
// always appended as the final tier.
func NewWithStrategies(log *logger.Logger, onDegrade func(string, error), strategies ...Strategy) *Classifier {
	return &Classifier{
		log:        logger.OrNop(log),
		strategies: append(append([]Strategy(nil), strategies...), DefaultStrategy{}),
		onDegrade:  onDegrade,
	}
}

// ModelLoaded reports whether the first tier is a trained model.
func (c *Classifier) ModelLoaded() bool {
	_, ok := c.strategies[0].(*Model)
	return ok
}

// Predict never fails.
func (c *Classifier) Predict(img image.Image) waste.Prediction {
	for _, s := range c.strategies {
		p, err := run(s, img)
		if err == nil {
			return p
		}
		c.log.Warn("image strategy failed", "strategy", s.Name(), "error", err)
		if c.onDegrade != nil {
			c.onDegrade(s.Name(), err)
		}
	}
	return defaultPrediction()
}

func run(s Strategy, img image.Image) (p waste.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panic: %v", s.Name(), r)
		}
	}()
	return s.Predict(img)
}

// DefaultStrategy is the neutral answer used when nothing else works.
type DefaultStrategy struct{}

func (DefaultStrategy) Name() string { return string(waste.MethodDefault) }

func (DefaultStrategy) Predict(image.Image) (waste.Prediction, error) {
	return defaultPrediction(), nil
}

func defaultPrediction() waste.Prediction {
	return waste.Prediction{
		Category:      waste.Recyclable,
		Confidence:    0.5,
		Probabilities: waste.Distribution(0.33, 0.34, 0.33),
		Method:        waste.MethodDefault,
	}
}
