// Package textclass predicts a waste category from free text. A TF-IDF naive
// Bayes model trained on a synthetic keyword corpus is tried first; keyword
// substring counting is used when the model is unavailable or has nothing to
// say about the input.
package textclass

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"ecosort/internal/logger"
	"ecosort/internal/waste"
)

// ErrNoKeywords is returned by AddKeywords when nothing usable was supplied.
var ErrNoKeywords = errors.New("no keywords supplied")

var phraseVariants = []string{"%s", "used %s", "old %s", "broken %s", "%s waste", "empty %s", "dirty %s", "clean %s"}

type Options struct {
	Logger *logger.Logger
	// DisableModel forces every prediction through the keyword fallback.
	DisableModel bool
	// Extra is merged into the built-in keyword lists before the first
	// training run.
	Extra Keywords
}

type model struct {
	vec *vectorizer
	nb  *naiveBayes
}

type snapshot struct {
	keywords Keywords
	model    *model
}

// Classifier is safe for concurrent use. Readers load an immutable snapshot;
// AddKeywords builds and publishes a replacement.
type Classifier struct {
	log          *logger.Logger
	disableModel bool

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

func New(opts Options) *Classifier {
	c := &Classifier{
		log:          logger.OrNop(opts.Logger).With("component", "textclass"),
		disableModel: opts.DisableModel,
	}
	kw := defaultKeywords()
	if len(opts.Extra) > 0 {
		kw = kw.merge(opts.Extra)
	}
	c.snap.Store(c.build(kw))
	return c
}

func (c *Classifier) build(kw Keywords) *snapshot {
	s := &snapshot{keywords: kw}
	if c.disableModel {
		return s
	}
	m, err := train(kw)
	if err != nil {
		c.log.Warn("text model training failed, using keyword fallback", "error", err)
		return s
	}
	s.model = m
	return s
}

func train(kw Keywords) (m *model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("train panic: %v", r)
		}
	}()

	var docs []string
	var labels []waste.Category
	for _, cat := range waste.Categories() {
		for _, word := range kw[cat] {
			for _, v := range phraseVariants {
				docs = append(docs, fmt.Sprintf(v, word))
				labels = append(labels, cat)
			}
		}
	}
	if len(docs) == 0 {
		return nil, errors.New("empty training corpus")
	}
	vec := fitVectorizer(docs)
	if len(vec.vocab) == 0 {
		return nil, errors.New("empty vocabulary")
	}
	vectors := make([]map[int]float64, len(docs))
	for i, d := range docs {
		vectors[i] = vec.transform(d)
	}
	return &model{vec: vec, nb: fitNaiveBayes(vectors, labels, waste.Categories(), len(vec.vocab))}, nil
}

// Predict never fails. ProcessedText always carries the normalized input.
func (c *Classifier) Predict(text string) waste.Prediction {
	processed := Normalize(text)
	snap := c.snap.Load()
	if snap.model != nil {
		if p, ok := c.predictModel(snap.model, processed); ok {
			return p
		}
	}
	return fallback(snap.keywords, processed)
}

func (c *Classifier) predictModel(m *model, processed string) (p waste.Prediction, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("text model inference panicked, using keyword fallback", "panic", r)
			ok = false
		}
	}()

	vec := m.vec.transform(processed)
	if len(vec) == 0 {
		c.log.Debug("no known terms in text, using keyword fallback", "text", processed)
		return waste.Prediction{}, false
	}
	post := m.nb.posterior(vec)
	best := 0
	for i := 1; i < len(post); i++ {
		if post[i] > post[best] {
			best = i
		}
	}
	return waste.Prediction{
		Category:      m.nb.classes[best],
		Confidence:    post[best],
		Probabilities: waste.Distribution(post...),
		Method:        waste.MethodModel,
		ProcessedText: processed,
	}, true
}

func fallback(kw Keywords, processed string) waste.Prediction {
	cats := waste.Categories()
	counts := make([]float64, len(cats))
	var total float64
	for i, cat := range cats {
		for _, word := range kw[cat] {
			if strings.Contains(processed, word) {
				counts[i]++
			}
		}
		total += counts[i]
	}
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	denom := max(total, 1)
	dist := make([]float64, len(counts))
	for i, n := range counts {
		dist[i] = n / denom
	}
	return waste.Prediction{
		Category:      cats[best],
		Confidence:    counts[best] / denom,
		Probabilities: waste.Distribution(dist...),
		Method:        waste.MethodKeywordFallback,
		ProcessedText: processed,
	}
}

// AddKeywords extends category's keyword list and retrains the model. The
// new model is visible to every Predict call that starts after it returns.
func (c *Classifier) AddKeywords(category string, words []string) error {
	cat, err := waste.ParseCategory(category)
	if err != nil {
		return err
	}
	var cleaned []string
	for _, w := range words {
		if n := Normalize(w); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return ErrNoKeywords
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.snap.Load().keywords.merge(Keywords{cat: cleaned})
	c.snap.Store(c.build(next))
	c.log.Info("keywords added", "category", cat, "count", len(cleaned))
	return nil
}

// Keywords returns a copy of category's keyword list.
func (c *Classifier) Keywords(category string) ([]string, error) {
	cat, err := waste.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.snap.Load().keywords[cat]...), nil
}

func (c *Classifier) AllKeywords() Keywords {
	return c.snap.Load().keywords.clone()
}

// ModelLoaded reports whether predictions currently use the trained model.
func (c *Classifier) ModelLoaded() bool {
	return c.snap.Load().model != nil
}
