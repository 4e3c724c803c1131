// Package pipeline runs one classification end to end: predict, score,
// record. Recording is best effort; a prediction is always returned.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"ecosort/internal/analytics"
	"ecosort/internal/classify/imageclass"
	"ecosort/internal/classify/textclass"
	"ecosort/internal/events"
	"ecosort/internal/logger"
	"ecosort/internal/store"
	"ecosort/internal/sustainability"
	"ecosort/internal/waste"
)

type ImagePredictor interface {
	Predict(img image.Image) waste.Prediction
}

type TextPredictor interface {
	Predict(text string) waste.Prediction
	AddKeywords(category string, words []string) error
	Keywords(category string) ([]string, error)
	AllKeywords() textclass.Keywords
}

type EventRecorder interface {
	Store(ctx context.Context, e store.Event) (store.DailyAggregate, error)
}

type Reporter interface {
	Query(ctx context.Context, start, end string) (analytics.Report, error)
	Reconcile(ctx context.Context) (analytics.ReconcileResult, error)
}

type Deps struct {
	Images   ImagePredictor
	Text     TextPredictor
	Catalog  *sustainability.Catalog
	Recorder EventRecorder
	Reporter Reporter
	Bus      *events.Bus
	Logger   *logger.Logger
	Location *time.Location
	// MaxImageBytes bounds ClassifyImageFile. Zero means no limit.
	MaxImageBytes int64
	Now           func() time.Time
	NewID         func() string
}

type Service struct {
	images        ImagePredictor
	text          TextPredictor
	catalog       *sustainability.Catalog
	recorder      EventRecorder
	reporter      Reporter
	bus           *events.Bus
	log           *logger.Logger
	loc           *time.Location
	maxImageBytes int64
	now           func() time.Time
	newID         func() string
}

func New(d Deps) *Service {
	s := &Service{
		images:        d.Images,
		text:          d.Text,
		catalog:       d.Catalog,
		recorder:      d.Recorder,
		reporter:      d.Reporter,
		bus:           d.Bus,
		log:           logger.OrNop(d.Logger).With("component", "pipeline"),
		loc:           d.Location,
		maxImageBytes: d.MaxImageBytes,
		now:           d.Now,
		newID:         d.NewID,
	}
	if s.catalog == nil {
		s.catalog = sustainability.Default()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

// Result is a scored prediction. Stored is false when recording failed.
type Result struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Prediction waste.Prediction       `json:"prediction"`
	Profile    sustainability.Profile `json:"profile"`
	EcoScore   float64                `json:"eco_score"`
	Stored     bool                   `json:"stored"`
}

type classifyConfig struct {
	factors *sustainability.Factors
}

type ClassifyOption func(*classifyConfig)

// WithFactors applies quantity and condition penalties to the eco score.
func WithFactors(f *sustainability.Factors) ClassifyOption {
	return func(c *classifyConfig) { c.factors = f }
}

func (s *Service) ClassifyImage(ctx context.Context, img image.Image, descriptor string, opts ...ClassifyOption) Result {
	return s.finish(ctx, waste.InputImage, descriptor, s.images.Predict(img), opts)
}

func (s *Service) ClassifyText(ctx context.Context, text string, opts ...ClassifyOption) Result {
	return s.finish(ctx, waste.InputText, text, s.text.Predict(text), opts)
}

// ClassifyImageFile decodes the image at path and classifies it with the
// file name as descriptor.
func (s *Service) ClassifyImageFile(ctx context.Context, path string, opts ...ClassifyOption) (Result, error) {
	if !imageclass.Supported(path) {
		return Result{}, fmt.Errorf("%s: %w", path, imageclass.ErrUnsupportedFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	img, _, err := imageclass.Decode(f, s.maxImageBytes)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", path, err)
	}
	return s.ClassifyImage(ctx, img, filepath.Base(path), opts...), nil
}

func (s *Service) finish(ctx context.Context, kind waste.InputKind, input string, pred waste.Prediction, opts []ClassifyOption) Result {
	var cfg classifyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	profile := s.catalog.Score(string(pred.Category))
	res := Result{
		ID:         s.newID(),
		Timestamp:  s.now().In(s.loc),
		Prediction: pred,
		Profile:    profile,
		EcoScore:   s.catalog.EcoScore(string(pred.Category), pred.Confidence, cfg.factors),
	}
	if pred.Method != waste.MethodModel {
		s.publish(events.Event{Kind: events.KindDegraded, ID: res.ID, InputKind: string(kind), Method: string(pred.Method)})
	}

	ev := store.Event{
		ID:                  res.ID,
		Timestamp:           res.Timestamp,
		InputKind:           kind,
		Input:               input,
		Category:            pred.Category,
		Confidence:          pred.Confidence,
		SustainabilityScore: profile.Score,
		Tips:                profile.Tips,
	}
	if s.recorder != nil {
		if _, err := s.recorder.Store(ctx, ev); err != nil {
			s.log.Error("failed to record classification", "id", res.ID, "error", err)
			s.publish(events.Event{Kind: events.KindStorageFailed, ID: res.ID, InputKind: string(kind), Category: string(pred.Category), Error: err.Error()})
		} else {
			res.Stored = true
		}
	}

	s.log.Info("classified",
		"id", res.ID,
		"input", kind,
		"category", pred.Category,
		"confidence", fmt.Sprintf("%.2f", pred.Confidence),
		"method", pred.Method,
	)
	s.publish(events.Event{Kind: events.KindClassified, ID: res.ID, InputKind: string(kind), Category: string(pred.Category), Method: string(pred.Method)})
	return res
}

func (s *Service) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// Tips is the guidance returned for a single category.
type Tips struct {
	Category     waste.Category                 `json:"category"`
	Tips         []string                       `json:"tips"`
	Score        float64                        `json:"score"`
	Impact       sustainability.Impact          `json:"impact"`
	Alternatives []string                       `json:"disposal_alternatives"`
	Breakdown    sustainability.ImpactBreakdown `json:"impact_breakdown"`
	Improvements []string                       `json:"improvement_tips"`
}

func (s *Service) Tips(category string) (Tips, error) {
	cat, err := waste.ParseCategory(category)
	if err != nil {
		return Tips{}, err
	}
	p := s.catalog.Score(string(cat))
	breakdown, _ := s.catalog.ImpactBreakdown(string(cat))
	return Tips{
		Category:     cat,
		Tips:         p.Tips,
		Score:        p.Score,
		Impact:       p.Impact,
		Alternatives: s.catalog.DisposalAlternatives(string(cat)),
		Breakdown:    breakdown,
		Improvements: s.catalog.ImprovementTips(string(cat)),
	}, nil
}

func (s *Service) Compare() map[waste.Category]sustainability.Comparison {
	return s.catalog.Comparison()
}

func (s *Service) Analytics(ctx context.Context, start, end string) (analytics.Report, error) {
	return s.reporter.Query(ctx, start, end)
}

func (s *Service) Reconcile(ctx context.Context) (analytics.ReconcileResult, error) {
	res, err := s.reporter.Reconcile(ctx)
	if err != nil {
		return res, err
	}
	s.publish(events.Event{Kind: events.KindReconciled, Detail: fmt.Sprintf("%d days", res.Days)})
	return res, nil
}

// Today is the current date in the service's zone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(store.DateLayout)
}

func (s *Service) AddKeywords(category string, words []string) error {
	if err := s.text.AddKeywords(category, words); err != nil {
		return err
	}
	s.publish(events.Event{Kind: events.KindKeywordsAdded, Category: category, Detail: fmt.Sprintf("%d words", len(words))})
	return nil
}

func (s *Service) Keywords(category string) ([]string, error) {
	return s.text.Keywords(category)
}

func (s *Service) AllKeywords() textclass.Keywords {
	return s.text.AllKeywords()
}
