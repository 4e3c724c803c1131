package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"ecosort/internal/analytics"
	"ecosort/internal/classify/imageclass"
	"ecosort/internal/logger"
	"ecosort/internal/pipeline"
	"ecosort/internal/queue"
	"ecosort/internal/store"
	"ecosort/internal/sustainability"
	"ecosort/internal/waste"
)

const Version = "1.0.0"

type HealthChecker interface {
	Health(ctx context.Context) error
}

type History interface {
	ListEvents(ctx context.Context, limit int) ([]store.Event, error)
}

type MetricsSource interface {
	Snapshot() map[string]int64
}

type QueueStats interface {
	Stats() queue.Stats
	Healthy() bool
}

type Deps struct {
	Service       *pipeline.Service
	Health        HealthChecker
	History       History
	Metrics       MetricsSource
	Queue         QueueStats
	Logger        *logger.Logger
	MaxImageBytes int64
	MaxTextChars  int
}

// Router builds HTTP handlers for the classification API and /ops.
type Router struct {
	svc           *pipeline.Service
	health        HealthChecker
	history       History
	metrics       MetricsSource
	queue         QueueStats
	log           *logger.Logger
	maxImageBytes int64
	maxTextChars  int
}

func NewRouter(d Deps) *Router {
	return &Router{
		svc:           d.Service,
		health:        d.Health,
		history:       d.History,
		metrics:       d.Metrics,
		queue:         d.Queue,
		log:           logger.OrNop(d.Logger).With("component", "http"),
		maxImageBytes: d.MaxImageBytes,
		maxTextChars:  d.MaxTextChars,
	}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", r.home)
	mux.HandleFunc("POST /classify/image", r.classifyImage)
	mux.HandleFunc("POST /classify/text", r.classifyText)
	mux.HandleFunc("GET /analytics", r.analytics)
	mux.HandleFunc("GET /tips/{category}", r.tips)
	mux.HandleFunc("GET /categories/compare", r.compare)
	mux.HandleFunc("GET /classifications", r.recent)
	mux.HandleFunc("GET /keywords", r.keywords)
	mux.HandleFunc("POST /keywords", r.addKeywords)
	mux.HandleFunc("GET /ops/health", r.healthz)
	mux.HandleFunc("GET /ops/metrics", r.metricsz)
}

// Handler returns the mux wrapped in request id, access log and recover
// middleware.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	r.Register(mux)

	var h http.Handler = mux
	h = recoverMiddleware(r.log)(h)
	h = accessLogMiddleware(r.log)(h)
	h = requestIDMiddleware()(h)
	return h
}

func (r *Router) home(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "EcoSort API",
		"version": Version,
		"status":  "running",
		"endpoints": map[string]string{
			"/classify/image":     "POST - Classify waste from image",
			"/classify/text":      "POST - Classify waste from text",
			"/analytics":          "GET - Get analytics data",
			"/tips/{category}":    "GET - Get disposal tips for category",
			"/categories/compare": "GET - Compare categories",
			"/classifications":    "GET - Most recent classifications",
			"/keywords":           "GET/POST - Inspect or extend text keywords",
		},
	})
}

type classifyResponse struct {
	ID                  string                     `json:"id"`
	Category            waste.Category             `json:"category"`
	Confidence          float64                    `json:"confidence"`
	AllProbabilities    map[waste.Category]float64 `json:"all_probabilities"`
	Method              waste.Method               `json:"method"`
	ProcessedText       string                     `json:"processed_text,omitempty"`
	SustainabilityScore float64                    `json:"sustainability_score"`
	EcoScore            float64                    `json:"eco_score"`
	DisposalTips        []string                   `json:"disposal_tips"`
	EnvironmentalImpact sustainability.Impact      `json:"environmental_impact"`
	Stored              bool                       `json:"stored"`
}

func newClassifyResponse(res pipeline.Result) classifyResponse {
	return classifyResponse{
		ID:                  res.ID,
		Category:            res.Prediction.Category,
		Confidence:          res.Prediction.Confidence,
		AllProbabilities:    res.Prediction.Probabilities,
		Method:              res.Prediction.Method,
		ProcessedText:       res.Prediction.ProcessedText,
		SustainabilityScore: res.Profile.Score,
		EcoScore:            res.EcoScore,
		DisposalTips:        res.Profile.Tips,
		EnvironmentalImpact: res.Profile.Impact,
		Stored:              res.Stored,
	}
}

func parseFactors(quantity, condition string) (*sustainability.Factors, error) {
	quantity, condition = strings.TrimSpace(quantity), strings.ToLower(strings.TrimSpace(condition))
	if quantity == "" && condition == "" {
		return nil, nil
	}
	f := &sustainability.Factors{}
	if quantity != "" {
		q, err := strconv.ParseFloat(quantity, 64)
		if err != nil || q < 0 {
			return nil, fmt.Errorf("invalid quantity %q", quantity)
		}
		f.Quantity = q
	}
	switch sustainability.Condition(condition) {
	case "", sustainability.ConditionDamaged, sustainability.ConditionContaminated:
		f.Condition = sustainability.Condition(condition)
	default:
		return nil, fmt.Errorf("invalid condition %q", condition)
	}
	return f, nil
}

func (r *Router) classifyImage(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxImageBytes+1<<20)
	file, header, err := req.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, r.tooLargeMessage())
			return
		}
		writeError(w, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No image file selected")
		return
	}
	if !imageclass.Supported(header.Filename) {
		writeError(w, http.StatusBadRequest, "Invalid file type. Please upload an image file.")
		return
	}
	factors, err := parseFactors(req.FormValue("quantity"), req.FormValue("condition"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, _, err := imageclass.Decode(file, r.maxImageBytes)
	switch {
	case errors.Is(err, imageclass.ErrTooLarge):
		writeError(w, http.StatusBadRequest, r.tooLargeMessage())
		return
	case errors.Is(err, imageclass.ErrTooManyPixels):
		writeError(w, http.StatusBadRequest, "Image dimensions too large.")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid image file: %v", err))
		return
	}

	res := r.svc.ClassifyImage(req.Context(), img, header.Filename, pipeline.WithFactors(factors))
	respondJSON(w, http.StatusOK, newClassifyResponse(res))
}

func (r *Router) tooLargeMessage() string {
	return fmt.Sprintf("File too large. Maximum size is %dMB.", r.maxImageBytes>>20)
}

type textRequest struct {
	Text      *string  `json:"text"`
	Quantity  *float64 `json:"quantity"`
	Condition string   `json:"condition"`
}

func (r *Router) classifyText(w http.ResponseWriter, req *http.Request) {
	var body textRequest
	req.Body = http.MaxBytesReader(w, req.Body, 1<<20)
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Text == nil {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}
	text := strings.TrimSpace(*body.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "Text cannot be empty")
		return
	}
	if r.maxTextChars > 0 && utf8.RuneCountInString(text) > r.maxTextChars {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Text too long. Maximum length is %d characters.", r.maxTextChars))
		return
	}
	quantity := ""
	if body.Quantity != nil {
		quantity = strconv.FormatFloat(*body.Quantity, 'f', -1, 64)
	}
	factors, err := parseFactors(quantity, body.Condition)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := r.svc.ClassifyText(req.Context(), text, pipeline.WithFactors(factors))
	respondJSON(w, http.StatusOK, newClassifyResponse(res))
}

func (r *Router) analytics(w http.ResponseWriter, req *http.Request) {
	today := r.svc.Today()
	start := req.URL.Query().Get("start_date")
	if start == "" {
		start = today
	}
	end := req.URL.Query().Get("end_date")
	if end == "" {
		end = today
	}
	rep, err := r.svc.Analytics(req.Context(), start, end)
	switch {
	case errors.Is(err, analytics.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD")
		return
	case err != nil:
		r.log.Error("analytics query failed", "error", err, "request_id", RequestIDFromContext(req.Context()))
		writeError(w, http.StatusInternalServerError, "Internal server error while fetching analytics")
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (r *Router) tips(w http.ResponseWriter, req *http.Request) {
	tips, err := r.svc.Tips(req.PathValue("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category. Must be one of: biodegradable, recyclable, hazardous")
		return
	}
	respondJSON(w, http.StatusOK, tips)
}

func (r *Router) compare(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.svc.Compare())
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (r *Router) recent(w http.ResponseWriter, req *http.Request) {
	if r.history == nil {
		writeError(w, http.StatusNotFound, "history not available")
		return
	}
	limit := defaultHistoryLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	list, err := r.history.ListEvents(req.Context(), limit)
	if err != nil {
		r.log.Error("list classifications failed", "error", err, "request_id", RequestIDFromContext(req.Context()))
		writeError(w, http.StatusInternalServerError, "could not list classifications")
		return
	}
	if list == nil {
		list = []store.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"classifications": list, "count": len(list)})
}

func (r *Router) keywords(w http.ResponseWriter, req *http.Request) {
	category := req.URL.Query().Get("category")
	if category == "" {
		respondJSON(w, http.StatusOK, r.svc.AllKeywords())
		return
	}
	words, err := r.svc.Keywords(category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"category": strings.ToLower(category), "keywords": words})
}

func (r *Router) addKeywords(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Category string   `json:"category"`
		Keywords []string `json:"keywords"`
	}
	req.Body = http.MaxBytesReader(w, req.Body, 1<<20)
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := r.svc.AddKeywords(body.Category, body.Keywords); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	words, _ := r.svc.Keywords(body.Category)
	respondJSON(w, http.StatusOK, map[string]any{"category": strings.ToLower(body.Category), "keywords": words})
}

func (r *Router) healthz(w http.ResponseWriter, req *http.Request) {
	if r.health != nil {
		if err := r.health.Health(req.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	if r.queue != nil && !r.queue.Healthy() {
		writeError(w, http.StatusServiceUnavailable, "queue not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) metricsz(w http.ResponseWriter, req *http.Request) {
	out := map[string]any{}
	if r.metrics != nil {
		out["counters"] = r.metrics.Snapshot()
	}
	if r.queue != nil {
		out["queue"] = r.queue.Stats()
	}
	respondJSON(w, http.StatusOK, out)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = http.StatusText(status)
	}
	respondJSON(w, status, map[string]string{"error": msg})
}
