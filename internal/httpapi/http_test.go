package httpapi

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecosort/internal/analytics"
	"ecosort/internal/classify/imageclass"
	"ecosort/internal/classify/textclass"
	"ecosort/internal/events"
	"ecosort/internal/logger"
	"ecosort/internal/metrics"
	"ecosort/internal/pipeline"
	"ecosort/internal/recorder"
	"ecosort/internal/store"
)

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func newTestHandler(t *testing.T, health HealthChecker) http.Handler {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	if health == nil {
		health = st
	}
	now := time.Date(2024, 9, 15, 12, 0, 0, 0, time.UTC)
	svc := pipeline.New(pipeline.Deps{
		Images:   imageclass.New(imageclass.Options{}),
		Text:     textclass.New(textclass.Options{}),
		Recorder: recorder.New(st),
		Reporter: analytics.New(st, time.UTC, nil),
		Bus:      events.NewBus(),
		Now:      func() time.Time { return now },
	})
	return NewRouter(Deps{
		Service:       svc,
		Health:        health,
		History:       st,
		Metrics:       metrics.New(),
		MaxImageBytes: 1 << 20,
		MaxTextChars:  20,
	}).Handler()
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func textRequestFor(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/classify/text", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHome(t *testing.T) {
	h := newTestHandler(t, nil)
	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestClassifyText(t *testing.T) {
	h := newTestHandler(t, nil)

	rec, body := do(t, h, textRequestFor(`{"text":"  banana peel "}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "biodegradable", body["category"])
	assert.Equal(t, 8.5, body["sustainability_score"])
	assert.Equal(t, true, body["stored"])
	assert.Len(t, body["all_probabilities"], 3)
	assert.NotEmpty(t, body["disposal_tips"])

	rec, body = do(t, h, textRequestFor(`{"text":"old battery","quantity":12,"condition":"contaminated"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hazardous", body["category"])
	assert.InDelta(t, 2.0*body["confidence"].(float64)*0.8*0.7, body["eco_score"], 1e-9)
}

func TestClassifyTextValidation(t *testing.T) {
	h := newTestHandler(t, nil)
	cases := []struct {
		in   string
		want string
	}{
		{`{}`, "No text provided"},
		{`not json`, "No text provided"},
		{`{"text":"   "}`, "Text cannot be empty"},
		{`{"text":"` + strings.Repeat("a", 21) + `"}`, "Text too long. Maximum length is 20 characters."},
		{`{"text":"jar","condition":"x"}`, `invalid condition "x"`},
	}
	for _, tc := range cases {
		rec, body := do(t, h, textRequestFor(tc.in))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.in)
		assert.Equal(t, tc.want, body["error"], tc.in)
	}
}

func multipartImage(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/classify/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestClassifyImage(t *testing.T) {
	h := newTestHandler(t, nil)

	rec, body := do(t, h, multipartImage(t, "leaf.png", pngBytes(t, color.RGBA{G: 255, A: 255})))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "biodegradable", body["category"])
	assert.Equal(t, "heuristic", body["method"])

	rec, body = do(t, h, multipartImage(t, "notes.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid file type. Please upload an image file.", body["error"])

	rec, body = do(t, h, multipartImage(t, "broken.png", []byte("not a png")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(body["error"].(string), "Invalid image file"))

	huge := pngBytes(t, color.RGBA{G: 255, A: 255})
	binary.BigEndian.PutUint32(huge[16:20], 50000)
	binary.BigEndian.PutUint32(huge[20:24], 50000)
	binary.BigEndian.PutUint32(huge[29:33], crc32.ChecksumIEEE(huge[12:29]))
	rec, body = do(t, h, multipartImage(t, "huge.png", huge))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image dimensions too large.", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/classify/image", strings.NewReader(""))
	rec, body = do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No image file provided", body["error"])
}

func TestAnalytics(t *testing.T) {
	h := newTestHandler(t, nil)
	do(t, h, textRequestFor(`{"text":"glass jar"}`))

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total_classifications"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/analytics?start_date=2024-13-01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid date format. Use YYYY-MM-DD", body["error"])
}

func TestRecentClassifications(t *testing.T) {
	h := newTestHandler(t, nil)
	do(t, h, textRequestFor(`{"text":"glass jar"}`))
	do(t, h, textRequestFor(`{"text":"old battery"}`))

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/classifications?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/classifications?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTipsAndCompare(t *testing.T) {
	h := newTestHandler(t, nil)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/tips/hazardous", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hazardous", body["category"])

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/tips/sludge", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "Invalid category")

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/categories/compare", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body, 3)
}

func TestKeywords(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/keywords", strings.NewReader(`{"category":"recyclable","keywords":["Tetra Pack"]}`))
	rec, body := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["keywords"], "tetra pack")

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/keywords?category=recyclable", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["keywords"], "tetra pack")

	req = httptest.NewRequest(http.MethodPost, "/keywords", strings.NewReader(`{"category":"sludge","keywords":["x"]}`))
	rec, _ = do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/keywords", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body, 3)
}

func TestOps(t *testing.T) {
	h := newTestHandler(t, nil)
	rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/ops/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/ops/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "counters")

	h = newTestHandler(t, fakeHealth{err: errors.New("db closed")})
	rec, body = do(t, h, httptest.NewRequest(http.MethodGet, "/ops/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "db closed", body["error"])
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body["error"])
}
