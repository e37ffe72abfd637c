package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"fraudguard/db"
	"fraudguard/monitoring"
	"fraudguard/serving"
)

type fakeClassifier struct {
	probability float64
	err         error
}

func (f *fakeClassifier) ScoreProbability(map[string]float64) (float64, error) {
	return f.probability, f.err
}

func (f *fakeClassifier) FeatureNames() []string { return []string{"V1", "Amount"} }

type fakeResolver struct {
	resolution serving.Resolution
	err        error
	calls      atomic.Int64
}

func (f *fakeResolver) Resolve(context.Context) (serving.Resolution, error) {
	f.calls.Add(1)
	if f.err != nil {
		binding := serving.EmptyBinding()
		binding.LastErrors["alias"] = f.err.Error()
		return serving.Resolution{Binding: binding}, f.err
	}
	return f.resolution, nil
}

type recordingSink struct {
	records []db.PredictionRecord
	err     error
}

func (s *recordingSink) LogPrediction(_ context.Context, record db.PredictionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func newTestAPI(resolver serving.ResolverAPI, sink PredictionSink) *API {
	cache := serving.NewCache(resolver)
	return NewAPI(cache, "credit-fraud", 0.5, sink, nil, nil, zap.NewNop())
}

func healthyResolver(probability float64) *fakeResolver {
	return &fakeResolver{resolution: serving.Resolution{
		Model: &fakeClassifier{probability: probability},
		Binding: serving.Binding{
			Source:  serving.SourceStage,
			Name:    "credit-fraud",
			Stage:   "Production",
			Version: "7",
		},
	}}
}

func serve(api *API, method, target string, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.Register(mux)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return payload
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(healthyResolver(0.9), NopSink{})
	w := serve(api, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if payload := decode(t, w); payload["status"] != "ok" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
}

func TestHandlePredictFraud(t *testing.T) {
	sink := &recordingSink{}
	api := newTestAPI(healthyResolver(0.92), sink)
	w := serve(api, http.MethodPost, "/predict", `{"V1": -1.36, "Amount": 149.62}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decode(t, w)
	if payload["fraud_probability"].(float64) != 0.92 {
		t.Fatalf("unexpected probability: %v", payload["fraud_probability"])
	}
	if payload["prediction"].(float64) != 1 {
		t.Fatalf("expected positive class, got %v", payload["prediction"])
	}
	if payload["model_version"] != "7" {
		t.Fatalf("unexpected model_version: %v", payload["model_version"])
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 logged prediction, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.Prediction != 1 || record.FraudProbability != 0.92 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.ModelVersion != "7" || record.ModelName != "credit-fraud" {
		t.Fatalf("unexpected provenance: %+v", record)
	}
}

func TestHandlePredictBelowThreshold(t *testing.T) {
	api := newTestAPI(healthyResolver(0.12), &recordingSink{})
	w := serve(api, http.MethodPost, "/predict", `{"V1": 0.5, "Amount": 2.5}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if payload := decode(t, w); payload["prediction"].(float64) != 0 {
		t.Fatalf("expected negative class, got %v", payload["prediction"])
	}
}

func TestHandlePredictModelUnavailable(t *testing.T) {
	resolver := &fakeResolver{err: serving.ErrNoModelAvailable}
	api := newTestAPI(resolver, NopSink{})
	w := serve(api, http.MethodPost, "/predict", `{"V1": 1}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if payload := decode(t, w); payload["error"] != "model not available" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
}

func TestHandlePredictBadFeatures(t *testing.T) {
	resolver := &fakeResolver{resolution: serving.Resolution{
		Model:   &fakeClassifier{err: errors.New("missing feature V3")},
		Binding: serving.Binding{Source: serving.SourceLocal},
	}}
	api := newTestAPI(resolver, NopSink{})

	before := testutil.ToFloat64(monitoring.PredictionCount.WithLabelValues("error"))
	w := serve(api, http.MethodPost, "/predict", `{"V1": 1}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	after := testutil.ToFloat64(monitoring.PredictionCount.WithLabelValues("error"))
	if after != before+1 {
		t.Fatalf("expected error counter to advance by 1, got %v -> %v", before, after)
	}
}

func TestRequestMetricsRecordedOnFailure(t *testing.T) {
	resolver := &fakeResolver{resolution: serving.Resolution{
		Model:   &fakeClassifier{err: errors.New("missing feature V3")},
		Binding: serving.Binding{Source: serving.SourceLocal},
	}}
	api := newTestAPI(resolver, NopSink{})
	mux := http.NewServeMux()
	api.Register(mux)
	handler := Chain(MetricsMiddleware)(mux)

	before := testutil.ToFloat64(monitoring.RequestCount.WithLabelValues("POST", "/predict", "400"))

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"V1": 1}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	after := testutil.ToFloat64(monitoring.RequestCount.WithLabelValues("POST", "/predict", "400"))
	if after != before+1 {
		t.Fatalf("expected request counter to advance by 1 on the failure path, got %v -> %v", before, after)
	}
}

func TestHandlePredictInvalidJSON(t *testing.T) {
	api := newTestAPI(healthyResolver(0.5), NopSink{})
	w := serve(api, http.MethodPost, "/predict", `{not json`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandlePredictSinkFailureDoesNotChangeResponse(t *testing.T) {
	sink := &recordingSink{err: fmt.Errorf("disk full")}
	api := newTestAPI(healthyResolver(0.88), sink)

	before := testutil.ToFloat64(monitoring.SinkFailures)
	w := serve(api, http.MethodPost, "/predict", `{"V1": 1, "Amount": 10}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 despite sink failure, got %d", w.Code)
	}
	payload := decode(t, w)
	if payload["fraud_probability"].(float64) != 0.88 {
		t.Fatalf("unexpected probability: %v", payload["fraud_probability"])
	}
	after := testutil.ToFloat64(monitoring.SinkFailures)
	if after != before+1 {
		t.Fatalf("expected sink failure counter to advance, got %v -> %v", before, after)
	}
}

func TestHandleModelInfo(t *testing.T) {
	api := newTestAPI(healthyResolver(0.5), NopSink{})
	w := serve(api, http.MethodGet, "/model_info", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decode(t, w)
	model := payload["model"].(map[string]interface{})
	if model["name"] != "credit-fraud" || model["stage"] != "Production" {
		t.Fatalf("unexpected model info: %v", model)
	}
	if model["version"] != "7" || model["source"] != "stage" {
		t.Fatalf("unexpected provenance: %v", model)
	}
	if model["alias"] != nil {
		t.Fatalf("expected null alias for stage binding, got %v", model["alias"])
	}
}

func TestHandleModelInfoAfterFailure(t *testing.T) {
	resolver := &fakeResolver{err: serving.ErrNoModelAvailable}
	api := newTestAPI(resolver, NopSink{})
	w := serve(api, http.MethodGet, "/model_info", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decode(t, w)
	model := payload["model"].(map[string]interface{})
	if model["source"] != nil {
		t.Fatalf("expected null source, got %v", model["source"])
	}
	errs := payload["errors"].(map[string]interface{})
	if errs["alias"] == nil {
		t.Fatalf("expected alias error to be reported, got %v", errs)
	}
}

func TestHandleReloadSuccess(t *testing.T) {
	resolver := healthyResolver(0.5)
	api := newTestAPI(resolver, NopSink{})

	// Populate the cache first so the reload provably re-resolves.
	serve(api, http.MethodPost, "/predict", `{"V1": 1}`)

	w := serve(api, http.MethodPost, "/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	payload := decode(t, w)
	if payload["status"] != "success" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if payload["message"] != "Model reloaded successfully" {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
	if got := resolver.calls.Load(); got != 2 {
		t.Fatalf("expected eager re-resolution, resolver called %d times", got)
	}
}

func TestHandleReloadFailure(t *testing.T) {
	resolver := &fakeResolver{err: serving.ErrNoModelAvailable}
	api := newTestAPI(resolver, NopSink{})
	w := serve(api, http.MethodPost, "/reload", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	payload := decode(t, w)
	if payload["status"] != "error" {
		t.Fatalf("unexpected status: %v", payload["status"])
	}

	// The cache stays empty: the next predict fails rather than silently
	// serving a stale model.
	w = serve(api, http.MethodPost, "/predict", `{"V1": 1}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected predict to fail after failed reload, got %d", w.Code)
	}
}

func TestServerMiddlewareStack(t *testing.T) {
	api := newTestAPI(healthyResolver(0.7), NopSink{})
	mux := http.NewServeMux()
	api.Register(mux)
	handler := Chain(
		RecoveryMiddleware(zap.NewNop()),
		MetricsMiddleware,
		SecurityHeadersMiddleware,
		CORSMiddleware([]string{"*"}),
	)(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers")
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing CORS header")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error body, got content type %q", ct)
	}
	if payload := decode(t, w); payload["error"] != "internal server error" {
		t.Fatalf("unexpected error body: %v", payload)
	}
}
