// Package http serves the prediction API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"fraudguard/db"
	"fraudguard/monitoring"
	"fraudguard/serving"
)

// PredictionSink receives one record per successful prediction. Writes are
// best-effort: errors never reach the HTTP caller.
type PredictionSink interface {
	LogPrediction(ctx context.Context, record db.PredictionRecord) error
}

// NopSink discards records; used when the prediction log is disabled.
type NopSink struct{}

func (NopSink) LogPrediction(context.Context, db.PredictionRecord) error { return nil }

// How long a sink write may take before the record is dropped. The write
// happens after the response is computed, but a hung database must not pin
// request goroutines.
const sinkTimeout = 2 * time.Second

// API holds the handlers' dependencies; the composition root builds one and
// registers it on the mux.
type API struct {
	cache     *serving.Cache
	modelName string
	threshold float64
	sink      PredictionSink
	source    monitoring.PredictionSource
	hub       *monitoring.Hub
	log       *zap.Logger
}

// NewAPI wires the prediction API. sink must not be nil (use NopSink);
// source and hub may be nil to disable the monitor endpoints.
func NewAPI(cache *serving.Cache, modelName string, threshold float64, sink PredictionSink, source monitoring.PredictionSource, hub *monitoring.Hub, log *zap.Logger) *API {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		cache:     cache,
		modelName: modelName,
		threshold: threshold,
		sink:      sink,
		source:    source,
		hub:       hub,
		log:       log,
	}
}

// Register attaches all API routes.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /model_info", a.handleModelInfo)
	mux.HandleFunc("POST /reload", a.handleReload)
	mux.HandleFunc("POST /predict", a.handlePredict)
	if a.source != nil {
		mux.HandleFunc("GET /api/monitor", a.handleMonitor)
	}
	if a.hub != nil {
		mux.HandleFunc("GET /api/ws/monitor", a.hub.ServeWS)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	// Populate the binding lazily, like the first predict would.
	a.cache.Get(r.Context())
	binding := a.cache.Binding()
	respondJSON(w, http.StatusOK, map[string]any{
		"model":  modelPayload(binding),
		"errors": binding.LastErrors,
	})
}

func (a *API) handleReload(w http.ResponseWriter, r *http.Request) {
	binding, err := a.cache.Reload(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		message := err.Error()
		if errors.Is(err, serving.ErrNoModelAvailable) {
			status = http.StatusServiceUnavailable
			message = "Failed to load model"
		}
		a.log.Error("model reload failed", zap.Error(err), zap.Any("errors", binding.LastErrors))
		respondJSON(w, status, map[string]any{
			"status":     "error",
			"message":    message,
			"model_info": map[string]any{"model": modelPayload(binding), "errors": binding.LastErrors},
		})
		return
	}

	if a.hub != nil {
		a.hub.Publish(monitoring.EventReload, binding)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Model reloaded successfully",
		"model":   modelPayload(binding),
	})
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var payload map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		monitoring.PredictionCount.WithLabelValues("error").Inc()
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	model, binding, err := a.cache.Get(r.Context())
	if err != nil {
		monitoring.PredictionCount.WithLabelValues("error").Inc()
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "model not available"})
		return
	}

	probability, err := model.ScoreProbability(payload)
	if err != nil {
		monitoring.PredictionCount.WithLabelValues("error").Inc()
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	prediction := 0
	if probability >= a.threshold {
		prediction = 1
	}
	latency := time.Since(start)

	// Local-file bindings carry no registry provenance; fall back to the
	// configured model name so log rows stay attributable.
	modelName := binding.Name
	if modelName == "" {
		modelName = a.modelName
	}

	monitoring.PredictionCount.WithLabelValues("success").Inc()
	a.logPrediction(db.PredictionRecord{
		Timestamp:        time.Now().UTC(),
		Features:         payload,
		FraudProbability: probability,
		Prediction:       prediction,
		ModelVersion:     binding.Version,
		ModelName:        modelName,
		LatencyMs:        float64(latency.Microseconds()) / 1000.0,
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"fraud_probability": probability,
		"prediction":        prediction,
		"model_version":     nullable(binding.Version),
	})
}

func (a *API) handleMonitor(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			hours = h
		}
	}
	summary, err := monitoring.Summarize(r.Context(), a.source, time.Duration(hours)*time.Hour)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// logPrediction appends to the prediction log and publishes the live event.
// Failures are swallowed; they must never change the response.
func (a *API) logPrediction(record db.PredictionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := a.sink.LogPrediction(ctx, record); err != nil {
		monitoring.SinkFailures.Inc()
		a.log.Warn("failed to log prediction", zap.Error(err))
	}
	if a.hub != nil {
		a.hub.Publish(monitoring.EventPrediction, record)
	}
}

func modelPayload(b serving.Binding) map[string]any {
	source := any(nil)
	if b.Source != serving.SourceNone {
		source = string(b.Source)
	}
	return map[string]any{
		"name":    nullable(b.Name),
		"alias":   nullable(b.Alias),
		"stage":   nullable(b.Stage),
		"version": nullable(b.Version),
		"source":  source,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
