package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/kv-failover/internal/dispatcher"
	"github.com/angeloszaimis/kv-failover/internal/metrics"
	"github.com/angeloszaimis/kv-failover/internal/store"
)

const maxValueBytes = 1 << 20

type KVHandler struct {
	logger           *slog.Logger
	registry         *dispatcher.Registry
	metricsCollector *metrics.Collector
}

func NewKVHandler(logger *slog.Logger, registry *dispatcher.Registry, collector *metrics.Collector) *KVHandler {
	return &KVHandler{
		logger:           logger,
		registry:         registry,
		metricsCollector: collector,
	}
}

type valueResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type failoverResponse struct {
	Cache      string `json:"cache"`
	State      string `json:"state"`
	FailedOver bool   `json:"failed_over"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Add handles POST /kv/{cache}/{key}.
func (h *KVHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, http.StatusCreated, func(d *dispatcher.Dispatcher, key string, value []byte) (any, dispatcher.Tier, error) {
		return d.Dispatch(func(handle store.Handle) (any, error) {
			return nil, handle.Add(key, value)
		})
	})
}

// Read handles GET /kv/{cache}/{key}.
func (h *KVHandler) Read(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, http.StatusOK, func(d *dispatcher.Dispatcher, key string, _ []byte) (any, dispatcher.Tier, error) {
		return d.Dispatch(func(handle store.Handle) (any, error) {
			return handle.Read(key)
		})
	})
}

// Update handles PUT /kv/{cache}/{key}.
func (h *KVHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, http.StatusOK, func(d *dispatcher.Dispatcher, key string, value []byte) (any, dispatcher.Tier, error) {
		return d.Dispatch(func(handle store.Handle) (any, error) {
			return nil, handle.Update(key, value)
		})
	})
}

// Failover handles GET /failover/{cache}, reporting breaker state without
// mutating it.
func (h *KVHandler) Failover(w http.ResponseWriter, r *http.Request) {
	d := h.registry.Get(r.PathValue("cache"))

	writeJSON(w, http.StatusOK, failoverResponse{
		Cache:      d.Name(),
		State:      d.State().String(),
		FailedOver: d.IsFailedOver(),
	})
}

func (h *KVHandler) execute(
	w http.ResponseWriter,
	r *http.Request,
	okStatus int,
	call func(d *dispatcher.Dispatcher, key string, value []byte) (any, dispatcher.Tier, error),
) {
	clientIP := extractClientIP(r)
	cache := r.PathValue("cache")
	key := r.PathValue("key")

	h.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("cache", cache),
		slog.String("key", key))

	var value []byte
	if r.Method != http.MethodGet {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
			return
		}
		value = body
	}

	d := h.registry.Get(cache)

	start := time.Now()
	result, tier, err := call(d, key, value)
	duration := time.Since(start)

	servedBy := string(tier)
	w.Header().Set("X-Served-By", servedBy)

	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Cache:     cache,
		Cluster:   servedBy,
	})
	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventClusterServed,
		Timestamp: time.Now(),
		Cache:     cache,
		Cluster:   servedBy,
	})

	status := okStatus
	if err != nil {
		status = statusFor(d, err)
		h.logger.Warn("Store operation failed",
			slog.String("cache", cache),
			slog.String("key", key),
			slog.Any("err", err))
		writeJSON(w, status, errorResponse{Error: err.Error()})
	} else if raw, ok := result.([]byte); ok {
		writeJSON(w, status, valueResponse{Key: key, Value: string(raw)})
	} else {
		w.WriteHeader(status)
	}

	h.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Cache:      cache,
		Cluster:    servedBy,
		Duration:   duration,
		StatusCode: status,
	})
}

func statusFor(d *dispatcher.Dispatcher, err error) int {
	switch {
	case errors.Is(err, store.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrKeyExists):
		return http.StatusConflict
	case d.Transient(err):
		// Both tiers are down; nothing left to serve from.
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (h *KVHandler) emitEvent(event metrics.MetricEvent) {
	if h.metricsCollector == nil {
		return
	}
	h.metricsCollector.Emit(event)
}
