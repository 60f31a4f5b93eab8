package main

import (
	"net/http"

	"github.com/angeloszaimis/kv-failover/internal/handler"
	"github.com/angeloszaimis/kv-failover/internal/metrics"
)

func setupRouter(kvHandler *handler.KVHandler, metricsCollector *metrics.Collector, storeType string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /kv/{cache}/{key}", kvHandler.Add)
	mux.HandleFunc("GET /kv/{cache}/{key}", kvHandler.Read)
	mux.HandleFunc("PUT /kv/{cache}/{key}", kvHandler.Update)
	mux.HandleFunc("GET /failover/{cache}", kvHandler.Failover)
	mux.HandleFunc("GET /metrics", metricsCollector.Handler(storeType))

	return mux
}
