package controllers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// GeneralController serves health and metrics.
type GeneralController struct {
	svc      *workqueuesvc.Service
	gatherer prometheus.Gatherer
}

// NewGeneralController creates a general controller. A nil gatherer leaves
// /metrics unregistered.
func NewGeneralController(svc *workqueuesvc.Service, gatherer prometheus.Gatherer) *GeneralController {
	return &GeneralController{svc: svc, gatherer: gatherer}
}

// RegisterRoutes registers /v1/healthz and, when a gatherer is set, /metrics.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	if c.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))
	}
}

// handleHealth returns 200 {"status":"ok"} when storage is usable and 503
// otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.svc.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
