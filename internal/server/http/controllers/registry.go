package controllers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// ControllerRegistry groups the HTTP controllers.
type ControllerRegistry struct {
	general     *GeneralController
	workqueues  *WorkQueuesController
	deadletters *DeadLettersController
}

// NewControllerRegistry creates every controller over svc.
func NewControllerRegistry(svc *workqueuesvc.Service, gatherer prometheus.Gatherer) *ControllerRegistry {
	return &ControllerRegistry{
		general:     NewGeneralController(svc, gatherer),
		workqueues:  NewWorkQueuesController(svc),
		deadletters: NewDeadLettersController(svc),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.workqueues.RegisterRoutes(mux)
	r.deadletters.RegisterRoutes(mux)
}
