package controllers

import (
	"net/http"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// DeadLettersController exposes the dead-letter store.
type DeadLettersController struct {
	wq *workqueuesvc.Service
}

// NewDeadLettersController creates a dead-letter controller.
func NewDeadLettersController(svc *workqueuesvc.Service) *DeadLettersController {
	return &DeadLettersController{wq: svc}
}

// RegisterRoutes registers dead-letter routes with the given mux.
func (c *DeadLettersController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/deadletters", c.handleEntries)
	mux.HandleFunc("/v1/deadletters/redrive", c.handleRedrive)
}

// handleEntries lists or deletes stored dead letters.
// GET    /v1/deadletters?queue=<name>&filter=<cel>&limit=<n>
// DELETE /v1/deadletters?queue=<name>&id=<id>
func (c *DeadLettersController) handleEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		limit, err := parseLimit(q.Get("limit"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp, err := c.wq.ListDeadLetters(r.Context(), &workqueuesvc.ListDeadLettersRequest{
			Queue:  q.Get("queue"),
			Filter: q.Get("filter"),
			Limit:  limit,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, resp)
	case http.MethodDelete:
		if _, err := c.wq.DeleteDeadLetter(r.Context(), &workqueuesvc.DeadLetterRequest{Queue: q.Get("queue"), ID: q.Get("id")}); err != nil {
			writeServiceError(w, err)
			return
		}
		writeNoContent(w)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRedrive re-sends a dead letter to its queue.
// POST /v1/deadletters/redrive
func (c *DeadLettersController) handleRedrive(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req workqueuesvc.DeadLetterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := c.wq.Redrive(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}
