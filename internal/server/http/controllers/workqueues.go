package controllers

import (
	"net/http"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// WorkQueuesController handles the queue endpoints.
//
// Receipt failures are not HTTP errors: ack, extend and release answer 200
// with {"ok":false} for a stale, unknown or malformed receipt.
type WorkQueuesController struct {
	wq *workqueuesvc.Service
}

// NewWorkQueuesController creates a new work queues controller.
func NewWorkQueuesController(svc *workqueuesvc.Service) *WorkQueuesController {
	return &WorkQueuesController{wq: svc}
}

// RegisterRoutes registers all queue routes with the given mux.
func (c *WorkQueuesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/queues", c.handleList)
	mux.HandleFunc("/v1/queues/counts", c.handleCounts)
	mux.HandleFunc("/v1/queues/purge", c.handlePurge)

	// Core operations
	mux.HandleFunc("/v1/queues/send", c.handleSend)
	mux.HandleFunc("/v1/queues/receive", c.handleReceive)
	mux.HandleFunc("/v1/queues/ack", c.handleAck)
	mux.HandleFunc("/v1/queues/extend", c.handleExtend)
	mux.HandleFunc("/v1/queues/release", c.handleRelease)
}

// handleList lists queues with their settings and counts.
// GET /v1/queues
func (c *WorkQueuesController) handleList(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	resp, err := c.wq.ListQueues(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}

// handleCounts reports visible and in-flight counts.
// GET /v1/queues/counts?queue=<name>
func (c *WorkQueuesController) handleCounts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	resp, err := c.wq.Counts(r.Context(), &workqueuesvc.QueueRequest{Queue: r.URL.Query().Get("queue")})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}

// handlePurge drops every message in a queue.
// POST /v1/queues/purge
func (c *WorkQueuesController) handlePurge(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req workqueuesvc.QueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := c.wq.Purge(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}

// handleSend enqueues a message. The body field is base64.
// POST /v1/queues/send
func (c *WorkQueuesController) handleSend(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req workqueuesvc.SendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := c.wq.Send(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}

// handleReceive returns one message, or 204 when none arrived within waitMs.
// POST /v1/queues/receive
func (c *WorkQueuesController) handleReceive(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req workqueuesvc.ReceiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := c.wq.Receive(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if resp.Message == nil {
		writeNoContent(w)
		return
	}
	writeJSON(w, resp.Message)
}

// handleAck deletes a delivered message.
// POST /v1/queues/ack
func (c *WorkQueuesController) handleAck(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req workqueuesvc.ReceiptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := c.wq.Acknowledge(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}

// handleExtend pushes a delivery's deadline out by extraMs.
// POST /v1/queues/extend
func (c *WorkQueuesController) handleExtend(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req workqueuesvc.ExtendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := c.wq.ExtendVisibility(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}

// handleRelease makes a delivered message visible again.
// POST /v1/queues/release
func (c *WorkQueuesController) handleRelease(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req workqueuesvc.ReceiptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := c.wq.Release(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}
