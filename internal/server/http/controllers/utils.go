package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rzbill/floq/internal/deadletter"
	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
	"github.com/rzbill/floq/internal/workqueue"
)

// maxRequestBytes bounds a JSON request body. Base64 inflates message
// bodies by a third, so this sits well above the default body limit.
const maxRequestBytes = 8 << 20

// statusClientClosedRequest reports a request whose caller went away before
// it finished.
const statusClientClosedRequest = 499

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workqueue.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, workqueue.ErrQueueNotFound), errors.Is(err, deadletter.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workqueuesvc.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, workqueue.ErrClosed), errors.Is(err, deadletter.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// allow rejects requests whose method is not method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// decodeBody reads a JSON request into v, writing 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// parseLimit parses a limit string. Empty means zero; anything else must be
// a non-negative integer.
func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}
