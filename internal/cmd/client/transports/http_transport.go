package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	workqueuesvc "github.com/rzbill/floq/internal/services/workqueues"
)

// HTTPError is a non-2xx answer from the HTTP API.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// HTTPTransport implements QueuesTransport over the JSON API.
type HTTPTransport struct {
	base   string
	client *http.Client
}

// NewHTTPTransport targets baseURL such as http://127.0.0.1:7080. A nil
// client uses one without a timeout so long polls are bounded by ctx.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{base: strings.TrimRight(baseURL, "/"), client: client}
}

// do sends in (if any) and decodes the response into out (if any). It
// reports false when the server answered 204.
func (t *HTTPTransport) do(ctx context.Context, method, path string, in, out any) (bool, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return false, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, body)
	if err != nil {
		return false, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return false, &HTTPError{Status: resp.StatusCode, Message: e.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
	}
	return true, nil
}

func post[Resp any](ctx context.Context, t *HTTPTransport, path string, in any) (*Resp, error) {
	out := new(Resp)
	if _, err := t.do(ctx, http.MethodPost, path, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *HTTPTransport) Send(ctx context.Context, req *workqueuesvc.SendRequest) (*workqueuesvc.SendResponse, error) {
	return post[workqueuesvc.SendResponse](ctx, t, "/v1/queues/send", req)
}

func (t *HTTPTransport) Receive(ctx context.Context, req *workqueuesvc.ReceiveRequest) (*workqueuesvc.ReceiveResponse, error) {
	msg := new(workqueuesvc.Message)
	got, err := t.do(ctx, http.MethodPost, "/v1/queues/receive", req, msg)
	if err != nil {
		return nil, err
	}
	if !got {
		return &workqueuesvc.ReceiveResponse{}, nil
	}
	return &workqueuesvc.ReceiveResponse{Message: msg}, nil
}

func (t *HTTPTransport) Acknowledge(ctx context.Context, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error) {
	return post[workqueuesvc.OKResponse](ctx, t, "/v1/queues/ack", req)
}

func (t *HTTPTransport) ExtendVisibility(ctx context.Context, req *workqueuesvc.ExtendRequest) (*workqueuesvc.OKResponse, error) {
	return post[workqueuesvc.OKResponse](ctx, t, "/v1/queues/extend", req)
}

func (t *HTTPTransport) Release(ctx context.Context, req *workqueuesvc.ReceiptRequest) (*workqueuesvc.OKResponse, error) {
	return post[workqueuesvc.OKResponse](ctx, t, "/v1/queues/release", req)
}

func (t *HTTPTransport) Counts(ctx context.Context, req *workqueuesvc.QueueRequest) (*workqueuesvc.CountsResponse, error) {
	out := new(workqueuesvc.CountsResponse)
	_, err := t.do(ctx, http.MethodGet, "/v1/queues/counts?queue="+url.QueryEscape(req.Queue), nil, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *HTTPTransport) ListQueues(ctx context.Context) (*workqueuesvc.ListQueuesResponse, error) {
	out := new(workqueuesvc.ListQueuesResponse)
	if _, err := t.do(ctx, http.MethodGet, "/v1/queues", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *HTTPTransport) Purge(ctx context.Context, req *workqueuesvc.QueueRequest) (*workqueuesvc.PurgeResponse, error) {
	return post[workqueuesvc.PurgeResponse](ctx, t, "/v1/queues/purge", req)
}

func (t *HTTPTransport) ListDeadLetters(ctx context.Context, req *workqueuesvc.ListDeadLettersRequest) (*workqueuesvc.ListDeadLettersResponse, error) {
	q := url.Values{}
	q.Set("queue", req.Queue)
	if req.Filter != "" {
		q.Set("filter", req.Filter)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	out := new(workqueuesvc.ListDeadLettersResponse)
	if _, err := t.do(ctx, http.MethodGet, "/v1/deadletters?"+q.Encode(), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *HTTPTransport) Redrive(ctx context.Context, req *workqueuesvc.DeadLetterRequest) (*workqueuesvc.RedriveResponse, error) {
	return post[workqueuesvc.RedriveResponse](ctx, t, "/v1/deadletters/redrive", req)
}

func (t *HTTPTransport) DeleteDeadLetter(ctx context.Context, req *workqueuesvc.DeadLetterRequest) error {
	q := url.Values{}
	q.Set("queue", req.Queue)
	q.Set("id", req.ID)
	_, err := t.do(ctx, http.MethodDelete, "/v1/deadletters?"+q.Encode(), nil, nil)
	return err
}
