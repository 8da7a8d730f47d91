package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/moogar0880/problems"
)

const problemMediaType = "application/problem+json"

// Error is returned for non-success responses. Problem holds the decoded
// problem document when the daemon sent one.
type Error struct {
	StatusCode int
	Problem    problems.Problem
}

func (e *Error) Error() string {
	detail := strings.TrimSpace(e.Problem.Detail)
	if detail == "" {
		detail = strings.TrimSpace(e.Problem.Title)
	}
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, detail)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsUnavailable reports whether err is a 503 from the daemon (queue full or stopping).
func IsUnavailable(err error) bool { return statusIs(err, http.StatusServiceUnavailable) }

func statusIs(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// BaseURL converts an api_bind address into a URL reachable from this host.
func BaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Client is a typed HTTP client for the daemon API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient constructs a client for the daemon at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// Status returns daemon and scheduler status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateWorkflow starts a workflow.
func (c *Client) CreateWorkflow(ctx context.Context, topic, tone string) (*CreateWorkflowResponse, error) {
	var resp CreateWorkflowResponse
	req := CreateWorkflowRequest{Topic: topic, Tone: tone}
	if err := c.do(ctx, http.MethodPost, "/api/workflows", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListWorkflows returns the most recent workflows, newest first.
func (c *Client) ListWorkflows(ctx context.Context, limit int) ([]WorkflowSummary, error) {
	path := "/api/workflows"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp WorkflowListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetWorkflow fetches a single workflow.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var resp WorkflowResponse
	if err := c.do(ctx, http.MethodGet, workflowPath(id, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Workflow, nil
}

// ApproveOutline approves the outline. OK is false when the workflow was not
// waiting for approval.
func (c *Client) ApproveOutline(ctx context.Context, id, notes string) (*ActionResponse, error) {
	return c.action(ctx, workflowPath(id, "approve-outline"), ApproveOutlineRequest{Notes: notes})
}

// RejectOutline sends the outline back with feedback.
func (c *Client) RejectOutline(ctx context.Context, id, feedback string) (*ActionResponse, error) {
	return c.action(ctx, workflowPath(id, "reject-outline"), RejectOutlineRequest{Feedback: feedback})
}

// Revise requests a new draft. Inspect the returned workflow state to see
// whether drafting was actually reopened.
func (c *Client) Revise(ctx context.Context, id, instructions string) (*ActionResponse, error) {
	return c.action(ctx, workflowPath(id, "revise"), ReviseRequest{Instructions: instructions})
}

// ApplySEO rewrites the draft with the stored SEO suggestions and finalizes it.
func (c *Client) ApplySEO(ctx context.Context, id string) (*ActionResponse, error) {
	return c.action(ctx, workflowPath(id, "apply-seo"), nil)
}

// Finalize finalizes the workflow without content changes.
func (c *Client) Finalize(ctx context.Context, id string) (*ActionResponse, error) {
	return c.action(ctx, workflowPath(id, "finalize"), nil)
}

// Chat sends a chat message and returns the reply.
func (c *Client) Chat(ctx context.Context, id, message string) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, workflowPath(id, "chat"), ChatRequest{Message: message}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamEvents follows the workflow's event stream and calls fn for every
// event until fn returns false, the stream ends, or ctx is cancelled.
func (c *Client) StreamEvents(ctx context.Context, id string, fn func(Event) bool) error {
	req, err := c.newRequest(ctx, http.MethodGet, workflowPath(id, "events"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var evt Event
			if err := json.Unmarshal(data.Bytes(), &evt); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			if !fn(evt) {
				return nil
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return ctx.Err()
}

func (c *Client) action(ctx context.Context, path string, body any) (*ActionResponse, error) {
	var resp ActionResponse
	err := c.do(ctx, http.MethodPost, path, body, &resp)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict && resp.Workflow.ID != "" {
		return &resp, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends a request and decodes the JSON body into out. A 409 body is
// decoded into out as well before the error is returned.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict && out != nil && !isProblem(resp) {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return &Error{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isProblem(resp *http.Response) bool {
	return strings.HasPrefix(resp.Header.Get("Content-Type"), problemMediaType)
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if len(body) > 0 {
		if err := json.Unmarshal(body, &apiErr.Problem); err != nil {
			apiErr.Problem.Detail = strings.TrimSpace(string(body))
		}
	}
	return apiErr
}

func workflowPath(id, action string) string {
	path := "/api/workflows/" + url.PathEscape(strings.TrimSpace(id))
	if action != "" {
		path += "/" + action
	}
	return path
}
