package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/logging"
)

const maxErrorBody = 4096

// Client is a typed wrapper over the pipeline HTTP API. It holds no state
// besides its endpoint and transport, so it is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default transport.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "remote")
	}
}

// New builds a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("remote: base url is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	base.RawQuery = ""
	base.Fragment = ""
	base.Path = strings.TrimRight(base.Path, "/")

	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logging.NewComponentLogger(nil, "remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Health fetches GET /api/health.
func (c *Client) Health(ctx context.Context) (api.HealthSnapshot, error) {
	var out api.HealthSnapshot
	err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, nil, &out)
	return out, err
}

// Publications fetches GET /api/publications.
func (c *Client) Publications(ctx context.Context) ([]api.Publication, error) {
	var out []api.Publication
	if err := c.do(ctx, "list publications", http.MethodGet, "/api/publications", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePublication posts a new publication. A duplicate name yields *ConflictError.
func (c *Client) CreatePublication(ctx context.Context, in api.PublicationCreate) (api.Publication, error) {
	var out api.Publication
	err := c.do(ctx, "create publication", http.MethodPost, "/api/publications", nil, in, &out)
	if err != nil {
		var v *ValidationError
		if errors.As(err, &v) && (v.Status == http.StatusConflict || isUniqueViolation(v.Detail)) {
			return api.Publication{}, &ConflictError{Name: in.Name, Detail: v.Detail}
		}
		return api.Publication{}, err
	}
	return out, nil
}

// PatchPublication sends a partial update for name.
func (c *Client) PatchPublication(ctx context.Context, name string, patch api.PublicationPatch) error {
	return c.do(ctx, "update publication", http.MethodPatch, "/api/publications/"+url.PathEscape(name), nil, patch, nil)
}

// DeletePublication removes name.
func (c *Client) DeletePublication(ctx context.Context, name string) error {
	return c.do(ctx, "delete publication", http.MethodDelete, "/api/publications/"+url.PathEscape(name), nil, nil, nil)
}

// Workflow fetches one page of workflow entries. page is 1-based.
func (c *Client) Workflow(ctx context.Context, page, limit int, search string) (api.WorkflowPage, error) {
	values := url.Values{}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if strings.TrimSpace(search) != "" {
		values.Set("search", strings.TrimSpace(search))
	}
	var out api.WorkflowPage
	err := c.do(ctx, "list workflow", http.MethodGet, "/api/workflow", values, nil, &out)
	return out, err
}

// DownloadFile streams GET /api/workflow/{publication}/{date} into w and returns the bytes written.
func (c *Client) DownloadFile(ctx context.Context, publication, date string, w io.Writer) (int64, error) {
	const op = "download file"
	path := "/api/workflow/" + url.PathEscape(publication) + "/" + url.PathEscape(date)
	resp, err := c.send(ctx, op, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := classify(op, resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &NetworkError{Op: op, Err: err}
	}
	return n, nil
}

// QueueDownload posts a manual download request. Dates must already be YYYYMMDD.
func (c *Client) QueueDownload(ctx context.Context, req api.DownloadRequest) (api.DownloadResult, error) {
	var out api.DownloadResult
	err := c.do(ctx, "queue download", http.MethodPost, "/api/download", nil, req, &out)
	if err == nil && out.Count == 0 {
		out.Count = len(req.Dates)
	}
	return out, err
}

// Check triggers an out-of-band check and returns the newly discovered items.
// Only the item count is meaningful to callers, so items stay undecoded and
// any JSON array is accepted.
func (c *Client) Check(ctx context.Context) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.do(ctx, "check", http.MethodPost, "/api/check", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Threads fetches GET /api/threads.
func (c *Client) Threads(ctx context.Context) ([]api.Thread, error) {
	var out []api.Thread
	if err := c.do(ctx, "list threads", http.MethodGet, "/api/threads", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := classify(op, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body any) (*http.Response, error) {
	escaped := c.base.EscapedPath() + path
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("%s: build path: %w", op, err)
	}
	endpoint := *c.base
	endpoint.Path = unescaped
	endpoint.RawPath = escaped
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID, ok := logging.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	logger := c.logger.With(
		logging.String(logging.FieldCorrelationID, requestID),
		logging.String("method", method),
		logging.String("path", path),
	)
	if err != nil {
		logger.Debug("request failed", logging.Error(err), logging.Duration("elapsed", time.Since(started)))
		return nil, &NetworkError{Op: op, Err: err}
	}
	logger.Debug("request completed", logging.Int("status", resp.StatusCode), logging.Duration("elapsed", time.Since(started)))
	return resp, nil
}

func classify(op string, resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	detail := readDetail(resp.Body)
	if resp.StatusCode >= 500 {
		return &StatusError{Op: op, Status: resp.StatusCode, Detail: detail}
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &ValidationError{Op: op, Status: resp.StatusCode, Detail: detail}
}

// readDetail returns the FastAPI-style {"detail": ...} message, or the raw body.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return ""
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Detail) > 0 {
		var text string
		if err := json.Unmarshal(payload.Detail, &text); err == nil {
			return text
		}
		return string(payload.Detail)
	}
	return trimmed
}
