// Package client talks to a running scribe daemon over its HTTP API.
//
// The CLI uses it to submit uploads, poll job status, list jobs, and read the
// health summary. Errors returned by the daemon surface as *StatusError so
// callers can inspect the machine-readable code and any Retry-After hint.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scribe/internal/api"
	"scribe/internal/jobs"
)

// ErrAPIUnavailable is returned when no daemon address is configured.
var ErrAPIUnavailable = errors.New("scribe API unavailable")

// StatusError reports a non-2xx reply from the daemon.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (HTTP %d, retry after %s)", msg, e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
}

// Client issues requests against the daemon API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New builds a client for bind, which may be host:port or a full URL.
// An empty bind yields a nil client whose methods return ErrAPIUnavailable.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	if host, port, err := net.SplitHostPort(base.Host); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		base.Host = net.JoinHostPort("127.0.0.1", port)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		http:  &http.Client{},
		token: strings.TrimSpace(token),
	}, nil
}

// BaseURL returns the resolved daemon address.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.base.String()
}

// Submit uploads media under filename with an optional language hint.
func (c *Client) Submit(ctx context.Context, filename string, media io.Reader, language string) (api.SubmitResponse, error) {
	var out api.SubmitResponse
	if c == nil {
		return out, ErrAPIUnavailable
	}

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(filename))
		if err == nil {
			_, err = io.Copy(part, media)
		}
		if err == nil && strings.TrimSpace(language) != "" {
			err = form.WriteField("language", strings.TrimSpace(language))
		}
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/transcribe", nil, body)
	if err != nil {
		body.Close()
		return out, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return out, c.do(req, &out)
}

// Job fetches a single job by id.
func (c *Client) Job(ctx context.Context, id int64) (api.Job, error) {
	var out api.Job
	if c == nil {
		return out, ErrAPIUnavailable
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/transcribe/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return out, err
	}
	return out, c.do(req, &out)
}

// List returns jobs, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...string) ([]api.Job, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	values := url.Values{}
	for _, status := range statuses {
		if status = strings.TrimSpace(status); status != "" {
			values.Add("status", status)
		}
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/transcribe", values, nil)
	if err != nil {
		return nil, err
	}
	var out api.JobListResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Health fetches the daemon health summary.
func (c *Client) Health(ctx context.Context) (api.Health, error) {
	var out api.Health
	if c == nil {
		return out, ErrAPIUnavailable
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return out, err
	}
	return out, c.do(req, &out)
}

// WaitForJob polls the job until it reaches a terminal status.
func (c *Client) WaitForJob(ctx context.Context, id int64, interval time.Duration) (api.Job, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return job, err
		}
		if jobs.Status(job.Status).IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var payload api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err == nil {
		statusErr.Code = payload.Error
		statusErr.Message = payload.Message
		if payload.RetryAfterSeconds > 0 {
			statusErr.RetryAfter = time.Duration(payload.RetryAfterSeconds) * time.Second
		}
	}
	if statusErr.RetryAfter == 0 {
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			statusErr.RetryAfter = time.Duration(seconds) * time.Second
		}
	}
	return statusErr
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
