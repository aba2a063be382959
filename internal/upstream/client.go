package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "vllm-relay/0.1"

	completionsPath = "/v1/completions"
	maxErrorBody    = 64 * 1024
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// ErrUnreachable indicates a network-level failure reaching the vLLM server.
var ErrUnreachable = errors.New("failed to connect to vLLM server")

// ErrInvalidResponse indicates the vLLM server answered with success but the
// payload did not carry any choices.
var ErrInvalidResponse = errors.New("invalid response from vLLM server")

// StatusError reports a non-success status from the vLLM server, carrying
// the upstream's own status code and raw response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vLLM server error: %s", e.Body)
}

// Client issues completion requests against a single vLLM server.
type Client struct {
	baseURL        string
	completionsURL string
	client         *http.Client
}

// NewClient constructs a client for the given base URL. An empty base URL
// yields an unconfigured client; Configured reports that state so callers
// can fail each request instead of refusing to start.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}

	base := strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL:        base,
		completionsURL: base + completionsPath,
		client:         httpClient,
	}
}

// NewHTTPClient returns an http.Client tuned for long-lived completion
// requests. No overall timeout: streamed generations run for minutes.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
	}
}

// Configured reports whether a base URL was provided at startup.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Complete forwards a non-streaming generation request and returns the text
// of every choice, in upstream order.
func (c *Client) Complete(ctx context.Context, body map[string]any) ([]string, error) {
	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readStatusError(resp)
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, ErrInvalidResponse
	}
	return result.texts(), nil
}

// OpenStream forwards a streaming generation request and returns the raw
// upstream body for incremental decoding. The caller owns the ReadCloser.
// A non-success upstream status is converted to a *StatusError.
func (c *Client) OpenStream(ctx context.Context, body map[string]any) (io.ReadCloser, error) {
	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := readStatusError(resp)
		resp.Body.Close()
		return nil, statusErr
	}

	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, body map[string]any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}

func readStatusError(resp *http.Response) *StatusError {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       fmt.Sprintf("status %d (error body unreadable: %v)", resp.StatusCode, err),
		}
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(raw)),
	}
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
}

type completionChoice struct {
	Text string `json:"text"`
}

func (r completionResponse) texts() []string {
	out := make([]string, 0, len(r.Choices))
	for _, choice := range r.Choices {
		out = append(out, choice.Text)
	}
	return out
}
