package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/postmark-bridge/internal/config"
)

// HTTPDoer is the interface for executing HTTP requests. *http.Client
// satisfies it; it must be safe for concurrent use when fanout is parallel.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Postmark send API client. It performs no retries.
type Client struct {
	baseURL     string
	serverToken string
	httpClient  HTTPDoer
}

// NewClient creates a Postmark client from configuration.
func NewClient(cfg config.PostmarkConfig) *Client {
	return NewClientWithDoer(cfg, &http.Client{Timeout: cfg.Timeout()})
}

// NewClientWithDoer creates a client that issues requests through doer.
func NewClientWithDoer(cfg config.PostmarkConfig, doer HTTPDoer) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: baseURL, serverToken: cfg.ServerToken, httpClient: doer}
}

// Send posts one message. It returns *APIError when Postmark rejected the
// message with a structured error body and *TransportError for every other
// failure.
func (c *Client) Send(ctx context.Context, payload *WirePayload) (*SendResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerServerToken, c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Connectivity: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Connectivity: true, Err: fmt.Errorf("reading response: %w", err)}
	}

	var result SendResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: string(raw), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorCode: result.ErrorCode, Message: result.Message}
	}
	if result.MessageID == "" {
		return nil, &TransportError{StatusCode: resp.StatusCode, ErrorCode: result.ErrorCode, Message: "response carried no MessageID"}
	}

	return &result, nil
}
