package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MELR22/rissa-plotter/pkg/observation"
)

// Transport delivers one batch of observations for a dataset
type Transport interface {
	Send(ctx context.Context, dataset string, obs []observation.Observation) error
}

// StatusError is returned when the server rejects a batch
type StatusError struct {
	Code    int
	Kind    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Code)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Code, e.Message)
}

// Retryable reports whether resending the same batch may succeed
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInsufficientStorage:
		return true
	}
	return false
}

// HTTPTransport posts batches to the ingest endpoint of a rissa server
type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTP creates a transport for the server at baseURL
func NewHTTP(baseURL, apiKey string) (*HTTPTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (t *HTTPTransport) endpoint(dataset string) string {
	return t.baseURL + "/v1/datasets/" + url.PathEscape(dataset) + "/observations"
}

// Send posts obs to the dataset's ingest endpoint
func (t *HTTPTransport) Send(ctx context.Context, dataset string, obs []observation.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	payload := map[string]interface{}{
		"observations": obs,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal observations: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(dataset), bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	statusErr := &StatusError{Code: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil {
		statusErr.Message = body.Message
		statusErr.Kind = body.Kind
	}
	return statusErr
}
