// Package client provides a Go client for the engine's HTTP API, for
// keepers and integration tests.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabikreal1/AlgoFlow/pkg/api"
	"github.com/gabikreal1/AlgoFlow/pkg/logger"
)

// Client represents an engine API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new engine API client
func New(endpoint string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// RegisterIntent creates a new intent and returns its id and commitment.
func (c *Client) RegisterIntent(req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.post("/api/v1/intents", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to register intent: %v", err)
	}
	return &resp, nil
}

// GetIntent fetches one intent record.
func (c *Client) GetIntent(intentID uint64) (*api.IntentJSON, error) {
	var intent api.IntentJSON
	if err := c.get(fmt.Sprintf("/api/v1/intents/%d", intentID), &intent); err != nil {
		return nil, fmt.Errorf("failed to fetch intent %d: %v", intentID, err)
	}
	return &intent, nil
}

// ExecuteIntent runs an intent with the full plan attached and returns
// the record after execution.
func (c *Client) ExecuteIntent(intentID uint64, req api.ExecuteRequest) (*api.IntentJSON, error) {
	var intent api.IntentJSON
	if err := c.post(fmt.Sprintf("/api/v1/intents/%d/execute", intentID), req, &intent); err != nil {
		return nil, fmt.Errorf("failed to execute intent %d: %v", intentID, err)
	}
	return &intent, nil
}

// UpdateStatus drives the intent's status machine.
func (c *Client) UpdateStatus(intentID uint64, req api.StatusRequest) (*api.IntentJSON, error) {
	var intent api.IntentJSON
	if err := c.post(fmt.Sprintf("/api/v1/intents/%d/status", intentID), req, &intent); err != nil {
		return nil, fmt.Errorf("failed to update intent %d status: %v", intentID, err)
	}
	return &intent, nil
}

// WithdrawIntent releases collateral from a terminal intent.
func (c *Client) WithdrawIntent(intentID uint64, req api.WithdrawRequest) (*api.IntentJSON, error) {
	var intent api.IntentJSON
	if err := c.post(fmt.Sprintf("/api/v1/intents/%d/withdraw", intentID), req, &intent); err != nil {
		return nil, fmt.Errorf("failed to withdraw intent %d: %v", intentID, err)
	}
	return &intent, nil
}

// Events fetches the engine's retained event stream.
func (c *Client) Events() ([]api.EventJSON, error) {
	var resp api.EventsResponse
	if err := c.get("/api/v1/events", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch events: %v", err)
	}
	return resp.Events, nil
}

func (c *Client) get(path string, out interface{}) error {
	resp, err := c.httpClient.Get(c.endpoint + path)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *Client) post(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Post(c.endpoint+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *Client) decode(resp *http.Response, out interface{}) error {
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("[API] failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("unexpected status code: %d, error: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(bodyBytes, out)
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
