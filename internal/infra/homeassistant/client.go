package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gdo-bridge/internal/infra"
)

var ErrUnauthorized = errors.New("home assistant: unauthorized, check the access token")

// Client writes entity states through the Home Assistant REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      infra.RetryConfig
}

func NewClient(baseURL, token string) *Client {
	retry := infra.DefaultRetryConfig()
	retry.MaxRetries = 2

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      retry,
	}
}

// EntityState is the body of POST /api/states/<entity_id>.
type EntityState struct {
	EntityID   string         `json:"-"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SetState creates or replaces the state of one entity.
func (c *Client) SetState(ctx context.Context, s EntityState) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/api/states/"+s.EntityID, body); err != nil {
		return fmt.Errorf("setting %s: %w", s.EntityID, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var respBody []byte

	err := infra.WithRetry(ctx, c.retry, func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return infra.Permanent(ErrUnauthorized)
		}
		if infra.IsRetryableHTTPStatus(resp.StatusCode) {
			return fmt.Errorf("home assistant API error %d (retryable): %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 {
			return infra.Permanent(fmt.Errorf("home assistant API error %d: %s", resp.StatusCode, string(respBody)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return respBody, nil
}
