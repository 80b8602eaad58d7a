package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultEndpoint = "https://api.pushover.net/1/messages.json"

type Client struct {
	token      string
	userKey    string
	priority   int
	endpoint   string
	httpClient *http.Client
}

type Option func(*Client)

// WithPriority sets the Pushover message priority (-2 to 2).
func WithPriority(p int) Option {
	return func(c *Client) { c.priority = p }
}

// WithEndpoint overrides the messages API URL.
func WithEndpoint(u string) Option {
	return func(c *Client) { c.endpoint = u }
}

func NewClient(token, userKey string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		userKey:    userKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify sends a push message. It does nothing when the client has no
// credentials.
func (c *Client) Notify(ctx context.Context, title, message string) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("message", message)
	if title != "" {
		data.Set("title", title)
	}
	if c.priority != 0 {
		data.Set("priority", fmt.Sprint(c.priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover error: %s", resp.Status)
	}

	return nil
}
