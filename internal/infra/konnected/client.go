package konnected

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"gdo-bridge/internal/domain"
	"gdo-bridge/internal/infra"
)

const (
	DefaultPort       = 80
	DefaultMaxRetries = 5

	defaultRequestTimeout = 10 * time.Second
)

// Identity is the address and credentials of one device.
type Identity struct {
	Address  string
	Port     int
	Username string
	Password string
}

// BaseURL returns the device root URL.
func (id Identity) BaseURL() string {
	port := id.Port
	if port == 0 {
		port = DefaultPort
	}
	return "http://" + net.JoinHostPort(id.Address, strconv.Itoa(port))
}

// HasCredentials reports whether both username and password are set.
func (id Identity) HasCredentials() bool {
	return id.Username != "" && id.Password != ""
}

// Authorization returns the HTTP Basic header value, or "" when the
// identity does not carry both credentials.
func (id Identity) Authorization() string {
	if !id.HasCredentials() {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id.Username+":"+id.Password))
}

// Client talks to one Konnected GDO blaQ. Commands may be issued at any
// time; they do not depend on the event stream being open.
type Client struct {
	logger       *slog.Logger
	bus          *Bus
	httpClient   *http.Client
	streamClient *http.Client
	retry        infra.RetryConfig

	mu       sync.Mutex
	identity Identity
	stream   *stream
}

type Option func(*Client)

// WithHTTPClient sets the client used for commands and queries.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithStreamClient sets the client used for the event stream. It must not
// impose a total request timeout.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) { c.streamClient = hc }
}

func WithRetryConfig(cfg infra.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func NewClient(identity Identity, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		logger:       logger,
		identity:     identity,
		httpClient:   &http.Client{Timeout: defaultRequestTimeout},
		streamClient: &http.Client{},
		retry:        infra.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bus = NewBus(c.logger)

	return c
}

// Identity returns the current device identity.
func (c *Client) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SetIdentity replaces the identity used by subsequent requests. An open
// stream keeps its connection until the next Connect.
func (c *Client) SetIdentity(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

// SetAddress replaces only the address and port, e.g. after the device was
// rediscovered on the network.
func (c *Client) SetAddress(address string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.Address = address
	c.identity.Port = port
}

// SetCredentials replaces only the username and password.
func (c *Client) SetCredentials(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity.Username = username
	c.identity.Password = password
}

// Subscribe registers h for events of one kind.
func (c *Client) Subscribe(kind domain.EventKind, h Handler) {
	c.bus.Subscribe(kind, h)
}

// SubscribeAll registers h for every event.
func (c *Client) SubscribeAll(h Handler) {
	c.bus.SubscribeAll(h)
}

func (c *Client) newRequest(ctx context.Context, method string, endpoint Endpoint, query url.Values) (*http.Request, error) {
	id := c.Identity()

	target := id.BaseURL() + string(endpoint)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if auth := id.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req, nil
}

// get reads a status endpoint into out. authorized is false when the
// device answered 401; in that case out is left untouched.
func (c *Client) get(ctx context.Context, endpoint Endpoint, out any) (authorized bool, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if ok, err := checkStatus(resp, endpoint); !ok || err != nil {
		return ok, err
	}

	if out == nil {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return true, fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return true, nil
}

// post invokes an action endpoint. Parameters travel in the query string.
func (c *Client) post(ctx context.Context, endpoint Endpoint, params url.Values) (authorized bool, err error) {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, params)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp, endpoint)
}

func checkStatus(resp *http.Response, endpoint Endpoint) (bool, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	default:
		return false, &RequestError{
			Method:     resp.Request.Method,
			Path:       string(endpoint),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
}
