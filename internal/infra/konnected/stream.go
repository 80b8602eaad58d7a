package konnected

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"gdo-bridge/internal/domain"
	"gdo-bridge/internal/infra"
)

// ConnState is the lifecycle state of the event stream.
type ConnState int

const (
	StateIdle ConnState = iota
	StateOpening
	StateRetrying
	StateOpen
	StateClosed
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateRetrying:
		return "retrying"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type connectConfig struct {
	identity   *Identity
	maxRetries int
}

type ConnectOption func(*connectConfig)

// WithIdentity replaces the client identity before connecting.
func WithIdentity(id Identity) ConnectOption {
	return func(cfg *connectConfig) { cfg.identity = &id }
}

// WithMaxRetries sets how many transient failures the attempt tolerates.
// Zero fails on the first error.
func WithMaxRetries(n int) ConnectOption {
	return func(cfg *connectConfig) {
		if n >= 0 {
			cfg.maxRetries = n
		}
	}
}

// retryState belongs to exactly one Connect call.
type retryState struct {
	attempts int
	ceiling  int
	lastErr  error
}

func (r *retryState) exhausted() bool {
	return r.attempts >= r.ceiling
}

// stream is the handle of one streaming connection.
type stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	state       ConnState
	lastEventID string
	retry       time.Duration
}

func newStream() *stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &stream{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateOpening,
	}
}

func (s *stream) setState(state ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Closed and Failed are final.
	if s.state == StateClosed || s.state == StateFailed {
		return
	}
	s.state = state
}

func (s *stream) getState() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stream) close() {
	s.setState(StateClosed)
	s.cancel()
}

func (s *stream) fail() {
	s.setState(StateFailed)
	s.cancel()
}

// State returns the state of the current stream handle.
func (c *Client) State() ConnState {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()

	if s == nil {
		return StateIdle
	}
	return s.getState()
}

// Connect opens the event stream, replacing any existing one, and blocks
// until it is open or the attempt has failed. Transient failures before the
// stream opens are retried up to the configured ceiling; a 401 fails the
// attempt immediately with ErrUnauthorized. Cancelling ctx abandons the
// attempt and closes its stream.
func (c *Client) Connect(ctx context.Context, opts ...ConnectOption) error {
	cfg := connectConfig{maxRetries: c.retry.MaxRetries}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	if cfg.identity != nil {
		c.identity = *cfg.identity
	}
	if c.stream != nil {
		c.stream.close()
	}
	s := newStream()
	c.stream = s
	c.mu.Unlock()

	result := make(chan error, 1)
	go c.run(s, &retryState{ceiling: cfg.maxRetries}, result)

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		s.close()
		return ctx.Err()
	}
}

// Open connects with the current identity and the configured retry ceiling.
func (c *Client) Open(ctx context.Context) error {
	return c.Connect(ctx)
}

// Disconnect closes the event stream. It is safe to call at any time and
// leaves the identity untouched.
func (c *Client) Disconnect() {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()

	if s != nil {
		s.close()
	}
}

// Done returns a channel closed once the current stream goroutine exits,
// or nil when no stream was ever opened.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	return c.stream.done
}

// run drives one handle through opening, retries and steady state. result
// receives exactly one value.
func (c *Client) run(s *stream, retry *retryState, result chan<- error) {
	defer close(s.done)

	bo := c.retry.NewBackOff()

	for {
		s.setState(StateOpening)

		body, err := c.openStream(s)
		if err == nil {
			s.setState(StateOpen)
			c.logger.Info("event stream open", "url", c.Identity().BaseURL())
			result <- nil
			c.consume(s, body)
			return
		}

		if s.ctx.Err() != nil {
			result <- ErrClosed
			return
		}

		if errors.Is(err, ErrUnauthorized) {
			s.fail()
			result <- err
			return
		}

		retry.lastErr = err
		if retry.exhausted() {
			s.fail()
			result <- fmt.Errorf("%w: %w", ErrConnectionFailed, retry.lastErr)
			return
		}

		retry.attempts++
		c.logger.Warn("event stream connect failed",
			"attempt", retry.attempts,
			"max_retries", retry.ceiling,
			"error", err,
		)
		c.bus.Publish(domain.NewRetryLogEvent(retry.attempts, retry.ceiling))
		s.setState(StateRetrying)

		if err := infra.Sleep(s.ctx, bo.NextBackOff()); err != nil {
			result <- ErrClosed
			return
		}
	}
}

func (c *Client) openStream(s *stream) (io.ReadCloser, error) {
	req, err := c.newRequest(s.ctx, http.MethodGet, EventsEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	s.mu.Lock()
	if s.lastEventID != "" {
		req.Header.Set("Last-Event-ID", s.lastEventID)
	}
	s.mu.Unlock()

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusUnauthorized:
		resp.Body.Close()
		return nil, fmt.Errorf("opening event stream: %w", ErrUnauthorized)
	default:
		resp.Body.Close()
		return nil, &RequestError{
			Method:     http.MethodGet,
			Path:       string(EventsEndpoint),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
}

// consume is the steady state of an open handle. Stream failures are
// published as error events and never returned. The transport resumes a
// dropped stream after the server's retry interval; a 401 on resume closes
// the handle.
func (c *Client) consume(s *stream, body io.ReadCloser) {
	for {
		err := c.readFrames(s, body)
		body.Close()
		if s.ctx.Err() != nil {
			return
		}
		c.bus.Publish(domain.ErrorEvent{Err: fmt.Errorf("event stream: %w", err)})

		body = c.resume(s)
		if body == nil {
			return
		}
	}
}

func (c *Client) resume(s *stream) io.ReadCloser {
	for {
		s.setState(StateOpening)
		if err := infra.Sleep(s.ctx, c.resumeDelay(s)); err != nil {
			return nil
		}

		body, err := c.openStream(s)
		if err == nil {
			s.setState(StateOpen)
			c.logger.Info("event stream resumed")
			return body
		}
		if s.ctx.Err() != nil {
			return nil
		}

		c.bus.Publish(domain.ErrorEvent{Err: err})
		if errors.Is(err, ErrUnauthorized) {
			s.close()
			c.bus.Publish(domain.DisconnectedEvent{Err: err})
			return nil
		}
	}
}

func (c *Client) resumeDelay(s *stream) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retry > 0 {
		return s.retry
	}
	return c.retry.ResumeDelay
}

func (c *Client) readFrames(s *stream, body io.Reader) error {
	s.mu.Lock()
	reader := newSSEReader(body, s.lastEventID)
	s.mu.Unlock()

	for {
		frame, err := reader.Next()

		s.mu.Lock()
		if reader.retry > 0 {
			s.retry = reader.retry
		}
		s.lastEventID = reader.lastID
		s.mu.Unlock()

		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}

		switch frame.Type {
		case sseEventState:
			c.handleState(frame.Data)
		case sseEventLog:
			c.logger.Debug("device log", "message", frame.Data)
		}
	}
}

func (c *Client) handleState(data string) {
	if data == "" {
		return
	}

	ev, err := DecodeState([]byte(data))
	if err != nil {
		c.logger.Debug("dropping state message", "error", err)
		return
	}
	if ev == nil {
		return
	}
	c.bus.Publish(ev)
}
