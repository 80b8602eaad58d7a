package konnected_test

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"gdo-bridge/internal/domain"
	"gdo-bridge/internal/infra"
	"gdo-bridge/internal/infra/konnected"
)

type recordedRequest struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
}

// fakeDevice stands in for the garage controller web server.
type fakeDevice struct {
	t      *testing.T
	server *httptest.Server

	mu             sync.Mutex
	requests       []recordedRequest
	eventStatuses  []int
	eventAttempts  int
	restStatus     int
	payloads       map[string]string
	username       string
	password       string
	frames         chan string
	dropStream     chan struct{}
	streamsStarted int
	lastEventIDs   []string
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()

	d := &fakeDevice{
		t:          t,
		restStatus: http.StatusOK,
		payloads:   make(map[string]string),
		frames:     make(chan string, 32),
		dropStream: make(chan struct{}, 1),
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.handle))
	t.Cleanup(d.server.Close)
	return d
}

// requireAuth makes every endpoint answer 401 unless the given basic
// credentials are presented.
func (d *fakeDevice) requireAuth(username, password string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.username = username
	d.password = password
}

// failEvents makes the next connection attempts on /events answer with
// the given statuses, in order.
func (d *fakeDevice) failEvents(statuses ...int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventStatuses = append(d.eventStatuses, statuses...)
}

func (d *fakeDevice) setRESTStatus(status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restStatus = status
}

func (d *fakeDevice) setPayload(path, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads[path] = body
}

func (d *fakeDevice) push(frame string) {
	d.frames <- frame
}

// pushState sends one `state` event carrying data.
func (d *fakeDevice) pushState(data string) {
	d.push("event: state\ndata: " + data + "\n\n")
}

func (d *fakeDevice) drop() {
	d.dropStream <- struct{}{}
}

func (d *fakeDevice) identity() konnected.Identity {
	host, portStr, err := net.SplitHostPort(d.server.Listener.Addr().String())
	if err != nil {
		d.t.Fatalf("parsing server address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return konnected.Identity{Address: host, Port: port}
}

func (d *fakeDevice) recorded() []recordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]recordedRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

func (d *fakeDevice) attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eventAttempts
}

func (d *fakeDevice) streams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamsStarted
}

func (d *fakeDevice) handle(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	username, password := d.username, d.password
	d.mu.Unlock()

	if username != "" {
		u, p, ok := r.BasicAuth()
		if !ok || u != username || p != password {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	if r.URL.Path == string(konnected.EventsEndpoint) {
		d.handleEvents(w, r)
		return
	}

	d.mu.Lock()
	d.requests = append(d.requests, recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
	})
	status := d.restStatus
	body, ok := d.payloads[r.URL.Path]
	d.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if r.Method == http.MethodGet {
		if !ok {
			body = `{"id":"unknown","state":""}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

// resumedFrom returns the Last-Event-ID header of every stream request.
func (d *fakeDevice) resumedFrom() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lastEventIDs...)
}

func (d *fakeDevice) handleEvents(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.eventAttempts++
	d.lastEventIDs = append(d.lastEventIDs, r.Header.Get("Last-Event-ID"))
	if len(d.eventStatuses) > 0 {
		status := d.eventStatuses[0]
		d.eventStatuses = d.eventStatuses[1:]
		d.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}
	d.streamsStarted++
	d.mu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		d.t.Errorf("response writer does not support flushing")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 20\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-d.dropStream:
			return
		case frame := <-d.frames:
			io.WriteString(w, frame)
			flusher.Flush()
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(maxRetries int) infra.RetryConfig {
	return infra.RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		ResumeDelay:  20 * time.Millisecond,
	}
}

func newTestClient(d *fakeDevice, maxRetries int) *konnected.Client {
	return konnected.NewClient(d.identity(), discardLogger(), konnected.WithRetryConfig(fastRetry(maxRetries)))
}

// eventRecorder collects published events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
	notify chan domain.Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{notify: make(chan domain.Event, 64)}
}

func (r *eventRecorder) handle(ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- ev:
	default:
	}
}

func (r *eventRecorder) ofKind(kind domain.EventKind) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Kind() == kind {
			out = append(out, ev)
		}
	}
	return out
}

// waitFor blocks until an event of kind arrives or the timeout expires.
func (r *eventRecorder) waitFor(t *testing.T, kind domain.EventKind) domain.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.notify:
			if ev.Kind() == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return nil
		}
	}
}
