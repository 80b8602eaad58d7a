package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gdo-bridge/internal/domain"
	"gdo-bridge/internal/infra"
)

type fakeHA struct {
	mu       sync.Mutex
	statuses []int
	calls    int
	states   map[string]EntityState
	auth     string
}

func (f *fakeHA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.auth = r.Header.Get("Authorization")
	if len(f.statuses) > 0 {
		status := f.statuses[0]
		f.statuses = f.statuses[1:]
		if status != http.StatusOK {
			http.Error(w, http.StatusText(status), status)
			return
		}
	}

	var s EntityState
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.states[r.URL.Path] = s
	w.WriteHeader(http.StatusOK)
}

func newTestClient(url string) *Client {
	c := NewClient(url+"/", "token")
	c.retry = infra.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	return c
}

func TestClient_SetState(t *testing.T) {
	fake := &fakeHA{states: make(map[string]EntityState), statuses: []int{http.StatusServiceUnavailable}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	err := newTestClient(srv.URL).SetState(context.Background(), EntityState{
		EntityID: "light.garage_light",
		State:    "on",
	})
	if err != nil {
		t.Fatalf("SetState error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.calls != 2 {
		t.Errorf("calls: got %d, want 2", fake.calls)
	}
	if fake.auth != "Bearer token" {
		t.Errorf("authorization: got %q, want %q", fake.auth, "Bearer token")
	}
	if got := fake.states["/api/states/light.garage_light"]; got.State != "on" {
		t.Errorf("state: got %+v", got)
	}
}

func TestClient_SetStateUnauthorized(t *testing.T) {
	fake := &fakeHA{states: make(map[string]EntityState), statuses: []int{http.StatusUnauthorized}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	err := newTestClient(srv.URL).SetState(context.Background(), EntityState{EntityID: "lock.garage_remote_lock", State: "locked"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("error: got %v, want ErrUnauthorized", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.calls != 1 {
		t.Errorf("calls: got %d, want 1", fake.calls)
	}
}

func TestEntityStateFor(t *testing.T) {
	tests := []struct {
		name  string
		ev    domain.Event
		id    string
		state string
	}{
		{"door open", domain.DoorEvent{Closed: false, Position: 0.5}, "cover.garage_door", "open"},
		{"door closed", domain.DoorEvent{Closed: true}, "cover.garage_door", "closed"},
		{"light", domain.SwitchEvent{Switch: domain.SwitchLight, On: true}, "light.garage_light", "on"},
		{"lock", domain.SwitchEvent{Switch: domain.SwitchRemoteLock, On: true}, "lock.garage_remote_lock", "locked"},
		{"learn", domain.SwitchEvent{Switch: domain.SwitchLearn}, "switch.garage_learn", "off"},
		{"obstruction", domain.AlarmEvent{Alarm: domain.AlarmObstructionDetected, Active: true}, "binary_sensor.garage_obstruction_detected", "on"},
		{"rssi", domain.MeasurementEvent{Measurement: domain.MeasurementWifiStrength, Value: -61.5, Known: true}, "sensor.garage_wifi_strength", "-61.5"},
		{"openings unknown", domain.MeasurementEvent{Measurement: domain.MeasurementOpenings}, "sensor.garage_openings", "unknown"},
		{"protocol", domain.SecurityProtocolEvent{Protocol: domain.SecurityProtocolSecurity2}, "select.garage_security_protocol", "security+2.0"},
		{"offline", domain.AvailabilityEvent{Reason: "address changed"}, "binary_sensor.garage_connectivity", "off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := entityStateFor(tt.ev, "garage")
			if !ok {
				t.Fatal("no entity for event")
			}
			if s.EntityID != tt.id || s.State != tt.state {
				t.Errorf("entity: got %s=%s, want %s=%s", s.EntityID, s.State, tt.id, tt.state)
			}
		})
	}

	door, _ := entityStateFor(domain.DoorEvent{Position: 0.5}, "garage")
	if door.Attributes["current_position"] != 50 {
		t.Errorf("current_position: got %v, want 50", door.Attributes["current_position"])
	}

	for _, ev := range []domain.Event{domain.LogEvent{}, domain.ErrorEvent{}, domain.IdentityEvent{}} {
		if _, ok := entityStateFor(ev, "garage"); ok {
			t.Errorf("%T mapped to an entity", ev)
		}
	}
}

type recordingWriter struct {
	states chan EntityState
}

func (w *recordingWriter) SetState(_ context.Context, s EntityState) error {
	w.states <- s
	return nil
}

func TestSink_Run(t *testing.T) {
	w := &recordingWriter{states: make(chan EntityState, 4)}
	s := NewSink(w, "garage", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.HandleEvent(domain.LogEvent{Message: "connected"})
	s.HandleEvent(domain.SwitchEvent{Switch: domain.SwitchLight, On: true})

	select {
	case got := <-w.states:
		if got.EntityID != "light.garage_light" {
			t.Errorf("entity: got %q, want light.garage_light", got.EntityID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("state not written")
	}
}
