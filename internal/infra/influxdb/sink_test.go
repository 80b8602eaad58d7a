package influxdb

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"gdo-bridge/internal/domain"
)

type fakeWriter struct {
	points []*write.Point
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.points = append(f.points, p)
}

func TestPointFor(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		ev     domain.Event
		kind   string
		fields map[string]interface{}
	}{
		{"door", domain.DoorEvent{Closed: false, Position: 100}, "door", map[string]interface{}{"closed": false, "position": 100.0}},
		{"light", domain.SwitchEvent{Switch: domain.SwitchLight, On: true}, "switch-light", map[string]interface{}{"on": true}},
		{"motion", domain.AlarmEvent{Alarm: domain.AlarmMotionDetected, Active: true}, "alarm-motion_detected", map[string]interface{}{"active": true}},
		{"rssi", domain.MeasurementEvent{Measurement: domain.MeasurementWifiStrength, Value: -61, Known: true}, "wifi_strength", map[string]interface{}{"value": -61.0}},
		{"availability", domain.AvailabilityEvent{Available: false, Reason: "x"}, "availability", map[string]interface{}{"available": false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pointFor(tt.ev, "garage", ts)
			if p == nil {
				t.Fatal("pointFor returned nil")
			}
			if p.Name() != measurementName {
				t.Errorf("measurement: got %q, want %q", p.Name(), measurementName)
			}
			if !p.Time().Equal(ts) {
				t.Errorf("time: got %v, want %v", p.Time(), ts)
			}

			tags := map[string]string{}
			for _, tag := range p.TagList() {
				tags[tag.Key] = tag.Value
			}
			if tags["device"] != "garage" || tags["kind"] != tt.kind {
				t.Errorf("tags: got %v, want device=garage kind=%s", tags, tt.kind)
			}

			fields := map[string]interface{}{}
			for _, f := range p.FieldList() {
				fields[f.Key] = f.Value
			}
			if len(fields) != len(tt.fields) {
				t.Fatalf("fields: got %v, want %v", fields, tt.fields)
			}
			for k, want := range tt.fields {
				if fields[k] != want {
					t.Errorf("field %s: got %v (%T), want %v (%T)", k, fields[k], fields[k], want, want)
				}
			}
		})
	}
}

func TestPointFor_Skipped(t *testing.T) {
	skipped := []domain.Event{
		domain.MeasurementEvent{Measurement: domain.MeasurementOpenings},
		domain.LogEvent{Message: "retrying"},
		domain.ErrorEvent{Err: errors.New("boom")},
		domain.IdentityEvent{Field: domain.IdentityDeviceID, Value: "a1"},
		domain.SecurityProtocolEvent{Protocol: domain.SecurityProtocolAuto},
	}

	w := &fakeWriter{}
	s := NewSink(w, "garage")
	for _, ev := range skipped {
		s.HandleEvent(ev)
	}
	if len(w.points) != 0 {
		t.Errorf("points: got %d, want 0", len(w.points))
	}
}

type fakeInflux struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestClient_WritesThroughSink(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client, err := Connect(Config{
		URL:    srv.URL,
		Token:  "token",
		Org:    "home",
		Bucket: "garage",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}

	client.Sink("garage").HandleEvent(domain.DoorEvent{Closed: true, Position: 0})
	client.Close()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	body := strings.Join(fake.writes, "\n")
	if !strings.Contains(body, "garage,device=garage,kind=door closed=true,position=0") {
		t.Errorf("write body: got %q", body)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(Config{URL: url}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("error: got %v, want ErrConnectionFailed", err)
	}
}
